package remote

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// DiskUsage is the usage of one watched mount point.
type DiskUsage struct {
	Path  string
	Used  int64
	Total int64
}

// HostHealth is the snapshot behind the health command.
type HostHealth struct {
	Hostname string
	Uptime   time.Duration
	Load     [3]float64
	MemUsed  int64
	MemTotal int64
	TempC    float64
	HasTemp  bool
	Disks    []DiskUsage
}

// SysInfo reads host metrics from procfs and sysfs. All fields are
// overridable so tests can point it at fixture files.
type SysInfo struct {
	procRoot     string
	thermalPaths []string
	watchPaths   []string
}

// NewSysInfo creates a collector watching the given mount points for disk
// usage. An empty list falls back to the root filesystem.
func NewSysInfo(watchPaths []string) *SysInfo {
	if len(watchPaths) == 0 {
		watchPaths = []string{"/"}
	}
	return &SysInfo{
		procRoot: "/proc",
		thermalPaths: []string{
			"/sys/class/thermal/thermal_zone0/temp",
			"/sys/class/thermal/thermal_zone1/temp",
		},
		watchPaths: watchPaths,
	}
}

// Health collects the full host snapshot. Individual probes failing leave
// their fields zero rather than failing the whole call.
func (s *SysInfo) Health() HostHealth {
	h := HostHealth{}
	h.Hostname, _ = os.Hostname()
	h.Uptime = s.Uptime()
	h.Load = s.LoadAvg()
	h.MemUsed, h.MemTotal = s.Memory()
	if t, err := s.CPUTemp(); err == nil {
		h.TempC = t
		h.HasTemp = true
	}
	for _, path := range s.watchPaths {
		var st syscall.Statfs_t
		if err := syscall.Statfs(path, &st); err != nil {
			h.Disks = append(h.Disks, DiskUsage{Path: path, Total: -1})
			continue
		}
		total := int64(st.Blocks) * int64(st.Bsize)
		free := int64(st.Bavail) * int64(st.Bsize)
		h.Disks = append(h.Disks, DiskUsage{Path: path, Used: total - free, Total: total})
	}
	return h
}

// Uptime returns how long the host has been up.
func (s *SysInfo) Uptime() time.Duration {
	raw, err := os.ReadFile(s.procRoot + "/uptime")
	if err != nil {
		return 0
	}
	fields := strings.Fields(string(raw))
	if len(fields) == 0 {
		return 0
	}
	secs, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// LoadAvg returns the 1, 5 and 15 minute load averages.
func (s *SysInfo) LoadAvg() [3]float64 {
	var load [3]float64
	raw, err := os.ReadFile(s.procRoot + "/loadavg")
	if err != nil {
		return load
	}
	fields := strings.Fields(string(raw))
	for i := 0; i < 3 && i < len(fields); i++ {
		load[i], _ = strconv.ParseFloat(fields[i], 64)
	}
	return load
}

// Memory returns used and total physical memory in bytes. Used follows
// MemAvailable, matching what free(1) reports.
func (s *SysInfo) Memory() (used, total int64) {
	raw, err := os.ReadFile(s.procRoot + "/meminfo")
	if err != nil {
		return 0, 0
	}
	var available int64
	for _, line := range strings.Split(string(raw), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		kb, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			continue
		}
		switch fields[0] {
		case "MemTotal:":
			total = kb * 1024
		case "MemAvailable:":
			available = kb * 1024
		}
	}
	return total - available, total
}

// CPUTemp reads the first readable thermal zone, in degrees Celsius.
// Zone files report millidegrees; a few report degrees directly.
func (s *SysInfo) CPUTemp() (float64, error) {
	for _, path := range s.thermalPaths {
		raw, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		val, err := strconv.ParseFloat(strings.TrimSpace(string(raw)), 64)
		if err != nil {
			continue
		}
		if val > 1000 {
			val /= 1000
		}
		return val, nil
	}
	return 0, fmt.Errorf("no readable thermal zone")
}

// TopProcesses returns the heaviest processes by CPU, header included.
func (s *SysInfo) TopProcesses(ctx context.Context, limit int) (string, error) {
	out, err := exec.CommandContext(ctx, "ps", "aux", "--sort=-%cpu").Output()
	if err != nil {
		return "", fmt.Errorf("list processes: %w", err)
	}
	lines := strings.Split(strings.TrimRight(string(out), "\n"), "\n")
	if len(lines) > limit+1 {
		lines = lines[:limit+1]
	}
	return strings.Join(lines, "\n"), nil
}
