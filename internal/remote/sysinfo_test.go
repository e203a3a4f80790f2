package remote

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestSysInfo(t *testing.T) *SysInfo {
	t.Helper()
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatal(err)
		}
		return path
	}
	write("uptime", "360000.52 1440000.00\n")
	write("loadavg", "0.52 0.58 0.59 1/428 12345\n")
	write("meminfo", "MemTotal:       16384000 kB\nMemFree:         1000000 kB\nMemAvailable:    8192000 kB\n")
	thermal := write("thermal", "48250\n")

	s := NewSysInfo(nil)
	s.procRoot = dir
	s.thermalPaths = []string{filepath.Join(dir, "missing"), thermal}
	return s
}

func TestSysInfoUptime(t *testing.T) {
	s := newTestSysInfo(t)
	if got, want := s.Uptime(), 360000*time.Second; got != want {
		t.Errorf("Uptime = %v, want %v", got, want)
	}
}

func TestSysInfoLoadAvg(t *testing.T) {
	s := newTestSysInfo(t)
	got := s.LoadAvg()
	if got[0] != 0.52 || got[1] != 0.58 || got[2] != 0.59 {
		t.Errorf("LoadAvg = %v", got)
	}
}

func TestSysInfoMemory(t *testing.T) {
	s := newTestSysInfo(t)
	used, total := s.Memory()
	if total != 16384000*1024 {
		t.Errorf("total = %d", total)
	}
	if want := int64((16384000 - 8192000) * 1024); used != want {
		t.Errorf("used = %d, want %d", used, want)
	}
}

func TestSysInfoCPUTemp(t *testing.T) {
	s := newTestSysInfo(t)
	temp, err := s.CPUTemp()
	if err != nil {
		t.Fatalf("CPUTemp: %v", err)
	}
	if temp != 48.25 {
		t.Errorf("temp = %v, want 48.25 (millidegrees scaled)", temp)
	}

	s.thermalPaths = nil
	if _, err := s.CPUTemp(); err == nil {
		t.Error("CPUTemp succeeded with no thermal zones")
	}
}

func TestSysInfoHealthDegradesGracefully(t *testing.T) {
	s := NewSysInfo([]string{"/definitely/not/a/mount"})
	s.procRoot = t.TempDir() // empty: every probe fails
	s.thermalPaths = nil

	h := s.Health()
	if h.Uptime != 0 || h.MemTotal != 0 || h.HasTemp {
		t.Errorf("Health with broken probes = %+v", h)
	}
	if len(h.Disks) != 1 || h.Disks[0].Total != -1 {
		t.Errorf("unreadable mount not marked n/a: %+v", h.Disks)
	}
}
