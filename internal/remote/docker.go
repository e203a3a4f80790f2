package remote

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
)

// Container is one entry from the Docker container list.
type Container struct {
	ID     string   `json:"Id"`
	Names  []string `json:"Names"`
	Image  string   `json:"Image"`
	State  string   `json:"State"`
	Status string   `json:"Status"`
}

// Name returns the primary container name without the leading slash.
func (c Container) Name() string {
	if len(c.Names) == 0 {
		return c.ID[:min(12, len(c.ID))]
	}
	return strings.TrimPrefix(c.Names[0], "/")
}

// ContainerStats is a point-in-time resource snapshot for one container.
type ContainerStats struct {
	Name     string
	CPUPct   float64
	MemUsage int64
	MemLimit int64
}

// ContainerHealth describes the health probe status of one container.
type ContainerHealth struct {
	Name   string
	State  string // running, exited, ...
	Health string // healthy, unhealthy, starting, or "" when no probe
}

// DockerClient talks to the Docker Engine API over a unix socket.
type DockerClient struct {
	http *http.Client
}

// NewDockerClient creates a client for the given socket path, typically
// /var/run/docker.sock.
func NewDockerClient(socket string) *DockerClient {
	return &DockerClient{
		http: &http.Client{
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
					var d net.Dialer
					return d.DialContext(ctx, "unix", socket)
				},
			},
		},
	}
}

// Containers lists all containers, running or not.
func (c *DockerClient) Containers(ctx context.Context) ([]Container, error) {
	body, err := c.get(ctx, "/containers/json?all=1")
	if err != nil {
		return nil, err
	}
	var containers []Container
	if err := json.Unmarshal(body, &containers); err != nil {
		return nil, fmt.Errorf("docker: decode container list: %w", err)
	}
	return containers, nil
}

// Names returns the container names, for the suggestion cache.
func (c *DockerClient) Names(ctx context.Context) ([]string, error) {
	containers, err := c.Containers(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(containers))
	for _, ct := range containers {
		names = append(names, ct.Name())
	}
	return names, nil
}

// Stats returns a one-shot resource snapshot for the named container.
func (c *DockerClient) Stats(ctx context.Context, name string) (ContainerStats, error) {
	body, err := c.get(ctx, "/containers/"+url.PathEscape(name)+"/stats?stream=false")
	if err != nil {
		return ContainerStats{}, err
	}

	var raw struct {
		CPUStats struct {
			CPUUsage struct {
				TotalUsage uint64 `json:"total_usage"`
			} `json:"cpu_usage"`
			SystemUsage uint64 `json:"system_cpu_usage"`
			OnlineCPUs  uint64 `json:"online_cpus"`
		} `json:"cpu_stats"`
		PreCPUStats struct {
			CPUUsage struct {
				TotalUsage uint64 `json:"total_usage"`
			} `json:"cpu_usage"`
			SystemUsage uint64 `json:"system_cpu_usage"`
		} `json:"precpu_stats"`
		MemoryStats struct {
			Usage uint64 `json:"usage"`
			Limit uint64 `json:"limit"`
		} `json:"memory_stats"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return ContainerStats{}, fmt.Errorf("docker: decode stats: %w", err)
	}

	stats := ContainerStats{
		Name:     name,
		MemUsage: int64(raw.MemoryStats.Usage),
		MemLimit: int64(raw.MemoryStats.Limit),
	}
	cpuDelta := float64(raw.CPUStats.CPUUsage.TotalUsage) - float64(raw.PreCPUStats.CPUUsage.TotalUsage)
	sysDelta := float64(raw.CPUStats.SystemUsage) - float64(raw.PreCPUStats.SystemUsage)
	if cpuDelta > 0 && sysDelta > 0 {
		cpus := float64(raw.CPUStats.OnlineCPUs)
		if cpus == 0 {
			cpus = 1
		}
		stats.CPUPct = cpuDelta / sysDelta * cpus * 100
	}
	return stats, nil
}

// Logs returns the last tail lines of a container's combined output.
func (c *DockerClient) Logs(ctx context.Context, name string, tail int) (string, error) {
	path := fmt.Sprintf("/containers/%s/logs?stdout=1&stderr=1&tail=%d", url.PathEscape(name), tail)
	body, err := c.get(ctx, path)
	if err != nil {
		return "", err
	}
	return demuxLogs(body), nil
}

// Health returns the run state and health probe status of one container.
func (c *DockerClient) Health(ctx context.Context, name string) (ContainerHealth, error) {
	body, err := c.get(ctx, "/containers/"+url.PathEscape(name)+"/json")
	if err != nil {
		return ContainerHealth{}, err
	}
	var raw struct {
		State struct {
			Status string `json:"Status"`
			Health *struct {
				Status string `json:"Status"`
			} `json:"Health"`
		} `json:"State"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return ContainerHealth{}, fmt.Errorf("docker: decode inspect: %w", err)
	}
	h := ContainerHealth{Name: name, State: raw.State.Status}
	if raw.State.Health != nil {
		h.Health = raw.State.Health.Status
	}
	return h, nil
}

func (c *DockerClient) get(ctx context.Context, path string) ([]byte, error) {
	// Host is a placeholder; the transport dials the unix socket.
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://docker"+path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("docker: GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("docker: read response: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("docker: no such container")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("docker: GET %s: status %d", path, resp.StatusCode)
	}
	return body, nil
}

// demuxLogs strips the 8-byte stream frame headers Docker prefixes to log
// output of containers without a TTY. Output from TTY containers arrives
// unframed and passes through unchanged.
func demuxLogs(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	// Frame header: stream byte, three zero bytes, big-endian length.
	if raw[0] > 2 || len(raw) < 8 || raw[1] != 0 || raw[2] != 0 || raw[3] != 0 {
		return string(raw)
	}
	var out bytes.Buffer
	for len(raw) >= 8 {
		size := binary.BigEndian.Uint32(raw[4:8])
		raw = raw[8:]
		if uint32(len(raw)) < size {
			out.Write(raw)
			break
		}
		out.Write(raw[:size])
		raw = raw[size:]
	}
	return out.String()
}
