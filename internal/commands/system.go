package commands

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/nextlevelbuilder/teleops/internal/gateway"
)

func (d *Deps) registerSystem(reg *gateway.Registry) {
	reg.MustRegister(&gateway.Command{
		Name: "health", Group: groupSystem,
		Usage: "/health", Description: "CPU/RAM/disk/load/uptime",
		Handler: d.cmdHealth,
	})
	reg.MustRegister(&gateway.Command{
		Name: "temp", Group: groupSystem,
		Usage: "/temp", Description: "CPU temperature",
		Handler: d.cmdTemp,
	})
	reg.MustRegister(&gateway.Command{
		Name: "top", Group: groupSystem,
		Usage: "/top", Description: "top CPU processes",
		Handler: d.cmdTop,
	})
}

func (d *Deps) cmdHealth(ctx context.Context, req gateway.Request) (string, error) {
	h := d.Sys.Health()

	var b strings.Builder
	b.WriteString(fmt.Sprintf("<b>%s</b>\n", html.EscapeString(h.Hostname)))
	b.WriteString(fmt.Sprintf("Uptime: %s\n", fmtDuration(h.Uptime)))
	b.WriteString(fmt.Sprintf("Load: %.2f %.2f %.2f\n", h.Load[0], h.Load[1], h.Load[2]))
	if h.MemTotal > 0 {
		b.WriteString(fmt.Sprintf("RAM: %s/%s (%.0f%%)\n",
			fmtSize(h.MemUsed), fmtSize(h.MemTotal),
			float64(h.MemUsed)/float64(h.MemTotal)*100))
	}
	if h.HasTemp {
		b.WriteString(fmt.Sprintf("Temp: %.1f°C\n", h.TempC))
	}
	for _, disk := range h.Disks {
		if disk.Total <= 0 {
			b.WriteString(fmt.Sprintf("%s: n/a\n", html.EscapeString(disk.Path)))
			continue
		}
		b.WriteString(fmt.Sprintf("%s: %s/%s (%.0f%%)\n",
			html.EscapeString(disk.Path),
			fmtSize(disk.Used), fmtSize(disk.Total),
			float64(disk.Used)/float64(disk.Total)*100))
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (d *Deps) cmdTemp(ctx context.Context, req gateway.Request) (string, error) {
	t, err := d.Sys.CPUTemp()
	if err != nil {
		return "Could not read temperature on this host.", nil
	}
	return fmt.Sprintf("CPU Temp: %.1f°C", t), nil
}

func (d *Deps) cmdTop(ctx context.Context, req gateway.Request) (string, error) {
	out, err := d.Sys.TopProcesses(ctx, 10)
	if err != nil {
		return "", err
	}
	return "<pre>" + html.EscapeString(out) + "</pre>", nil
}
