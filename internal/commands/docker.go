package commands

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/nextlevelbuilder/teleops/internal/gateway"
)

func (d *Deps) registerDocker(reg *gateway.Registry) {
	reg.MustRegister(&gateway.Command{
		Name: "docker", Aliases: []string{"dps"}, Group: groupDocker,
		Usage: "/docker", Description: "list containers and their status",
		Handler: d.cmdDocker,
	})

	dstats := &gateway.Command{
		Name: "dstats", Aliases: []string{"dockerstats"}, Group: groupDocker,
		Usage: "/dstats <container>", Description: "CPU/MEM for one container",
		Suggest: gateway.SuggestContainers,
	}
	dstats.Handler = func(ctx context.Context, req gateway.Request) (string, error) {
		if len(req.Args) == 0 {
			return d.usageReply(ctx, dstats, ""), nil
		}
		return d.cmdDStats(ctx, req.Args[0])
	}
	reg.MustRegister(dstats)

	dlogs := &gateway.Command{
		Name: "dlogs", Group: groupDocker,
		Usage: "/dlogs <container> [lines]", Description: "container log tail",
		Suggest: gateway.SuggestContainers,
	}
	dlogs.Handler = func(ctx context.Context, req gateway.Request) (string, error) {
		if len(req.Args) == 0 {
			return d.usageReply(ctx, dlogs, ""), nil
		}
		lines := 30
		if len(req.Args) > 1 {
			if v, err := strconv.Atoi(req.Args[1]); err == nil && v > 0 && v <= 200 {
				lines = v
			}
		}
		return d.cmdDLogs(ctx, req.Args[0], lines)
	}
	reg.MustRegister(dlogs)

	dhealth := &gateway.Command{
		Name: "dhealth", Group: groupDocker,
		Usage: "/dhealth <container>", Description: "container health check",
		Suggest: gateway.SuggestContainers,
	}
	dhealth.Handler = func(ctx context.Context, req gateway.Request) (string, error) {
		if len(req.Args) == 0 {
			return d.usageReply(ctx, dhealth, ""), nil
		}
		return d.cmdDHealth(ctx, req.Args[0])
	}
	reg.MustRegister(dhealth)
}

func (d *Deps) cmdDocker(ctx context.Context, req gateway.Request) (string, error) {
	containers, err := d.Docker.Containers(ctx)
	if err != nil {
		return "", err
	}
	if len(containers) == 0 {
		return "No containers.", nil
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("<b>Containers</b> (%d)\n", len(containers)))
	for _, c := range containers {
		icon := "🔴"
		if c.State == "running" {
			icon = "🟢"
		}
		b.WriteString(fmt.Sprintf("\n%s <code>%s</code>\n   %s, %s",
			icon, html.EscapeString(c.Name()),
			html.EscapeString(c.Image), html.EscapeString(c.Status)))
	}
	return b.String(), nil
}

func (d *Deps) cmdDStats(ctx context.Context, name string) (string, error) {
	stats, err := d.Docker.Stats(ctx, name)
	if err != nil {
		return "", err
	}
	msg := fmt.Sprintf("<b>%s</b>\nCPU: %.1f%%", html.EscapeString(stats.Name), stats.CPUPct)
	if stats.MemLimit > 0 {
		msg += fmt.Sprintf("\nMEM: %s/%s (%.0f%%)",
			fmtSize(stats.MemUsage), fmtSize(stats.MemLimit),
			float64(stats.MemUsage)/float64(stats.MemLimit)*100)
	}
	return msg, nil
}

func (d *Deps) cmdDLogs(ctx context.Context, name string, lines int) (string, error) {
	logs, err := d.Docker.Logs(ctx, name, lines)
	if err != nil {
		return "", err
	}
	logs = strings.TrimSpace(logs)
	if logs == "" {
		return fmt.Sprintf("No log output for <code>%s</code>.", html.EscapeString(name)), nil
	}
	// Telegram caps messages at 4096 chars; keep the newest lines.
	if len(logs) > 3500 {
		logs = logs[len(logs)-3500:]
		if i := strings.IndexByte(logs, '\n'); i >= 0 {
			logs = logs[i+1:]
		}
	}
	return fmt.Sprintf("<b>%s</b>\n<pre>%s</pre>", html.EscapeString(name), html.EscapeString(logs)), nil
}

func (d *Deps) cmdDHealth(ctx context.Context, name string) (string, error) {
	h, err := d.Docker.Health(ctx, name)
	if err != nil {
		return "", err
	}
	msg := fmt.Sprintf("<b>%s</b>: %s", html.EscapeString(h.Name), h.State)
	switch h.Health {
	case "":
		msg += " (no health probe)"
	case "healthy":
		msg += ", health: ✅ healthy"
	case "unhealthy":
		msg += ", health: ❌ unhealthy"
	default:
		msg += ", health: " + html.EscapeString(h.Health)
	}
	return msg, nil
}
