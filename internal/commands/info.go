package commands

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"github.com/nextlevelbuilder/teleops/internal/auth"
	"github.com/nextlevelbuilder/teleops/internal/gateway"
)

func (d *Deps) registerInfo(reg *gateway.Registry) {
	help := func(ctx context.Context, req gateway.Request) (string, error) {
		return reg.RenderHelp(), nil
	}

	reg.MustRegister(&gateway.Command{
		Name: "start", Group: groupInfo,
		Usage: "/start", Description: "show help",
		Handler: help,
	})
	reg.MustRegister(&gateway.Command{
		Name: "help", Group: groupInfo,
		Usage: "/help", Description: "this menu",
		Handler: help,
	})
	reg.MustRegister(&gateway.Command{
		Name: "whoami", Group: groupInfo,
		Usage: "/whoami", Description: "show chat info",
		Handler: func(ctx context.Context, req gateway.Request) (string, error) {
			return fmt.Sprintf("Chat ID: <code>%d</code>", req.ChatID), nil
		},
	})
	reg.MustRegister(&gateway.Command{
		Name: "version", Group: groupInfo,
		Usage: "/version", Description: "bot version and build info",
		Handler: func(ctx context.Context, req gateway.Request) (string, error) {
			return fmt.Sprintf("teleops <b>%s</b>\nstarted %s",
				html.EscapeString(d.Version),
				d.StartedAt.Format("2006-01-02 15:04:05 MST")), nil
		},
	})
	reg.MustRegister(&gateway.Command{
		Name: "uptime", Group: groupInfo,
		Usage: "/uptime", Description: "bot and host uptime",
		Handler: func(ctx context.Context, req gateway.Request) (string, error) {
			return fmt.Sprintf("Bot: %s\nHost: %s",
				fmtDuration(time.Since(d.StartedAt)),
				fmtDuration(d.Sys.Uptime())), nil
		},
	})
	reg.MustRegister(&gateway.Command{
		Name: "auth", Group: groupInfo,
		Usage: "/auth <code>", Description: "unlock sensitive commands with a one-time code",
		Handler: d.cmdAuth,
	})
	reg.MustRegister(&gateway.Command{
		Name: "checkauth", Aliases: []string{"check_auth"}, Group: groupInfo,
		Usage: "/checkauth", Description: "elevation status and time remaining",
		Handler: d.cmdCheckAuth,
	})
	reg.MustRegister(&gateway.Command{
		Name: "metrics", Group: groupInfo,
		Usage: "/metrics", Description: "per-command dispatch metrics",
		Handler: d.cmdMetrics,
	})
	reg.MustRegister(&gateway.Command{
		Name: "debug", Group: groupInfo,
		Usage: "/debug [command]", Description: "recent failures, optionally for one command",
		Handler: d.cmdDebug,
	})
	reg.MustRegister(&gateway.Command{
		Name: "audit", Group: groupInfo,
		Usage: "/audit [n|clear]", Description: "recent command dispatches",
		Handler: d.cmdAudit,
	})
}

func (d *Deps) cmdAuth(ctx context.Context, req gateway.Request) (string, error) {
	if len(req.Args) != 1 {
		return "Usage: /auth <code>", nil
	}
	expiry, err := d.Auth.IssueGrant(req.ChatID, req.Args[0])
	switch {
	case errors.Is(err, auth.ErrNotConfigured):
		return "🔐 Elevation is not configured on this bot.", nil
	case err != nil:
		// ErrInvalidCode included: the gateway maps it to its own outcome
		// category so failed elevation attempts show up in the audit ring.
		return "", err
	}
	return fmt.Sprintf("✅ Authorized until %s.", expiry.In(d.Cfg.Location()).Format("15:04:05")), nil
}

func (d *Deps) cmdCheckAuth(ctx context.Context, req gateway.Request) (string, error) {
	left, ok := d.Auth.Remaining(req.ChatID)
	if !ok {
		return "🔓 Not elevated. Send /auth <code> to unlock sensitive commands.", nil
	}
	return fmt.Sprintf("🔐 Elevated, %s remaining.", fmtDuration(left)), nil
}

func (d *Deps) cmdMetrics(ctx context.Context, req gateway.Request) (string, error) {
	snapshot := d.Store.MetricsSnapshot()
	names := d.Store.MetricsCommands()
	if len(names) == 0 {
		return "No commands dispatched yet.", nil
	}

	var b strings.Builder
	b.WriteString("<b>Command metrics</b>\n")
	for _, name := range names {
		m := snapshot[name]
		avg := time.Duration(0)
		if m.Success > 0 {
			avg = m.TotalTime / time.Duration(m.Success)
		}
		b.WriteString(fmt.Sprintf("\n<code>/%s</code>: %d calls, %d ok, %d denied, %d limited, %d errors",
			name, m.Count, m.Success, m.Denied, m.RateLimited, m.Errors))
		if m.Success > 0 {
			b.WriteString(fmt.Sprintf("\n  avg %s, max %s", avg.Round(time.Millisecond), m.MaxTime.Round(time.Millisecond)))
		}
	}
	return b.String(), nil
}

func (d *Deps) cmdDebug(ctx context.Context, req gateway.Request) (string, error) {
	filter := ""
	if len(req.Args) > 0 {
		filter = strings.TrimPrefix(strings.ToLower(req.Args[0]), "/")
	}

	var b strings.Builder
	b.WriteString("<b>Recent failures</b>\n")
	shown := 0
	for _, e := range d.Store.RecentAudit(0) {
		if e.ErrorText == "" {
			continue
		}
		if filter != "" && e.Command != filter {
			continue
		}
		b.WriteString(fmt.Sprintf("\n%s <code>/%s</code> [%s]\n  %s",
			e.Time.In(d.Cfg.Location()).Format("15:04:05"),
			e.Command, e.Outcome, html.EscapeString(e.ErrorText)))
		shown++
		if shown == 10 {
			break
		}
	}
	if shown == 0 {
		return "No recent failures. 🎉", nil
	}
	return b.String(), nil
}

func (d *Deps) cmdAudit(ctx context.Context, req gateway.Request) (string, error) {
	n := 10
	if len(req.Args) > 0 {
		if strings.EqualFold(req.Args[0], "clear") {
			d.Store.ClearAudit()
			return "🧹 Audit log cleared.", nil
		}
		if v, err := strconv.Atoi(req.Args[0]); err == nil && v > 0 {
			n = v
		}
	}
	entries := d.Store.RecentAudit(n)
	if len(entries) == 0 {
		return "Audit log is empty.", nil
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("<b>Last %d dispatches</b>\n", len(entries)))
	for _, e := range entries {
		b.WriteString(fmt.Sprintf("\n%s <code>%d</code> /%s → %s (%s)",
			e.Time.In(d.Cfg.Location()).Format("15:04:05"),
			e.ChatID, e.Command, e.Outcome, e.Latency.Round(time.Millisecond)))
	}
	return b.String(), nil
}
