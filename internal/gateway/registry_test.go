package gateway

import (
	"context"
	"strings"
	"testing"
)

func noopHandler(ctx context.Context, req Request) (string, error) { return "ok", nil }

func TestRegistryResolve(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(&Command{Name: "tstatus", Aliases: []string{"torrents"}, Group: "Torrents", Handler: noopHandler})

	for _, name := range []string{"tstatus", "TStatus", "/tstatus", "torrents", "/TORRENTS"} {
		cmd, ok := reg.Resolve(name)
		if !ok {
			t.Fatalf("Resolve(%q) failed", name)
		}
		if cmd.Name != "tstatus" {
			t.Errorf("Resolve(%q) = %q, want tstatus", name, cmd.Name)
		}
	}

	if _, ok := reg.Resolve("nope"); ok {
		t.Error("Resolve found an unregistered command")
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(&Command{Name: "health", Group: "System", Handler: noopHandler})

	if err := reg.Register(&Command{Name: "health", Handler: noopHandler}); err == nil {
		t.Error("duplicate name registered without error")
	}
	if err := reg.Register(&Command{Name: "status", Aliases: []string{"health"}, Handler: noopHandler}); err == nil {
		t.Error("alias colliding with existing name registered without error")
	}
	if err := reg.Register(&Command{Name: ""}); err == nil {
		t.Error("nameless command registered without error")
	}
}

func TestRenderHelpGroups(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(&Command{Name: "help", Group: "Info", Usage: "/help", Description: "this menu", Handler: noopHandler})
	reg.MustRegister(&Command{Name: "health", Group: "System", Usage: "/health", Description: "host health", Handler: noopHandler})
	reg.MustRegister(&Command{Name: "whoami", Group: "Info", Usage: "/whoami", Description: "chat info", Handler: noopHandler})

	help := reg.RenderHelp()
	infoIdx := strings.Index(help, "Info")
	systemIdx := strings.Index(help, "System")
	if infoIdx < 0 || systemIdx < 0 {
		t.Fatalf("help missing group headers:\n%s", help)
	}
	if infoIdx > systemIdx {
		t.Error("groups not rendered in registration order")
	}
	for _, want := range []string{"/help – this menu", "/health – host health", "/whoami – chat info"} {
		if !strings.Contains(help, want) {
			t.Errorf("help missing %q:\n%s", want, help)
		}
	}
}
