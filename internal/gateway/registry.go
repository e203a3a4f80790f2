package gateway

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// SuggestKind names the suggestion cache a command's argument completes
// against ("" = no suggestions).
type SuggestKind string

const (
	SuggestNone       SuggestKind = ""
	SuggestContainers SuggestKind = "containers"
	SuggestTorrents   SuggestKind = "torrents"
)

// Request carries one inbound command invocation.
type Request struct {
	ChatID  int64
	Command string   // resolved canonical name
	Args    []string // tokenized arguments
	Raw     string   // raw argument string as typed
}

// Handler executes a command and returns the reply text (HTML).
type Handler func(ctx context.Context, req Request) (string, error)

// Command describes one registered command. Descriptors are registered at
// startup and immutable afterwards.
type Command struct {
	Name        string
	Aliases     []string
	Group       string
	Usage       string
	Description string
	Elevated    bool // requires a live elevation grant
	Suggest     SuggestKind
	Handler     Handler
}

// Registry maps command names and aliases to descriptors.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]*Command // canonical name → descriptor
	names    map[string]string   // name or alias → canonical name
	order    []string            // registration order, for help rendering
}

func NewRegistry() *Registry {
	return &Registry{
		commands: make(map[string]*Command),
		names:    make(map[string]string),
	}
}

// Register adds a command. Names and aliases must be unique across the
// whole registry; a collision is a programming error and fails loudly.
func (r *Registry) Register(cmd *Command) error {
	if cmd.Name == "" || cmd.Handler == nil {
		return fmt.Errorf("command needs a name and a handler")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	all := append([]string{cmd.Name}, cmd.Aliases...)
	for _, n := range all {
		n = strings.ToLower(n)
		if _, exists := r.names[n]; exists {
			return fmt.Errorf("duplicate command name or alias %q", n)
		}
	}
	for _, n := range all {
		r.names[strings.ToLower(n)] = cmd.Name
	}
	r.commands[cmd.Name] = cmd
	r.order = append(r.order, cmd.Name)
	return nil
}

// MustRegister is Register that panics; used for the static startup set.
func (r *Registry) MustRegister(cmd *Command) {
	if err := r.Register(cmd); err != nil {
		panic(err)
	}
}

// Resolve maps a name or alias (without the leading slash) to its
// descriptor.
func (r *Registry) Resolve(name string) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	canonical, ok := r.names[strings.ToLower(strings.TrimPrefix(name, "/"))]
	if !ok {
		return nil, false
	}
	return r.commands[canonical], true
}

// All returns every descriptor in registration order.
func (r *Registry) All() []*Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Command, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.commands[name])
	}
	return out
}

// Groups returns the distinct group names in first-seen order.
func (r *Registry) Groups() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]bool)
	var groups []string
	for _, name := range r.order {
		g := r.commands[name].Group
		if !seen[g] {
			seen[g] = true
			groups = append(groups, g)
		}
	}
	return groups
}

// RenderHelp builds the grouped /help text.
func (r *Registry) RenderHelp() string {
	byGroup := make(map[string][]string)
	for _, cmd := range r.All() {
		byGroup[cmd.Group] = append(byGroup[cmd.Group], fmt.Sprintf("%s – %s", cmd.Usage, cmd.Description))
	}

	var b strings.Builder
	b.WriteString("Hi! Commands:\n")
	for _, group := range r.Groups() {
		lines := byGroup[group]
		sort.Strings(lines)
		b.WriteString("\n" + group + "\n")
		for _, line := range lines {
			b.WriteString(line + "\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
