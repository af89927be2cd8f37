package cmd

import (
	"sort"
	"strings"
	"sync"
)

// Registry stores commands by lowercased name. Entries are only ever added;
// the lock lets handlers register commands while dispatch is running.
type Registry struct {
	mu           sync.RWMutex
	commands     map[string]*Command
	defaultPerms []Permission
}

// NewRegistry returns an empty registry. Commands registered without
// RequiredPermissions get defaultPerms, or {broadcaster} when none are given.
func NewRegistry(defaultPerms ...Permission) *Registry {
	if len(defaultPerms) == 0 {
		defaultPerms = []Permission{Broadcaster}
	}
	return &Registry{
		commands:     make(map[string]*Command),
		defaultPerms: append([]Permission{}, defaultPerms...),
	}
}

// DefaultPermissions returns a copy of the registry-level default.
func (r *Registry) DefaultPermissions() []Permission {
	return append([]Permission{}, r.defaultPerms...)
}

// Register adds a command. It returns false for an empty name, a nil
// handler, or a name that is already taken; existing entries are never
// overwritten.
func (r *Registry) Register(name string, handler HandlerFunc, opts Options) bool {
	key := normalizeName(name)
	if key == "" || handler == nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.commands[key]; exists {
		return false
	}
	r.commands[key] = &Command{
		Name:    key,
		Handler: handler,
		Options: opts.withDefaults(r.defaultPerms),
	}
	return true
}

// Get returns the command registered under name, ignoring case.
func (r *Registry) Get(name string) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.commands[normalizeName(name)]
	return c, ok
}

// Len returns the number of registered commands.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}

// GetCommands returns every registered command, sorted by name.
func (r *Registry) GetCommands() []Info {
	r.mu.RLock()
	list := make([]Info, 0, len(r.commands))
	for _, c := range r.commands {
		list = append(list, Info{
			Name:        c.Name,
			Description: c.Options.Description,
			Usage:       c.Options.Usage,
			Permissions: append([]Permission{}, c.Options.RequiredPermissions...),
		})
	}
	r.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		return list[i].Name < list[j].Name
	})
	return list
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
