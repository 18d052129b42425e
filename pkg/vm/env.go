package vm

import (
	"os"
	"sort"
	"strings"
	"sync"
)

// Environment backs ENVIRON and ENVIRON$. Names are upper case.
type Environment interface {
	Getenv(name string) (string, error)
	// EnvEntry returns the n-th (1-based) "NAME=VALUE" pair in name order,
	// "" past the end.
	EnvEntry(n int) (string, error)
	// Setenv sets name; an empty value removes it.
	Setenv(name, value string) error
}

// MapEnv is an in-memory environment. Changes stay inside the interpreter.
type MapEnv struct {
	mu   sync.Mutex
	vars map[string]string
}

// NewMapEnv returns an environment holding vars.
func NewMapEnv(vars map[string]string) *MapEnv {
	e := &MapEnv{vars: make(map[string]string, len(vars))}
	for k, v := range vars {
		e.vars[strings.ToUpper(k)] = v
	}
	return e
}

// NewProcessEnv snapshots the process environment.
func NewProcessEnv() *MapEnv {
	vars := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok && k != "" {
			vars[k] = v
		}
	}
	return NewMapEnv(vars)
}

func (e *MapEnv) Getenv(name string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.vars[strings.ToUpper(name)], nil
}

func (e *MapEnv) EnvEntry(n int) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	names := make([]string, 0, len(e.vars))
	for k := range e.vars {
		names = append(names, k)
	}
	sort.Strings(names)
	if n < 1 || n > len(names) {
		return "", nil
	}
	return names[n-1] + "=" + e.vars[names[n-1]], nil
}

func (e *MapEnv) Setenv(name, value string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	name = strings.ToUpper(name)
	if value == "" {
		delete(e.vars, name)
		return nil
	}
	e.vars[name] = value
	return nil
}
