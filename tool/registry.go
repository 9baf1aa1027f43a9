package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/planmesh/logging"
)

// RegistryOptions configure a tool registry.
type RegistryOptions struct {
	// Logger receives per-invocation log lines. Defaults to a no-op logger.
	Logger logging.Logger
}

// Registry holds the tools offered to workers during task execution. It is
// safe for concurrent use; parallel worker branches share one registry.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]Tool
	logger logging.Logger
}

// NewRegistry creates a registry seeded with the given tools. Duplicate
// names panic at wiring time.
func NewRegistry(tools []Tool, optFns ...func(o *RegistryOptions)) *Registry {
	opts := RegistryOptions{
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	r := &Registry{
		tools:  make(map[string]Tool, len(tools)),
		logger: opts.Logger,
	}
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds a tool, rejecting duplicate names.
func (r *Registry) Register(t Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[t.Name()]; exists {
		return fmt.Errorf("tool %s already registered", t.Name())
	}
	r.tools[t.Name()] = t
	return nil
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return t, nil
}

// Names returns the registered tool names in stable order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns the registered tools in name order.
func (r *Registry) All() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	tools := make([]Tool, 0, len(names))
	for _, name := range names {
		tools = append(tools, r.tools[name])
	}
	return tools
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Invoke looks up a tool by name, parses the JSON argument payload, executes
// the tool and serializes the result back to a string. Lookup, parse,
// validation and execution failures come back as errors; the caller decides
// how they surface in the conversation.
func (r *Registry) Invoke(ctx context.Context, name, args string) (string, error) {
	impl, err := r.Get(name)
	if err != nil {
		return "", err
	}

	var argMap map[string]any
	if args == "" {
		argMap = map[string]any{}
	} else if err := json.Unmarshal([]byte(args), &argMap); err != nil {
		return "", fmt.Errorf("failed to unmarshal args: %w", err)
	}

	r.logger.Debug("tool.call.start", "tool", name)
	start := time.Now()

	result, err := impl.Call(ctx, argMap)
	logging.LogToolCall(r.logger, name, time.Since(start), err)
	if err != nil {
		return "", err
	}

	return stringifyResult(result)
}

// stringifyResult renders a tool result for the message log. Strings pass
// through; everything else is JSON encoded.
func stringifyResult(result any) (string, error) {
	switch v := result.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("failed to serialize tool result: %w", err)
		}
		return string(encoded), nil
	}
}
