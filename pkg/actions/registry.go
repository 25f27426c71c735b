package actions

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	pipeerrors "github.com/lucid-vigil/aegis/pkg/errors"
)

// Registry dispatches actions by name. It implements Executor.
type Registry struct {
	mu      sync.RWMutex
	actions map[string]Action
	logger  zerolog.Logger
}

// NewRegistry creates an empty action registry.
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		actions: make(map[string]Action),
		logger:  logger.With().Str("component", "action_registry").Logger(),
	}
}

// Register adds an action to the registry, replacing any existing action
// with the same name.
func (r *Registry) Register(action Action) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions[action.Name()] = action
	r.logger.Debug().Str("action", action.Name()).Msg("Action registered")
}

// Execute looks up the named action and runs it.
func (r *Registry) Execute(ctx context.Context, actionName string, params map[string]interface{}) (map[string]interface{}, error) {
	r.mu.RLock()
	action, ok := r.actions[actionName]
	r.mu.RUnlock()
	if !ok {
		return nil, pipeerrors.NewUnknownActionError(actionName)
	}

	result, err := action.Execute(ctx, params)
	if err != nil {
		return nil, pipeerrors.NewExecutionError(actionName, err)
	}
	return result, nil
}

// Names returns the names of all registered actions.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.actions))
	for name := range r.actions {
		names = append(names, name)
	}
	return names
}
