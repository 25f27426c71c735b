package actions

import (
	"context"
)

// Action defines the interface for one remediation the pipeline can take.
// Execute receives a params map with whatever the decision attached (IP to
// block, system to isolate) and returns a status record describing what was
// done.
type Action interface {
	// Name returns the unique name of the action.
	Name() string
	// Execute performs the action and returns its result record.
	Execute(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error)
}

// Executor is the execution boundary the decision engine dispatches
// through. Real deployments register infrastructure-specific Actions; the
// default registry holds no-op stubs that only return status records.
type Executor interface {
	Execute(ctx context.Context, actionName string, params map[string]interface{}) (map[string]interface{}, error)
}
