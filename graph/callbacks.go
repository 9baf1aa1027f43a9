package graph

import (
	"context"

	"github.com/hupe1980/planmesh/core"
	"github.com/hupe1980/planmesh/logging"
)

// CallbackType names the lifecycle points where callbacks execute.
type CallbackType string

const (
	// CallbackBeforeNode is triggered before a node executes. An error
	// aborts the run before the node is entered.
	CallbackBeforeNode CallbackType = "before_node"

	// CallbackAfterNode is triggered after a node returned its Command
	// and before the update is merged.
	CallbackAfterNode CallbackType = "after_node"

	// CallbackOnStateChange is triggered with the update delta before
	// it is merged into the authoritative State. An error rejects the
	// merge and aborts the run.
	CallbackOnStateChange CallbackType = "on_state_change"

	// CallbackOnError is triggered when a node or branch fails. It is
	// informational; callback errors are ignored here.
	CallbackOnError CallbackType = "on_error"
)

// CallbackContext carries the execution context a callback may inspect.
// Fields are populated per callback type: Command only for after_node,
// Update only for on_state_change, Err only for on_error.
type CallbackContext struct {
	// Node is the node the callback fires for.
	Node NodeID

	// State is the authoritative run state. Callbacks must treat it as
	// read-only; changes belong in node updates.
	State core.State

	// Command is the node's returned command.
	Command *Command

	// Update is the delta about to be merged.
	Update map[string]any

	// Err is the failure being reported.
	Err error
}

// Callback is a synchronous lifecycle hook. Returning an error from a
// before-node, after-node or state-change callback aborts the run.
type Callback interface {
	// Type returns the lifecycle point this callback handles.
	Type() CallbackType

	// Execute performs the callback logic.
	Execute(ctx context.Context, cbCtx *CallbackContext) error
}

// FunctionCallback wraps a plain function as a Callback.
type FunctionCallback struct {
	callbackType CallbackType
	fn           func(ctx context.Context, cbCtx *CallbackContext) error
}

// NewFunctionCallback creates a callback from a function for the given
// lifecycle point.
func NewFunctionCallback(callbackType CallbackType, fn func(ctx context.Context, cbCtx *CallbackContext) error) *FunctionCallback {
	return &FunctionCallback{
		callbackType: callbackType,
		fn:           fn,
	}
}

// Type returns the lifecycle point this callback handles.
func (c *FunctionCallback) Type() CallbackType {
	return c.callbackType
}

// Execute calls the wrapped function.
func (c *FunctionCallback) Execute(ctx context.Context, cbCtx *CallbackContext) error {
	return c.fn(ctx, cbCtx)
}

// CallbackManager routes lifecycle events to registered callbacks.
// Callbacks execute sequentially in registration order; the first error
// stops the chain. Register all callbacks before running the engine;
// the manager is not synchronized for concurrent registration.
type CallbackManager struct {
	callbacks map[CallbackType][]Callback
}

// NewCallbackManager creates an empty callback manager.
func NewCallbackManager() *CallbackManager {
	return &CallbackManager{
		callbacks: make(map[CallbackType][]Callback),
	}
}

// Register adds a callback for its declared lifecycle point.
func (cm *CallbackManager) Register(cb Callback) {
	cm.callbacks[cb.Type()] = append(cm.callbacks[cb.Type()], cb)
}

// execute runs the callbacks registered for the given point, stopping
// at the first error.
func (cm *CallbackManager) execute(ctx context.Context, callbackType CallbackType, cbCtx *CallbackContext) error {
	for _, cb := range cm.callbacks[callbackType] {
		if err := cb.Execute(ctx, cbCtx); err != nil {
			return err
		}
	}
	return nil
}

// notifyError runs the on-error callbacks, discarding their errors; the
// original failure is the one that matters.
func (cm *CallbackManager) notifyError(ctx context.Context, node NodeID, state core.State, err error) {
	_ = cm.execute(ctx, CallbackOnError, &CallbackContext{Node: node, State: state, Err: err})
}

// LoggingCallback logs node lifecycle events through a logging.Logger.
type LoggingCallback struct {
	callbackType CallbackType
	logger       logging.Logger
}

// NewLoggingCallback creates a logging callback for the given lifecycle
// point.
func NewLoggingCallback(callbackType CallbackType, logger logging.Logger) *LoggingCallback {
	return &LoggingCallback{
		callbackType: callbackType,
		logger:       logger,
	}
}

// Type returns the lifecycle point this callback handles.
func (c *LoggingCallback) Type() CallbackType {
	return c.callbackType
}

// Execute logs the lifecycle event.
func (c *LoggingCallback) Execute(ctx context.Context, cbCtx *CallbackContext) error {
	switch c.callbackType {
	case CallbackOnError:
		c.logger.Error("graph.callback", "type", string(c.callbackType), "node", string(cbCtx.Node), "error", cbCtx.Err.Error())
	default:
		c.logger.Debug("graph.callback", "type", string(c.callbackType), "node", string(cbCtx.Node))
	}
	return nil
}

// StateValidationCallback validates update deltas before they merge.
// The validator receives only the delta, not the full State; returning
// an error rejects the merge and aborts the run.
type StateValidationCallback struct {
	validator func(update map[string]any) error
}

// NewStateValidationCallback creates a state validation callback.
func NewStateValidationCallback(validator func(update map[string]any) error) *StateValidationCallback {
	return &StateValidationCallback{
		validator: validator,
	}
}

// Type returns CallbackOnStateChange.
func (c *StateValidationCallback) Type() CallbackType {
	return CallbackOnStateChange
}

// Execute validates the pending update.
func (c *StateValidationCallback) Execute(ctx context.Context, cbCtx *CallbackContext) error {
	if c.validator != nil && cbCtx.Update != nil {
		return c.validator(cbCtx.Update)
	}
	return nil
}
