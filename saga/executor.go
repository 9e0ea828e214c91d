package saga

import "context"

// ActionExecutor is a named user-supplied callable invoked when an instance
// enters a state carrying its name, and during compensation for states that
// name it as their compensation.
//
// The executor receives a copy of the instance context and returns a Result
// carrying a context delta. On success the delta is merged into the instance
// context (last-write-wins). On failure the engine records the problem and
// runs compensation.
//
// Executors are called synchronously on the caller's goroutine with the
// instance serialized; they must not re-enter the engine for the same
// instance.
type ActionExecutor func(ctx context.Context, name string, wctx Context) Result[Context]

// ActionFunc adapts a plain function that cannot fail into an ActionExecutor.
func ActionFunc(fn func(ctx context.Context, name string, wctx Context) Context) ActionExecutor {
	return func(ctx context.Context, name string, wctx Context) Result[Context] {
		return Ok(fn(ctx, name, wctx))
	}
}

// ConditionEvaluator decides whether a guarded transition may fire. It
// receives the transition's opaque condition expression, the instance
// context and the event payload.
//
// Evaluators must not panic on unrecognized conditions; returning false
// surfaces as WORKFLOW.NO_TRANSITION.
type ConditionEvaluator func(condition string, wctx Context, eventData Context) bool

// defaultConditionEvaluator allows unguarded transitions and rejects every
// non-empty condition. Expression support is an extension point: plug a real
// evaluator in with WithConditionEvaluator.
func defaultConditionEvaluator(condition string, _ Context, _ Context) bool {
	return condition == ""
}
