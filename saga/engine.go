// Package saga provides a workflow orchestration engine with first-class
// support for the saga compensation pattern.
package saga

import (
	"context"
	"sort"
	"sync"

	"github.com/dshills/sagaflow-go/saga/emit"
	"github.com/dshills/sagaflow-go/saga/store"
)

// Engine executes long-running business processes expressed as finite state
// machines with saga compensation.
//
// The engine holds a definition registry, an instance store, an executor
// registry and the state-machine interpreter driving the five public
// operations: Start, SendEvent, Get, Compensate and Cancel.
//
// A single Engine value is safe for use from many goroutines. Operations on
// the same instance are serialized; operations on different instances run in
// parallel.
//
// Example:
//
//	engine := saga.New()
//
//	def, _ := saga.NewDefinition("order", "Order processing").
//	    State(saga.State{Name: "charge", Kind: saga.KindTask, Action: "chargeCard", Compensation: "refundCard"}).
//	    State(saga.State{Name: "done", Kind: saga.KindEnd}).
//	    Transition("charge", "done", "charged").
//	    Build()
//	_ = engine.RegisterDefinition(def)
//	_ = engine.RegisterActionExecutor("chargeCard", chargeCard)
//	_ = engine.RegisterActionExecutor("refundCard", refundCard)
//
//	res := engine.Start(ctx, "order", saga.Context{"amount": 100})
type Engine struct {
	mu         sync.RWMutex // guards defs and executors
	defs       map[string]Definition
	executors  map[string]ActionExecutor
	conditions ConditionEvaluator

	store   store.Store[Record]
	emitter emit.Emitter
	metrics *Metrics
	ids     IDGenerator
	clock   Clock

	locks lockTable
}

// New creates an Engine. With no options it uses an in-memory store, a null
// emitter, random UUID instance ids, the system clock, no metrics, and a
// condition evaluator that only accepts unguarded transitions.
func New(opts ...Option) *Engine {
	e := &Engine{
		defs:       make(map[string]Definition),
		executors:  make(map[string]ActionExecutor),
		conditions: defaultConditionEvaluator,
		store:      store.NewMemStore[Record](),
		emitter:    emit.NewNullEmitter(),
		ids:        UUIDGenerator{},
		clock:      systemClock{},
	}
	e.locks.m = make(map[string]*sync.Mutex)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RegisterDefinition validates def and stores it under def.ID, silently
// overwriting any prior definition with the same id. Returns a
// WORKFLOW.DEFINITION_INVALID problem for malformed definitions.
//
// Overwriting a definition while its instances are in flight is legal. An
// instance whose current state the new definition no longer declares has no
// outgoing transition, so events sent to it fail with WORKFLOW.NO_TRANSITION.
func (e *Engine) RegisterDefinition(def Definition) error {
	if err := def.Validate(); err != nil {
		return NewProblem(CodeDefinitionInvalid, CategoryBusiness, SeverityError, err.Error())
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.defs[def.ID] = def
	return nil
}

// RegisterActionExecutor stores executor under name, overwriting any prior
// registration. The registry is open: executors may be registered after
// definitions referencing them, and actions and compensations share it.
func (e *Engine) RegisterActionExecutor(name string, executor ActionExecutor) error {
	if name == "" || executor == nil {
		return NewProblem(CodeDefinitionInvalid, CategoryBusiness, SeverityError,
			"executor registration requires a name and a non-nil executor")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.executors[name] = executor
	return nil
}

// HasDefinition reports whether a definition is registered under id.
func (e *Engine) HasDefinition(id string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.defs[id]
	return ok
}

// Definitions returns the registered definition ids, sorted.
func (e *Engine) Definitions() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ids := make([]string, 0, len(e.defs))
	for id := range e.defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Start creates and runs a new instance of the given definition.
//
// The instance enters the definition's initial state with a copy of
// initialContext, is persisted as RUNNING, and the initial state is executed
// before Start returns: a definition whose initial state is END completes
// immediately, and a failing initial action compensates immediately.
func (e *Engine) Start(ctx context.Context, definitionID string, initialContext Context) Result[Instance] {
	def, ok := e.definition(definitionID)
	if !ok {
		return Fail[Instance](NotFoundProblem(CodeDefinitionNotFound,
			"workflow definition not found: "+definitionID))
	}

	now := e.clock.Now()
	rec := Record{
		Instance: Instance{
			ID:           e.ids.NewInstanceID(),
			DefinitionID: def.ID,
			CurrentState: def.InitialState,
			Status:       StatusRunning,
			Context:      initialContext.Clone(),
			CreatedAt:    now,
			UpdatedAt:    now,
		},
		History: []string{def.InitialState},
	}

	unlock := e.locks.lock(rec.Instance.ID)
	defer unlock()

	if err := e.store.Save(ctx, rec.Instance.ID, rec.snapshot()); err != nil {
		return Fail[Instance](TechnicalProblem(CodeStorageFailure, err.Error()))
	}

	e.metrics.InstanceStarted(def.ID)
	e.emit(rec.Instance, "", "instance_started", nil)

	return e.executeCurrentState(ctx, def, &rec)
}

// SendEvent advances an instance along the first declared transition
// matching (currentState, event) whose condition passes. The event payload
// is merged into the instance context before the target state executes.
func (e *Engine) SendEvent(ctx context.Context, instanceID, event string, eventData Context) Result[Instance] {
	unlock := e.locks.lock(instanceID)
	defer unlock()

	rec, err := e.store.Load(ctx, instanceID)
	if err != nil {
		return Fail[Instance](e.loadProblem(instanceID, err))
	}

	if rec.Instance.Terminal() {
		return Fail[Instance](BusinessProblem(CodeAlreadyTerminal,
			"instance "+instanceID+" is already in terminal status "+string(rec.Instance.Status)))
	}

	def, ok := e.definition(rec.Instance.DefinitionID)
	if !ok {
		return Fail[Instance](NotFoundProblem(CodeDefinitionNotFound,
			"workflow definition not found: "+rec.Instance.DefinitionID))
	}

	transition, ok := e.matchTransition(def, rec.Instance.CurrentState, event, rec.Instance.Context, eventData)
	if !ok {
		return Fail[Instance](BusinessProblem(CodeNoTransition,
			"no transition from state "+rec.Instance.CurrentState+" on event "+event))
	}

	merged := rec.Instance.Context.Clone()
	merged.Merge(eventData)
	rec.Instance.Context = merged
	rec.Instance.CurrentState = transition.To
	rec.Instance.UpdatedAt = e.clock.Now()
	rec.History = append(rec.History, transition.To)

	if err := e.store.Save(ctx, instanceID, rec.snapshot()); err != nil {
		return Fail[Instance](TechnicalProblem(CodeStorageFailure, err.Error()))
	}

	e.metrics.Transition(def.ID, event)
	e.emit(rec.Instance, transition.From, "transition", map[string]any{
		"event": event,
		"to":    transition.To,
	})

	return e.executeCurrentState(ctx, def, &rec)
}

// Get returns a snapshot of an instance. Pure read; no side effects.
func (e *Engine) Get(ctx context.Context, instanceID string) Result[Instance] {
	rec, err := e.store.Load(ctx, instanceID)
	if err != nil {
		return Fail[Instance](e.loadProblem(instanceID, err))
	}
	return Ok(rec.Instance.Snapshot())
}

// GetHistory returns a copy of the ordered sequence of state names an
// instance has entered.
func (e *Engine) GetHistory(ctx context.Context, instanceID string) Result[[]string] {
	rec, err := e.store.Load(ctx, instanceID)
	if err != nil {
		return Fail[[]string](e.loadProblem(instanceID, err))
	}
	history := make([]string, len(rec.History))
	copy(history, rec.History)
	return Ok(history)
}

// Cancel marks an instance FAILED with error "Cancelled: <reason>".
//
// Cancel is a terminal marker only: it does not run compensation, and it
// applies regardless of current status — cancelling an already-terminal
// instance overwrites its status and reason.
func (e *Engine) Cancel(ctx context.Context, instanceID, reason string) Result[Instance] {
	unlock := e.locks.lock(instanceID)
	defer unlock()

	rec, err := e.store.Load(ctx, instanceID)
	if err != nil {
		return Fail[Instance](e.loadProblem(instanceID, err))
	}

	wasTerminal := rec.Instance.Terminal()
	now := e.clock.Now()
	rec.Instance.Status = StatusFailed
	rec.Instance.Error = "Cancelled: " + reason
	rec.Instance.CompletedAt = now
	rec.Instance.UpdatedAt = now

	if err := e.store.Save(ctx, instanceID, rec.snapshot()); err != nil {
		return Fail[Instance](TechnicalProblem(CodeStorageFailure, err.Error()))
	}

	if !wasTerminal {
		e.metrics.InstanceFinished(rec.Instance.DefinitionID, StatusFailed)
	}
	e.emit(rec.Instance, "", "instance_cancelled", map[string]any{"reason": reason})

	return Ok(rec.Instance.Snapshot())
}

// Compensate runs the instance's compensations in reverse entry order and
// leaves it COMPENSATED.
//
// Calling Compensate on an already-compensated instance re-runs every
// compensation; callers wanting at-most-once semantics check the status
// first.
func (e *Engine) Compensate(ctx context.Context, instanceID string) Result[Instance] {
	unlock := e.locks.lock(instanceID)
	defer unlock()

	rec, err := e.store.Load(ctx, instanceID)
	if err != nil {
		return Fail[Instance](e.loadProblem(instanceID, err))
	}

	def, ok := e.definition(rec.Instance.DefinitionID)
	if !ok {
		return Fail[Instance](NotFoundProblem(CodeDefinitionNotFound,
			"workflow definition not found: "+rec.Instance.DefinitionID))
	}

	return e.compensateLocked(ctx, def, &rec, !rec.Instance.Terminal())
}

// executeCurrentState runs the per-state-kind behavior on entry to the
// instance's current state. Callers hold the instance lock.
func (e *Engine) executeCurrentState(ctx context.Context, def Definition, rec *Record) Result[Instance] {
	state, ok := def.StateByName(rec.Instance.CurrentState)
	if !ok {
		return Fail[Instance](NotFoundProblem(CodeStateNotFound,
			"state "+rec.Instance.CurrentState+" is not declared in definition "+def.ID))
	}

	e.emit(rec.Instance, state.Name, "state_entered", nil)

	switch state.Kind {
	case KindEnd:
		now := e.clock.Now()
		rec.Instance.Status = StatusCompleted
		rec.Instance.CompletedAt = now
		rec.Instance.UpdatedAt = now
		if err := e.store.Save(ctx, rec.Instance.ID, rec.snapshot()); err != nil {
			return Fail[Instance](TechnicalProblem(CodeStorageFailure, err.Error()))
		}
		e.metrics.InstanceFinished(def.ID, StatusCompleted)
		e.emit(rec.Instance, state.Name, "instance_completed", nil)
		return Ok(rec.Instance.Snapshot())

	case KindFail:
		res, _ := e.failAndCompensate(ctx, def, rec, state.Name, "Workflow reached FAIL state")
		return res

	default:
		// TASK, START, CHOICE and PARALLEL all execute as plain task states.
		return e.runStateAction(ctx, def, rec, state)
	}
}

// runStateAction invokes the state's action executor, if any, and applies
// its context delta or triggers compensation on failure.
func (e *Engine) runStateAction(ctx context.Context, def Definition, rec *Record, state State) Result[Instance] {
	if state.Action == "" {
		return Ok(rec.Instance.Snapshot())
	}

	executor, ok := e.executor(state.Action)
	if !ok {
		// Intentional: declarative-first development registers executors
		// later; the workflow proceeds as if the state had no action.
		e.emit(rec.Instance, state.Name, "action_skipped", map[string]any{
			"action": state.Action,
			"error":  "no executor registered",
		})
		return Ok(rec.Instance.Snapshot())
	}

	e.emit(rec.Instance, state.Name, "action_started", map[string]any{"action": state.Action})

	started := e.clock.Now()
	res := executor(ctx, state.Action, rec.Instance.Context.Clone())
	elapsed := e.clock.Now().Sub(started)

	if res.IsFail() {
		e.metrics.ActionFailed(def.ID, state.Action)
		e.metrics.ActionDuration(def.ID, state.Action, elapsed, "failure")
		e.emit(rec.Instance, state.Name, "action_failed", map[string]any{
			"action": state.Action,
			"error":  res.Problem().Message,
		})
		result, _ := e.failAndCompensate(ctx, def, rec, state.Name, "Action failed: "+res.Problem().Message)
		return result
	}

	rec.Instance.Context.Merge(res.Value())
	rec.Instance.UpdatedAt = e.clock.Now()
	if err := e.store.Save(ctx, rec.Instance.ID, rec.snapshot()); err != nil {
		return Fail[Instance](TechnicalProblem(CodeStorageFailure, err.Error()))
	}

	e.metrics.ActionDuration(def.ID, state.Action, elapsed, "success")
	e.emit(rec.Instance, state.Name, "action_completed", map[string]any{
		"action":      state.Action,
		"duration_ms": elapsed.Milliseconds(),
	})

	return Ok(rec.Instance.Snapshot())
}

// failAndCompensate marks the instance FAILED with the given error, persists
// it, then runs compensation. The bool is false when persisting failed and
// the returned Result carries a storage problem.
func (e *Engine) failAndCompensate(ctx context.Context, def Definition, rec *Record, stateName, errMsg string) (Result[Instance], bool) {
	now := e.clock.Now()
	rec.Instance.Status = StatusFailed
	rec.Instance.Error = errMsg
	rec.Instance.CompletedAt = now
	rec.Instance.UpdatedAt = now
	if err := e.store.Save(ctx, rec.Instance.ID, rec.snapshot()); err != nil {
		return Fail[Instance](TechnicalProblem(CodeStorageFailure, err.Error())), false
	}
	e.emit(rec.Instance, stateName, "instance_failed", map[string]any{"error": errMsg})
	return e.compensateLocked(ctx, def, rec, true), true
}

// compensateLocked walks the execution history from newest to oldest and
// invokes each visited state's compensation executor. Callers hold the
// instance lock; countFinish controls whether the terminal transition is
// counted in metrics (false when the caller found the instance already
// terminal).
//
// Compensation is deliberately forgiving: undeclared states, missing
// compensations, unregistered executors and failing executors are all
// skipped and the walk continues. Unregistered and failing executors emit an
// event; the other two skips are silent. The instance always ends
// COMPENSATED; partial compensation is acceptable.
func (e *Engine) compensateLocked(ctx context.Context, def Definition, rec *Record, countFinish bool) Result[Instance] {
	rec.Instance.Status = StatusCompensating
	rec.Instance.UpdatedAt = e.clock.Now()
	if err := e.store.Save(ctx, rec.Instance.ID, rec.snapshot()); err != nil {
		return Fail[Instance](TechnicalProblem(CodeStorageFailure, err.Error()))
	}
	e.emit(rec.Instance, "", "compensation_started", nil)

	for i := len(rec.History) - 1; i >= 0; i-- {
		name := rec.History[i]
		state, ok := def.StateByName(name)
		if !ok {
			// The definition was overwritten mid-flight; nothing to undo.
			continue
		}
		if state.Compensation == "" {
			continue
		}

		executor, ok := e.executor(state.Compensation)
		if !ok {
			e.emit(rec.Instance, name, "compensation_skipped", map[string]any{
				"action": state.Compensation,
				"error":  "no executor registered",
			})
			continue
		}

		res := executor(ctx, state.Compensation, rec.Instance.Context.Clone())
		if res.IsFail() {
			e.metrics.CompensationStep(def.ID, "failure")
			e.emit(rec.Instance, name, "compensation_failed", map[string]any{
				"action": state.Compensation,
				"error":  res.Problem().Message,
			})
			continue
		}

		rec.Instance.Context.Merge(res.Value())
		e.metrics.CompensationStep(def.ID, "success")
		e.emit(rec.Instance, name, "compensation_step", map[string]any{"action": state.Compensation})
	}

	now := e.clock.Now()
	rec.Instance.Status = StatusCompensated
	rec.Instance.CompletedAt = now
	rec.Instance.UpdatedAt = now
	if err := e.store.Save(ctx, rec.Instance.ID, rec.snapshot()); err != nil {
		return Fail[Instance](TechnicalProblem(CodeStorageFailure, err.Error()))
	}

	if countFinish {
		e.metrics.InstanceFinished(def.ID, StatusCompensated)
	}
	e.emit(rec.Instance, "", "compensation_finished", nil)

	return Ok(rec.Instance.Snapshot())
}

// matchTransition returns the first declared transition out of fromState on
// event whose condition the evaluator accepts.
func (e *Engine) matchTransition(def Definition, fromState, event string, wctx, eventData Context) (Transition, bool) {
	for _, t := range def.Transitions {
		if t.From != fromState || t.Event != event {
			continue
		}
		if e.conditions(t.Condition, wctx, eventData) {
			return t, true
		}
	}
	return Transition{}, false
}

func (e *Engine) definition(id string) (Definition, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	def, ok := e.defs[id]
	return def, ok
}

func (e *Engine) executor(name string) (ActionExecutor, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ex, ok := e.executors[name]
	return ex, ok
}

// loadProblem maps a store load error to the right Problem: ErrNotFound
// becomes WORKFLOW.INSTANCE_NOT_FOUND, anything else is a storage failure.
func (e *Engine) loadProblem(instanceID string, err error) *Problem {
	if err == store.ErrNotFound {
		return NotFoundProblem(CodeInstanceNotFound, "workflow instance not found: "+instanceID)
	}
	return TechnicalProblem(CodeStorageFailure, err.Error())
}

func (e *Engine) emit(inst Instance, stateName, msg string, meta map[string]any) {
	if meta == nil {
		meta = map[string]any{}
	}
	meta["status"] = string(inst.Status)
	e.emitter.Emit(emit.Event{
		InstanceID:   inst.ID,
		DefinitionID: inst.DefinitionID,
		State:        stateName,
		Msg:          msg,
		Meta:         meta,
	})
}

// lockTable serializes operations per instance id. Locks are created on
// first use and kept for the engine's lifetime; instance churn is expected
// to be bounded by instance retention (the store never garbage-collects by
// status either).
type lockTable struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

// lock acquires the mutex for id and returns its unlock function.
func (t *lockTable) lock(id string) func() {
	t.mu.Lock()
	l, ok := t.m[id]
	if !ok {
		l = &sync.Mutex{}
		t.m[id] = l
	}
	t.mu.Unlock()

	l.Lock()
	return l.Unlock
}
