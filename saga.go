package gateway

import (
	"context"
	"fmt"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	textCodeSagaStepFailed = "SAGA_STEP_FAILED"
	textCodeSagaDuplicate  = "SAGA_DUPLICATE_STATE"
)

// SagaState names a step of a saga
type SagaState string

const (
	StateProfileCreate  SagaState = "profile_create"
	StateSettingsCreate SagaState = "settings_create"
	StateIdentityCreate SagaState = "identity_create"
	StateCompleted      SagaState = "completed"
)

// SagaAction performs the write of a step
type SagaAction func(ctx context.Context) error

// CompensationFunc undoes the write of a completed step
type CompensationFunc func(ctx context.Context) error

// SagaStep pairs a state with its action
type SagaStep struct {
	State SagaState
	Run   SagaAction
}

// SagaResult describes how far a saga got
type SagaResult struct {
	Name               string
	Reached            SagaState
	Failed             SagaState
	Completed          []SagaState
	Compensated        []SagaState
	CompensationErrors map[SagaState]error
	StartedAt          time.Time
	FinishedAt         time.Time
}

// Succeeded reports if every step ran
func (r *SagaResult) Succeeded() bool {
	return r != nil && r.Reached == StateCompleted
}

// Saga runs steps in order. When a step fails the completed steps that
// have an entry in the compensation table are undone in reverse order.
type Saga struct {
	name          string
	steps         []SagaStep
	compensations map[SagaState]CompensationFunc
	logger        Logger
	now           func() time.Time
}

type SagaOption func(*Saga)

func WithSagaLogger(logger Logger) SagaOption {
	return func(s *Saga) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSagaClock injects a custom clock (useful for tests).
func WithSagaClock(clock func() time.Time) SagaOption {
	return func(s *Saga) {
		if clock != nil {
			s.now = clock
		}
	}
}

func NewSaga(name string, opts ...SagaOption) *Saga {
	s := &Saga{
		name:          name,
		compensations: map[SagaState]CompensationFunc{},
		logger:        defaultLogger(),
		now:           time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

// Step appends a state to the saga
func (s *Saga) Step(state SagaState, run SagaAction) *Saga {
	s.steps = append(s.steps, SagaStep{State: state, Run: run})
	return s
}

// Compensate registers the undo action for state
func (s *Saga) Compensate(state SagaState, fn CompensationFunc) *Saga {
	s.compensations[state] = fn
	return s
}

// States lists the configured states in execution order
func (s *Saga) States() []SagaState {
	out := make([]SagaState, 0, len(s.steps))
	for _, step := range s.steps {
		out = append(out, step.State)
	}
	return out
}

// Execute runs the saga. The returned error is the failing step's error,
// with the saga progress and any compensation failures in its metadata.
func (s *Saga) Execute(ctx context.Context) (*SagaResult, error) {
	result := &SagaResult{
		Name:      s.name,
		StartedAt: s.now(),
	}

	seen := make(map[SagaState]struct{}, len(s.steps))
	for _, step := range s.steps {
		if _, ok := seen[step.State]; ok {
			return result, goerrors.New("saga state registered twice", goerrors.CategoryInternal).
				WithTextCode(textCodeSagaDuplicate).
				WithMetadata(map[string]any{"saga": s.name, "state": step.State})
		}
		seen[step.State] = struct{}{}
	}

	for _, step := range s.steps {
		err := ctx.Err()
		if err == nil {
			err = step.Run(ctx)
		}

		if err != nil {
			result.Failed = step.State
			s.logger.Warn("saga step failed",
				"saga", s.name, "state", step.State, "error", err)

			s.compensate(ctx, result)
			result.FinishedAt = s.now()
			return result, s.terminalError(err, result)
		}

		result.Completed = append(result.Completed, step.State)
		result.Reached = step.State
	}

	result.Reached = StateCompleted
	result.FinishedAt = s.now()
	return result, nil
}

func (s *Saga) compensate(ctx context.Context, result *SagaResult) {
	// the request may be gone but the undo writes still have to land
	ctx = context.WithoutCancel(ctx)

	for i := len(result.Completed) - 1; i >= 0; i-- {
		state := result.Completed[i]
		fn, ok := s.compensations[state]
		if !ok || fn == nil {
			continue
		}

		if err := fn(ctx); err != nil {
			if result.CompensationErrors == nil {
				result.CompensationErrors = map[SagaState]error{}
			}
			result.CompensationErrors[state] = err
			s.logger.Error("saga compensation failed",
				"saga", s.name, "state", state, "error", err)
			continue
		}

		result.Compensated = append(result.Compensated, state)
		s.logger.Info("saga step compensated", "saga", s.name, "state", state)
	}
}

func (s *Saga) terminalError(err error, result *SagaResult) error {
	meta := map[string]any{
		"saga":         s.name,
		"failed_state": result.Failed,
		"completed":    result.Completed,
		"compensated":  result.Compensated,
	}

	if len(result.CompensationErrors) > 0 {
		compErrs := make(map[string]string, len(result.CompensationErrors))
		for state, cerr := range result.CompensationErrors {
			compErrs[string(state)] = cerr.Error()
		}
		meta["compensation_errors"] = compErrs
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.Clone().WithMetadata(meta)
	}

	return goerrors.Wrap(err, goerrors.CategoryOperation, fmt.Sprintf("saga %s failed at %s", s.name, result.Failed)).
		WithTextCode(textCodeSagaStepFailed).
		WithMetadata(meta)
}
