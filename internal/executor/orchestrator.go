package executor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/collab-code-share/backend/internal/model"
)

const (
	// DefaultPollInterval is the cadence of submission status polls.
	DefaultPollInterval = 500 * time.Millisecond

	// DefaultMaxAttempts bounds the poll loop; combined with the
	// interval this gives a ~15s ceiling per run.
	DefaultMaxAttempts = 30
)

// Broadcaster fans a finished run out to a session's room.
type Broadcaster interface {
	BroadcastExecutionResult(sessionID, language string, result *model.ExecutionResult)
}

// Recorder archives a finished run. Archive failures must never fail
// the run itself.
type Recorder interface {
	Record(ctx context.Context, run *model.Run) error
}

// Orchestrator submits runs to the execution backend, polls them to a
// terminal status, and publishes the outcome.
type Orchestrator struct {
	client      *Judge0Client
	broadcaster Broadcaster
	recorder    Recorder

	pollInterval time.Duration
	maxAttempts  int

	now func() time.Time
}

// New creates an Orchestrator with the default poll budget. The
// broadcaster and recorder are optional.
func New(client *Judge0Client, broadcaster Broadcaster, recorder Recorder) *Orchestrator {
	return &Orchestrator{
		client:       client,
		broadcaster:  broadcaster,
		recorder:     recorder,
		pollInterval: DefaultPollInterval,
		maxAttempts:  DefaultMaxAttempts,
		now:          time.Now,
	}
}

// SetPollBudget overrides the poll cadence and attempt ceiling.
// Intended for tests.
func (o *Orchestrator) SetPollBudget(interval time.Duration, attempts int) {
	o.pollInterval = interval
	o.maxAttempts = attempts
}

// Execute runs the request to completion against the backend. It fails
// fast when no backend is configured, and gives up with
// model.ErrExecutionTimeout once the poll budget is spent. A timed-out
// backend job is abandoned, not cancelled; cancellation is outside
// this service's control.
func (o *Orchestrator) Execute(ctx context.Context, req model.ExecutionRequest) (*model.ExecutionResult, error) {
	if !o.client.Configured() {
		return nil, model.ErrProviderMisconfigured
	}

	token, err := o.client.Submit(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("submit failed: %w", err)
	}

	for attempt := 0; attempt < o.maxAttempts; attempt++ {
		sub, err := o.client.Fetch(ctx, token)
		if err != nil {
			return nil, fmt.Errorf("poll failed: %w", err)
		}
		if sub.Status.ID >= 3 {
			return sub.result(), nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(o.pollInterval):
		}
	}

	return nil, model.ErrExecutionTimeout
}

// Run executes the request and, when a session id is supplied,
// publishes one consistent outcome to the whole room, so the requester
// never sees a result its peers don't. Failures are rendered into the
// result shape so every participant observes the same terminal state.
// The returned error still reports the failure to the synchronous
// caller.
func (o *Orchestrator) Run(ctx context.Context, sessionID string, req model.ExecutionRequest) (*model.ExecutionResult, error) {
	result, err := o.Execute(ctx, req)
	if err != nil {
		result = renderFailure(err)
	}

	o.archive(ctx, sessionID, req.Language, result)

	if sessionID != "" && o.broadcaster != nil {
		o.broadcaster.BroadcastExecutionResult(sessionID, req.Language, result)
	}

	return result, err
}

// archive records the outcome best-effort; a failed insert is logged
// and otherwise ignored.
func (o *Orchestrator) archive(ctx context.Context, sessionID, language string, result *model.ExecutionResult) {
	if o.recorder == nil || sessionID == "" {
		return
	}

	run := &model.Run{
		SessionID:         sessionID,
		Language:          language,
		Stdout:            result.Stdout,
		Stderr:            result.Stderr,
		CompileOutput:     result.CompileOutput,
		Time:              result.Time,
		Memory:            result.Memory,
		StatusID:          result.Status.ID,
		StatusDescription: result.Status.Description,
		CreatedAt:         o.now(),
	}
	if err := o.recorder.Record(ctx, run); err != nil {
		log.Printf("Failed to archive run for session %s: %v", sessionID, err)
	}
}

// renderFailure shapes an orchestration error like a backend result so
// the room fanout carries a uniform payload.
func renderFailure(err error) *model.ExecutionResult {
	description := "Execution Error"
	if errors.Is(err, model.ErrExecutionTimeout) {
		description = "Execution Timed Out"
	}
	return &model.ExecutionResult{
		Stderr: err.Error(),
		Status: model.ExecutionStatus{ID: -1, Description: description},
	}
}
