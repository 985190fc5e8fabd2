// Package session owns the run lifecycle: the Idle/Running/Paused/Stopped
// state machine and the perceive-decide-act loop that drives a task.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/droidpilot/droidpilot/internal/action"
	"github.com/droidpilot/droidpilot/internal/config"
	"github.com/droidpilot/droidpilot/internal/conversation"
	"github.com/droidpilot/droidpilot/internal/device"
	"github.com/droidpilot/droidpilot/internal/executor"
	"github.com/droidpilot/droidpilot/internal/gateway"
	"github.com/droidpilot/droidpilot/internal/log"
	"github.com/droidpilot/droidpilot/internal/message"
	"github.com/droidpilot/droidpilot/internal/perception"
	"github.com/droidpilot/droidpilot/internal/screenshot"
)

// Phase is the lifecycle state of the runner.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRunning
	PhasePaused
	PhaseStopped
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRunning:
		return "running"
	case PhasePaused:
		return "paused"
	case PhaseStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Status is pushed to subscribers on every phase transition and step
// completion.
type Status struct {
	Phase  Phase
	Step   int
	Detail string
}

// Decider asks the model for the next action given the history and the
// current frame.
type Decider interface {
	RequestNextAction(ctx context.Context, history []message.Message, frame *perception.Frame) (*gateway.Decision, error)
}

const (
	captureAttempts = 3
	gatewayAttempts = 3
)

// Runner drives one task at a time. Commands arrive from other
// goroutines and take effect at loop-iteration boundaries, never
// mid-gesture.
type Runner struct {
	dev   device.Device
	perc  *perception.Provider
	exec  *executor.Executor
	model Decider
	store *conversation.Store
	cfg   *config.Settings

	// backoff is the base delay between retry attempts. Tests shrink it.
	backoff time.Duration

	mu         sync.Mutex
	cond       *sync.Cond
	phase      Phase
	step       int
	detail     string
	generation uint64
	convID     string
	cancel     context.CancelFunc
	subs       []chan Status
}

// NewRunner wires the loop's collaborators together.
func NewRunner(dev device.Device, perc *perception.Provider, exec *executor.Executor, model Decider, store *conversation.Store, cfg *config.Settings) *Runner {
	r := &Runner{
		dev:     dev,
		perc:    perc,
		exec:    exec,
		model:   model,
		store:   store,
		cfg:     cfg,
		backoff: 500 * time.Millisecond,
	}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// Subscribe returns a channel of status updates. Slow subscribers drop
// updates instead of blocking the loop.
func (r *Runner) Subscribe() <-chan Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch := make(chan Status, 16)
	r.subs = append(r.subs, ch)
	return ch
}

// Status returns the last published status.
func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Status{Phase: r.phase, Step: r.step, Detail: r.detail}
}

// Phase returns the current lifecycle phase.
func (r *Runner) Phase() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

// publishLocked records and fans out a status. Callers hold r.mu.
func (r *Runner) publishLocked(detail string) {
	r.detail = detail
	st := Status{Phase: r.phase, Step: r.step, Detail: detail}
	for _, ch := range r.subs {
		select {
		case ch <- st:
		default:
		}
	}
}

// Start begins a run against a conversation. It fails when a run is
// already in flight; a previous Stopped run is implicitly acknowledged.
func (r *Runner) Start(convID string) error {
	r.mu.Lock()
	if r.phase == PhaseRunning || r.phase == PhasePaused {
		r.mu.Unlock()
		return fmt.Errorf("a run is already in progress")
	}
	if r.store.Get(convID) == nil {
		r.mu.Unlock()
		return fmt.Errorf("conversation %s not found", convID)
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.phase = PhaseRunning
	r.step = 0
	r.convID = convID
	r.cancel = cancel
	r.generation++
	gen := r.generation
	r.publishLocked("run started")
	r.mu.Unlock()

	if r.cfg.KeepScreenOn {
		if err := r.dev.StayAwake(context.Background(), true); err != nil {
			log.Logger().Warn("keep-awake request failed", zap.Error(err))
		}
	}

	go r.loop(ctx, gen, convID)
	return nil
}

// Pause suspends the loop at the next iteration boundary. A no-op
// unless Running.
func (r *Runner) Pause() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.phase != PhaseRunning {
		return
	}
	r.phase = PhasePaused
	r.publishLocked("paused")
}

// Resume continues a paused run. A no-op unless Paused.
func (r *Runner) Resume() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.phase != PhasePaused {
		return
	}
	r.phase = PhaseRunning
	r.publishLocked("resumed")
	r.cond.Broadcast()
}

// Stop ends the run. The in-flight step's result is discarded rather
// than appended. A no-op unless Running or Paused.
func (r *Runner) Stop() {
	r.stop("stopped by user")
}

func (r *Runner) stop(detail string) {
	r.mu.Lock()
	if r.phase != PhaseRunning && r.phase != PhasePaused {
		r.mu.Unlock()
		return
	}
	r.phase = PhaseStopped
	r.generation++
	cancel := r.cancel
	r.cancel = nil
	r.publishLocked(detail)
	r.cond.Broadcast()
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	r.screenOff()
}

// Ack moves a Stopped runner back to Idle so the next task can start.
func (r *Runner) Ack() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.phase != PhaseStopped {
		return
	}
	r.phase = PhaseIdle
	r.step = 0
	r.publishLocked("")
}

func (r *Runner) screenOff() {
	if !r.cfg.KeepScreenOn {
		return
	}
	if err := r.dev.StayAwake(context.Background(), false); err != nil {
		log.Logger().Warn("release keep-awake failed", zap.Error(err))
	}
}

// awaitRunnable blocks while the run is paused. It reports whether the
// loop should execute another step.
func (r *Runner) awaitRunnable(gen uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for r.generation == gen && r.phase == PhasePaused {
		r.cond.Wait()
	}
	return r.generation == gen && r.phase == PhaseRunning
}

// loop is the run body: capture, decide, execute, record, repeat.
func (r *Runner) loop(ctx context.Context, gen uint64, convID string) {
	for {
		if !r.awaitRunnable(gen) {
			return
		}

		r.mu.Lock()
		r.step++
		step := r.step
		r.publishLocked("capturing screen")
		r.mu.Unlock()

		if step > r.cfg.MaxSteps {
			r.fatal(gen, convID, fmt.Sprintf("Stopped after reaching the %d-step limit.", r.cfg.MaxSteps))
			return
		}

		frame, err := r.captureWithRetry(ctx)
		if err != nil {
			r.fatal(gen, convID, fmt.Sprintf("Screen capture failed: %v.", err))
			return
		}

		decision, err := r.decideWithRetry(ctx, convID, frame)
		if err != nil {
			frame.Release()
			r.fatal(gen, convID, fmt.Sprintf("Model request failed: %v.", err))
			return
		}

		r.setDetail(decision.Action.String())

		started := time.Now()
		res := r.exec.Execute(ctx, decision.Action, frame)
		log.LogStep(step, decision.Action.String(), time.Since(started).Milliseconds(), res.OK)

		imagePath := ""
		if decision.Action.Kind != action.KindFinished {
			imagePath, err = screenshot.Annotate(frame, decision.Action, r.cfg.ScreenshotDir)
			if err != nil {
				log.Logger().Warn("screenshot annotation failed", zap.Error(err))
				imagePath = ""
			}
		}
		frame.Release()

		content := action.StripThinking(decision.Raw)
		if !res.OK && res.Err != nil {
			content = fmt.Sprintf("%s\nAction failed: %v", content, res.Err)
		}
		msg := message.AssistantMessage(content, decision.Thinking, decision.Action.String(), imagePath)

		if !r.commit(gen, convID, msg) {
			return
		}

		if decision.Action.Kind == action.KindFinished {
			detail := "task finished"
			if decision.Action.Message != "" {
				detail = decision.Action.Message
			}
			r.stop(detail)
			return
		}
	}
}

// commit appends the step's message unless a stop invalidated the
// generation while the step was in flight. The lock is held across the
// check and the append so a concurrent stop cannot land between them
// and see a step committed to a stopped run.
func (r *Runner) commit(gen uint64, convID string, msg message.Message) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.generation != gen {
		return false
	}

	if err := r.store.AppendMessages(convID, msg); err != nil {
		log.Logger().Warn("failed to persist step", zap.Error(err))
		r.publishLocked("history not saved; continuing")
		return true
	}

	r.publishLocked("step complete")
	return true
}

func (r *Runner) setDetail(detail string) {
	r.mu.Lock()
	r.publishLocked(detail)
	r.mu.Unlock()
}

// fatal stops the run and records a human-readable reason both in the
// status and as an assistant message, so the user can later see why the
// run ended.
func (r *Runner) fatal(gen uint64, convID, reason string) {
	r.mu.Lock()
	if r.generation != gen {
		r.mu.Unlock()
		return
	}
	r.phase = PhaseStopped
	r.generation++
	cancel := r.cancel
	r.cancel = nil
	r.publishLocked(reason)
	r.cond.Broadcast()
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	r.screenOff()

	if err := r.store.AppendMessages(convID, message.AssistantMessage(reason, "", "", "")); err != nil {
		log.Logger().Warn("failed to record stop reason", zap.Error(err))
	}
}

// captureWithRetry retries transient capture failures with a linear
// backoff before giving up.
func (r *Runner) captureWithRetry(ctx context.Context) (*perception.Frame, error) {
	var lastErr error
	for attempt := 1; attempt <= captureAttempts; attempt++ {
		frame, err := r.perc.Capture(ctx)
		if err == nil {
			return frame, nil
		}
		lastErr = err
		log.Logger().Debug("capture attempt failed",
			zap.Int("attempt", attempt), zap.Error(err))

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt < captureAttempts {
			if !sleepCtx(ctx, time.Duration(attempt)*r.backoff) {
				return nil, ctx.Err()
			}
		}
	}
	return nil, lastErr
}

// decideWithRetry retries network and malformed-reply failures. Auth
// and frame-encoding failures never recover on retry, so they fail
// fast.
func (r *Runner) decideWithRetry(ctx context.Context, convID string, frame *perception.Frame) (*gateway.Decision, error) {
	history := r.store.Messages(convID)

	var lastErr error
	for attempt := 1; attempt <= gatewayAttempts; attempt++ {
		decision, err := r.model.RequestNextAction(ctx, history, frame)
		if err == nil {
			return decision, nil
		}
		lastErr = err

		var gerr *gateway.Error
		if errors.As(err, &gerr) && (gerr.Kind == gateway.KindAuth || gerr.Kind == gateway.KindEncoding) {
			return nil, err
		}
		log.Logger().Debug("model attempt failed",
			zap.Int("attempt", attempt), zap.Error(err))

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt < gatewayAttempts {
			if !sleepCtx(ctx, time.Duration(attempt)*r.backoff) {
				return nil, ctx.Err()
			}
		}
	}
	return nil, lastErr
}

// sleepCtx waits the given duration unless the context ends first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
