package timer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tverberg/punch/internal/model"
	"github.com/tverberg/punch/internal/store"
)

var (
	// ErrInvalidTransition means a command was issued from a state that does
	// not permit it. No mutation happens; the caller decides what to do.
	ErrInvalidTransition = errors.New("invalid timer transition")
	// ErrNoInterruptedSession means recovery was requested with nothing to
	// recover.
	ErrNoInterruptedSession = errors.New("no interrupted session")
)

type Status string

const (
	StatusIdle    Status = "idle"
	StatusRunning Status = "running"
	StatusPaused  Status = "paused"
)

// RecoveryAction is applied to the interrupted session found on startup.
type RecoveryAction string

const (
	// RecoveryResume closes the dangling interval at now, opens a fresh one,
	// and adopts the session as the live running timer.
	RecoveryResume RecoveryAction = "resume"
	// RecoveryClose closes the dangling interval at now and persists; no
	// live timer is created.
	RecoveryClose RecoveryAction = "close"
	// RecoveryDismiss leaves the session untouched.
	RecoveryDismiss RecoveryAction = "dismiss"
)

// Snapshot is a point-in-time view of the active timer for display refresh.
type Snapshot struct {
	Status    Status
	SessionID string
	TaskID    string
	Elapsed   time.Duration
}

// Machine owns the single active timer. All transitions are serialized by a
// mutex; the transition preconditions double as guards against overlapping
// commands (a double-click firing pause and stop applies only the first).
// Every transition persists the updated session before committing it to
// memory, so a storage failure leaves the machine exactly where it was.
type Machine struct {
	mu    sync.Mutex
	store store.Store
	now   func() time.Time
	newID func() string

	status        Status
	session       model.Session
	elapsed       time.Duration // closed-interval accumulator
	intervalStart *time.Time
}

type Option func(*Machine)

// WithClock substitutes the wall clock, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// WithIDSource substitutes session id generation, for deterministic tests.
func WithIDSource(newID func() string) Option {
	return func(m *Machine) { m.newID = newID }
}

func New(st store.Store, opts ...Option) *Machine {
	m := &Machine{
		store:  st,
		now:    time.Now,
		newID:  uuid.NewString,
		status: StatusIdle,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start creates a new session for taskID with one open interval. Valid only
// from idle: the machine never auto-switches tasks, callers must stop the
// running timer first.
func (m *Machine) Start(ctx context.Context, taskID string) (model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status != StatusIdle {
		return model.Session{}, fmt.Errorf("start while %s: %w", m.status, ErrInvalidTransition)
	}
	if taskID == "" {
		return model.Session{}, errors.New("start: task id is required")
	}

	now := m.now()
	session := model.Session{
		ID:     m.newID(),
		TaskID: taskID,
		Intervals: []model.Interval{
			{Start: now},
		},
	}

	if err := m.store.PutSession(ctx, session); err != nil {
		return model.Session{}, fmt.Errorf("start: persist session: %w", err)
	}

	m.status = StatusRunning
	m.session = session
	m.elapsed = 0
	m.intervalStart = &now
	return session.Clone(), nil
}

// Pause closes the open interval at now and persists it. Valid only while
// running.
func (m *Machine) Pause(ctx context.Context) (model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status != StatusRunning {
		return model.Session{}, fmt.Errorf("pause while %s: %w", m.status, ErrInvalidTransition)
	}

	now := m.now()
	updated := m.session.Clone()
	last := &updated.Intervals[len(updated.Intervals)-1]
	end := now
	last.End = &end

	if err := m.store.PutSession(ctx, updated); err != nil {
		return model.Session{}, fmt.Errorf("pause: persist session: %w", err)
	}

	m.session = updated
	m.elapsed += now.Sub(*m.intervalStart)
	m.intervalStart = nil
	m.status = StatusPaused
	return updated.Clone(), nil
}

// Resume appends a new open interval at now and persists it. Valid only
// while paused.
func (m *Machine) Resume(ctx context.Context) (model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status != StatusPaused {
		return model.Session{}, fmt.Errorf("resume while %s: %w", m.status, ErrInvalidTransition)
	}

	now := m.now()
	updated := m.session.Clone()
	updated.Intervals = append(updated.Intervals, model.Interval{Start: now})

	if err := m.store.PutSession(ctx, updated); err != nil {
		return model.Session{}, fmt.Errorf("resume: persist session: %w", err)
	}

	m.session = updated
	m.intervalStart = &now
	m.status = StatusRunning
	return updated.Clone(), nil
}

// Stop ends the active timer. With save the session is persisted with its
// trailing interval closed at now; without it the session is deleted from
// storage, leaving no record of the aborted attempt. Valid from running or
// paused; either way the machine resets to idle.
func (m *Machine) Stop(ctx context.Context, save bool) (model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status != StatusRunning && m.status != StatusPaused {
		return model.Session{}, fmt.Errorf("stop while %s: %w", m.status, ErrInvalidTransition)
	}

	updated := m.session.Clone()
	if save {
		if open := updated.OpenInterval(); open != nil {
			end := m.now()
			open.End = &end
		}
		if err := m.store.PutSession(ctx, updated); err != nil {
			return model.Session{}, fmt.Errorf("stop: persist session: %w", err)
		}
	} else {
		if err := m.store.DeleteSession(ctx, updated.ID); err != nil {
			return model.Session{}, fmt.Errorf("stop: delete session: %w", err)
		}
	}

	m.reset()
	return updated, nil
}

// Elapsed reports tracked time so far: the closed-interval accumulator plus
// the open interval's age while running. Pure query for the display tick;
// correctness always comes from the interval timestamps, not from polling.
func (m *Machine) Elapsed() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.elapsedLocked()
}

func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Snapshot{
		Status:    m.status,
		SessionID: m.session.ID,
		TaskID:    m.session.TaskID,
		Elapsed:   m.elapsedLocked(),
	}
}

func (m *Machine) elapsedLocked() time.Duration {
	if m.status == StatusRunning && m.intervalStart != nil {
		return m.elapsed + m.now().Sub(*m.intervalStart)
	}
	return m.elapsed
}

func (m *Machine) reset() {
	m.status = StatusIdle
	m.session = model.Session{}
	m.elapsed = 0
	m.intervalStart = nil
}

// DetectInterrupted scans storage for a session left with an open interval
// by an abnormal shutdown. Under correct operation at most one exists; if
// several do, the one whose open interval started last wins. The machine's
// own live session is never reported.
func (m *Machine) DetectInterrupted(ctx context.Context) (*model.Session, error) {
	m.mu.Lock()
	liveID := m.session.ID
	m.mu.Unlock()

	sessions, err := m.store.ListSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("detect interrupted: %w", err)
	}

	var found *model.Session
	for i := range sessions {
		if sessions[i].ID == liveID {
			continue
		}
		open := sessions[i].OpenInterval()
		if open == nil {
			continue
		}
		if found == nil || open.Start.After(found.OpenInterval().Start) {
			found = &sessions[i]
		}
	}
	return found, nil
}

// ResolveInterrupted applies one recovery action to the interrupted session.
func (m *Machine) ResolveInterrupted(ctx context.Context, action RecoveryAction) (*model.Session, error) {
	interrupted, err := m.DetectInterrupted(ctx)
	if err != nil {
		return nil, err
	}
	if interrupted == nil {
		return nil, ErrNoInterruptedSession
	}

	switch action {
	case RecoveryDismiss:
		return interrupted, nil
	case RecoveryClose:
		updated := interrupted.Clone()
		end := m.now()
		updated.OpenInterval().End = &end
		if err := m.store.PutSession(ctx, updated); err != nil {
			return nil, fmt.Errorf("close interrupted: persist session: %w", err)
		}
		return &updated, nil
	case RecoveryResume:
		return m.adoptInterrupted(ctx, interrupted)
	default:
		return nil, fmt.Errorf("unknown recovery action %q", action)
	}
}

// adoptInterrupted treats the crash as an implicit pause: the dangling
// interval closes at now and a fresh one opens, then the session becomes the
// live running timer.
func (m *Machine) adoptInterrupted(ctx context.Context, interrupted *model.Session) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status != StatusIdle {
		return nil, fmt.Errorf("resume interrupted while %s: %w", m.status, ErrInvalidTransition)
	}

	now := m.now()
	updated := interrupted.Clone()
	end := now
	updated.OpenInterval().End = &end
	updated.Intervals = append(updated.Intervals, model.Interval{Start: now})

	if err := m.store.PutSession(ctx, updated); err != nil {
		return nil, fmt.Errorf("resume interrupted: persist session: %w", err)
	}

	var closed time.Duration
	for _, iv := range updated.Intervals[:len(updated.Intervals)-1] {
		closed += iv.Duration(now)
	}

	m.status = StatusRunning
	m.session = updated
	m.elapsed = closed
	m.intervalStart = &now
	result := updated.Clone()
	return &result, nil
}
