package mcpmgr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// State is a step in a session's lifecycle.
type State string

const (
	StateUnstarted  State = "unstarted"
	StateConnecting State = "connecting"
	StateReady      State = "ready"
	StateClosing    State = "closing"
	StateClosed     State = "closed"
	StateFailed     State = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateClosed || s == StateFailed
}

// ReadyFunc runs after the session is connected and initialized. The
// lifecycle becomes READY only if it returns nil.
type ReadyFunc func(ctx context.Context, session Session) error

// LifecycleOptions configure a Lifecycle.
type LifecycleOptions struct {
	Connector Connector
	// Stack, when set, receives the release function as soon as the
	// transport is open.
	Stack  *ShutdownStack
	Logger *slog.Logger
	// OnStateChange observes every transition. It runs without locks held.
	OnStateChange func(serverID string, from, to State, err error)
}

// Lifecycle owns connect, initialize and shutdown for one server
// configuration and exposes the live session while READY.
//
//	UNSTARTED -> CONNECTING -> READY -> CLOSING -> CLOSED
//	CONNECTING | READY -> FAILED
//
// The transport is released exactly once however READY is left.
type Lifecycle struct {
	serverID string
	cfg      ServerConfig
	opts     LifecycleOptions

	mu         sync.Mutex
	state      State
	session    Session
	err        error
	released   bool
	releaseErr error
}

// NewLifecycle returns an UNSTARTED lifecycle for cfg.
func NewLifecycle(serverID string, cfg ServerConfig, opts *LifecycleOptions) *Lifecycle {
	var options LifecycleOptions
	if opts != nil {
		options = *opts
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	return &Lifecycle{serverID: serverID, cfg: cfg, opts: options, state: StateUnstarted}
}

func (l *Lifecycle) ServerID() string     { return l.serverID }
func (l *Lifecycle) Config() ServerConfig { return l.cfg }

// State returns the current state.
func (l *Lifecycle) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Err returns the error that moved the lifecycle to FAILED, if any.
func (l *Lifecycle) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// Session returns the live session, or nil unless the lifecycle is READY.
func (l *Lifecycle) Session() Session {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != StateReady {
		return nil
	}
	return l.session
}

// Start connects and initializes the session, then runs ready. Any failure
// moves the lifecycle to FAILED and releases whatever was acquired.
func (l *Lifecycle) Start(ctx context.Context, ready ReadyFunc) error {
	if !l.transition(StateUnstarted, StateConnecting, nil) {
		return fmt.Errorf("mcpmgr: cannot start %q from state %s", l.serverID, l.State())
	}
	if l.opts.Connector == nil {
		err := fmt.Errorf("mcpmgr: no connector configured for %q", l.serverID)
		l.fail(err)
		return err
	}

	session, err := l.opts.Connector.Connect(ctx, l.serverID, l.cfg)
	if err != nil {
		if !IsTransportError(err) {
			err = &TransportError{Server: l.serverID, Op: "connect", Err: err}
		}
		l.fail(err)
		return err
	}
	l.mu.Lock()
	l.session = session
	l.mu.Unlock()
	if l.opts.Stack != nil {
		l.opts.Stack.Push(l.serverID, l.Close)
	}

	if ready != nil {
		if err := ready(ctx, session); err != nil {
			if relErr := l.release(ctx); relErr != nil {
				l.opts.Logger.Warn("release after failed startup", "server", l.serverID, "error", relErr)
			}
			l.fail(err)
			return err
		}
	}
	if !l.transition(StateConnecting, StateReady, nil) {
		_ = l.release(ctx)
		return fmt.Errorf("mcpmgr: %q was closed during startup", l.serverID)
	}
	l.opts.Logger.Info("tool server ready", "server", l.serverID)
	go l.monitor(session)
	return nil
}

// Close moves a started lifecycle through CLOSING to CLOSED and releases the
// transport. Closing an already closed or failed lifecycle is a no-op.
func (l *Lifecycle) Close(ctx context.Context) error {
	l.mu.Lock()
	from := l.state
	switch from {
	case StateClosing, StateClosed:
		l.mu.Unlock()
		return nil
	case StateFailed:
		l.mu.Unlock()
		return l.release(ctx)
	}
	l.state = StateClosing
	l.mu.Unlock()
	l.notify(from, StateClosing, nil)

	err := l.release(ctx)

	l.mu.Lock()
	l.state = StateClosed
	l.mu.Unlock()
	l.notify(StateClosing, StateClosed, nil)
	return err
}

// monitor fails a READY lifecycle whose connection ends on its own.
func (l *Lifecycle) monitor(session Session) {
	waitErr := session.Wait()
	l.mu.Lock()
	unexpected := l.state == StateReady && !l.released
	l.mu.Unlock()
	if !unexpected {
		return
	}
	if waitErr == nil {
		waitErr = errors.New("connection closed by server")
	}
	_ = l.release(context.Background())
	l.fail(&TransportError{Server: l.serverID, Op: "session", Err: waitErr})
}

// release closes the session once. Later calls return the first result.
func (l *Lifecycle) release(ctx context.Context) error {
	l.mu.Lock()
	session := l.session
	if session == nil || l.released {
		err := l.releaseErr
		l.mu.Unlock()
		return err
	}
	l.released = true
	l.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- session.Close() }()
	var err error
	select {
	case <-ctx.Done():
		err = ctx.Err()
	case err = <-done:
	}
	l.mu.Lock()
	l.releaseErr = err
	l.mu.Unlock()
	return err
}

func (l *Lifecycle) transition(from, to State, err error) bool {
	l.mu.Lock()
	if l.state != from {
		l.mu.Unlock()
		return false
	}
	l.state = to
	l.mu.Unlock()
	l.notify(from, to, err)
	return true
}

func (l *Lifecycle) fail(err error) {
	l.mu.Lock()
	from := l.state
	if from != StateConnecting && from != StateReady {
		l.mu.Unlock()
		return
	}
	l.state = StateFailed
	l.err = err
	l.mu.Unlock()
	l.opts.Logger.Error("tool server failed", "server", l.serverID, "from", from, "error", err)
	l.notify(from, StateFailed, err)
}

func (l *Lifecycle) notify(from, to State, err error) {
	if l.opts.OnStateChange != nil {
		l.opts.OnStateChange(l.serverID, from, to, err)
	}
}
