package acquire

import (
	"context"
	"io"
	"net"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	fsm "github.com/smallnest/gofsm"
	slog "github.com/vearne/simplelog"
)

// connection lifecycle states
const (
	StateDisconnected = "DISCONNECTED"
	StateConnecting   = "CONNECTING"
	StateStreaming    = "STREAMING"
	StateTerminated   = "TERMINATED"
)

// lifecycle events
const (
	EventConnect       = "CONNECT"
	EventEstablished   = "ESTABLISHED"
	EventConnectFailed = "CONNECT-FAILED"
	EventSourceLost    = "SOURCE-LOST"
	EventShutdown      = "SHUTDOWN"
)

// ErrSourceExhausted is returned when a terminate-on-eof file source has
// been read to the end.
var ErrSourceExhausted = errors.New("no more source")

// safetyMargin is shaved off the readiness wait so the wake-up lands just
// before the interval boundary rather than just after it.
const safetyMargin = 500 * time.Microsecond

// Config is the acquisition slice of the resolved settings. InputFile
// empty means network source; exactly one source kind is ever active.
type Config struct {
	Server        string
	Port          int
	InputFile     string
	FileTerminate bool
	StallInterval time.Duration
	RetryDelay    time.Duration
	BufferSize    int
}

// session tracks the lifecycle state for the FSM, plus an identity for
// correlating log lines of one source incarnation.
type session struct {
	ID     string
	State  string
	States []string
}

type lifecycleProcessor struct{}

func (p *lifecycleProcessor) Action(action string, fromState string, toState string, args []interface{}) error {
	s := args[0].(*session)
	switch action {
	case "change-state":
		slog.Debug("session:%s lifecycle [%v] -> [%v]", s.ID, fromState, toState)
	default:
		slog.Debug("unknown action %v, session:%s", action, s.ID)
	}
	return nil
}

func (p *lifecycleProcessor) OnActionFailure(action string, fromState string, toState string, args []interface{}, err error) {
}

func (p *lifecycleProcessor) OnExit(fromState string, args []interface{}) {
}

func (p *lifecycleProcessor) OnEnter(toState string, args []interface{}) {
	s := args[0].(*session)
	s.State = toState
	s.States = append(s.States, toState)
}

func initLifecycleFSM() *fsm.StateMachine {
	delegate := &fsm.DefaultDelegate{P: &lifecycleProcessor{}}
	transitions := []fsm.Transition{
		{From: StateDisconnected, Event: EventConnect, To: StateConnecting, Action: "change-state"},
		{From: StateConnecting, Event: EventEstablished, To: StateStreaming, Action: "change-state"},
		{From: StateConnecting, Event: EventConnectFailed, To: StateDisconnected, Action: "change-state"},
		{From: StateStreaming, Event: EventSourceLost, To: StateDisconnected, Action: "change-state"},
		{From: StateDisconnected, Event: EventShutdown, To: StateTerminated, Action: "change-state"},
		{From: StateConnecting, Event: EventShutdown, To: StateTerminated, Action: "change-state"},
		{From: StateStreaming, Event: EventShutdown, To: StateTerminated, Action: "change-state"},
	}
	return fsm.NewStateMachine(delegate, transitions...)
}

// Manager owns the acquisition loop and the current source handle. Nothing
// else touches the handle; shutdown is requested through ctx only and takes
// effect within one loop iteration.
type Manager struct {
	cfg       Config
	pump      *Pump
	tap       io.Writer
	lifecycle *fsm.StateMachine
	session   *session

	lastActivity time.Time
}

func NewManager(cfg Config, sink ByteSink) *Manager {
	return &Manager{
		cfg:       cfg,
		pump:      NewPump(sink),
		lifecycle: initLifecycleFSM(),
		session:   &session{State: StateDisconnected, States: []string{StateDisconnected}},
	}
}

// SetTap installs a writer that sees every received buffer before it is
// pumped into the decoder. Used for raw capture recording.
func (m *Manager) SetTap(w io.Writer) {
	m.tap = w
}

// State exposes the current lifecycle state.
func (m *Manager) State() string {
	return m.session.State
}

func (m *Manager) trigger(event string) {
	if err := m.lifecycle.Trigger(m.session.State, event, m.session); err != nil {
		slog.Debug("lifecycle trigger %v from %v: %v", event, m.session.State, err)
	}
}

// Run drives the connection lifecycle until ctx is cancelled or, for a
// terminate-on-eof file source, until the file is exhausted (then
// ErrSourceExhausted). A failing network connect retries forever with a
// fixed delay; a failing file open is fatal and returned as-is.
func (m *Manager) Run(ctx context.Context) error {
	buf := make([]byte, m.cfg.BufferSize)
	m.lastActivity = time.Now()

	for {
		if ctx.Err() != nil {
			m.trigger(EventShutdown)
			return nil
		}

		m.trigger(EventConnect)
		src, err := m.open(ctx)
		if err != nil {
			if m.cfg.InputFile != "" {
				// a missing file is a configuration error, not transient
				m.trigger(EventShutdown)
				return err
			}
			m.trigger(EventConnectFailed)
			slog.Error("could not connect to %s:%d: %v", m.cfg.Server, m.cfg.Port, err)
			if !sleepCtx(ctx, m.cfg.RetryDelay) {
				m.trigger(EventShutdown)
				return nil
			}
			continue
		}

		m.session.ID = uuid.New().String()
		slog.Info("source open, session:%s", m.session.ID)
		m.trigger(EventEstablished)

		m.stream(ctx, src, buf)

		src.Close()
		m.trigger(EventSourceLost)

		if m.cfg.InputFile != "" && m.cfg.FileTerminate {
			m.trigger(EventShutdown)
			return ErrSourceExhausted
		}

		if ctx.Err() != nil {
			m.trigger(EventShutdown)
			return nil
		}

		if m.cfg.InputFile != "" {
			// reopening the same file straight away would spin at EOF
			if !sleepCtx(ctx, m.cfg.RetryDelay) {
				m.trigger(EventShutdown)
				return nil
			}
		}
	}
}

func (m *Manager) open(ctx context.Context) (Source, error) {
	if m.cfg.InputFile != "" {
		return openFileSource(m.cfg.InputFile)
	}
	return dialSource(ctx, m.cfg.Server, m.cfg.Port)
}

// stream reads from src until it is lost or ctx is cancelled. The wait for
// readability is bounded by lastActivity + StallInterval so the loop never
// blocks past one interval without re-checking the terminating flag.
// lastActivity rolls forward on a timed-out wait as well as on a read;
// anchoring it to reads alone would degrade into a busy poll once a
// source stays idle past one interval.
func (m *Manager) stream(ctx context.Context, src Source, buf []byte) {
	for {
		if ctx.Err() != nil {
			return
		}

		target := m.lastActivity.Add(m.cfg.StallInterval).Add(-safetyMargin)
		if now := time.Now(); target.Before(now) {
			// interval already spent: immediate non-blocking check
			target = now.Add(time.Millisecond)
		}

		if err := src.SetReadDeadline(target); err != nil && !errors.Is(err, os.ErrNoDeadline) {
			// the readiness mechanism itself failed; source is lost
			slog.Warn("session:%s arming read deadline: %v", m.session.ID, err)
			return
		}

		n, err := src.Read(buf)
		if n > 0 {
			m.lastActivity = time.Now()
			if m.tap != nil {
				if _, err := m.tap.Write(buf[:n]); err != nil {
					slog.Error("capture tap: %v", err)
				}
			}
			m.pump.ProcessBlock(buf[:n])
		}

		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				// no readiness inside the deadline; re-arm the wait
				m.lastActivity = time.Now()
				continue
			}
			if err != io.EOF {
				slog.Warn("session:%s read: %v", m.session.ID, err)
			}
			return
		}
	}
}

// sleepCtx waits d or until cancellation; false means cancelled.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
