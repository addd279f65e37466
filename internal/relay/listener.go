// Package relay receives the log stream an app sends back from the device
// and copies it to the operator's output.
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultGrace bounds how long Stop waits for connection readers to exit.
const DefaultGrace = 2 * time.Second

var (
	// ErrBind wraps the OS error when the port could not be bound. The
	// returned Listener is still safe to use and reports StateTerminated.
	ErrBind = errors.New("log relay bind failed")

	// ErrPortClaimed means another listener in this process holds the port.
	ErrPortClaimed = errors.New("log port already in use by another deployment")

	// ErrStopTimeout means readers were still running after the grace period.
	ErrStopTimeout = errors.New("log relay did not stop within grace period")
)

// State is the lifecycle position of a Listener.
type State string

const (
	StateStarting   State = "starting"
	StateListening  State = "listening"
	StateStreaming  State = "streaming"
	StateTerminated State = "terminated"
)

// Option configures a Listener.
type Option func(*Listener)

// WithLogger sets the diagnostic logger.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Listener) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithHost binds to host instead of every interface.
func WithHost(host string) Option {
	return func(l *Listener) { l.host = host }
}

// WithGrace overrides DefaultGrace.
func WithGrace(d time.Duration) Option {
	return func(l *Listener) { l.grace = d }
}

// WithOnConnect registers a callback run for every accepted connection.
func WithOnConnect(fn func(remote string)) Option {
	return func(l *Listener) { l.onConnect = fn }
}

// Listener accepts app log connections on one port. Connections are
// read-only: nothing is ever written back to the app. The app reconnects
// after network hiccups, so the listener keeps accepting until stopped.
type Listener struct {
	host      string
	port      int
	grace     time.Duration
	logger    *zap.Logger
	onConnect func(string)
	out       *lockedWriter

	ln      net.Listener
	claimed int
	bindErr error

	mu       sync.Mutex
	state    State
	stopped  bool
	conns    map[net.Conn]struct{}
	sessions int
	bytes    int64

	wg       sync.WaitGroup
	done     chan struct{}
	stopOnce sync.Once
	stopErr  error
}

// Start binds port and begins accepting in the background. A port already
// held by this process fails with ErrPortClaimed and a nil Listener. An OS
// bind failure returns a terminated Listener together with an error wrapping
// ErrBind, so callers can carry on without a relay.
func Start(port int, out io.Writer, opts ...Option) (*Listener, error) {
	if out == nil {
		out = io.Discard
	}
	l := &Listener{
		port:   port,
		grace:  DefaultGrace,
		logger: zap.NewNop(),
		out:    &lockedWriter{w: out},
		state:  StateStarting,
		conns:  make(map[net.Conn]struct{}),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}

	if port != 0 {
		if !claimPort(port) {
			return nil, fmt.Errorf("%w: port %d", ErrPortClaimed, port)
		}
		l.claimed = port
	}

	ln, err := net.Listen("tcp", net.JoinHostPort(l.host, strconv.Itoa(port)))
	if err != nil {
		l.bindErr = err
		l.state = StateTerminated
		l.releaseClaim()
		close(l.done)
		l.logger.Warn("log relay unavailable", zap.Int("port", port), zap.Error(err))
		return l, fmt.Errorf("%w: %w", ErrBind, err)
	}
	l.ln = ln
	if tcp, ok := ln.Addr().(*net.TCPAddr); ok {
		l.port = tcp.Port
		if l.claimed == 0 && claimPort(tcp.Port) {
			l.claimed = tcp.Port
		}
	}
	l.state = StateListening
	l.logger.Info("log relay listening", zap.String("addr", ln.Addr().String()))

	l.wg.Add(1)
	go l.acceptLoop()
	return l, nil
}

// Degraded reports whether Start failed to bind.
func (l *Listener) Degraded() bool {
	return l == nil || l.bindErr != nil
}

// Port returns the bound port, or the requested one when binding failed.
func (l *Listener) Port() int {
	if l == nil {
		return 0
	}
	return l.port
}

// Addr returns the listening address, or nil in degraded mode.
func (l *Listener) Addr() net.Addr {
	if l == nil || l.ln == nil {
		return nil
	}
	return l.ln.Addr()
}

// State returns the current lifecycle state.
func (l *Listener) State() State {
	if l == nil {
		return StateTerminated
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Sessions returns how many connections have been accepted so far.
func (l *Listener) Sessions() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sessions
}

// BytesRelayed returns the total bytes copied to the output.
func (l *Listener) BytesRelayed() int64 {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.bytes
}

// Done is closed once the listener stops accepting, whether through Stop or
// because the socket failed.
func (l *Listener) Done() <-chan struct{} {
	if l == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return l.done
}

// Wait blocks until the listener is done or ctx ends.
func (l *Listener) Wait(ctx context.Context) error {
	select {
	case <-l.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop closes the socket and every open connection, then waits up to the
// grace period for readers to drain. Only the first call does anything; it
// is safe on a nil or degraded Listener.
func (l *Listener) Stop() error {
	if l == nil {
		return nil
	}
	l.stopOnce.Do(func() {
		l.mu.Lock()
		l.stopped = true
		if l.ln != nil {
			l.ln.Close()
		}
		for c := range l.conns {
			c.Close()
		}
		l.mu.Unlock()

		finished := make(chan struct{})
		go func() {
			l.wg.Wait()
			close(finished)
		}()
		select {
		case <-finished:
		case <-time.After(l.grace):
			l.stopErr = ErrStopTimeout
			l.logger.Warn("log relay readers still running after grace period", zap.Duration("grace", l.grace))
		}

		l.mu.Lock()
		l.state = StateTerminated
		l.mu.Unlock()
		l.releaseClaim()
		l.logger.Debug("log relay stopped",
			zap.Int("sessions", l.Sessions()),
			zap.Int64("bytes", l.BytesRelayed()))
	})
	return l.stopErr
}

func (l *Listener) acceptLoop() {
	defer l.wg.Done()
	defer close(l.done)

	for {
		conn, err := l.ln.Accept()
		if err != nil {
			l.mu.Lock()
			stopped := l.stopped
			l.mu.Unlock()
			if !stopped {
				l.logger.Warn("log relay accept failed", zap.Error(err))
			}
			return
		}

		l.mu.Lock()
		if l.stopped {
			l.mu.Unlock()
			conn.Close()
			return
		}
		l.conns[conn] = struct{}{}
		l.sessions++
		l.state = StateStreaming
		l.mu.Unlock()

		remote := conn.RemoteAddr().String()
		l.logger.Info("app connected", zap.String("remote", remote))
		if l.onConnect != nil {
			l.onConnect(remote)
		}

		l.wg.Add(1)
		go l.readLoop(conn)
	}
}

func (l *Listener) readLoop(conn net.Conn) {
	defer l.wg.Done()
	defer func() {
		conn.Close()
		l.mu.Lock()
		delete(l.conns, conn)
		if len(l.conns) == 0 && !l.stopped {
			l.state = StateListening
		}
		l.mu.Unlock()
		l.logger.Info("app disconnected", zap.String("remote", conn.RemoteAddr().String()))
	}()

	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			if _, werr := l.out.Write(buf[:n]); werr != nil {
				l.logger.Warn("log relay output failed", zap.Error(werr))
			}
			l.mu.Lock()
			l.bytes += int64(n)
			l.mu.Unlock()
		}
		if err != nil {
			return
		}
	}
}

func (l *Listener) releaseClaim() {
	if l.claimed != 0 {
		releasePort(l.claimed)
		l.claimed = 0
	}
}

// lockedWriter serializes writes from concurrent connections so lines from
// an old and a new connection never interleave mid-chunk.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (w *lockedWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.w.Write(p)
}
