// Package backend implements the connection to a next-edit suggestion
// backend: JSON-RPC 2.0 framing over stdio streams, request/response
// correlation with local cancellation, and subprocess lifecycle for
// backends launched as child processes.
package backend

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/nextedit/internal/log"
	"github.com/dshills/nextedit/internal/protocol"
)

// ConnState represents the lifecycle state of a backend connection.
type ConnState int32

const (
	// StateDisconnected means the client has not been started.
	StateDisconnected ConnState = iota
	// StateConnected means the transport is live.
	StateConnected
	// StateClosed means the connection ended and cannot be restarted.
	StateClosed
)

// String returns the string representation of the connection state.
func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// RequestHandle names an issued request so it can be cancelled later.
// The zero value is not a valid handle.
type RequestHandle struct {
	ID int64
}

// Valid reports whether the handle names an issued request.
func (h RequestHandle) Valid() bool {
	return h.ID != 0
}

// ResponseFunc receives the outcome of an asynchronous request. Exactly one
// of result/err is meaningful. A locally cancelled request never invokes
// its ResponseFunc.
type ResponseFunc func(result json.RawMessage, err error)

// defaultRequestTimeout bounds how long an asynchronous request may stay
// unanswered before it is abandoned.
const defaultRequestTimeout = 30 * time.Second

// closeGrace is how long Close waits for a spawned backend to exit before
// killing it.
const closeGrace = 2 * time.Second

// Client is one connection to a suggestion backend.
type Client struct {
	id        string
	name      string
	languages []string

	command string
	args    []string

	reader io.Reader
	writer io.Writer
	closer io.Closer

	requestTimeout time.Duration
	logger         *log.Logger

	mu        sync.Mutex
	transport *Transport
	cmd       *exec.Cmd
	onClose   []func()
	closeOnce sync.Once
	exited    chan struct{}

	state atomic.Int32
}

// Option configures a Client.
type Option func(*Client)

// WithCommand launches the backend as a subprocess speaking JSON-RPC on
// its stdin/stdout.
func WithCommand(command string, args ...string) Option {
	return func(c *Client) {
		c.command = command
		c.args = args
	}
}

// WithStreams attaches the client to existing streams instead of spawning
// a subprocess. The closer may be nil.
func WithStreams(r io.Reader, w io.Writer, closer io.Closer) Option {
	return func(c *Client) {
		c.reader = r
		c.writer = w
		c.closer = closer
	}
}

// WithLanguages restricts the connection to documents of the given language
// identifiers. An empty list serves every document.
func WithLanguages(languages ...string) Option {
	return func(c *Client) {
		c.languages = languages
	}
}

// WithName sets a human-readable connection name for logging.
func WithName(name string) Option {
	return func(c *Client) {
		c.name = name
	}
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRequestTimeout bounds asynchronous requests. Zero disables the bound.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.requestTimeout = d
	}
}

// NewClient creates a backend client. Configure a command or streams
// before calling Start.
func NewClient(opts ...Option) *Client {
	c := &Client{
		id:             uuid.NewString(),
		requestTimeout: defaultRequestTimeout,
		logger:         log.Nop,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.name == "" {
		if c.command != "" {
			c.name = c.command
		} else {
			c.name = "backend"
		}
	}
	c.logger = c.logger.WithComponent("backend").WithField("conn", c.name)
	return c
}

// ID returns the stable connection identifier.
func (c *Client) ID() string {
	return c.id
}

// Name returns the human-readable connection name.
func (c *Client) Name() string {
	return c.name
}

// State returns the connection lifecycle state.
func (c *Client) State() ConnState {
	return ConnState(c.state.Load())
}

// SupportsLanguage reports whether this connection serves documents of the
// given language. Connections without a language list serve everything.
func (c *Client) SupportsLanguage(languageID string) bool {
	if len(c.languages) == 0 {
		return true
	}
	for _, l := range c.languages {
		if l == languageID {
			return true
		}
	}
	return false
}

// OnClose registers a handler invoked once when the connection ends,
// whether by Close, process exit, or stream EOF.
func (c *Client) OnClose(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onClose = append(c.onClose, fn)
}

// Start connects to the backend: spawns the subprocess when a command is
// configured, otherwise attaches to the provided streams, then begins the
// read loop.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ConnState(c.state.Load()) != StateDisconnected {
		if ConnState(c.state.Load()) == StateConnected {
			return ErrAlreadyConnected
		}
		return ErrShutdown
	}

	r, w, closer := c.reader, c.writer, c.closer

	if c.command != "" {
		cmd := exec.Command(c.command, c.args...)

		stdin, err := cmd.StdinPipe()
		if err != nil {
			return fmt.Errorf("stdin pipe: %w", err)
		}
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return fmt.Errorf("stdout pipe: %w", err)
		}
		stderr, err := cmd.StderrPipe()
		if err != nil {
			return fmt.Errorf("stderr pipe: %w", err)
		}

		if err := cmd.Start(); err != nil {
			return fmt.Errorf("start backend %s: %w", c.command, err)
		}

		c.cmd = cmd
		r, w, closer = stdout, stdin, stdin

		go c.drainStderr(stderr)
	}

	if r == nil || w == nil {
		return ErrNoCommand
	}

	c.transport = NewTransport(r, w, closer)
	c.transport.Start(ctx)
	c.exited = make(chan struct{})
	c.state.Store(int32(StateConnected))
	c.logger.Info("connected")

	go c.monitor()

	return nil
}

// monitor reaps the subprocess or watches the transport, then finalizes
// the connection exactly once.
func (c *Client) monitor() {
	c.mu.Lock()
	cmd := c.cmd
	tr := c.transport
	c.mu.Unlock()

	if cmd != nil {
		err := cmd.Wait()
		if err != nil && ConnState(c.state.Load()) == StateConnected {
			c.logger.Warn("backend exited: %v", err)
		}
	} else if tr != nil {
		<-tr.Done()
	}

	c.finish()
}

// finish marks the connection closed and fires close handlers. Runs once.
func (c *Client) finish() {
	c.closeOnce.Do(func() {
		c.state.Store(int32(StateClosed))

		c.mu.Lock()
		tr := c.transport
		handlers := c.onClose
		exited := c.exited
		c.mu.Unlock()

		if tr != nil {
			_ = tr.Close()
		}
		for _, fn := range handlers {
			fn()
		}
		if exited != nil {
			close(exited)
		}
		c.logger.Info("closed")
	})
}

// drainStderr forwards backend stderr lines to the logger.
func (c *Client) drainStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		c.logger.Debug("stderr: %s", scanner.Text())
	}
}

// Request issues an asynchronous request. The done callback is invoked
// exactly once with the response or a transport error, and never after a
// local CancelRequest for the returned handle.
func (c *Client) Request(method string, params any, done ResponseFunc) (RequestHandle, error) {
	tr := c.currentTransport()
	if tr == nil {
		return RequestHandle{}, ErrNotConnected
	}

	id, ch, err := tr.Send(method, params)
	if err != nil {
		return RequestHandle{}, err
	}

	var timeout <-chan time.Time
	var timer *time.Timer
	if c.requestTimeout > 0 {
		timer = time.NewTimer(c.requestTimeout)
		timeout = timer.C
	}

	go func() {
		if timer != nil {
			defer timer.Stop()
		}

		select {
		case resp, ok := <-ch:
			if !ok {
				// Locally cancelled; the caller already moved on.
				return
			}
			if resp.Error != nil {
				done(nil, resp.Error)
				return
			}
			done(resp.Result, nil)
		case <-tr.Done():
			done(nil, ErrShutdown)
		case <-timeout:
			tr.Forget(id)
			done(nil, ErrTimeout)
		}
	}()

	return RequestHandle{ID: id}, nil
}

// CancelRequest abandons an in-flight request and tells the backend to stop
// working on it. Cancelling a completed or unknown handle is a no-op.
func (c *Client) CancelRequest(h RequestHandle) {
	if !h.Valid() {
		return
	}

	tr := c.currentTransport()
	if tr == nil {
		return
	}

	if tr.Forget(h.ID) {
		_ = tr.Notify(MethodCancel, CancelParams{ID: h.ID})
		c.logger.Debug("cancelled request %d", h.ID)
	}
}

// Notify sends a notification to the backend.
func (c *Client) Notify(method string, params any) error {
	tr := c.currentTransport()
	if tr == nil {
		return ErrNotConnected
	}
	return tr.Notify(method, params)
}

// ExecCommand runs a follow-up command on the backend, scoped to a
// document, and waits for completion.
func (c *Client) ExecCommand(ctx context.Context, command protocol.Command, doc protocol.DocumentURI) error {
	tr := c.currentTransport()
	if tr == nil {
		return ErrNotConnected
	}

	params := ExecCommandParams{
		Command:   command.Command,
		Arguments: command.Arguments,
	}
	if doc != "" {
		params.TextDocument = &TextDocumentIdentifier{URI: doc}
	}

	var result json.RawMessage
	return tr.Call(ctx, MethodExecCommand, params, &result)
}

// OnNotification registers a handler for backend-initiated notifications.
func (c *Client) OnNotification(method string, handler NotificationHandler) {
	if tr := c.currentTransport(); tr != nil {
		tr.OnNotification(method, handler)
	}
}

// Close shuts the connection down. A spawned backend gets a grace period
// to exit after its stdin closes, then is killed.
func (c *Client) Close() error {
	c.mu.Lock()
	tr := c.transport
	cmd := c.cmd
	exited := c.exited
	c.mu.Unlock()

	if tr != nil {
		_ = tr.Close()
	}

	if cmd != nil && cmd.Process != nil && exited != nil {
		// The monitor goroutine reaps the process and closes exited.
		select {
		case <-exited:
		case <-time.After(closeGrace):
			_ = cmd.Process.Kill()
			<-exited
		}
	}

	c.finish()
	return nil
}

// currentTransport returns the live transport, or nil when disconnected.
func (c *Client) currentTransport() *Transport {
	if ConnState(c.state.Load()) != StateConnected {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transport
}
