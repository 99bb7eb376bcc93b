package backend

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// Transport handles JSON-RPC 2.0 communication with a suggestion backend
// over a byte stream, framed with Content-Length headers (LSP base
// protocol). Requests are correlated to responses through a pending table;
// a request that has been forgotten drops its eventual response on the
// floor.
type Transport struct {
	reader *bufio.Reader
	writer io.Writer
	closer io.Closer

	mu       sync.Mutex
	nextID   atomic.Int64
	pending  map[int64]chan *Response
	handlers map[string]NotificationHandler

	closed atomic.Bool
	done   chan struct{}
}

// NotificationHandler handles incoming notifications from the backend.
type NotificationHandler func(method string, params json.RawMessage)

// NewTransport creates a transport over the given streams, typically the
// stdin/stdout pipes of a backend subprocess.
func NewTransport(r io.Reader, w io.Writer, c io.Closer) *Transport {
	return &Transport{
		reader:   bufio.NewReaderSize(r, 64*1024),
		writer:   w,
		closer:   c,
		pending:  make(map[int64]chan *Response),
		handlers: make(map[string]NotificationHandler),
		done:     make(chan struct{}),
	}
}

// Start begins reading messages from the backend.
func (t *Transport) Start(ctx context.Context) {
	go t.readLoop(ctx)
}

// Close closes the transport. Waiters on in-flight requests unblock via
// the done channel. Safe to call more than once.
func (t *Transport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}

	close(t.done)

	// Drop all pending requests. Channels stay open; waiters observe the
	// done channel instead, which avoids racing handleResponse sends.
	t.mu.Lock()
	t.pending = make(map[int64]chan *Response)
	t.mu.Unlock()

	if t.closer != nil {
		return t.closer.Close()
	}
	return nil
}

// IsClosed returns true if the transport has been closed.
func (t *Transport) IsClosed() bool {
	return t.closed.Load()
}

// Done returns a channel closed when the transport shuts down.
func (t *Transport) Done() <-chan struct{} {
	return t.done
}

// Send issues a request and returns its wire ID together with a channel
// that delivers the response. The channel is closed without a value if the
// request is forgotten before the response arrives.
func (t *Transport) Send(method string, params any) (int64, <-chan *Response, error) {
	if t.closed.Load() {
		return 0, nil, ErrShutdown
	}

	id := t.nextID.Add(1)
	ch := make(chan *Response, 1)

	t.mu.Lock()
	t.pending[id] = ch
	t.mu.Unlock()

	req := &Request{
		JSONRPC: "2.0",
		ID:      id,
		Method:  method,
		Params:  params,
	}

	if err := t.send(req); err != nil {
		t.mu.Lock()
		delete(t.pending, id)
		t.mu.Unlock()
		return 0, nil, fmt.Errorf("send request: %w", err)
	}

	return id, ch, nil
}

// Forget abandons a pending request. Its response, if one still arrives,
// is discarded. Returns false if the request was already completed,
// forgotten, or never issued.
func (t *Transport) Forget(id int64) bool {
	t.mu.Lock()
	ch, ok := t.pending[id]
	if ok {
		delete(t.pending, id)
	}
	t.mu.Unlock()

	if ok {
		close(ch)
	}
	return ok
}

// Call sends a request and waits for its response, honoring the context.
func (t *Transport) Call(ctx context.Context, method string, params any, result any) error {
	id, ch, err := t.Send(method, params)
	if err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		t.Forget(id)
		return ctx.Err()
	case <-t.done:
		return ErrShutdown
	case resp, ok := <-ch:
		if !ok {
			return ErrRequestCancelled
		}
		if resp.Error != nil {
			return resp.Error
		}
		if result != nil && len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, result); err != nil {
				return fmt.Errorf("unmarshal result: %w", err)
			}
		}
		return nil
	}
}

// Notify sends a notification (no response expected).
func (t *Transport) Notify(method string, params any) error {
	if t.closed.Load() {
		return ErrShutdown
	}

	return t.send(&Notification{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
	})
}

// OnNotification registers a handler for backend notifications. The method
// "*" registers a fallback handler for otherwise-unhandled methods.
func (t *Transport) OnNotification(method string, handler NotificationHandler) {
	t.mu.Lock()
	t.handlers[method] = handler
	t.mu.Unlock()
}

// send writes a message with a Content-Length header.
func (t *Transport) send(msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(data))

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, err := io.WriteString(t.writer, header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := t.writer.Write(data); err != nil {
		return fmt.Errorf("write body: %w", err)
	}

	return nil
}

// readLoop reads messages until the stream ends or the transport closes.
func (t *Transport) readLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.done:
			return
		default:
		}

		msg, err := t.readMessage()
		if err != nil {
			if t.closed.Load() {
				return
			}
			if err == io.EOF || err == io.ErrClosedPipe {
				return
			}
			// Malformed frame; resynchronize on the next header.
			continue
		}

		t.dispatch(msg)
	}
}

// readMessage reads one Content-Length framed message.
func (t *Transport) readMessage() (json.RawMessage, error) {
	var contentLength int
	for {
		line, err := t.reader.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			break // end of headers
		}
		if strings.HasPrefix(strings.ToLower(line), "content-length:") {
			parts := strings.SplitN(line, ":", 2)
			if len(parts) == 2 {
				if length, err := strconv.Atoi(strings.TrimSpace(parts[1])); err == nil {
					contentLength = length
				}
			}
		}
		// Content-Type and other headers are ignored.
	}

	if contentLength == 0 {
		return nil, fmt.Errorf("missing Content-Length header")
	}

	body := make([]byte, contentLength)
	if _, err := io.ReadFull(t.reader, body); err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return body, nil
}

// dispatch routes an incoming message to the response table or a
// notification handler.
func (t *Transport) dispatch(data json.RawMessage) {
	var msg incomingMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}

	// A response carries an ID and a result or error.
	if msg.ID != nil && (msg.Result != nil || msg.Error != nil) {
		t.handleResponse(&Response{
			JSONRPC: msg.JSONRPC,
			ID:      *msg.ID,
			Result:  msg.Result,
			Error:   msg.Error,
		})
		return
	}

	if msg.Method != "" {
		t.handleNotification(msg.Method, msg.Params)
	}
}

// handleResponse delivers a response to its waiting channel. A response
// whose request was forgotten or already answered finds no entry and is
// dropped.
func (t *Transport) handleResponse(resp *Response) {
	if t.closed.Load() {
		return
	}

	t.mu.Lock()
	ch, ok := t.pending[resp.ID]
	if ok {
		delete(t.pending, resp.ID)
	}
	t.mu.Unlock()

	if ok {
		ch <- resp
	}
}

// handleNotification routes a notification to its handler.
func (t *Transport) handleNotification(method string, params json.RawMessage) {
	t.mu.Lock()
	handler, ok := t.handlers[method]
	if !ok {
		handler, ok = t.handlers["*"]
	}
	t.mu.Unlock()

	if ok && handler != nil {
		// Handlers run off the read loop so a slow handler cannot stall
		// response delivery.
		go handler(method, params)
	}
}
