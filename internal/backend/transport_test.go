package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"
)

// mockPipe creates one direction of a bidirectional test connection.
type mockPipe struct {
	reader *io.PipeReader
	writer *io.PipeWriter
}

func newMockPipe() *mockPipe {
	r, w := io.Pipe()
	return &mockPipe{reader: r, writer: w}
}

func (p *mockPipe) Close() error {
	p.reader.Close()
	p.writer.Close()
	return nil
}

// readFrame reads one Content-Length framed message from r.
func readFrame(t *testing.T, r io.Reader) []byte {
	t.Helper()

	body, err := readFrameErr(r)
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return body
}

// readFrameErr is readFrame for pump goroutines that may outlive the test.
func readFrameErr(r io.Reader) ([]byte, error) {
	br := make([]byte, 0, 4096)
	buf := make([]byte, 1)
	// Read byte-wise until the blank line ending the headers.
	for !strings.HasSuffix(string(br), "\r\n\r\n") {
		if _, err := r.Read(buf); err != nil {
			return nil, err
		}
		br = append(br, buf[0])
	}

	var contentLength int
	fmt.Sscanf(string(br), "Content-Length: %d", &contentLength)
	if contentLength <= 0 {
		return nil, fmt.Errorf("bad header: %q", br)
	}

	body := make([]byte, contentLength)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return body, nil
}

// writeFrame writes one Content-Length framed message to w.
func writeFrame(t *testing.T, w io.Writer, msg any) {
	t.Helper()

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if _, err := fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(data)); err != nil {
		t.Fatalf("write header: %v", err)
	}
	if _, err := w.Write(data); err != nil {
		t.Fatalf("write body: %v", err)
	}
}

func TestTransport_Notify(t *testing.T) {
	clientToServer := newMockPipe()
	serverToClient := newMockPipe()

	transport := NewTransport(serverToClient.reader, clientToServer.writer, nil)
	defer transport.Close()

	var wg sync.WaitGroup
	var body []byte
	wg.Add(1)
	go func() {
		defer wg.Done()
		body = readFrame(t, clientToServer.reader)
	}()

	err := transport.Notify(MethodDidFocus, DidFocusParams{
		TextDocument: TextDocumentIdentifier{URI: "file:///a.py"},
	})
	if err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	wg.Wait()

	var notif struct {
		JSONRPC string `json:"jsonrpc"`
		Method  string `json:"method"`
	}
	if err := json.Unmarshal(body, &notif); err != nil {
		t.Fatalf("unmarshal sent frame: %v", err)
	}
	if notif.JSONRPC != "2.0" {
		t.Errorf("Expected jsonrpc 2.0, got %q", notif.JSONRPC)
	}
	if notif.Method != MethodDidFocus {
		t.Errorf("Expected method %q, got %q", MethodDidFocus, notif.Method)
	}
}

func TestTransport_Call(t *testing.T) {
	clientToServer := newMockPipe()
	serverToClient := newMockPipe()

	transport := NewTransport(serverToClient.reader, clientToServer.writer, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	transport.Start(ctx)
	defer transport.Close()

	// Mock backend: echo a result for whatever request arrives.
	go func() {
		body := readFrame(t, clientToServer.reader)
		var req Request
		if err := json.Unmarshal(body, &req); err != nil {
			return
		}
		result, _ := json.Marshal(map[string]string{"status": "ok"})
		writeFrame(t, serverToClient.writer, Response{JSONRPC: "2.0", ID: req.ID, Result: result})
	}()

	var result map[string]string
	if err := transport.Call(ctx, "test/method", nil, &result); err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if result["status"] != "ok" {
		t.Errorf("Expected status=ok, got %v", result)
	}
}

func TestTransport_CallError(t *testing.T) {
	clientToServer := newMockPipe()
	serverToClient := newMockPipe()

	transport := NewTransport(serverToClient.reader, clientToServer.writer, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	transport.Start(ctx)
	defer transport.Close()

	go func() {
		body := readFrame(t, clientToServer.reader)
		var req Request
		if err := json.Unmarshal(body, &req); err != nil {
			return
		}
		writeFrame(t, serverToClient.writer, Response{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &RPCError{Code: CodeMethodNotFound, Message: "method not found"},
		})
	}()

	var result any
	err := transport.Call(ctx, "unknown/method", nil, &result)
	if err == nil {
		t.Fatal("Expected error, got nil")
	}

	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("Expected *RPCError, got %T: %v", err, err)
	}
	if rpcErr.Code != CodeMethodNotFound {
		t.Errorf("Expected code %d, got %d", CodeMethodNotFound, rpcErr.Code)
	}
}

func TestTransport_SendForget(t *testing.T) {
	clientToServer := newMockPipe()
	serverToClient := newMockPipe()

	transport := NewTransport(serverToClient.reader, clientToServer.writer, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	transport.Start(ctx)
	defer transport.Close()

	// Keep the write side drained.
	go func() {
		readFrame(t, clientToServer.reader)
	}()

	id, ch, err := transport.Send("test/slow", nil)
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if !transport.Forget(id) {
		t.Fatal("Forget() should report the request was pending")
	}
	if transport.Forget(id) {
		t.Error("Second Forget() should be a no-op")
	}

	// The channel closes without a value.
	select {
	case resp, ok := <-ch:
		if ok {
			t.Errorf("Expected closed channel, got response %+v", resp)
		}
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for forgotten channel to close")
	}

	// A late response for the forgotten ID is dropped without panic.
	writeFrame(t, serverToClient.writer, Response{JSONRPC: "2.0", ID: id, Result: json.RawMessage(`{}`)})
	time.Sleep(50 * time.Millisecond)
}

func TestTransport_CallTimeout(t *testing.T) {
	clientToServer := newMockPipe()
	serverToClient := newMockPipe()

	transport := NewTransport(serverToClient.reader, clientToServer.writer, nil)
	transport.Start(context.Background())
	defer func() {
		clientToServer.Close()
		serverToClient.Close()
		transport.Close()
	}()

	// Drain the request but never answer.
	go func() {
		buf := make([]byte, 4096)
		for {
			if _, err := clientToServer.reader.Read(buf); err != nil {
				return
			}
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	var result any
	err := transport.Call(ctx, "slow/method", nil, &result)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected DeadlineExceeded, got %v", err)
	}
}

func TestTransport_NotificationDispatch(t *testing.T) {
	clientToServer := newMockPipe()
	serverToClient := newMockPipe()

	transport := NewTransport(serverToClient.reader, clientToServer.writer, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	received := make(chan string, 1)
	transport.OnNotification("backend/status", func(method string, params json.RawMessage) {
		var p struct {
			Message string `json:"message"`
		}
		json.Unmarshal(params, &p)
		received <- p.Message
	})

	transport.Start(ctx)
	defer transport.Close()

	writeFrame(t, serverToClient.writer, map[string]any{
		"jsonrpc": "2.0",
		"method":  "backend/status",
		"params":  map[string]string{"message": "ready"},
	})

	select {
	case msg := <-received:
		if msg != "ready" {
			t.Errorf("Expected 'ready', got %q", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for notification")
	}
}

func TestTransport_Close(t *testing.T) {
	clientToServer := newMockPipe()
	serverToClient := newMockPipe()

	transport := NewTransport(serverToClient.reader, clientToServer.writer, clientToServer)
	transport.Start(context.Background())

	if err := transport.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}

	if err := transport.Notify("test", nil); !errors.Is(err, ErrShutdown) {
		t.Errorf("Expected ErrShutdown after close, got %v", err)
	}
	if _, _, err := transport.Send("test", nil); !errors.Is(err, ErrShutdown) {
		t.Errorf("Expected ErrShutdown from Send after close, got %v", err)
	}

	// Double close is safe.
	if err := transport.Close(); err != nil {
		t.Errorf("Second Close() error = %v", err)
	}
	if !transport.IsClosed() {
		t.Error("IsClosed() should be true after Close()")
	}
}
