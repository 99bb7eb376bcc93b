package backend

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/dshills/nextedit/internal/log"
)

// startTestClient wires a Client over in-memory pipes and returns the
// server side of the connection.
func startTestClient(t *testing.T, opts ...Option) (*Client, *mockPipe, *mockPipe) {
	t.Helper()

	clientToServer := newMockPipe()
	serverToClient := newMockPipe()

	opts = append([]Option{
		WithName("test-backend"),
		WithStreams(serverToClient.reader, clientToServer.writer, nil),
		WithLogger(log.Nop),
	}, opts...)

	client := NewClient(opts...)
	if err := client.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	t.Cleanup(func() {
		client.Close()
		clientToServer.Close()
		serverToClient.Close()
	})

	return client, clientToServer, serverToClient
}

func TestClient_RequestCallback(t *testing.T) {
	client, clientToServer, serverToClient := startTestClient(t)

	// Mock backend: answer the first request with one edit.
	go func() {
		body := readFrame(t, clientToServer.reader)
		var req Request
		if err := json.Unmarshal(body, &req); err != nil {
			return
		}
		if req.Method != MethodNextEdits {
			return
		}
		result, _ := json.Marshal(NextEditsResult{
			Edits: []NextEdit{{NewText: "fixed"}},
		})
		writeFrame(t, serverToClient.writer, Response{JSONRPC: "2.0", ID: req.ID, Result: result})
	}()

	got := make(chan NextEditsResult, 1)
	handle, err := client.Request(MethodNextEdits, NextEditsParams{}, func(result json.RawMessage, err error) {
		if err != nil {
			t.Errorf("callback error = %v", err)
			return
		}
		var r NextEditsResult
		json.Unmarshal(result, &r)
		got <- r
	})
	if err != nil {
		t.Fatalf("Request() error = %v", err)
	}
	if !handle.Valid() {
		t.Error("Request() returned invalid handle")
	}

	select {
	case r := <-got:
		if len(r.Edits) != 1 || r.Edits[0].NewText != "fixed" {
			t.Errorf("Unexpected result: %+v", r)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for callback")
	}
}

func TestClient_RequestError(t *testing.T) {
	client, clientToServer, serverToClient := startTestClient(t)

	go func() {
		body := readFrame(t, clientToServer.reader)
		var req Request
		if err := json.Unmarshal(body, &req); err != nil {
			return
		}
		writeFrame(t, serverToClient.writer, Response{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &RPCError{Code: CodeContentModified, Message: "stale"},
		})
	}()

	errCh := make(chan error, 1)
	_, err := client.Request(MethodNextEdits, nil, func(result json.RawMessage, err error) {
		errCh <- err
	})
	if err != nil {
		t.Fatalf("Request() error = %v", err)
	}

	select {
	case err := <-errCh:
		var rpcErr *RPCError
		if !errors.As(err, &rpcErr) || rpcErr.Code != CodeContentModified {
			t.Errorf("Expected content-modified RPCError, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for error callback")
	}
}

func TestClient_CancelRequest(t *testing.T) {
	client, clientToServer, _ := startTestClient(t)

	frames := make(chan []byte, 2)
	go func() {
		for {
			body, err := readFrameErr(clientToServer.reader)
			if err != nil {
				return
			}
			frames <- body
		}
	}()

	called := make(chan struct{}, 1)
	handle, err := client.Request(MethodNextEdits, nil, func(result json.RawMessage, err error) {
		called <- struct{}{}
	})
	if err != nil {
		t.Fatalf("Request() error = %v", err)
	}
	<-frames // the request itself

	client.CancelRequest(handle)

	// The backend is told to stop.
	select {
	case body := <-frames:
		var notif struct {
			Method string       `json:"method"`
			Params CancelParams `json:"params"`
		}
		if err := json.Unmarshal(body, &notif); err != nil {
			t.Fatalf("unmarshal cancel frame: %v", err)
		}
		if notif.Method != MethodCancel {
			t.Errorf("Expected %q, got %q", MethodCancel, notif.Method)
		}
		if notif.Params.ID != handle.ID {
			t.Errorf("Cancel ID = %d, want %d", notif.Params.ID, handle.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for cancel notification")
	}

	// The callback never fires for a cancelled request.
	select {
	case <-called:
		t.Error("Callback fired after CancelRequest")
	case <-time.After(100 * time.Millisecond):
	}

	// Cancelling again is a no-op.
	client.CancelRequest(handle)
	client.CancelRequest(RequestHandle{})
}

func TestClient_RequestTimeout(t *testing.T) {
	client, clientToServer, _ := startTestClient(t, WithRequestTimeout(50*time.Millisecond))

	// Drain the request, never answer.
	go func() {
		readFrame(t, clientToServer.reader)
	}()

	errCh := make(chan error, 1)
	if _, err := client.Request(MethodNextEdits, nil, func(result json.RawMessage, err error) {
		errCh <- err
	}); err != nil {
		t.Fatalf("Request() error = %v", err)
	}

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrTimeout) {
			t.Errorf("Expected ErrTimeout, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for timeout callback")
	}
}

func TestClient_RequestNotConnected(t *testing.T) {
	client := NewClient(WithName("idle"), WithLogger(log.Nop))

	if _, err := client.Request(MethodNextEdits, nil, func(json.RawMessage, error) {}); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Expected ErrNotConnected, got %v", err)
	}
	if err := client.Notify(MethodDidFocus, nil); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Expected ErrNotConnected from Notify, got %v", err)
	}
}

func TestClient_SupportsLanguage(t *testing.T) {
	tests := []struct {
		name      string
		languages []string
		query     string
		want      bool
	}{
		{"empty list supports all", nil, "go", true},
		{"listed language", []string{"go", "python"}, "python", true},
		{"unlisted language", []string{"go", "python"}, "rust", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewClient(WithLanguages(tt.languages...), WithLogger(log.Nop))
			if got := client.SupportsLanguage(tt.query); got != tt.want {
				t.Errorf("SupportsLanguage(%q) = %v, want %v", tt.query, got, tt.want)
			}
		})
	}
}

func TestClient_Close(t *testing.T) {
	client, _, _ := startTestClient(t)

	closed := make(chan struct{}, 1)
	client.OnClose(func() {
		closed <- struct{}{}
	})

	if client.State() != StateConnected {
		t.Fatalf("State() = %v, want %v", client.State(), StateConnected)
	}

	if err := client.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("OnClose handler never fired")
	}

	if client.State() != StateClosed {
		t.Errorf("State() = %v, want %v", client.State(), StateClosed)
	}

	// Requests after close fail fast.
	if _, err := client.Request(MethodNextEdits, nil, func(json.RawMessage, error) {}); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Expected ErrNotConnected after close, got %v", err)
	}

	// Double close is safe.
	if err := client.Close(); err != nil {
		t.Errorf("Second Close() error = %v", err)
	}
}

func TestClient_ID(t *testing.T) {
	a := NewClient(WithLogger(log.Nop))
	b := NewClient(WithLogger(log.Nop))

	if a.ID() == "" {
		t.Error("ID() should not be empty")
	}
	if a.ID() == b.ID() {
		t.Error("Two clients share an ID")
	}
}
