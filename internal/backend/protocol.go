package backend

import (
	"encoding/json"

	"github.com/dshills/nextedit/internal/protocol"
)

// Wire methods spoken between client and backend.
const (
	// MethodNextEdits requests next-edit suggestions for a document position.
	MethodNextEdits = "textDocument/nextEdits"

	// MethodDidFocus notifies the backend that a document gained focus.
	MethodDidFocus = "textDocument/didFocusDocument"

	// MethodExecCommand asks the backend to run a follow-up command.
	MethodExecCommand = "workspace/executeCommand"

	// MethodCancel asks the backend to abandon an in-flight request.
	MethodCancel = "$/cancelRequest"
)

// Request is an outgoing JSON-RPC request.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// Notification is an outgoing JSON-RPC notification (no ID, no response).
type Notification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// Response is an incoming JSON-RPC response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// incomingMessage is the decode target for anything the backend sends:
// a response carries an ID, a notification carries a method.
type incomingMessage struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// TextDocumentIdentifier identifies a text document on the wire.
type TextDocumentIdentifier struct {
	URI protocol.DocumentURI `json:"uri"`
}

// VersionedTextDocumentIdentifier identifies a specific document version.
type VersionedTextDocumentIdentifier struct {
	TextDocumentIdentifier
	Version int `json:"version"`
}

// TriggerKind classifies what caused a suggestion request.
type TriggerKind int

const (
	// TriggerAutomatic is an idle or typing-pause trigger.
	TriggerAutomatic TriggerKind = 1
	// TriggerInvoked is an explicit user action.
	TriggerInvoked TriggerKind = 2
)

// String returns a human-readable trigger kind.
func (k TriggerKind) String() string {
	switch k {
	case TriggerAutomatic:
		return "automatic"
	case TriggerInvoked:
		return "invoked"
	default:
		return "unknown"
	}
}

// NextEditsParams are the parameters of a MethodNextEdits request.
type NextEditsParams struct {
	TextDocument VersionedTextDocumentIdentifier `json:"textDocument"`
	Position     protocol.Position               `json:"position"`
	TriggerKind  TriggerKind                     `json:"triggerKind"`
}

// NextEdit is one raw proposed edit in a MethodNextEdits response.
type NextEdit struct {
	Range   protocol.Range    `json:"range"`
	NewText string            `json:"newText"`
	Command *protocol.Command `json:"command,omitempty"`
}

// NextEditsResult is the result payload of a MethodNextEdits response.
type NextEditsResult struct {
	Edits []NextEdit `json:"edits"`
}

// DidFocusParams are the parameters of a MethodDidFocus notification.
type DidFocusParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

// CancelParams are the parameters of a MethodCancel notification.
type CancelParams struct {
	ID int64 `json:"id"`
}

// ExecCommandParams are the parameters of a MethodExecCommand request.
type ExecCommandParams struct {
	Command      string                  `json:"command"`
	Arguments    []any                   `json:"arguments,omitempty"`
	TextDocument *TextDocumentIdentifier `json:"textDocument,omitempty"`
}
