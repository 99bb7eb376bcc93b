// Package suggest coordinates next-edit suggestions between an editor
// document host and language-analysis backends: request issuance and
// cancellation, pending/active storage with read-time staleness
// filtering, promotion to the rendered set, and application with cursor
// placement and follow-up backend commands.
package suggest

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/dshills/nextedit/internal/backend"
	"github.com/dshills/nextedit/internal/diff"
	"github.com/dshills/nextedit/internal/document"
	"github.com/dshills/nextedit/internal/event"
	"github.com/dshills/nextedit/internal/log"
	"github.com/dshills/nextedit/internal/protocol"
)

// Connection is the slice of a backend connection the engine consumes.
// *backend.Client satisfies it.
type Connection interface {
	ID() string
	SupportsLanguage(languageID string) bool
	Request(method string, params any, done backend.ResponseFunc) (backend.RequestHandle, error)
	CancelRequest(handle backend.RequestHandle)
	Notify(method string, params any) error
	ExecCommand(ctx context.Context, command protocol.Command, doc protocol.DocumentURI) error
}

// EnableFunc decides enablement for one document.
type EnableFunc func(uri protocol.DocumentURI, languageID string) bool

// UpdateOptions shape one suggestion refresh.
type UpdateOptions struct {
	// Trigger tells the backend what prompted the request. Zero means
	// TriggerInvoked.
	Trigger backend.TriggerKind

	// ForceRender promotes the response for its document as soon as it
	// arrives, regardless of the auto-render setting.
	ForceRender bool
}

// applyCommandTimeout bounds each follow-up command run during apply.
const applyCommandTimeout = 10 * time.Second

// Engine is the suggestion lifecycle coordinator.
//
// Public methods may be called from any goroutine. Deferred work runs in
// order on a single internal loop. Events are published synchronously
// from inside the engine; subscribers must not call back into it.
type Engine struct {
	host   *document.Host
	store  *Store
	coord  *Coordinator
	focus  *FocusTracker
	loop   *Loop
	deb    *Debouncer
	bus    *event.Bus
	logger *log.Logger
	differ diff.Provider

	mu            sync.Mutex
	conns         map[string]Connection
	enabled       bool
	enabledFn     EnableFunc
	autoRender    bool
	jumpHistory   bool
	triggerEvents map[string]struct{}
	clearEvents   map[string]struct{}
	closed        bool
}

// NewEngine creates an engine over the given document host and starts
// its task loop.
func NewEngine(host *document.Host, opts ...Option) *Engine {
	e := &Engine{
		host:          host,
		store:         NewStore(),
		coord:         NewCoordinator(),
		focus:         NewFocusTracker(),
		bus:           event.NewBus(),
		logger:        log.Nop,
		differ:        diff.Compute,
		conns:         make(map[string]Connection),
		enabled:       true,
		autoRender:    true,
		jumpHistory:   true,
		triggerEvents: make(map[string]struct{}),
		clearEvents:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.deb == nil {
		e.deb = NewDebouncer(0)
	}
	e.loop = NewLoop()
	return e
}

// Bus returns the engine's event bus for render/applied subscriptions.
func (e *Engine) Bus() *event.Bus {
	return e.bus
}

// AttachConnection registers a backend connection. A qualifying current
// document is focus-notified right away.
func (e *Engine) AttachConnection(conn Connection) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.conns[conn.ID()] = conn
	e.notifyFocusLocked()
	e.mu.Unlock()
}

// DetachConnection forgets a connection: its in-flight entry and focus
// memory are dropped. Wire it to the connection's close handler.
func (e *Engine) DetachConnection(connID string) {
	e.mu.Lock()
	delete(e.conns, connID)
	e.mu.Unlock()

	e.coord.Remove(connID)
	e.focus.Forget(connID)
}

// Enable turns the feature on.
func (e *Engine) Enable() {
	e.mu.Lock()
	e.enabled = true
	e.mu.Unlock()
}

// Disable turns the feature off and drops all suggestion state.
func (e *Engine) Disable() {
	e.mu.Lock()
	e.enabled = false
	e.mu.Unlock()
	e.Clear()
}

// Toggle flips the enable flag and returns the new state. Turning the
// feature off drops all suggestion state.
func (e *Engine) Toggle() bool {
	e.mu.Lock()
	e.enabled = !e.enabled
	on := e.enabled
	e.mu.Unlock()

	if !on {
		e.Clear()
	}
	return on
}

// EnableFunc installs a per-document predicate refining the enable flag
// and turns the feature on. A nil fn removes the predicate.
func (e *Engine) EnableFunc(fn EnableFunc) {
	e.mu.Lock()
	e.enabledFn = fn
	if fn != nil {
		e.enabled = true
	}
	e.mu.Unlock()
}

// Enabled reports the global enable flag.
func (e *Engine) Enabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enabled
}

// SetAutoRender controls promotion-on-arrival for future responses.
func (e *Engine) SetAutoRender(on bool) {
	e.mu.Lock()
	e.autoRender = on
	e.mu.Unlock()
}

// SetJumpHistory controls whether Jump records the origin cursor.
func (e *Engine) SetJumpHistory(on bool) {
	e.mu.Lock()
	e.jumpHistory = on
	e.mu.Unlock()
}

// SetDebounceInterval changes how long rapid triggers settle.
func (e *Engine) SetDebounceInterval(d time.Duration) {
	e.deb.SetInterval(d)
}

// SetEventRouting replaces the trigger and clear event name sets.
func (e *Engine) SetEventRouting(trigger, clear []string) {
	e.mu.Lock()
	e.triggerEvents = toSet(trigger)
	e.clearEvents = toSet(clear)
	e.mu.Unlock()
}

// enabledForLocked applies the flag and, when set, the predicate.
func (e *Engine) enabledForLocked(uri protocol.DocumentURI) bool {
	if !e.enabled {
		return false
	}
	if e.enabledFn != nil {
		lang, _ := e.host.LanguageID(uri)
		return e.enabledFn(uri, lang)
	}
	return true
}

// isEligibleLocked is the read-time filter for store queries: document
// open and loaded, version unchanged, feature enabled for the document,
// diff non-empty. Callers hold e.mu.
func (e *Engine) isEligibleLocked(rec *EditRecord) bool {
	if !e.host.Exists(rec.Document) || !e.host.IsLoaded(rec.Document) {
		return false
	}
	if v, ok := e.host.Version(rec.Document); !ok || v != rec.ExpectedVersion {
		return false
	}
	if !e.enabledForLocked(rec.Document) {
		return false
	}
	return !rec.IsEmpty()
}

// connsForLocked returns attached connections serving languageID, in
// stable ID order.
func (e *Engine) connsForLocked(languageID string) []Connection {
	ids := make([]string, 0, len(e.conns))
	for id, conn := range e.conns {
		if conn.SupportsLanguage(languageID) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	out := make([]Connection, len(ids))
	for i, id := range ids {
		out[i] = e.conns[id]
	}
	return out
}

// Update requests fresh suggestions for the current document. All prior
// suggestion state is dropped first, whether or not a request goes out.
// The focused document is re-announced to its connections on the way, so
// debounced focus transitions need no separate NotifyFocus call.
func (e *Engine) Update(opts UpdateOptions) {
	e.loop.Post(func() { e.update(opts) })
}

func (e *Engine) update(opts UpdateOptions) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}

	e.clearLocked()

	uri := e.host.Current()
	if uri == "" {
		return
	}
	if !e.enabledForLocked(uri) {
		return
	}
	if !e.host.IsLoaded(uri) {
		return
	}

	e.notifyFocusLocked()

	version, ok := e.host.Version(uri)
	if !ok {
		return
	}

	lang, _ := e.host.LanguageID(uri)
	conns := e.connsForLocked(lang)
	if len(conns) == 0 {
		return
	}

	kind := opts.Trigger
	if kind == 0 {
		kind = backend.TriggerInvoked
	}
	force := opts.ForceRender || e.autoRender

	var pos protocol.Position
	if cur := e.host.Cursor(); cur.URI == uri {
		pos = cur.Pos
	}

	params := backend.NextEditsParams{
		TextDocument: backend.VersionedTextDocumentIdentifier{
			TextDocumentIdentifier: backend.TextDocumentIdentifier{URI: uri},
			Version:                version,
		},
		Position:    pos,
		TriggerKind: kind,
	}

	for _, conn := range conns {
		conn := conn
		seq := e.coord.Next()
		handle, err := conn.Request(backend.MethodNextEdits, params, func(result json.RawMessage, err error) {
			e.loop.Post(func() {
				e.handleResponse(conn, seq, uri, version, force, result, err)
			})
		})
		if err != nil {
			e.logger.Debug("request on %s failed: %v", conn.ID(), err)
			continue
		}
		e.coord.Track(conn, handle, seq)
		e.logger.Debug("requested edits for %s v%d on %s", uri, version, conn.ID())
	}
}

// handleResponse runs on the loop once per completed request. Stale
// responses, whose sequence the coordinator no longer tracks, return
// without touching anything.
func (e *Engine) handleResponse(conn Connection, seq uint64, uri protocol.DocumentURI, version int, force bool, result json.RawMessage, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}

	if !e.coord.Complete(conn.ID(), seq) {
		e.logger.Debug("stale response from %s dropped", conn.ID())
		return
	}
	if err != nil {
		e.logger.Debug("suggestion request on %s failed: %v", conn.ID(), err)
		return
	}

	var res backend.NextEditsResult
	if len(result) > 0 {
		if uerr := json.Unmarshal(result, &res); uerr != nil {
			e.logger.Debug("malformed response from %s: %v", conn.ID(), uerr)
			return
		}
	}

	content, ok := e.host.Content(uri)
	if !ok {
		return
	}
	if v, vok := e.host.Version(uri); !vok || v != version {
		e.logger.Debug("%s moved past v%d, response dropped", uri, version)
		return
	}

	recs := make([]*EditRecord, 0, len(res.Edits))
	for _, raw := range res.Edits {
		rec := NewEditRecord(uri, version, RawEdit{
			Range:   raw.Range,
			NewText: raw.NewText,
			Command: raw.Command,
		}, content, e.differ)
		if !rec.IsValid() || !e.isEligibleLocked(rec) {
			continue
		}
		recs = append(recs, rec)
	}
	e.store.ReplacePending(recs)
	e.logger.Debug("pending replaced: %d edits for %s v%d", len(recs), uri, version)

	if force {
		e.promoteLocked(uri)
	}
}

// Promote moves the current document's pending records to active.
// Returns whether active changed; a render signal is published only then.
func (e *Engine) Promote() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}

	uri := e.host.Current()
	if uri == "" {
		return false
	}
	return e.promoteLocked(uri)
}

func (e *Engine) promoteLocked(uri protocol.DocumentURI) bool {
	if !e.store.Promote(uri, e.isEligibleLocked) {
		return false
	}
	e.bus.Publish(event.TopicRenderUpdated, event.RenderUpdated{
		Document:   uri,
		HaveActive: true,
	})
	return true
}

// Clear drops all suggestion state: in-flight requests are cancelled,
// both collections emptied, and a render-nothing signal published.
func (e *Engine) Clear() {
	e.loop.Post(func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.closed {
			return
		}
		e.clearLocked()
	})
}

func (e *Engine) clearLocked() {
	e.coord.CancelAll()
	e.store.Clear()
	e.bus.Publish(event.TopicRenderUpdated, event.RenderUpdated{HaveActive: false})
}

// DropDocument discards one document's records from both collections,
// leaving other documents' suggestions alone. Embedders call it when a
// document closes. In-flight requests are not cancelled; a response for
// a closed document fails eligibility on arrival.
func (e *Engine) DropDocument(uri protocol.DocumentURI) {
	e.loop.Post(func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.closed {
			return
		}
		if e.store.RemoveDocument(uri) {
			e.bus.Publish(event.TopicRenderUpdated, event.RenderUpdated{
				Document:   uri,
				HaveActive: false,
			})
		}
	})
}

// Have reports whether eligible pending edits exist for the current
// document.
func (e *Engine) Have() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	uri := e.host.Current()
	if uri == "" {
		return false
	}
	return len(e.store.Query(SourcePending, uri, e.isEligibleLocked)) > 0
}

// HaveRendered reports whether eligible active edits exist for the
// current document.
func (e *Engine) HaveRendered() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	uri := e.host.Current()
	if uri == "" {
		return false
	}
	return len(e.store.Query(SourceActive, uri, e.isEligibleLocked)) > 0
}

// Rendered returns the current document's eligible active records, in
// promotion order. Renderers pull these after a render signal. Records
// are immutable; callers must not modify them.
func (e *Engine) Rendered() []*EditRecord {
	e.mu.Lock()
	defer e.mu.Unlock()

	uri := e.host.Current()
	if uri == "" {
		return nil
	}
	return e.store.Query(SourceActive, uri, e.isEligibleLocked)
}

// Jump moves the cursor to the first hunk of the first active edit for
// the current document. Returns false, leaving the cursor alone, when
// disabled, nothing is active, the diff has no hunks, or the cursor is
// already there. The move itself is deferred to the loop.
func (e *Engine) Jump() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}

	uri := e.host.Current()
	if uri == "" {
		return false
	}
	if !e.enabledForLocked(uri) {
		return false
	}

	recs := e.store.Query(SourceActive, uri, e.isEligibleLocked)
	if len(recs) == 0 {
		return false
	}

	first := recs[0]
	if len(first.Diff.Hunks) == 0 {
		return false
	}

	target, err := e.host.ClampPosition(uri, first.Diff.Hunks[0].Pos)
	if err != nil {
		return false
	}

	origin := e.host.Cursor()
	if origin.URI == uri && origin.Pos == target {
		return false
	}

	if e.jumpHistory {
		e.host.PushJump(origin)
	}
	e.loop.Post(func() {
		_ = e.host.SetCursor(document.Cursor{URI: uri, Pos: target})
	})
	return true
}

// Apply accepts the current document's active edits. The mutation, the
// follow-up commands, the completion event, and the cursor move run as
// one deferred unit; state is cleared before Apply returns true.
func (e *Engine) Apply() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}

	uri := e.host.Current()
	if uri == "" {
		return false
	}

	if !e.enabledForLocked(uri) {
		e.clearLocked()
		return false
	}

	recs := e.store.Query(SourceActive, uri, e.isEligibleLocked)
	if len(recs) == 0 {
		return false
	}

	lang, _ := e.host.LanguageID(uri)
	conns := e.connsForLocked(lang)
	if len(conns) == 0 {
		return false
	}
	conn := conns[0]

	expected := recs[0].ExpectedVersion
	edits := make([]protocol.TextEdit, 0, len(recs))
	var commands []protocol.Command
	for _, rec := range recs {
		edits = append(edits, protocol.TextEdit{Range: rec.Range, NewText: rec.NewText})
		if rec.Command != nil {
			commands = append(commands, *rec.Command)
		}
	}
	last := recs[len(recs)-1]
	target := protocol.EndOfInsertion(last.Range.Start, last.NewText)

	e.loop.Post(func() {
		e.applyUnit(conn, uri, expected, edits, commands, target)
	})

	e.clearLocked()
	return true
}

// applyUnit is the one deferred apply step: document mutation, follow-up
// commands, completion event, then the cursor jump.
func (e *Engine) applyUnit(conn Connection, uri protocol.DocumentURI, expected int, edits []protocol.TextEdit, commands []protocol.Command, target protocol.Position) {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return
	}

	if v, ok := e.host.Version(uri); !ok || v != expected {
		e.logger.Debug("apply skipped: %s moved past v%d", uri, expected)
		return
	}

	version, err := e.host.ApplyEdits(uri, edits)
	if err != nil {
		e.logger.Warn("apply failed on %s: %v", uri, err)
		return
	}
	e.logger.Info("applied %d edits to %s, now v%d", len(edits), uri, version)

	for _, cmd := range commands {
		ctx, cancel := context.WithTimeout(context.Background(), applyCommandTimeout)
		if err := conn.ExecCommand(ctx, cmd, uri); err != nil {
			e.logger.Debug("follow-up command %q failed: %v", cmd.Command, err)
		}
		cancel()
	}

	e.bus.Publish(event.TopicEditApplied, event.EditApplied{
		ConnectionID: conn.ID(),
		Document:     uri,
		Version:      version,
		AppliedAt:    time.Now(),
	})

	e.loop.Post(func() {
		if pos, err := e.host.ClampPosition(uri, target); err == nil {
			_ = e.host.SetCursor(document.Cursor{URI: uri, Pos: pos})
		}
	})
}

// NotifyFocus tells every connection serving the current document that
// it gained focus, once per (connection, document) until focus moves to
// a different document. Scratch buffers are skipped.
func (e *Engine) NotifyFocus() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.notifyFocusLocked()
}

func (e *Engine) notifyFocusLocked() {
	uri := e.host.Current()
	if uri == "" {
		return
	}
	if !e.enabledForLocked(uri) {
		return
	}
	if kind, ok := e.host.Kind(uri); !ok || kind != document.KindFile {
		return
	}

	lang, _ := e.host.LanguageID(uri)
	for _, conn := range e.connsForLocked(lang) {
		if !e.focus.ShouldNotify(conn.ID(), uri) {
			continue
		}
		err := conn.Notify(backend.MethodDidFocus, backend.DidFocusParams{
			TextDocument: backend.TextDocumentIdentifier{URI: uri},
		})
		if err != nil {
			e.logger.Debug("focus notify on %s failed: %v", conn.ID(), err)
			continue
		}
		e.focus.MarkNotified(conn.ID(), uri)
	}
}

// HandleEvent routes a raw editor event name: names in the clear set
// drop all state immediately, names in the trigger set request fresh
// suggestions through the debouncer.
func (e *Engine) HandleEvent(name string) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	_, isClear := e.clearEvents[name]
	_, isTrigger := e.triggerEvents[name]
	e.mu.Unlock()

	if isClear {
		e.Clear()
		return
	}
	if isTrigger {
		e.deb.Trigger(backend.TriggerAutomatic, func() {
			e.Update(UpdateOptions{Trigger: backend.TriggerAutomatic})
		})
	}
}

// Sync waits for all deferred work queued so far. Intended for tests
// and for embedders that need a settled view.
func (e *Engine) Sync() {
	e.loop.Sync()
}

// Close stops the engine: pending triggers are dropped, in-flight
// requests cancelled, and the loop drained.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.mu.Unlock()

	e.deb.Stop()
	e.coord.CancelAll()
	e.loop.Close()
}

func toSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}
