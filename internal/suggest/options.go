package suggest

import (
	"time"

	"github.com/dshills/nextedit/internal/diff"
	"github.com/dshills/nextedit/internal/event"
	"github.com/dshills/nextedit/internal/log"
)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger.
func WithLogger(logger *log.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithBus sets the event bus render and apply events publish on.
func WithBus(bus *event.Bus) Option {
	return func(e *Engine) {
		if bus != nil {
			e.bus = bus
		}
	}
}

// WithDiffProvider replaces the diff computation.
func WithDiffProvider(p diff.Provider) Option {
	return func(e *Engine) {
		if p != nil {
			e.differ = p
		}
	}
}

// WithDebounceInterval sets how long rapid same-kind triggers settle
// before one update is issued. Zero fires synchronously.
func WithDebounceInterval(d time.Duration) Option {
	return func(e *Engine) {
		e.deb = NewDebouncer(d)
	}
}

// WithEnabled sets the initial enable flag.
func WithEnabled(on bool) Option {
	return func(e *Engine) {
		e.enabled = on
	}
}

// WithEnableFunc installs the per-document enable predicate.
func WithEnableFunc(fn EnableFunc) Option {
	return func(e *Engine) {
		e.enabledFn = fn
	}
}

// WithAutoRender controls promotion-on-arrival of fresh responses.
func WithAutoRender(on bool) Option {
	return func(e *Engine) {
		e.autoRender = on
	}
}

// WithJumpHistory controls recording the origin cursor on Jump.
func WithJumpHistory(on bool) Option {
	return func(e *Engine) {
		e.jumpHistory = on
	}
}

// WithTriggerEvents sets the editor event names that request fresh
// suggestions.
func WithTriggerEvents(names ...string) Option {
	return func(e *Engine) {
		e.triggerEvents = toSet(names)
	}
}

// WithClearEvents sets the editor event names that drop all state.
func WithClearEvents(names ...string) Option {
	return func(e *Engine) {
		e.clearEvents = toSet(names)
	}
}
