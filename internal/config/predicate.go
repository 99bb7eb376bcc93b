package config

import (
	"fmt"
	"sync"

	lua "github.com/yuin/gopher-lua"
)

// DocumentInfo is what an enablement expression sees as its `doc` table.
type DocumentInfo struct {
	URI      string
	Path     string
	Language string
	Kind     string
}

// Predicate is a compiled per-document enablement expression.
//
// The underlying Lua state is not goroutine-safe; the mutex serializes
// evaluations. Only the base, string, math, and table libraries are
// opened, so expressions cannot touch the file system or the OS.
type Predicate struct {
	mu     sync.Mutex
	l      *lua.LState
	fn     *lua.LFunction
	expr   string
	closed bool
}

// CompilePredicate compiles a Lua expression such as
//
//	doc.language == "go" and doc.kind == "file"
//
// into a predicate. The expression must evaluate to a Lua value; its
// truthiness decides enablement.
func CompilePredicate(expr string) (*Predicate, error) {
	l := lua.NewState(lua.Options{SkipOpenLibs: true})
	lua.OpenBase(l)
	lua.OpenTable(l)
	lua.OpenString(l)
	lua.OpenMath(l)

	code := fmt.Sprintf("return function(doc) return (%s) end", expr)
	if err := l.DoString(code); err != nil {
		l.Close()
		return nil, fmt.Errorf("compiling enablement expression: %w", err)
	}

	fn, ok := l.Get(-1).(*lua.LFunction)
	if !ok {
		l.Close()
		return nil, fmt.Errorf("compiling enablement expression: not a function")
	}
	l.Pop(1)

	return &Predicate{l: l, fn: fn, expr: expr}, nil
}

// Expr returns the source expression.
func (p *Predicate) Expr() string {
	return p.expr
}

// Allow evaluates the expression for one document.
func (p *Predicate) Allow(doc DocumentInfo) (allowed bool, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return false, ErrPredicateClosed
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()

	tbl := p.l.NewTable()
	tbl.RawSetString("uri", lua.LString(doc.URI))
	tbl.RawSetString("path", lua.LString(doc.Path))
	tbl.RawSetString("language", lua.LString(doc.Language))
	tbl.RawSetString("kind", lua.LString(doc.Kind))

	p.l.Push(p.fn)
	p.l.Push(tbl)
	if err := p.l.PCall(1, 1, nil); err != nil {
		return false, fmt.Errorf("evaluating enablement expression: %w", err)
	}

	ret := p.l.Get(-1)
	p.l.Pop(1)
	return lua.LVAsBool(ret), nil
}

// Close releases the Lua state. Further Allow calls fail.
func (p *Predicate) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.l.Close()
	p.closed = true
	return nil
}
