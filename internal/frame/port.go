package frame

import (
	"errors"
	"sync"
)

// Port receives frames from a node. Emit is called from the node's update
// path and must not block for long.
type Port interface {
	Emit(Frame) error
}

// PortFunc adapts a function to Port.
type PortFunc func(Frame) error

// Emit calls f.
func (f PortFunc) Emit(fr Frame) error {
	return f(fr)
}

// Discard drops every frame.
var Discard Port = PortFunc(func(Frame) error { return nil })

type multi []Port

// Multi returns a port that emits to every port in order. All ports are
// attempted and their errors are joined.
func Multi(ports ...Port) Port {
	return multi(ports)
}

func (m multi) Emit(f Frame) error {
	var errs []error
	for _, p := range m {
		if err := p.Emit(f); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Latest remembers the most recently emitted frame.
type Latest struct {
	mu    sync.RWMutex
	frame Frame
	ok    bool
}

// Emit stores f.
func (l *Latest) Emit(f Frame) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.frame, l.ok = f, true
	return nil
}

// Get returns the last frame, if any.
func (l *Latest) Get() (Frame, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.frame, l.ok
}
