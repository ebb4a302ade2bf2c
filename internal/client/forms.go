package client

import (
	"errors"
	"sync"
)

// ErrInFlight is returned when the same form is submitted again before the first submission settled.
var ErrInFlight = errors.New("form submission already in flight")

// Forms tracks in-flight form submissions of one client context.
type Forms struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewForms() *Forms {
	return &Forms{inFlight: make(map[string]struct{})}
}

// Begin marks form as submitting. The returned end func must be called once the submission settled.
func (f *Forms) Begin(form string) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, busy := f.inFlight[form]; busy {
		return nil, ErrInFlight
	}
	f.inFlight[form] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.inFlight, form)
			f.mu.Unlock()
		})
	}, nil
}

// Submitting reports whether form is in flight.
func (f *Forms) Submitting(form string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, busy := f.inFlight[form]
	return busy
}
