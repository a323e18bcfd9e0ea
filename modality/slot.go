// Package modality holds optional pipeline components. A Slot is either
// Loaded with a model or Unavailable with the reason it could not be loaded;
// callers ask for the model through Model and branch on the ok flag.
package modality

import "errors"

var errUnset = errors.New("modality not initialised")

type Slot[T any] struct {
	model  T
	loaded bool
	reason error
}

func Loaded[T any](m T) Slot[T] {
	return Slot[T]{model: m, loaded: true}
}

func Unavailable[T any](reason error) Slot[T] {
	if reason == nil {
		reason = errUnset
	}
	return Slot[T]{reason: reason}
}

// Model returns the loaded model, or ok=false for an unavailable slot.
// The zero Slot is unavailable.
func (s Slot[T]) Model() (m T, ok bool) {
	return s.model, s.loaded
}

func (s Slot[T]) Available() bool { return s.loaded }

// Reason reports why the slot is unavailable; nil when loaded.
func (s Slot[T]) Reason() error {
	if s.loaded {
		return nil
	}
	if s.reason == nil {
		return errUnset
	}
	return s.reason
}

// Status is the human readable state written to run summaries.
func (s Slot[T]) Status() string {
	if s.loaded {
		return "loaded"
	}
	return "unavailable: " + s.Reason().Error()
}
