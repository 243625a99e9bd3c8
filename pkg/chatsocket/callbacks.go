package chatsocket

import (
	"slices"
	"sync"
)

// Callback is a listener record: a handler registered under a caller-chosen ID.
// IDs need not be unique; removal drops every record sharing the ID.
type Callback[F any] struct {
	ID string
	F  F
}

// JoinCallback is notified with the username of a participant that joined.
type JoinCallback = Callback[func(username string)]

// LeaveCallback is notified with the username of a participant that left.
type LeaveCallback = Callback[func(username string)]

// MessageCallback is the listener shape for new chat messages.
type MessageCallback = Callback[func(username, message string)]

// callbackList is an ordered, mutex-guarded sequence of listener records.
// Insertion order is dispatch order.
type callbackList[F any] struct {
	mu        sync.RWMutex
	callbacks []Callback[F]
}

func (l *callbackList[F]) add(cb Callback[F]) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.callbacks = append(l.callbacks, cb)
	return len(l.callbacks)
}

// remove drops every record with the given id and returns how many went.
func (l *callbackList[F]) remove(id string) (removed, remaining int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	before := len(l.callbacks)
	kept := make([]Callback[F], 0, before)
	for _, cb := range l.callbacks {
		if cb.ID != id {
			kept = append(kept, cb)
		}
	}
	l.callbacks = kept

	return before - len(kept), len(kept)
}

// snapshot returns a copy that is safe to iterate while the list changes.
func (l *callbackList[F]) snapshot() []Callback[F] {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return slices.Clone(l.callbacks)
}

func (l *callbackList[F]) clear() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.callbacks = nil
}
