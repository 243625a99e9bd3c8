package chatsocket

import "errors"

var (
	// ErrAlreadyConnected is returned by Connect when a connection is open.
	ErrAlreadyConnected = errors.New("event socket is already connected")

	// ErrNotConnected is returned by Send when no connection is open.
	ErrNotConnected = errors.New("event socket is not connected")

	// ErrMalformedFrame wraps decode failures of inbound frames.
	ErrMalformedFrame = errors.New("malformed frame")

	// ErrHandlerPanic is reported when a listener panics during dispatch.
	ErrHandlerPanic = errors.New("listener panicked")
)
