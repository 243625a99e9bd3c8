package chatsocket

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Frame type constants. These correspond to the "type" field in wire frames.
const (
	FrameTypeJoin    = "join"    // A participant joined; data is the username
	FrameTypeLeave   = "leave"   // A participant left; data is the username
	FrameTypeMessage = "message" // A chat message was posted
)

// Frame represents an inbound WebSocket frame.
type Frame struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

// wireFrame keeps the payload raw so non-string data doesn't fail decoding.
type wireFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// DecodeFrame parses a JSON text frame. A string "data" field is unquoted;
// any other JSON value is kept as its compact JSON text.
//
// Only text that is not JSON at all is malformed. Valid JSON of another
// shape, such as a bare string or a non-string "type", decodes to the zero
// Frame, which matches no frame type.
func DecodeFrame(data []byte) (Frame, error) {
	var wire wireFrame
	if err := json.Unmarshal(data, &wire); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return Frame{}, nil
		}
		return Frame{}, fmt.Errorf("%w: %w", ErrMalformedFrame, err)
	}

	frame := Frame{Type: wire.Type}

	raw := bytes.TrimSpace(wire.Data)
	switch {
	case len(raw) == 0 || bytes.Equal(raw, []byte("null")):
	case raw[0] == '"':
		if err := json.Unmarshal(raw, &frame.Data); err != nil {
			return Frame{}, fmt.Errorf("%w: %w", ErrMalformedFrame, err)
		}
	default:
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return Frame{}, fmt.Errorf("%w: %w", ErrMalformedFrame, err)
		}
		frame.Data = buf.String()
	}

	return frame, nil
}
