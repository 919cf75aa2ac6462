// Package models defines the wire frames and data records shared across the client.
package models

import (
	"encoding/json"
)

// FrameType indicates which kind of payload lives inside a Frame.
type FrameType string

const (
	FramePost           FrameType = "post"
	FrameComment        FrameType = "comment"
	FramePrivateMessage FrameType = "private_message"
	FrameUserStatus     FrameType = "user_status"
	FrameError          FrameType = "error"

	// Outbound only.
	FrameRequestUserStatus FrameType = "request_user_status"
)

// Frame is one discrete JSON message exchanged over the channel.
// Frames are immutable once received; handlers only read them.
type Frame struct {
	Type FrameType       `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewFrame marshals payload into a Frame of the given type.
func NewFrame(t FrameType, payload any) (Frame, error) {
	if payload == nil {
		return Frame{Type: t}, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Type: t, Data: data}, nil
}

// ErrorPayload is the data of an inbound "error" frame. The server sends
// Message = "Unauthorized" before closing a connection whose session
// credential is no longer valid.
type ErrorPayload struct {
	Message string `json:"message"`
}
