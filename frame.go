package libcable

import (
	"encoding/json"
	"fmt"
)

type FrameType string

const (
	FrameWelcome             FrameType = "welcome"
	FramePing                FrameType = "ping"
	FrameDisconnect          FrameType = "disconnect"
	FrameConfirmSubscription FrameType = "confirm_subscription"
	FrameRejectSubscription  FrameType = "reject_subscription"
	// FrameData is never on the wire: frames without a recognized type carry channel data.
	FrameData FrameType = ""
)

// Frame is an inbound server frame.
type Frame struct {
	Type       FrameType       `json:"type,omitempty"`
	Identifier string          `json:"identifier,omitempty"`
	Message    json.RawMessage `json:"message,omitempty"`
	Reason     string          `json:"reason,omitempty"`
	Reconnect  *bool           `json:"reconnect,omitempty"`
}

func (f Frame) String() string {
	return fmt.Sprintf("Frame{type=%q,identifier=%s,message=%s}", f.Type, f.Identifier, f.Message)
}

// known reports whether the frame is one the consumer acts on.
func (f Frame) known() bool {
	switch f.Type {
	case FrameWelcome, FramePing, FrameDisconnect:
		return true
	case FrameConfirmSubscription, FrameRejectSubscription:
		return f.Identifier != ""
	case FrameData:
		return f.Identifier != "" && f.Message != nil
	default:
		return false
	}
}

// DecodeFrame parses text into a Frame. Errors wrap ErrDecode.
func DecodeFrame(codec Codec, text string) (Frame, error) {
	var f Frame
	if err := codec.Unmarshal([]byte(text), &f); err != nil {
		return Frame{}, err
	}
	return f, nil
}
