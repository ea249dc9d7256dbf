package protocol

import (
	"encoding/base64"
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// wireMessage mirrors the canonical text. Pointers distinguish a missing
// key from a zero value.
type wireMessage struct {
	C *uint16 `json:"c"`
	S *uint16 `json:"s"`
	D *uint16 `json:"d"`
	L *uint16 `json:"l"`
	B *string `json:"b"`
}

// Parse decodes one canonical message text back into a Message.
// All five keys are required and l must match the decoded payload length.
func Parse(text string) (Message, error) {
	var w wireMessage
	if err := json.UnmarshalFromString(text, &w); err != nil {
		return Message{}, fmt.Errorf("protocol: parse message: %w", err)
	}
	if w.C == nil || w.S == nil || w.D == nil || w.L == nil || w.B == nil {
		return Message{}, fmt.Errorf("protocol: message %q is missing a field", text)
	}
	payload, err := base64.StdEncoding.DecodeString(*w.B)
	if err != nil {
		return Message{}, fmt.Errorf("protocol: decode payload: %w", err)
	}
	if int(*w.L) != len(payload) {
		return Message{}, fmt.Errorf("protocol: l=%d but payload has %d bytes", *w.L, len(payload))
	}
	return Message{C: *w.C, S: *w.S, D: *w.D, L: *w.L, B: payload}, nil
}
