// Package protocol implements the MODI BLE message framing: an 8-byte
// little-endian header (command, source, destination, length) followed by
// the payload, and the canonical text form handed to consumers.
package protocol

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// HeaderSize is the fixed header length of every inbound packet.
const HeaderSize = 8

// ErrMalformedPacket is returned when a packet is shorter than its header
// or declares more payload than it carries.
var ErrMalformedPacket = errors.New("protocol: malformed packet")

// Message is a decoded MODI packet.
type Message struct {
	C uint16 // command / class
	S uint16 // source id
	D uint16 // destination id
	L uint16 // payload length
	B []byte // payload
}

// Decode reads the header fields at offsets 0, 2, 4 and 6 and copies
// exactly L payload bytes starting at offset 8. Bytes past 8+L are ignored.
func Decode(raw []byte) (Message, error) {
	if len(raw) < HeaderSize {
		return Message{}, fmt.Errorf("%w: %d bytes, header needs %d", ErrMalformedPacket, len(raw), HeaderSize)
	}
	msg := Message{
		C: binary.LittleEndian.Uint16(raw[0:2]),
		S: binary.LittleEndian.Uint16(raw[2:4]),
		D: binary.LittleEndian.Uint16(raw[4:6]),
		L: binary.LittleEndian.Uint16(raw[6:8]),
	}
	end := HeaderSize + int(msg.L)
	if end > len(raw) {
		return Message{}, fmt.Errorf("%w: length %d exceeds remaining %d bytes", ErrMalformedPacket, msg.L, len(raw)-HeaderSize)
	}
	msg.B = make([]byte, msg.L)
	copy(msg.B, raw[HeaderSize:end])
	return msg, nil
}

// Render returns the canonical text form of msg:
//
//	{"c":1,"s":2,"d":3,"l":2,"b":"qrs="}
//
// Key order and spelling are fixed; consumers compare it byte for byte.
func Render(msg Message) string {
	var sb strings.Builder
	sb.Grow(48 + base64.StdEncoding.EncodedLen(len(msg.B)))
	sb.WriteString(`{"c":`)
	sb.WriteString(strconv.FormatUint(uint64(msg.C), 10))
	sb.WriteString(`,"s":`)
	sb.WriteString(strconv.FormatUint(uint64(msg.S), 10))
	sb.WriteString(`,"d":`)
	sb.WriteString(strconv.FormatUint(uint64(msg.D), 10))
	sb.WriteString(`,"l":`)
	sb.WriteString(strconv.FormatUint(uint64(msg.L), 10))
	sb.WriteString(`,"b":"`)
	sb.WriteString(base64.StdEncoding.EncodeToString(msg.B))
	sb.WriteString(`"}`)
	return sb.String()
}

// String implements fmt.Stringer using the canonical text form.
func (m Message) String() string {
	return Render(m)
}

// Encode prepares an outbound payload. Outbound framing belongs to the
// caller, so the payload is returned unchanged; see Frame for building one.
func Encode(payload []byte) []byte {
	return payload
}

// Frame builds the wire bytes for msg: header followed by B.
// The length field is taken from len(msg.B), not msg.L.
func Frame(msg Message) ([]byte, error) {
	if len(msg.B) > 0xFFFF {
		return nil, fmt.Errorf("protocol: payload of %d bytes does not fit a 16-bit length", len(msg.B))
	}
	buf := make([]byte, HeaderSize+len(msg.B))
	binary.LittleEndian.PutUint16(buf[0:2], msg.C)
	binary.LittleEndian.PutUint16(buf[2:4], msg.S)
	binary.LittleEndian.PutUint16(buf[4:6], msg.D)
	binary.LittleEndian.PutUint16(buf[6:8], uint16(len(msg.B)))
	copy(buf[HeaderSize:], msg.B)
	return buf, nil
}
