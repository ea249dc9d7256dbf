package protocol

import (
	"bytes"
	"testing"
)

func TestParseCanonical(t *testing.T) {
	msg, err := Parse(`{"c":1,"s":2,"d":3,"l":2,"b":"qrs="}`)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if msg.C != 1 || msg.S != 2 || msg.D != 3 || msg.L != 2 {
		t.Errorf("Parse() = %+v", msg)
	}
	if !bytes.Equal(msg.B, []byte{0xAA, 0xBB}) {
		t.Errorf("B = %x, want aabb", msg.B)
	}
}

func TestParseRenderRoundTrip(t *testing.T) {
	in := Message{C: 0x1F, S: 0x0ABC, D: 0xFFF, L: 5, B: []byte("hello")}
	out, err := Parse(Render(in))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if out.C != in.C || out.S != in.S || out.D != in.D || out.L != in.L || !bytes.Equal(out.B, in.B) {
		t.Errorf("round trip = %+v, want %+v", out, in)
	}
}

func TestParseAcceptsWhitespaceAndKeyOrder(t *testing.T) {
	msg, err := Parse(`{ "b": "", "l": 0, "d": 7, "s": 8, "c": 9 }`)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if msg.C != 9 || msg.S != 8 || msg.D != 7 {
		t.Errorf("Parse() = %+v", msg)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"not json", `{c:1}`},
		{"missing key", `{"c":1,"s":2,"d":3,"b":""}`},
		{"bad base64", `{"c":1,"s":2,"d":3,"l":1,"b":"***"}`},
		{"length mismatch", `{"c":1,"s":2,"d":3,"l":3,"b":"qrs="}`},
		{"overflow", `{"c":70000,"s":2,"d":3,"l":0,"b":""}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(tt.text); err == nil {
				t.Errorf("Parse(%s) should fail", tt.text)
			}
		})
	}
}
