package protocol

import "testing"

func drain(s *Splitter) []string {
	var out []string
	for {
		msg, ok := s.Next()
		if !ok {
			return out
		}
		out = append(out, msg)
	}
}

func TestSplitterSingleMessage(t *testing.T) {
	var s Splitter
	s.Write([]byte(`{"c":1,"s":2,"d":3,"l":0,"b":""}`))
	got := drain(&s)
	if len(got) != 1 || got[0] != `{"c":1,"s":2,"d":3,"l":0,"b":""}` {
		t.Errorf("messages = %q", got)
	}
	if s.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", s.Pending())
	}
}

func TestSplitterAcrossWrites(t *testing.T) {
	var s Splitter
	s.Write([]byte(`{"c":1,"s"`))
	if _, ok := s.Next(); ok {
		t.Fatal("Next() returned a message from a partial write")
	}
	s.Write([]byte(`:2}{"c":3`))
	s.Write([]byte(`}`))
	got := drain(&s)
	if len(got) != 2 || got[0] != `{"c":1,"s":2}` || got[1] != `{"c":3}` {
		t.Errorf("messages = %q", got)
	}
}

func TestSplitterDropsNoise(t *testing.T) {
	var s Splitter
	s.Write([]byte("garbage} more {\"c\":1}\n\n{\"c\":2}trailing"))
	got := drain(&s)
	if len(got) != 2 || got[0] != `{"c":1}` || got[1] != `{"c":2}` {
		t.Errorf("messages = %q", got)
	}
	if s.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0 after trailing noise", s.Pending())
	}
}

func TestSplitterKeepsFromLastOpenBrace(t *testing.T) {
	var s Splitter
	s.Write([]byte(`{"c":1 {"c":2`))
	if _, ok := s.Next(); ok {
		t.Fatal("Next() returned a message with no closing brace")
	}
	if s.Pending() != len(`{"c":2`) {
		t.Errorf("Pending() = %d, want %d", s.Pending(), len(`{"c":2`))
	}
	s.Write([]byte(`}`))
	msg, ok := s.Next()
	if !ok || msg != `{"c":2}` {
		t.Errorf("Next() = %q, %v", msg, ok)
	}
}
