package ble

import "context"

// Session is the caller-facing surface: list modules, open one, exchange
// messages, close. The selector is fixed when the session is created.
type Session struct {
	link     *Link
	selector string
}

// NewSession creates a session over adapter. Nothing touches the radio
// until ListDevices or Open is called.
func NewSession(adapter Adapter, opts Options) *Session {
	return &Session{
		link:     NewLink(adapter, opts),
		selector: opts.Selector,
	}
}

// ListDevices rescans and returns the uppercased names of the modules found,
// in discovery order.
func (s *Session) ListDevices(ctx context.Context) ([]string, error) {
	if _, err := s.link.Scan(ctx); err != nil {
		return nil, err
	}
	return s.link.Directory().Names(), nil
}

// Open connects to the module chosen by the session selector.
func (s *Session) Open(ctx context.Context) error {
	return s.link.Open(ctx, s.selector)
}

// Send writes a raw packet. The payload is not framed. Sending on a link
// that is not connected fails with ErrNotConnected, even when pkt is empty.
func (s *Session) Send(pkt []byte) error {
	if s.link.State() != StateConnected {
		return ErrNotConnected
	}
	if len(pkt) == 0 {
		return ErrEmptyPayload
	}
	return s.link.Send(pkt)
}

// Receive returns the oldest received message in canonical text form,
// or false when none is waiting.
func (s *Session) Receive() (string, bool) {
	return s.link.Receive()
}

// Close tears the connection down.
func (s *Session) Close() error {
	return s.link.Close()
}

// State returns the link state.
func (s *Session) State() State {
	return s.link.State()
}

// Dropped returns the number of malformed notifications discarded so far.
func (s *Session) Dropped() uint64 {
	return s.link.Dropped()
}

// Selector returns the name pattern used by Open.
func (s *Session) Selector() string {
	return s.selector
}
