package ble

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chaz8081/modi-ble/internal/ble/protocol"
)

// Options configures discovery and selection.
type Options struct {
	Selector    string        // name pattern; empty selects the first module found
	NameFilter  string        // scan filter, case-sensitive substring of the device name
	ScanTimeout time.Duration // discovery window per scan
}

// DefaultOptions returns the reference behavior: first "MODI" module,
// one-second scans.
func DefaultOptions() Options {
	return Options{
		NameFilter:  NameFilter,
		ScanTimeout: DefaultScanTimeout,
	}
}

// Link is the connection state machine for one MODI network module.
// Open, Send, Close and Scan are serialized internally; Receive and the
// notification callback may run concurrently with any of them.
type Link struct {
	adapter Adapter
	dir     *Directory
	opts    Options

	// op serializes the blocking operations.
	op sync.Mutex

	// mu protects the fields below. It is never held across adapter calls.
	mu    sync.Mutex
	state State
	conn  Connection
	char  Characteristic
	gen   uint64 // bumped whenever the handles are released; stale callbacks compare against it

	inbox   Queue
	dropped atomic.Uint64
}

// NewLink creates an idle link. Zero option fields take their defaults.
func NewLink(adapter Adapter, opts Options) *Link {
	if opts.NameFilter == "" {
		opts.NameFilter = NameFilter
	}
	if opts.ScanTimeout <= 0 {
		opts.ScanTimeout = DefaultScanTimeout
	}
	return &Link{
		adapter: adapter,
		dir:     NewDirectory(adapter, opts.NameFilter),
		opts:    opts,
	}
}

// State returns the current lifecycle state.
func (l *Link) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Directory returns the device directory used for selection.
func (l *Link) Directory() *Directory {
	return l.dir
}

// Dropped returns how many notifications were discarded as malformed.
func (l *Link) Dropped() uint64 {
	return l.dropped.Load()
}

// Pending returns the number of received messages not yet consumed.
func (l *Link) Pending() int {
	return l.inbox.Len()
}

// Scan repopulates the directory.
func (l *Link) Scan(ctx context.Context) ([]Device, error) {
	l.op.Lock()
	defer l.op.Unlock()
	return l.dir.Scan(ctx, l.opts.ScanTimeout)
}

// Open selects a module, connects, resolves TargetCharUUID and subscribes
// to its notifications. An empty directory is scanned once first.
//
// When the characteristic is missing or the subscription is rejected, the
// connection is kept and the link stays in Connecting or Subscribing; Close
// releases it.
func (l *Link) Open(ctx context.Context, selector string) error {
	l.op.Lock()
	defer l.op.Unlock()

	l.mu.Lock()
	if l.state != StateIdle {
		st := l.state
		l.mu.Unlock()
		return fmt.Errorf("%w (state %s)", ErrAlreadyOpen, st)
	}
	l.mu.Unlock()

	if l.dir.Len() == 0 {
		l.setState(StateScanning)
		if _, err := l.dir.Scan(ctx, l.opts.ScanTimeout); err != nil {
			l.setState(StateIdle)
			return err
		}
	}

	l.setState(StateSelecting)
	dev, ok := l.dir.Select(selector)
	if !ok {
		l.setState(StateIdle)
		return &DeviceNotFoundError{Pattern: selector}
	}

	l.setState(StateConnecting)
	slog.Info("[BLE] connecting", "name", dev.Name, "id", dev.ID)
	conn, err := l.adapter.Connect(ctx, dev.ID)
	if err != nil {
		l.setState(StateIdle)
		return fmt.Errorf("ble: open %q: %w", dev.Name, err)
	}

	l.mu.Lock()
	l.conn = conn
	gen := l.gen
	l.mu.Unlock()

	conn.OnDisconnect(func() { l.handleDisconnect(gen) })

	char, err := findCharacteristic(conn, TargetCharUUID)
	if err != nil {
		slog.Error("[BLE] target characteristic not found, connection left open", "name", dev.Name, "error", err)
		return err
	}

	if !l.advance(gen, StateSubscribing, char) {
		return ErrLinkLost
	}
	if err := char.Subscribe(func(data []byte) { l.handleNotification(gen, data) }); err != nil {
		return fmt.Errorf("%w: %w", ErrSubscriptionFailed, err)
	}
	if !l.advance(gen, StateConnected, char) {
		return ErrLinkLost
	}

	slog.Info("[BLE] connected", "name", dev.Name, "id", dev.ID)
	return nil
}

// Send writes pkt unchanged to the target characteristic and waits for the
// acknowledgement. Framing is the caller's responsibility.
func (l *Link) Send(pkt []byte) error {
	l.op.Lock()
	defer l.op.Unlock()

	l.mu.Lock()
	if l.state != StateConnected {
		l.mu.Unlock()
		return ErrNotConnected
	}
	char := l.char
	l.mu.Unlock()

	if err := char.Write(protocol.Encode(pkt)); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return nil
}

// Receive pops the oldest rendered message. It never blocks.
func (l *Link) Receive() (string, bool) {
	return l.inbox.Pop()
}

// Close unsubscribes (failure is logged and ignored), then releases the
// connection and returns the link to Idle. It also releases a connection
// kept by a failed Open.
func (l *Link) Close() error {
	l.op.Lock()
	defer l.op.Unlock()

	l.mu.Lock()
	st, conn, char := l.state, l.conn, l.char
	if conn == nil {
		l.mu.Unlock()
		return ErrNotConnected
	}
	if st == StateConnected {
		l.state = StateUnsubscribing
	}
	l.mu.Unlock()

	if st == StateConnected {
		if err := char.Unsubscribe(); err != nil {
			slog.Warn("[BLE] unsubscribe failed, disconnecting anyway", "error", err)
		}
	}

	err := conn.Disconnect()
	l.release()

	if err != nil {
		slog.Warn("[BLE] disconnect reported an error", "error", err)
	}
	if n := l.inbox.Len(); n > 0 {
		slog.Info("[BLE] closed with unread messages", "count", n)
	}
	slog.Info("[BLE] closed")
	return nil
}

func (l *Link) setState(s State) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = s
}

// advance moves to next with char recorded, unless the connection of
// generation gen has already been released.
func (l *Link) advance(gen uint64, next State, char Characteristic) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.gen != gen || l.conn == nil {
		return false
	}
	l.char = char
	l.state = next
	return true
}

// release forgets the handles and returns to Idle.
func (l *Link) release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.conn = nil
	l.char = nil
	l.gen++
	l.state = StateIdle
}

// handleDisconnect is called by the backend when the peripheral drops the
// link. Nothing is retried.
func (l *Link) handleDisconnect(gen uint64) {
	l.mu.Lock()
	current := l.gen == gen && l.conn != nil && l.state != StateUnsubscribing
	l.mu.Unlock()
	if !current {
		return
	}
	slog.Warn("[BLE] peripheral disconnected")
	l.release()
}

// handleNotification decodes one notification and queues its rendered form.
// Malformed packets are counted and dropped.
func (l *Link) handleNotification(gen uint64, data []byte) {
	msg, err := protocol.Decode(data)

	// The push happens under mu so nothing lands in the queue once
	// release has moved to the next generation.
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.gen != gen {
		return
	}
	if err != nil {
		l.dropped.Add(1)
		slog.Debug("[BLE] dropped notification", "error", err, "len", len(data))
		return
	}
	l.inbox.Push(protocol.Render(msg))
}

// findCharacteristic walks every characteristic of every service and
// returns the first whose UUID equals uuid. Services whose characteristics
// cannot be enumerated are skipped.
func findCharacteristic(conn Connection, uuid string) (Characteristic, error) {
	svcs, err := conn.Services()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCharacteristicNotFound, err)
	}
	for _, svc := range svcs {
		chars, err := svc.Characteristics()
		if err != nil {
			slog.Debug("[BLE] skipping service", "service", svc.UUID(), "error", err)
			continue
		}
		for _, ch := range chars {
			if strings.EqualFold(ch.UUID(), uuid) {
				return ch, nil
			}
		}
	}
	return nil, ErrCharacteristicNotFound
}
