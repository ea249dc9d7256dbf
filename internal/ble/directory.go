package ble

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// DefaultScanTimeout is the discovery window used when none is configured.
const DefaultScanTimeout = time.Second

// Directory holds the peripherals recorded by the most recent scan.
// Its contents are replaced on every scan.
type Directory struct {
	adapter Adapter
	filter  string

	mu      sync.Mutex
	devices []Device
}

// NewDirectory creates a directory that records peripherals whose name
// contains filter. An empty filter falls back to NameFilter.
func NewDirectory(adapter Adapter, filter string) *Directory {
	if filter == "" {
		filter = NameFilter
	}
	return &Directory{adapter: adapter, filter: filter}
}

// Scan clears the directory and watches for peripherals for the whole
// timeout, keeping additions only. It returns once the window has elapsed
// or ctx is done, whichever comes first.
func (d *Directory) Scan(ctx context.Context, timeout time.Duration) ([]Device, error) {
	if timeout <= 0 {
		timeout = DefaultScanTimeout
	}

	d.mu.Lock()
	d.devices = nil
	d.mu.Unlock()

	if err := d.adapter.Enable(); err != nil {
		return nil, fmt.Errorf("ble: enable adapter: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var found []Device
	var foundMu sync.Mutex
	err := d.adapter.Scan(ctx, func(dev Device) {
		if !strings.Contains(dev.Name, d.filter) {
			return
		}
		foundMu.Lock()
		found = append(found, dev)
		foundMu.Unlock()
	})
	if err != nil {
		return nil, err
	}
	// The watch always spans the full window, even if the adapter
	// returned early.
	<-ctx.Done()

	foundMu.Lock()
	devices := make([]Device, len(found))
	copy(devices, found)
	foundMu.Unlock()

	d.mu.Lock()
	d.devices = devices
	d.mu.Unlock()

	slog.Info("[BLE] scan complete", "filter", d.filter, "found", len(devices), "window", timeout)
	return d.Devices(), nil
}

// Devices returns a copy of the last scan result in discovery order.
func (d *Directory) Devices() []Device {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Device, len(d.devices))
	copy(out, d.devices)
	return out
}

// Names returns the uppercased names of the last scan result in discovery order.
func (d *Directory) Names() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	names := make([]string, len(d.devices))
	for i, dev := range d.devices {
		names[i] = strings.ToUpper(dev.Name)
	}
	return names
}

// Len returns the number of recorded peripherals.
func (d *Directory) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.devices)
}

// Select returns the first recorded peripheral whose uppercased name
// contains the uppercased pattern. An empty pattern selects the first one.
func (d *Directory) Select(pattern string) (Device, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.devices) == 0 {
		return Device{}, false
	}
	if pattern == "" {
		return d.devices[0], true
	}
	want := strings.ToUpper(pattern)
	for _, dev := range d.devices {
		if strings.Contains(strings.ToUpper(dev.Name), want) {
			return dev, true
		}
	}
	return Device{}, false
}
