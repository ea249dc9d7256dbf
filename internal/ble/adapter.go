// Package ble manages the single BLE link to a MODI network module: timed
// discovery of nearby modules, connection and characteristic resolution,
// notification subscription, and the inbound message queue.
package ble

import "context"

// MODI BLE identifiers.
const (
	// NameFilter is the substring a peripheral's name must contain to be
	// recorded by a scan. The match is case-sensitive.
	NameFilter = "MODI"

	// TargetCharUUID is the characteristic carrying MODI packets in both
	// directions. It is looked up across every service of the peripheral.
	TargetCharUUID = "00008421-0000-1000-8000-00805f9b34fb"
)

// Device represents a discovered BLE peripheral.
type Device struct {
	ID   string // platform identifier: MAC on Linux/Windows, CoreBluetooth UUID on macOS
	Name string
	RSSI int
}

// Characteristic represents a BLE GATT characteristic.
type Characteristic interface {
	// UUID returns the characteristic UUID in lowercase canonical form.
	UUID() string
	// Write sends data and blocks until the peripheral acknowledges it.
	Write(data []byte) error
	// Subscribe enables notifications and registers a callback for them.
	Subscribe(callback func(data []byte)) error
	// Unsubscribe disables notifications.
	Unsubscribe() error
}

// Service represents a primary GATT service on a connected peripheral.
type Service interface {
	UUID() string
	// Characteristics enumerates every characteristic of the service.
	Characteristics() ([]Characteristic, error)
}

// Connection represents an active BLE connection to a peripheral.
type Connection interface {
	// Services enumerates every service on the peripheral.
	Services() ([]Service, error)
	// Disconnect terminates the connection and releases it.
	Disconnect() error
	// OnDisconnect registers a callback invoked when the peripheral drops the link.
	OnDisconnect(callback func())
}

// Adapter abstracts the BLE hardware adapter for testing.
type Adapter interface {
	// Enable powers on the BLE adapter.
	Enable() error
	// Scan runs discovery until ctx is done, calling onAdded once for each
	// newly seen peripheral, on its first report that carries a name.
	// Updates to known peripherals are not reported.
	Scan(ctx context.Context, onAdded func(Device)) error
	// Connect establishes a connection to the device with the given ID.
	Connect(ctx context.Context, id string) (Connection, error)
}
