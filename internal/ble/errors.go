package ble

import (
	"errors"
	"fmt"
)

var (
	// ErrCharacteristicNotFound means the peripheral was connected but does
	// not expose TargetCharUUID. The connection stays held until Close.
	ErrCharacteristicNotFound = errors.New("ble: target characteristic not found")
	// ErrSubscriptionFailed means the peripheral rejected the notification
	// subscription. The connection stays held until Close.
	ErrSubscriptionFailed = errors.New("ble: notification subscription failed")
	// ErrWriteFailed wraps a failed send.
	ErrWriteFailed = errors.New("ble: write failed")
	// ErrNotConnected is returned by operations that need an open link.
	ErrNotConnected = errors.New("ble: not connected")
	// ErrAlreadyOpen is returned by Open when the link is not idle.
	ErrAlreadyOpen = errors.New("ble: link already open")
	// ErrEmptyPayload is returned when sending nothing.
	ErrEmptyPayload = errors.New("ble: empty payload")
	// ErrLinkLost is returned by Open when the peripheral drops the
	// connection before the link is up. It matches ErrNotConnected.
	ErrLinkLost = fmt.Errorf("%w: link lost during open", ErrNotConnected)
)

// DeviceNotFoundError is returned by Open when no recorded peripheral
// matches the selector.
type DeviceNotFoundError struct {
	Pattern string
}

func (e *DeviceNotFoundError) Error() string {
	if e.Pattern == "" {
		return "ble: no MODI network module found"
	}
	return fmt.Sprintf("ble: MODI network module matching %q not found", e.Pattern)
}
