package ble

import "fmt"

// State is a Link lifecycle state. A closed link is Idle.
type State int

const (
	StateIdle State = iota
	StateScanning
	StateSelecting
	StateConnecting
	StateSubscribing
	StateConnected
	StateUnsubscribing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StateSelecting:
		return "selecting"
	case StateConnecting:
		return "connecting"
	case StateSubscribing:
		return "subscribing"
	case StateConnected:
		return "connected"
	case StateUnsubscribing:
		return "unsubscribing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}
