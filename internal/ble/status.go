package ble

import "fmt"

// Status is the simulated link state of the focus band.
type Status int

const (
	// Disconnected is the initial state and the target of every disconnect.
	Disconnected Status = iota
	// Scanning is the first phase of the connection sequence.
	Scanning
	// Connecting follows Scanning once the scan delay elapses.
	Connecting
	// Connected is the terminal phase of the connection sequence.
	Connected
)

var statusNames = [...]string{
	Disconnected: "Disconnected",
	Scanning:     "Scanning",
	Connecting:   "Connecting",
	Connected:    "Connected",
}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("Status(%d)", int(s))
	}
	return statusNames[s]
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) {
	if s < 0 || int(s) >= len(statusNames) {
		return nil, fmt.Errorf("ble: unknown status %d", int(s))
	}
	return []byte(statusNames[s]), nil
}

// UnmarshalText decodes a status name as produced by MarshalText.
func (s *Status) UnmarshalText(text []byte) error {
	for i, name := range statusNames {
		if name == string(text) {
			*s = Status(i)
			return nil
		}
	}
	return fmt.Errorf("ble: unknown status %q", text)
}
