package ble

import (
	"log/slog"

	"github.com/chaz8081/focusband/internal/broadcast"
)

// Simulator owns the shared link status. Any value may be set from any
// value; ordering of forward phases is the caller's concern. Safe for
// concurrent use.
type Simulator struct {
	peripheral Peripheral
	status     *broadcast.Value[Status]
}

// NewSimulator creates a simulator for p, starting Disconnected.
func NewSimulator(p Peripheral) *Simulator {
	return &Simulator{
		peripheral: p,
		status:     broadcast.New(Disconnected),
	}
}

// Peripheral returns the simulated device description.
func (s *Simulator) Peripheral() Peripheral {
	return s.peripheral
}

// SetStatus replaces the status and publishes it to every observer.
func (s *Simulator) SetStatus(st Status) {
	s.status.Store(st)
	slog.Debug("[BLE] status published", "status", st, "device", s.peripheral.Name)
}

// Status returns the current status.
func (s *Simulator) Status() Status {
	return s.status.Load()
}

// Observe subscribes to the status. The subscription yields the current
// value first, then every later change in publication order. Close it
// when done.
func (s *Simulator) Observe() *broadcast.Subscription[Status] {
	return s.status.Subscribe()
}
