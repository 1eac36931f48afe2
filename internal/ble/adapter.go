// Package ble simulates the Bluetooth Low Energy link to a focus-tracking
// band. No radio is used: the link status is a shared value advanced by
// timed phases, and observers subscribe to every change.
package ble

import (
	"fmt"

	"github.com/google/uuid"
	"tinygo.org/x/bluetooth"
)

// DefaultServiceUUID is the focus service the simulated band advertises.
const DefaultServiceUUID = "f0c05000-7a2b-4c1e-9d3f-8e6b1a2c3d4e"

// Peripheral describes the simulated band.
type Peripheral struct {
	Name    string
	Service bluetooth.UUID
}

// NewPeripheral builds a Peripheral from a display name and a 128-bit
// service UUID string.
func NewPeripheral(name, serviceUUID string) (Peripheral, error) {
	id, err := uuid.Parse(serviceUUID)
	if err != nil {
		return Peripheral{}, fmt.Errorf("ble: parse service UUID: %w", err)
	}
	return Peripheral{
		Name:    name,
		Service: bluetooth.NewUUID(id),
	}, nil
}

func (p Peripheral) String() string {
	return fmt.Sprintf("%s (%s)", p.Name, p.Service.String())
}

// Info is the JSON form of a Peripheral.
type Info struct {
	Name        string `json:"name"`
	ServiceUUID string `json:"service_uuid"`
}

// Info returns p with its service UUID in canonical string form.
func (p Peripheral) Info() Info {
	return Info{Name: p.Name, ServiceUUID: p.Service.String()}
}

// Advertises reports whether p exposes the given service.
func (p Peripheral) Advertises(service bluetooth.UUID) bool {
	return p.Service == service
}
