// Package config snapshots the runtime register state of a C0-microSD
// plus device to JSON and restores it. Snapshots are useful when a host
// tool needs to toggle the configuration register (for example to reset
// the core) and put the device back the way it found it afterwards.
package config

import (
	"fmt"
	"time"

	"github.com/signaloid/c0-microsd-toolkit/pkg/c0microsdplus"
)

// DeviceSnapshot holds the register state of one device at one instant.
type DeviceSnapshot struct {
	DevicePath  string                   `json:"device_path"`
	Timestamp   time.Time                `json:"timestamp"`
	Config      c0microsdplus.ConfigBits `json:"config"`
	BootAddress uint32                   `json:"boot_address"`
	Status      uint32                   `json:"status"`
}

// DumpFromDevice reads the configuration, boot address, and status
// registers and packages them as a snapshot.
func DumpFromDevice(device *c0microsdplus.Device, devicePath string) (*DeviceSnapshot, error) {
	bits, err := device.ConfigBits()
	if err != nil {
		return nil, fmt.Errorf("failed to read config register: %w", err)
	}

	bootAddress, err := device.BootAddress()
	if err != nil {
		return nil, fmt.Errorf("failed to read boot address register: %w", err)
	}

	status, err := device.Status()
	if err != nil {
		return nil, fmt.Errorf("failed to read status register: %w", err)
	}

	return &DeviceSnapshot{
		DevicePath:  devicePath,
		Timestamp:   time.Now(),
		Config:      bits,
		BootAddress: bootAddress,
		Status:      uint32(status),
	}, nil
}

// ApplyToDevice restores the writable registers from a snapshot. The
// status register is read-only and is not restored.
func ApplyToDevice(device *c0microsdplus.Device, snapshot *DeviceSnapshot) error {
	if err := device.SetBootAddress(snapshot.BootAddress); err != nil {
		return fmt.Errorf("failed to write boot address register: %w", err)
	}

	if err := device.SetConfigBits(snapshot.Config); err != nil {
		return fmt.Errorf("failed to write config register: %w", err)
	}

	return nil
}
