package usb

import (
	"context"
	"fmt"
)

// YubicoVendorID is the USB vendor ID assigned to Yubico.
const YubicoVendorID uint16 = 0x1050

// Enumerator lists the USB devices currently attached to the host.
type Enumerator interface {
	Devices(ctx context.Context) ([]Device, error)
}

// Device describes one enumerated USB device.
type Device struct {
	Bus          int
	Address      int
	VendorID     uint16
	ProductID    uint16
	Serial       string
	Manufacturer string
	Product      string
	SysPath      string
}

// Identity is the token the watchdog guards, captured once at startup.
type Identity struct {
	Bus       int
	Address   int
	VendorID  uint16
	ProductID uint16
	Serial    string
}

func (id Identity) String() string {
	return fmt.Sprintf("%03d/%03d", id.Bus, id.Address)
}

// USBID returns the vendor:product pair in lsusb notation.
func (id Identity) USBID() string {
	return fmt.Sprintf("%04x:%04x", id.VendorID, id.ProductID)
}

func (d Device) identity() Identity {
	return Identity{
		Bus:       d.Bus,
		Address:   d.Address,
		VendorID:  d.VendorID,
		ProductID: d.ProductID,
		Serial:    d.Serial,
	}
}
