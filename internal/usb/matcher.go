package usb

import (
	"strconv"
	"strings"

	"codeberg.org/mutker/yubikill/internal/errors"
)

// Matcher selects the designated token among attached devices. Zero
// ProductID and empty Serial match any value.
type Matcher struct {
	VendorID  uint16
	ProductID uint16
	Serial    string
}

// Match reports whether d satisfies every filter set on m.
func (m Matcher) Match(d Device) bool {
	if d.VendorID != m.VendorID {
		return false
	}
	if m.ProductID != 0 && d.ProductID != m.ProductID {
		return false
	}
	if m.Serial != "" && d.Serial != m.Serial {
		return false
	}

	return true
}

// Pin narrows the matcher to the stable attributes of a located device.
// Bus and address are left out: a reinserted token gets a new address.
func (m Matcher) Pin(id Identity) Matcher {
	pinned := Matcher{
		VendorID:  id.VendorID,
		ProductID: m.ProductID,
		Serial:    m.Serial,
	}
	if pinned.ProductID == 0 {
		pinned.ProductID = id.ProductID
	}
	if pinned.Serial == "" {
		pinned.Serial = id.Serial
	}

	return pinned
}

// ParseID parses a 16-bit USB ID written as hex, with or without 0x.
func ParseID(s string) (uint16, error) {
	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "0x")
	if s == "" {
		return 0, nil
	}

	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, errors.New().Wrap(errors.ErrInvalidArgument, err)
	}

	return uint16(v), nil
}
