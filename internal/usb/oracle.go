package usb

import (
	"context"
	"fmt"

	"codeberg.org/mutker/yubikill/internal/errors"
	"codeberg.org/mutker/yubikill/internal/logger"
)

// Oracle answers whether the designated token is attached.
type Oracle struct {
	enumerator Enumerator
	matcher    Matcher
	logger     logger.Logger
}

func NewOracle(enumerator Enumerator, matcher Matcher, log logger.Logger) *Oracle {
	return &Oracle{
		enumerator: enumerator,
		matcher:    matcher,
		logger:     log,
	}
}

// Locate returns the first attached device that satisfies the matcher.
func (o *Oracle) Locate(ctx context.Context) (Identity, error) {
	errFactory := errors.New()

	devices, err := o.enumerator.Devices(ctx)
	if err != nil {
		return Identity{}, errFactory.Wrap(ErrDeviceNotFound, err)
	}

	for _, d := range devices {
		if o.matcher.Match(d) {
			return d.identity(), nil
		}
	}

	return Identity{}, errFactory.WithData(ErrDeviceNotFound, struct {
		VendorID  string
		ProductID string
		Serial    string
	}{
		VendorID:  fmt.Sprintf("%04x", o.matcher.VendorID),
		ProductID: fmt.Sprintf("%04x", o.matcher.ProductID),
		Serial:    o.matcher.Serial,
	})
}

// IsPresent enumerates afresh and reports whether id is still attached.
// Enumeration failures count as absence.
func (o *Oracle) IsPresent(ctx context.Context, id Identity) bool {
	devices, err := o.enumerator.Devices(ctx)
	if err != nil {
		o.logger.Debug().Err(err).Msg("USB enumeration failed, treating token as absent")
		return false
	}

	pinned := o.matcher.Pin(id)
	for _, d := range devices {
		if pinned.Match(d) {
			return true
		}
	}

	return false
}

// List returns every attached device alongside whether it matches.
func (o *Oracle) List(ctx context.Context) ([]Device, []bool, error) {
	devices, err := o.enumerator.Devices(ctx)
	if err != nil {
		return nil, nil, err
	}

	matches := make([]bool, len(devices))
	for i, d := range devices {
		matches[i] = o.matcher.Match(d)
	}

	return devices, matches, nil
}
