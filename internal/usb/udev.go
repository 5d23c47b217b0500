package usb

import (
	"context"
	"strconv"
	"strings"

	"codeberg.org/mutker/yubikill/internal/errors"
	"github.com/jochenvg/go-udev"
)

// UdevEnumerator walks the usb subsystem through libudev.
type UdevEnumerator struct{}

func NewUdevEnumerator() *UdevEnumerator {
	return &UdevEnumerator{}
}

func (*UdevEnumerator) Devices(ctx context.Context) ([]Device, error) {
	errFactory := errors.New()

	if err := ctx.Err(); err != nil {
		return nil, errFactory.Wrap(errors.ErrTimeout, err)
	}

	u := udev.Udev{}
	e := u.NewEnumerate()
	if err := e.AddMatchSubsystem("usb"); err != nil {
		return nil, errFactory.Wrap(ErrEnumerateFailed, err)
	}
	if err := e.AddMatchProperty("DEVTYPE", "usb_device"); err != nil {
		return nil, errFactory.Wrap(ErrEnumerateFailed, err)
	}

	found, err := e.Devices()
	if err != nil {
		return nil, errFactory.Wrap(ErrEnumerateFailed, err)
	}

	devices := make([]Device, 0, len(found))
	for _, d := range found {
		vendor, err := ParseID(d.SysattrValue("idVendor"))
		if err != nil {
			continue
		}
		product, _ := ParseID(d.SysattrValue("idProduct"))

		devices = append(devices, Device{
			Bus:          atoi(d.SysattrValue("busnum")),
			Address:      atoi(d.SysattrValue("devnum")),
			VendorID:     vendor,
			ProductID:    product,
			Serial:       strings.TrimSpace(d.SysattrValue("serial")),
			Manufacturer: strings.TrimSpace(d.SysattrValue("manufacturer")),
			Product:      strings.TrimSpace(d.SysattrValue("product")),
			SysPath:      d.Syspath(),
		})
	}

	return devices, nil
}

func atoi(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}

	return n
}
