// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package format

import (
	"fmt"

	"github.com/docker/go-units"
	"github.com/spf13/cast"
)

var (
	byteUnits = []string{"B", "KiB", "MiB", "GiB", "TiB", "PiB", "EiB", "ZiB", "YiB"}
	bitUnits  = []string{"b", "Kib", "Mib", "Gib", "Tib", "Pib", "Eib", "Zib", "Yib"}
)

// Size renders byte and bit counts in human readable units.
type Size struct{}

// FormatSize renders value, a number of bytes (or bits when bits is set),
// dividing by threshold for every unit step.
func (Size) FormatSize(value any, threshold int, bits bool) (string, error) {
	if threshold < 2 {
		return "", fmt.Errorf("size threshold must be at least 2, got %d", threshold)
	}
	n, err := cast.ToFloat64E(value)
	if err != nil {
		return "", fmt.Errorf("cannot format %T as size: %w", value, err)
	}
	names := byteUnits
	if bits {
		names = bitUnits
	}
	return units.CustomSize("%.4g %s", n, float64(threshold), names), nil
}
