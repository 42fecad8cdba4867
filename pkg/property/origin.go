package property

import (
	"fmt"
	"strconv"
	"strings"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

// ParseVec parses a "x y z" property value.
func ParseVec(s string) (v3.Vec, error) {
	fields := strings.Fields(s)
	if len(fields) != 3 {
		return v3.Vec{}, fmt.Errorf("expected three components, got %q", s)
	}
	var c [3]float64
	for i, f := range fields {
		x, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return v3.Vec{}, fmt.Errorf("component %d of %q: %w", i, s, err)
		}
		c[i] = x
	}
	return v3.Vec{X: c[0], Y: c[1], Z: c[2]}, nil
}

// FormatVec formats v as a "x y z" property value.
func FormatVec(v v3.Vec) string {
	return strconv.FormatFloat(v.X, 'g', -1, 64) + " " +
		strconv.FormatFloat(v.Y, 'g', -1, 64) + " " +
		strconv.FormatFloat(v.Z, 'g', -1, 64)
}
