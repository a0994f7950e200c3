//go:build !gnuplot

package report

import "errors"

// ErrShowUnavailable is returned by Show in builds without gnuplot support.
var ErrShowUnavailable = errors.New("interactive plot not available: rebuild with -tags gnuplot")

// Show needs the gnuplot build tag; the glot package panics at init when
// gnuplot is not installed, so it is only linked on request.
func Show(*Series) error {
	return ErrShowUnavailable
}
