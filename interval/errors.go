package interval

import (
	"errors"
	"fmt"
)

// Sentinel errors. Match with errors.Is; use errors.As on the typed
// wrappers below for detail.
var (
	// ErrInvalidBounds is returned when a domain would hold lower > upper
	// (or a NaN bound) anywhere. Always a logic bug upstream.
	ErrInvalidBounds = errors.New("interval: lower bound exceeds upper bound")

	// ErrShapeMismatch is returned when a transfer function receives a
	// domain whose shape disagrees with the layer.
	ErrShapeMismatch = errors.New("interval: shape mismatch")

	// ErrLabelOutOfRange is returned by WorstCase for labels outside the
	// output width or a label slice of the wrong length.
	ErrLabelOutOfRange = errors.New("interval: label out of range")

	// ErrEmptyBatch is returned when a domain is built from zero samples.
	ErrEmptyBatch = errors.New("interval: empty batch")
)

// InvalidBoundsError reports the first unit whose bounds are inverted.
type InvalidBoundsError struct {
	Sample int
	Unit   int
	Lower  float64
	Upper  float64
}

func (e *InvalidBoundsError) Error() string {
	return fmt.Sprintf("interval: lower bound %g exceeds upper bound %g (sample %d, unit %d)",
		e.Lower, e.Upper, e.Sample, e.Unit)
}

func (e *InvalidBoundsError) Unwrap() error { return ErrInvalidBounds }

// ShapeMismatchError reports the layer and the shapes that disagreed.
type ShapeMismatchError struct {
	Layer string
	Want  []int
	Got   []int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("interval: %s expects per-sample shape %v, got %v", e.Layer, e.Want, e.Got)
}

func (e *ShapeMismatchError) Unwrap() error { return ErrShapeMismatch }
