package effect

import "errors"

var (
	// ErrUnknownEffect is returned when a contribution names an effect
	// absent from the catalog.
	ErrUnknownEffect = errors.New("unknown effect")

	// ErrInvalidValue is returned when a contribution value is NaN or
	// infinite.
	ErrInvalidValue = errors.New("invalid effect value")
)
