package base

import "github.com/cockroachdb/errors"

// Error kinds from the error-handling design: these are markers, not
// concrete types, so a wrapped error still satisfies errors.Is against the
// kind it was marked with. Callers classify with errors.Is(err, base.ErrX),
// never with a type switch.
var (
	ErrConfigInvalid       = errors.New("vstore: config invalid")
	ErrStorageTransient    = errors.New("vstore: storage transient")
	ErrStorageTerminal     = errors.New("vstore: storage terminal")
	ErrCorruptedItem       = errors.New("vstore: corrupted item")
	ErrBitstreamInvalid    = errors.New("vstore: bitstream invalid")
	ErrDecoderFailed       = errors.New("vstore: decoder failed")
	ErrRegistrationConflict = errors.New("vstore: registration conflict")
)

// MarkTransient wraps err and marks it retryable.
func MarkTransient(err error) error {
	if err == nil {
		return nil
	}
	return errors.Mark(err, ErrStorageTransient)
}

// MarkTerminal wraps err and marks it non-retryable.
func MarkTerminal(err error) error {
	if err == nil {
		return nil
	}
	return errors.Mark(err, ErrStorageTerminal)
}

// IsTransient reports whether err was marked retryable.
func IsTransient(err error) bool {
	return errors.Is(err, ErrStorageTransient)
}

// IsTerminal reports whether err was marked non-retryable.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrStorageTerminal)
}

// IsCorrupted reports whether err was marked as a corrupted item.
func IsCorrupted(err error) bool {
	return errors.Is(err, ErrCorruptedItem)
}

// IsConfigInvalid reports whether err was marked as an invalid config.
func IsConfigInvalid(err error) bool {
	return errors.Is(err, ErrConfigInvalid)
}
