package screenshot

import "errors"

// Error taxonomy surfaced to callers. Provider call failures, unparseable
// output and invalid structure are absorbed inside a race and only
// escalate as ErrNoValidResult once every branch has failed.
var (
	// ErrImageInput reports non-positive dimensions or undecodable image data.
	ErrImageInput = errors.New("invalid image input")

	// ErrProviderCall reports a single provider call failure (timeout,
	// quota, network). Recoverable inside a race.
	ErrProviderCall = errors.New("provider call failed")

	// ErrUnparseable reports model text with no JSON object or array in it.
	ErrUnparseable = errors.New("no JSON found in model output")

	// ErrInvalidStructure reports JSON that fails the minimal-shape check
	// (no usable bubbles).
	ErrInvalidStructure = errors.New("model output has no usable bubbles")

	// ErrMissingField reports that normalization could not derive a
	// mandatory field (e.g. non-numeric bounding box).
	ErrMissingField = errors.New("missing required field")

	// ErrNoValidResult reports that every provider in a race failed or
	// returned unusable data.
	ErrNoValidResult = errors.New("all providers failed or returned unusable data")
)

// Wire error codes.
const (
	CodeImageInput   = 1001
	CodeParseFailed  = 1002
	CodeMissingField = 1003
	CodeProviderCall = 1004
)

// Code maps a taxonomy error to its wire error code. Returns 0 for errors
// outside the taxonomy.
func Code(err error) int {
	switch {
	case errors.Is(err, ErrImageInput):
		return CodeImageInput
	case errors.Is(err, ErrNoValidResult),
		errors.Is(err, ErrUnparseable),
		errors.Is(err, ErrInvalidStructure):
		return CodeParseFailed
	case errors.Is(err, ErrMissingField):
		return CodeMissingField
	case errors.Is(err, ErrProviderCall):
		return CodeProviderCall
	}
	return 0
}
