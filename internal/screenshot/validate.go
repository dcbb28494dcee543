package screenshot

import "fmt"

// Validate is the cheap structural gate run before normalization: a parsed
// object is usable only if it carries at least one bubble-like entry and
// every entry has a bounding box and a text field. Race losers are
// discarded on this check without paying normalization cost.
func Validate(data []byte) error {
	raw, err := decodeRaw(data)
	if err != nil {
		return err
	}
	if len(raw.Bubbles) == 0 {
		return fmt.Errorf("%w: empty bubble list", ErrInvalidStructure)
	}
	for i, b := range raw.Bubbles {
		if !b.has("bbox") {
			return fmt.Errorf("%w: bubble %d has no bbox", ErrInvalidStructure, i)
		}
		if !b.has("text") {
			return fmt.Errorf("%w: bubble %d has no text", ErrInvalidStructure, i)
		}
	}
	return nil
}
