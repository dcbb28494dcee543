package screenshot

import (
	"encoding/json"
	"fmt"
)

// rawBubble is one bubble-like entry before normalization. Fields are kept
// as raw JSON so that a single malformed field does not reject the whole
// bubble during the cheap validation pass.
type rawBubble struct {
	fields map[string]json.RawMessage
}

// rawResult is the decoded model output prior to normalization. Models
// return either {"bubbles": [...], ...} or a bare top-level bubble array.
type rawResult struct {
	Participants *Participants
	Bubbles      []rawBubble
}

func decodeRaw(data []byte) (rawResult, error) {
	var out rawResult

	// Bare array form: treat the whole document as the bubble list.
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err == nil {
		for _, it := range items {
			b, err := decodeRawBubble(it)
			if err != nil {
				return rawResult{}, err
			}
			out.Bubbles = append(out.Bubbles, b)
		}
		return out, nil
	}

	var doc struct {
		Participants *Participants     `json:"participants"`
		Bubbles      []json.RawMessage `json:"bubbles"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return rawResult{}, fmt.Errorf("%w: %v", ErrInvalidStructure, err)
	}
	out.Participants = doc.Participants
	for _, it := range doc.Bubbles {
		b, err := decodeRawBubble(it)
		if err != nil {
			return rawResult{}, err
		}
		out.Bubbles = append(out.Bubbles, b)
	}
	return out, nil
}

func decodeRawBubble(data []byte) (rawBubble, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return rawBubble{}, fmt.Errorf("%w: bubble is not an object", ErrInvalidStructure)
	}
	return rawBubble{fields: fields}, nil
}

func (b rawBubble) has(key string) bool {
	raw, ok := b.fields[key]
	return ok && string(raw) != "null"
}

// str returns the string field, or "" when absent or not a string.
func (b rawBubble) str(keys ...string) string {
	for _, key := range keys {
		raw, ok := b.fields[key]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && s != "" {
			return s
		}
	}
	return ""
}

// num returns the numeric field and whether it was present and numeric.
func (b rawBubble) num(key string) (float64, bool) {
	raw, ok := b.fields[key]
	if !ok {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, false
	}
	return f, true
}

// boolean returns the bool field, defaulting to false.
func (b rawBubble) boolean(key string) bool {
	raw, ok := b.fields[key]
	if !ok {
		return false
	}
	var v bool
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	return v
}

// bbox decodes the bounding box from either {"x1":..} object form or
// [x1,y1,x2,y2] array form. Missing or non-numeric coordinates are a
// missing-required-field condition.
func (b rawBubble) bbox() (BBox, error) {
	raw, ok := b.fields["bbox"]
	if !ok || string(raw) == "null" {
		return BBox{}, fmt.Errorf("%w: bbox", ErrMissingField)
	}

	var obj struct {
		X1 *float64 `json:"x1"`
		Y1 *float64 `json:"y1"`
		X2 *float64 `json:"x2"`
		Y2 *float64 `json:"y2"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		if obj.X1 == nil || obj.Y1 == nil || obj.X2 == nil || obj.Y2 == nil {
			return BBox{}, fmt.Errorf("%w: bbox coordinates", ErrMissingField)
		}
		return orderBBox(BBox{X1: *obj.X1, Y1: *obj.Y1, X2: *obj.X2, Y2: *obj.Y2}), nil
	}

	var arr []float64
	if err := json.Unmarshal(raw, &arr); err == nil && len(arr) == 4 {
		return orderBBox(BBox{X1: arr[0], Y1: arr[1], X2: arr[2], Y2: arr[3]}), nil
	}

	return BBox{}, fmt.Errorf("%w: bbox coordinates are not numeric", ErrMissingField)
}

// orderBBox enforces x1 < x2 and y1 < y2 by swapping inverted edges.
func orderBBox(bb BBox) BBox {
	if bb.X1 > bb.X2 {
		bb.X1, bb.X2 = bb.X2, bb.X1
	}
	if bb.Y1 > bb.Y2 {
		bb.Y1, bb.Y2 = bb.Y2, bb.Y1
	}
	return bb
}
