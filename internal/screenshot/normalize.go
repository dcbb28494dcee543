package screenshot

import (
	"fmt"
	"sort"
)

// Normalize converts validated raw model output into the canonical
// ParsedScreenshot. All rules are deterministic and idempotent:
// re-normalizing an already-normalized result is a no-op.
//
// lowConfidence flags bubbles for downstream review; pass <= 0 to use
// DefaultLowConfidenceThreshold.
func Normalize(data []byte, width, height int, opts ParseOptions, lowConfidence float64) (ParsedScreenshot, error) {
	if width <= 0 || height <= 0 {
		return ParsedScreenshot{}, fmt.Errorf("%w: dimensions %dx%d", ErrImageInput, width, height)
	}
	if lowConfidence <= 0 {
		lowConfidence = DefaultLowConfidenceThreshold
	}

	raw, err := decodeRaw(data)
	if err != nil {
		return ParsedScreenshot{}, err
	}

	mid := float64(width) / 2
	seen := make(map[string]bool, len(raw.Bubbles))
	nextID := 0
	bubbles := make([]ChatBubble, 0, len(raw.Bubbles))

	for _, rb := range raw.Bubbles {
		bb, err := rb.bbox()
		if err != nil {
			return ParsedScreenshot{}, err
		}
		if !rb.has("text") {
			return ParsedScreenshot{}, fmt.Errorf("%w: text", ErrMissingField)
		}

		cx, ok := rb.num("center_x")
		if !ok {
			cx = (bb.X1 + bb.X2) / 2
		}
		cy, ok := rb.num("center_y")
		if !ok {
			cy = (bb.Y1 + bb.Y2) / 2
		}

		sender := rb.str("sender")
		if sender != SenderUser && sender != SenderOther {
			if cx < mid {
				sender = SenderOther
			} else {
				sender = SenderUser
			}
		}

		column := rb.str("column")
		if column != ColumnLeft && column != ColumnRight {
			if cx < mid {
				column = ColumnLeft
			} else {
				column = ColumnRight
			}
		}

		confidence, ok := rb.num("confidence")
		if !ok {
			confidence = 0.5
		}
		confidence = clamp01(confidence)

		id := rb.str("bubble_id", "id")
		if id == "" || seen[id] {
			for {
				id = fmt.Sprintf("b%d", nextID)
				nextID++
				if !seen[id] {
					break
				}
			}
		}
		seen[id] = true

		bubbles = append(bubbles, ChatBubble{
			ID:          id,
			BBox:        bb,
			CenterX:     cx,
			CenterY:     cy,
			Text:        rb.str("text"),
			Sender:      sender,
			Column:      column,
			Confidence:  confidence,
			NeedsReview: confidence < lowConfidence,
		})
	}

	// Reading order: ascending by top edge, ties keep input order.
	sort.SliceStable(bubbles, func(i, j int) bool {
		return bubbles[i].BBox.Y1 < bubbles[j].BBox.Y1
	})

	return ParsedScreenshot{
		ImageMeta:    ImageMeta{Width: width, Height: height},
		Participants: normalizeParticipants(raw.Participants),
		Bubbles:      bubbles,
		Layout:       deriveLayout(bubbles, opts),
	}, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func normalizeParticipants(p *Participants) Participants {
	var out Participants
	if p != nil {
		out = *p
	}
	if out.Self.ID == "" {
		out.Self.ID = SenderUser
	}
	if out.Other.ID == "" {
		out.Other.ID = SenderOther
	}
	return out
}

// deriveLayout maps columns to senders by majority vote across bubbles.
// A single populated column implies the complement for the other side;
// an empty or ambiguous vote falls back to {left: other, right: user}.
func deriveLayout(bubbles []ChatBubble, opts ParseOptions) Layout {
	var leftUser, leftOther, rightUser, rightOther int
	for _, b := range bubbles {
		switch {
		case b.Column == ColumnLeft && b.Sender == SenderUser:
			leftUser++
		case b.Column == ColumnLeft && b.Sender == SenderOther:
			leftOther++
		case b.Column == ColumnRight && b.Sender == SenderUser:
			rightUser++
		case b.Column == ColumnRight && b.Sender == SenderOther:
			rightOther++
		}
	}

	left := majority(leftUser, leftOther)
	right := majority(rightUser, rightOther)

	switch {
	case left != "" && right != "" && left != right:
		// Both columns voted consistently.
	case left != "" && right == "":
		right = complement(left)
	case left == "" && right != "":
		left = complement(right)
	default:
		// No bubbles, or both columns claim the same sender.
		left, right = SenderOther, SenderUser
	}

	typ := LayoutSingleColumn
	if opts.ForceTwoColumns || (leftUser+leftOther > 0 && rightUser+rightOther > 0) {
		typ = LayoutTwoColumn
	}

	return Layout{Type: typ, LeftRole: left, RightRole: right}
}

func majority(user, other int) string {
	switch {
	case user > other:
		return SenderUser
	case other > user:
		return SenderOther
	}
	return ""
}

func complement(sender string) string {
	if sender == SenderUser {
		return SenderOther
	}
	return SenderUser
}
