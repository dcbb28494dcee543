// Package prompt assembles the system and user prompts sent to vision
// providers for screenshot parsing.
package prompt

import (
	"fmt"
	"strings"
)

const systemPromptTemplate = `You are a chat screenshot analysis engine. You receive one screenshot of a mobile or desktop chat conversation. Your output must be ONLY a single valid JSON object conforming to this shape. Do not include any other text, prose, or markdown.

{
  "participants": {"self": {"id": "user", "nickname": ""}, "other": {"id": "other", "nickname": ""}},
  "bubbles": [
    {
      "bubble_id": "b0",
      "bbox": {"x1": 0, "y1": 0, "x2": 0, "y2": 0},
      "text": "",
      "sender": "user" or "other",
      "column": "left" or "right",
      "confidence": 0.0
    }
  ]
}

Rules:
- Detect every message bubble and report its bounding box in source-image pixel coordinates with x1 < x2 and y1 < y2.
- "sender" is "user" for messages written by the screenshot owner (usually the right column) and "other" for the counterpart.
- Transcribe bubble text exactly; do not translate or paraphrase.
- "confidence" is your certainty in the transcription, between 0 and 1.
- Skip timestamps, system notices, and input fields; only report message bubbles.`

// Build returns the system and user prompts for one parse request.
// Options toggle optional instructions; the output shape is fixed.
func Build(needNickname, needSender, forceTwoColumns bool, width, height int) (system, user string) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Parse the attached chat screenshot (%dx%d pixels) and return the JSON object.", width, height)

	if needNickname {
		sb.WriteString(" Fill participant nicknames from the visible chat header or bubble labels; leave empty if not visible.")
	}
	if needSender {
		sb.WriteString(" Attribute every bubble to its sender; if unsure, use the bubble position.")
	}
	if forceTwoColumns {
		sb.WriteString(" Treat the conversation as a two-column layout even if all visible bubbles sit in one column.")
	}

	return systemPromptTemplate, sb.String()
}
