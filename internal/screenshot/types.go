package screenshot

// Sender and column values used throughout the parsed output.
const (
	SenderUser  = "user"
	SenderOther = "other"

	ColumnLeft  = "left"
	ColumnRight = "right"

	LayoutTwoColumn    = "two_column"
	LayoutSingleColumn = "single_column"
)

// BBox is a bounding box in source-image pixel space, x1 < x2 and y1 < y2.
type BBox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// ChatBubble is one detected message region. Every field is populated by
// normalization; bubbles are never partially defaulted.
type ChatBubble struct {
	ID          string  `json:"bubble_id"`
	BBox        BBox    `json:"bbox"`
	CenterX     float64 `json:"center_x"`
	CenterY     float64 `json:"center_y"`
	Text        string  `json:"text"`
	Sender      string  `json:"sender"`
	Column      string  `json:"column"`
	Confidence  float64 `json:"confidence"`
	NeedsReview bool    `json:"needs_review"`
}

// Participant identifies one side of the conversation.
type Participant struct {
	ID       string `json:"id"`
	Nickname string `json:"nickname"`
}

// Participants holds both sides: the screenshot owner and the other party.
type Participants struct {
	Self  Participant `json:"self"`
	Other Participant `json:"other"`
}

// ImageMeta carries the source image dimensions (always > 0).
type ImageMeta struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Layout describes the column-to-sender mapping of the screenshot.
// LeftRole and RightRole are always the set {user, other}.
type Layout struct {
	Type      string `json:"type"`
	LeftRole  string `json:"left_role"`
	RightRole string `json:"right_role"`
}

// ParsedScreenshot is the canonical output schema. Bubbles are ordered
// ascending by bbox.y1 (stable on ties) and bubble ids are unique.
type ParsedScreenshot struct {
	ImageMeta    ImageMeta    `json:"image_meta"`
	Participants Participants `json:"participants"`
	Bubbles      []ChatBubble `json:"bubbles"`
	Layout       Layout       `json:"layout"`
}

// ParseOptions are the caller-supplied parsing hints forwarded into the
// prompt and normalization.
type ParseOptions struct {
	NeedNickname    bool `json:"need_nickname"`
	NeedSender      bool `json:"need_sender"`
	ForceTwoColumns bool `json:"force_two_columns"`
}

// DefaultLowConfidenceThreshold flags bubbles for manual review when the
// model reports confidence below it.
const DefaultLowConfidenceThreshold = 0.3
