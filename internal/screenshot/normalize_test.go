package screenshot

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func TestValidate_Usable(t *testing.T) {
	data := []byte(`{"bubbles":[{"bbox":{"x1":0,"y1":0,"x2":10,"y2":10},"text":"hi"}]}`)
	if err := Validate(data); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestValidate_EmptyBubbles(t *testing.T) {
	err := Validate([]byte(`{"bubbles":[]}`))
	if !errors.Is(err, ErrInvalidStructure) {
		t.Errorf("Validate() error = %v, want ErrInvalidStructure", err)
	}
}

func TestValidate_MissingBBox(t *testing.T) {
	err := Validate([]byte(`{"bubbles":[{"text":"hi"}]}`))
	if !errors.Is(err, ErrInvalidStructure) {
		t.Errorf("Validate() error = %v, want ErrInvalidStructure", err)
	}
}

func TestValidate_MissingText(t *testing.T) {
	err := Validate([]byte(`{"bubbles":[{"bbox":[0,0,1,1]}]}`))
	if !errors.Is(err, ErrInvalidStructure) {
		t.Errorf("Validate() error = %v, want ErrInvalidStructure", err)
	}
}

// Scenario: a bare bubble with only bbox and text gets every field
// derived: center from the box, sender/column from the midpoint rule,
// confidence 0.5.
func TestNormalize_DerivesAllFields(t *testing.T) {
	data := []byte(`{"bubbles":[{"bbox":{"x1":0,"y1":0,"x2":100,"y2":50},"text":"hi"}]}`)
	got, err := Normalize(data, 1000, 800, ParseOptions{}, 0)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if len(got.Bubbles) != 1 {
		t.Fatalf("got %d bubbles, want 1", len(got.Bubbles))
	}
	b := got.Bubbles[0]
	if b.CenterX != 50 || b.CenterY != 25 {
		t.Errorf("center = (%v, %v), want (50, 25)", b.CenterX, b.CenterY)
	}
	if b.Sender != SenderOther {
		t.Errorf("sender = %q, want other", b.Sender)
	}
	if b.Column != ColumnLeft {
		t.Errorf("column = %q, want left", b.Column)
	}
	if b.Confidence != 0.5 {
		t.Errorf("confidence = %v, want 0.5", b.Confidence)
	}
	if b.ID != "b0" {
		t.Errorf("id = %q, want b0", b.ID)
	}
}

func TestNormalize_RightHalfIsUser(t *testing.T) {
	data := []byte(`{"bubbles":[{"bbox":[600,10,900,60],"text":"mine"}]}`)
	got, err := Normalize(data, 1000, 800, ParseOptions{}, 0)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	b := got.Bubbles[0]
	if b.Sender != SenderUser || b.Column != ColumnRight {
		t.Errorf("sender/column = %q/%q, want user/right", b.Sender, b.Column)
	}
}

func TestNormalize_KeepsProvidedFields(t *testing.T) {
	data := []byte(`{"bubbles":[{
		"bubble_id":"m1",
		"bbox":{"x1":0,"y1":0,"x2":100,"y2":50},
		"center_x":10,"center_y":20,
		"text":"hi","sender":"user","column":"right","confidence":0.9}]}`)
	got, err := Normalize(data, 1000, 800, ParseOptions{}, 0)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	want := ChatBubble{
		ID:         "m1",
		BBox:       BBox{X1: 0, Y1: 0, X2: 100, Y2: 50},
		CenterX:    10,
		CenterY:    20,
		Text:       "hi",
		Sender:     SenderUser,
		Column:     ColumnRight,
		Confidence: 0.9,
	}
	if !reflect.DeepEqual(got.Bubbles[0], want) {
		t.Errorf("bubble = %+v, want %+v", got.Bubbles[0], want)
	}
}

func TestNormalize_InvalidSenderInferred(t *testing.T) {
	data := []byte(`{"bubbles":[{"bbox":[0,0,100,50],"text":"hi","sender":"assistant","column":"middle"}]}`)
	got, err := Normalize(data, 1000, 800, ParseOptions{}, 0)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	b := got.Bubbles[0]
	if b.Sender != SenderOther || b.Column != ColumnLeft {
		t.Errorf("sender/column = %q/%q, want other/left", b.Sender, b.Column)
	}
}

func TestNormalize_SortStableByY1(t *testing.T) {
	data := []byte(`{"bubbles":[
		{"bubble_id":"a","bbox":[0,200,50,250],"text":"third"},
		{"bubble_id":"b","bbox":[0,100,50,150],"text":"first"},
		{"bubble_id":"c","bbox":[0,100,80,160],"text":"second"}]}`)
	got, err := Normalize(data, 1000, 800, ParseOptions{}, 0)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	var ids []string
	for _, b := range got.Bubbles {
		ids = append(ids, b.ID)
	}
	want := []string{"b", "c", "a"}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("order = %v, want %v", ids, want)
	}
}

func TestNormalize_CollidingIDsGetFreshOnes(t *testing.T) {
	data := []byte(`{"bubbles":[
		{"bubble_id":"b0","bbox":[0,0,10,10],"text":"a"},
		{"bubble_id":"b0","bbox":[0,20,10,30],"text":"b"},
		{"bbox":[0,40,10,50],"text":"c"}]}`)
	got, err := Normalize(data, 1000, 800, ParseOptions{}, 0)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	seen := make(map[string]bool)
	for _, b := range got.Bubbles {
		if seen[b.ID] {
			t.Fatalf("duplicate bubble id %q", b.ID)
		}
		seen[b.ID] = true
	}
}

func TestNormalize_LowConfidenceFlagged(t *testing.T) {
	data := []byte(`{"bubbles":[
		{"bbox":[0,0,10,10],"text":"weak","confidence":0.2},
		{"bbox":[0,20,10,30],"text":"strong","confidence":0.8}]}`)
	got, err := Normalize(data, 1000, 800, ParseOptions{}, 0.3)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if !got.Bubbles[0].NeedsReview {
		t.Error("low-confidence bubble not flagged for review")
	}
	if got.Bubbles[1].NeedsReview {
		t.Error("high-confidence bubble flagged for review")
	}
	// Flagged bubbles are still included, never dropped.
	if len(got.Bubbles) != 2 {
		t.Errorf("got %d bubbles, want 2", len(got.Bubbles))
	}
}

func TestNormalize_LayoutFromMajority(t *testing.T) {
	data := []byte(`{"bubbles":[
		{"bbox":[0,0,100,50],"text":"a"},
		{"bbox":[0,60,100,110],"text":"b"},
		{"bbox":[600,120,900,170],"text":"c"}]}`)
	got, err := Normalize(data, 1000, 800, ParseOptions{}, 0)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	want := Layout{Type: LayoutTwoColumn, LeftRole: SenderOther, RightRole: SenderUser}
	if got.Layout != want {
		t.Errorf("layout = %+v, want %+v", got.Layout, want)
	}
}

func TestNormalize_LayoutDefaultWhenEmptyColumns(t *testing.T) {
	// A single left-column conversation still yields a full role mapping.
	data := []byte(`{"bubbles":[{"bbox":[0,0,100,50],"text":"a","sender":"user","column":"left"}]}`)
	got, err := Normalize(data, 1000, 800, ParseOptions{}, 0)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	want := Layout{Type: LayoutSingleColumn, LeftRole: SenderUser, RightRole: SenderOther}
	if got.Layout != want {
		t.Errorf("layout = %+v, want %+v", got.Layout, want)
	}
}

func TestNormalize_ForceTwoColumns(t *testing.T) {
	data := []byte(`{"bubbles":[{"bbox":[0,0,100,50],"text":"a"}]}`)
	got, err := Normalize(data, 1000, 800, ParseOptions{ForceTwoColumns: true}, 0)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if got.Layout.Type != LayoutTwoColumn {
		t.Errorf("layout type = %q, want two_column", got.Layout.Type)
	}
}

func TestNormalize_NonNumericBBox(t *testing.T) {
	data := []byte(`{"bubbles":[{"bbox":{"x1":"left","y1":0,"x2":10,"y2":10},"text":"hi"}]}`)
	_, err := Normalize(data, 1000, 800, ParseOptions{}, 0)
	if !errors.Is(err, ErrMissingField) {
		t.Errorf("Normalize() error = %v, want ErrMissingField", err)
	}
}

func TestNormalize_BadDimensions(t *testing.T) {
	data := []byte(`{"bubbles":[{"bbox":[0,0,10,10],"text":"hi"}]}`)
	_, err := Normalize(data, 0, 800, ParseOptions{}, 0)
	if !errors.Is(err, ErrImageInput) {
		t.Errorf("Normalize() error = %v, want ErrImageInput", err)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	data := []byte(`{"bubbles":[
		{"bbox":[40,300,400,360],"text":"late","confidence":0.25},
		{"bbox":[600,10,950,70],"text":"hello"},
		{"bbox":[30,80,420,150],"text":"hey","sender":"other"}]}`)
	first, err := Normalize(data, 1080, 1920, ParseOptions{NeedSender: true}, 0)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	encoded, err := json.Marshal(first)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	second, err := Normalize(encoded, 1080, 1920, ParseOptions{NeedSender: true}, 0)
	if err != nil {
		t.Fatalf("re-Normalize() error = %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("re-normalization changed the result:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestCode_Mapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{ErrImageInput, 1001},
		{ErrNoValidResult, 1002},
		{ErrUnparseable, 1002},
		{ErrInvalidStructure, 1002},
		{ErrMissingField, 1003},
		{ErrProviderCall, 1004},
		{errors.New("something else"), 0},
	}
	for _, c := range cases {
		if got := Code(c.err); got != c.want {
			t.Errorf("Code(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}
