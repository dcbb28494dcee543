package screenshot

import (
	"errors"
	"testing"
)

func TestExtractJSON_PureObject(t *testing.T) {
	got, err := ExtractJSON(`{"bubbles":[{"text":"hi"}]}`)
	if err != nil {
		t.Fatalf("ExtractJSON() error = %v", err)
	}
	if string(got) != `{"bubbles":[{"text":"hi"}]}` {
		t.Errorf("ExtractJSON() = %s", got)
	}
}

func TestExtractJSON_MarkdownFenced(t *testing.T) {
	text := "Here is the result:\n```json\n{\"bubbles\": [{\"text\": \"ok\"}]}\n```\nLet me know if you need more."
	got, err := ExtractJSON(text)
	if err != nil {
		t.Fatalf("ExtractJSON() error = %v", err)
	}
	if string(got) != `{"bubbles": [{"text": "ok"}]}` {
		t.Errorf("ExtractJSON() = %s", got)
	}
}

func TestExtractJSON_ProseAroundArray(t *testing.T) {
	got, err := ExtractJSON(`The detected bubbles are [{"text":"a"},{"text":"b"}] as requested.`)
	if err != nil {
		t.Fatalf("ExtractJSON() error = %v", err)
	}
	if string(got) != `[{"text":"a"},{"text":"b"}]` {
		t.Errorf("ExtractJSON() = %s", got)
	}
}

func TestExtractJSON_BracesInsideStrings(t *testing.T) {
	got, err := ExtractJSON(`{"text":"a } tricky \" value {"}`)
	if err != nil {
		t.Fatalf("ExtractJSON() error = %v", err)
	}
	if string(got) != `{"text":"a } tricky \" value {"}` {
		t.Errorf("ExtractJSON() = %s", got)
	}
}

func TestExtractJSON_SkipsInvalidCandidate(t *testing.T) {
	// The first balanced region is not valid JSON; the scan must move on.
	got, err := ExtractJSON(`{broken} then {"ok":true}`)
	if err != nil {
		t.Fatalf("ExtractJSON() error = %v", err)
	}
	if string(got) != `{"ok":true}` {
		t.Errorf("ExtractJSON() = %s", got)
	}
}

func TestExtractJSON_NoJSON(t *testing.T) {
	_, err := ExtractJSON("I could not read the screenshot, sorry.")
	if !errors.Is(err, ErrUnparseable) {
		t.Errorf("ExtractJSON() error = %v, want ErrUnparseable", err)
	}
}

func TestExtractJSON_Unbalanced(t *testing.T) {
	_, err := ExtractJSON(`{"bubbles": [{"text": "cut off`)
	if !errors.Is(err, ErrUnparseable) {
		t.Errorf("ExtractJSON() error = %v, want ErrUnparseable", err)
	}
}
