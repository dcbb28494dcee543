package prompt

import (
	"strings"
	"testing"
)

func TestBuild_Defaults(t *testing.T) {
	system, user := Build(false, false, false, 1080, 1920)

	if !strings.Contains(system, "ONLY a single valid JSON object") {
		t.Error("system prompt missing JSON-only instruction")
	}
	if !strings.Contains(user, "1080x1920") {
		t.Errorf("user prompt missing dimensions: %q", user)
	}
	if strings.Contains(user, "nickname") {
		t.Error("nickname instruction present without need_nickname")
	}
	if strings.Contains(user, "two-column") {
		t.Error("two-column instruction present without force_two_columns")
	}
}

func TestBuild_AllOptions(t *testing.T) {
	_, user := Build(true, true, true, 800, 600)

	for _, want := range []string{"nickname", "sender", "two-column"} {
		if !strings.Contains(user, want) {
			t.Errorf("user prompt missing %q instruction: %q", want, user)
		}
	}
}

func TestBuild_Deterministic(t *testing.T) {
	s1, u1 := Build(true, false, true, 640, 480)
	s2, u2 := Build(true, false, true, 640, 480)
	if s1 != s2 || u1 != u2 {
		t.Error("Build is not deterministic for identical inputs")
	}
}
