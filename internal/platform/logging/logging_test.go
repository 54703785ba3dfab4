package logging

import "testing"

func TestNew_DefaultsToInfo(t *testing.T) {
	t.Parallel()

	logger, err := New("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if logger == nil {
		t.Fatal("expected logger")
	}
}

func TestNew_ParsesLevel(t *testing.T) {
	t.Parallel()

	for _, level := range []string{"debug", "info", "warn", "error"} {
		if _, err := New(level); err != nil {
			t.Fatalf("level %q: unexpected error: %v", level, err)
		}
	}
}

func TestNew_RejectsUnknownLevel(t *testing.T) {
	t.Parallel()

	if _, err := New("loud"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}
