package input

import (
	"strings"
	"testing"
)

func TestRead_Valid(t *testing.T) {
	content := "Resource changes: 2 to create.\n  + Create Microsoft.Storage/storageAccounts\n"
	got, err := Read(strings.NewReader(content))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got != content {
		t.Errorf("Read returned altered content")
	}
}

func TestRead_Empty(t *testing.T) {
	for _, in := range []string{"", "   \n\t\n"} {
		if _, err := Read(strings.NewReader(in)); err == nil {
			t.Errorf("Read(%q) = nil error, want error", in)
		}
	}
}

func TestRead_TruncatesOversizedInput(t *testing.T) {
	big := "Scope: /subscriptions/x\n" + strings.Repeat("a", MaxChars)
	got, err := Read(strings.NewReader(big))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(got) != MaxChars {
		t.Errorf("len = %d, want %d", len(got), MaxChars)
	}
}

func TestRead_MissingMarkersStillSucceeds(t *testing.T) {
	// Marker validation is a soft check.
	if _, err := Read(strings.NewReader("some unrelated text")); err != nil {
		t.Errorf("Read without markers = %v, want nil (warning only)", err)
	}
}
