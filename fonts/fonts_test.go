package fonts

import (
	"bytes"
	"testing"
)

func TestLoadVariants(t *testing.T) {
	regular, err := Load("Go", false, false)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	bold, err := Load("built-in:go", true, false)
	if err != nil {
		t.Fatalf("Load bold: %v", err)
	}
	if len(regular) == 0 || bytes.Equal(regular, bold) {
		t.Fatalf("regular and bold faces should be distinct, non-empty fonts")
	}
	if _, err := Load("Go Mono", true, true); err != nil {
		t.Fatalf("Load mono: %v", err)
	}
	if _, err := Load("Inter", false, false); err == nil {
		t.Fatalf("unknown family should fail")
	}
	if !Has("GOMONO") || Has("comic") {
		t.Fatalf("Has reported wrong membership")
	}
	if got := Families(); len(got) != 2 || got[0] != "go" {
		t.Fatalf("unexpected families: %v", got)
	}
}
