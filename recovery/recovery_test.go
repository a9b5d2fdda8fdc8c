package recovery_test

import (
	"strings"
	"testing"

	"github.com/keyfort/keyfort/recovery"
)

func TestGenerateCodeFormat(t *testing.T) {
	code, err := recovery.GenerateCode()
	if err != nil {
		t.Fatalf("GenerateCode returned error: %v", err)
	}

	groups := strings.Split(code, "-")
	if len(groups) != 16 {
		t.Fatalf("expected 16 groups, got %d (%q)", len(groups), code)
	}
	for _, g := range groups {
		if len(g) != 4 {
			t.Fatalf("expected 4-character groups, got %q", g)
		}
	}
	if code != strings.ToUpper(code) {
		t.Fatalf("expected uppercase code, got %q", code)
	}
}

func TestGeneratedCodesAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 32; i++ {
		code, err := recovery.GenerateCode()
		if err != nil {
			t.Fatalf("GenerateCode returned error: %v", err)
		}
		if seen[code] {
			t.Fatalf("duplicate code generated: %q", code)
		}
		seen[code] = true
	}
}

func TestParseCodeAcceptsGenerated(t *testing.T) {
	code, err := recovery.GenerateCode()
	if err != nil {
		t.Fatalf("GenerateCode returned error: %v", err)
	}

	parsed, ok := recovery.ParseCode(code)
	if !ok {
		t.Fatalf("ParseCode rejected a generated code: %q", code)
	}
	if len(parsed) != 64 {
		t.Fatalf("expected 64 hex characters, got %d", len(parsed))
	}
	if parsed != strings.ToUpper(parsed) {
		t.Fatal("expected uppercase parsed form")
	}
}

func TestParseCodeNormalizes(t *testing.T) {
	code, err := recovery.GenerateCode()
	if err != nil {
		t.Fatalf("GenerateCode returned error: %v", err)
	}
	want, _ := recovery.ParseCode(code)

	variants := []string{
		strings.ToLower(code),
		strings.ReplaceAll(code, "-", ""),
		"  " + code + "  ",
		strings.ReplaceAll(code, "-", " - "),
	}
	for _, v := range variants {
		got, ok := recovery.ParseCode(v)
		if !ok {
			t.Fatalf("ParseCode rejected variant %q", v)
		}
		if got != want {
			t.Fatalf("ParseCode(%q) = %q, want %q", v, got, want)
		}
	}
}

func TestParseCodeRejectsMalformed(t *testing.T) {
	bad := []string{
		"",
		"ABCD-1234",
		strings.Repeat("A", 63),
		strings.Repeat("A", 65),
		strings.Repeat("G", 64),
		strings.Repeat("A", 60) + "WXYZ",
	}
	for _, in := range bad {
		if _, ok := recovery.ParseCode(in); ok {
			t.Fatalf("ParseCode accepted malformed input %q", in)
		}
	}
}
