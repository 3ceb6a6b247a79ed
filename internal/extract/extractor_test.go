package extract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func newTestExtractor(t *testing.T) *Extractor {
	t.Helper()
	ex, err := NewExtractor(context.Background())
	if err != nil {
		t.Fatalf("new extractor: %v", err)
	}
	return ex
}

func TestExtractPlainText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "essay.txt")
	if err := os.WriteFile(path, []byte("  The cat sat on the mat.\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	text, err := newTestExtractor(t).Extract(context.Background(), path, MIMEText)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if text != "The cat sat on the mat." {
		t.Fatalf("unexpected text %q", text)
	}
}

func TestExtractEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blank.txt")
	if err := os.WriteFile(path, []byte("   \n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := newTestExtractor(t).Extract(context.Background(), path, MIMEText); !errors.Is(err, ErrEmptyDocument) {
		t.Fatalf("expected empty document error, got %v", err)
	}
}

func TestExtractUnsupportedKnownTypes(t *testing.T) {
	ex := newTestExtractor(t)
	for _, mt := range []string{MIMEPDF, MIMEDOCX} {
		if _, err := ex.Extract(context.Background(), "/nonexistent", mt); !errors.Is(err, ErrExtractionUnsupported) {
			t.Fatalf("%s: expected ErrExtractionUnsupported, got %v", mt, err)
		}
	}
	if _, err := ex.Extract(context.Background(), "/nonexistent", "image/png"); !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("expected ErrUnsupportedType, got %v", err)
	}
}

func TestResolveType(t *testing.T) {
	cases := []struct {
		declared, name, want string
	}{
		{"text/plain; charset=utf-8", "a.bin", MIMEText},
		{"", "report.PDF", MIMEPDF},
		{"application/octet-stream", "thesis.docx", MIMEDOCX},
		{MIMEDOCX, "thesis", MIMEDOCX},
	}
	for _, tc := range cases {
		got, err := ResolveType(tc.declared, tc.name)
		if err != nil || got != tc.want {
			t.Fatalf("ResolveType(%q, %q) = %q, %v; want %q", tc.declared, tc.name, got, err, tc.want)
		}
	}
	if _, err := ResolveType("image/png", "cat.png"); !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("expected unsupported type, got %v", err)
	}
	if _, err := ResolveType("", "archive.zip"); !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("expected unsupported extension, got %v", err)
	}
}

func TestMatchesContent(t *testing.T) {
	if !MatchesContent(MIMEText, []byte("plain words here")) {
		t.Fatalf("text should match text/plain")
	}
	if !MatchesContent(MIMEPDF, []byte("%PDF-1.7\n")) {
		t.Fatalf("pdf header should match")
	}
	if !MatchesContent(MIMEDOCX, []byte("PK\x03\x04\x14\x00\x06\x00")) {
		t.Fatalf("zip header should match docx")
	}
	if MatchesContent(MIMEText, []byte("%PDF-1.7\n")) {
		t.Fatalf("pdf bytes declared as text must be rejected")
	}
	if MatchesContent(MIMEPDF, []byte("just text")) {
		t.Fatalf("text declared as pdf must be rejected")
	}
}
