package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"insurease-backend/internal/shared/storage/policystore"
	localstore "insurease-backend/internal/shared/storage/policystore/local"
)

func TestPDFTextExtractsContentStream(t *testing.T) {
	text, err := PDFText(minimalPDF("Policy coverage includes water damage"))
	if err != nil {
		t.Fatalf("PDFText: %v", err)
	}
	if !strings.Contains(text, "Policy coverage includes water damage") {
		t.Fatalf("unexpected text %q", text)
	}
}

func TestPDFTextRejectsNonPDF(t *testing.T) {
	if _, err := PDFText([]byte("hello world")); !errors.Is(err, ErrNotPDF) {
		t.Fatalf("expected ErrNotPDF, got %v", err)
	}
}

func TestPolicyTextReadsFromStore(t *testing.T) {
	store := localstore.New(t.TempDir())
	ctx := context.Background()
	if err := store.CreateCompany(ctx, "Tryg"); err != nil {
		t.Fatalf("CreateCompany: %v", err)
	}
	if _, err := store.SavePolicy(ctx, "Tryg", "Indbo", bytes.NewReader(minimalPDF("Indbo terms"))); err != nil {
		t.Fatalf("SavePolicy: %v", err)
	}

	text, err := PolicyText(ctx, store, "Tryg", "Indbo")
	if err != nil {
		t.Fatalf("PolicyText: %v", err)
	}
	if !strings.Contains(text, "Indbo terms") {
		t.Fatalf("unexpected text %q", text)
	}

	if _, err := PolicyText(ctx, store, "Tryg", "Bil"); !errors.Is(err, policystore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{name: "shorter", in: "abc", n: 5, want: "abc"},
		{name: "exact", in: "abc", n: 3, want: "abc"},
		{name: "cut", in: "abcdef", n: 4, want: "abcd"},
		{name: "runes", in: "æøåæøå", n: 4, want: "æøåæ"},
		{name: "zero", in: "abc", n: 0, want: ""},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Truncate(tt.in, tt.n)
			if got != tt.want {
				t.Fatalf("Truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Fatalf("Truncate produced invalid utf-8")
			}
		})
	}
}

// minimalPDF builds a one-page PDF whose content stream draws text with Helvetica.
func minimalPDF(text string) []byte {
	content := fmt.Sprintf("BT /F1 12 Tf 72 712 Td (%s) Tj ET", text)
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}
