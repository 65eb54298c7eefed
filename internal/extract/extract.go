package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"insurease-backend/internal/shared/storage/policystore"
)

var ErrNotPDF = errors.New("not a pdf document")

// Source returns the plain text of one stored policy.
type Source func(ctx context.Context, company, policy string) (string, error)

// FromStore reads policies through PolicyText.
func FromStore(store policystore.Store) Source {
	return func(ctx context.Context, company, policy string) (string, error) {
		return PolicyText(ctx, store, company, policy)
	}
}

// PolicyText reads <company>/<policy>.pdf from the store and returns its plain text.
func PolicyText(ctx context.Context, store policystore.Store, company, policy string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	body, err := store.OpenPolicy(ctx, company, policy)
	if err != nil {
		return "", fmt.Errorf("extract text %s/%s: %w", company, policy, err)
	}
	defer body.Close()

	raw, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("extract text %s/%s: read: %w", company, policy, err)
	}

	text, err := PDFText(raw)
	if err != nil {
		return "", fmt.Errorf("extract text %s/%s: %w", company, policy, err)
	}
	return text, nil
}

// PDFText extracts the plain text of every page, concatenated in page order.
func PDFText(data []byte) (string, error) {
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return "", ErrNotPDF
	}
	reader := bytes.NewReader(data)
	pdfReader, err := pdf.NewReader(reader, int64(len(data)))
	if err != nil {
		return "", err
	}
	plain, err := pdfReader.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Truncate returns at most n characters of text. It never splits a UTF-8 sequence.
func Truncate(text string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	count := 0
	for i := range text {
		if count == n {
			return text[:i]
		}
		count++
	}
	return text
}
