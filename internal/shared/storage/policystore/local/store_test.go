package local

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"insurease-backend/internal/shared/storage/policystore"
)

func TestCompanyLifecycle(t *testing.T) {
	base := t.TempDir()
	s := New(base)
	ctx := context.Background()

	ok, err := s.CompanyExists(ctx, "Tryg")
	if err != nil || ok {
		t.Fatalf("expected missing company, got ok=%v err=%v", ok, err)
	}
	if err := s.CreateCompany(ctx, "Tryg"); err != nil {
		t.Fatalf("CreateCompany: %v", err)
	}
	if _, err := s.SavePolicy(ctx, "Tryg", "Indbo", strings.NewReader("%PDF-1.4")); err != nil {
		t.Fatalf("SavePolicy: %v", err)
	}
	if err := s.DeleteCompany(ctx, "Tryg"); err != nil {
		t.Fatalf("DeleteCompany: %v", err)
	}
	if _, err := os.Stat(filepath.Join(base, "Tryg")); !os.IsNotExist(err) {
		t.Fatalf("expected company folder removed, got %v", err)
	}
	if err := s.DeleteCompany(ctx, "Tryg"); !errors.Is(err, policystore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestSaveOpenDeletePolicy(t *testing.T) {
	base := t.TempDir()
	s := New(base)
	ctx := context.Background()
	if err := s.CreateCompany(ctx, "Tryg"); err != nil {
		t.Fatalf("CreateCompany: %v", err)
	}

	n, err := s.SavePolicy(ctx, "Tryg", "Indbo", strings.NewReader("%PDF-1.4 body"))
	if err != nil {
		t.Fatalf("SavePolicy: %v", err)
	}
	if n != int64(len("%PDF-1.4 body")) {
		t.Fatalf("unexpected size %d", n)
	}
	if _, err := os.Stat(filepath.Join(base, "Tryg", "Indbo.pdf")); err != nil {
		t.Fatalf("expected Indbo.pdf on disk: %v", err)
	}

	rc, err := s.OpenPolicy(ctx, "Tryg", "Indbo")
	if err != nil {
		t.Fatalf("OpenPolicy: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "%PDF-1.4 body" {
		t.Fatalf("unexpected content %q", data)
	}

	if err := s.DeletePolicy(ctx, "Tryg", "Indbo"); err != nil {
		t.Fatalf("DeletePolicy: %v", err)
	}
	if err := s.DeletePolicy(ctx, "Tryg", "Indbo"); !errors.Is(err, policystore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.OpenPolicy(ctx, "Tryg", "Indbo"); !errors.Is(err, policystore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on open, got %v", err)
	}
}

func TestStructureListsPDFStemsPerCompany(t *testing.T) {
	base := t.TempDir()
	mustWrite(t, filepath.Join(base, "Tryg", "Indbo.pdf"))
	mustWrite(t, filepath.Join(base, "Tryg", "Bil.pdf"))
	mustWrite(t, filepath.Join(base, "Tryg", "notes.txt"))
	mustWrite(t, filepath.Join(base, "Tryg", "Tryg_Indbo_index", "docstore.json"))
	mustWrite(t, filepath.Join(base, "stray.pdf"))
	if err := os.MkdirAll(filepath.Join(base, "Alka"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	got, err := New(base).Structure(context.Background())
	if err != nil {
		t.Fatalf("Structure: %v", err)
	}
	want := map[string][]string{
		"Tryg": {"Bil", "Indbo"},
		"Alka": {},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Structure() = %#v, want %#v", got, want)
	}
}

func TestStructureMissingBase(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "missing"))
	if _, err := s.Structure(context.Background()); !errors.Is(err, policystore.ErrBaseMissing) {
		t.Fatalf("expected ErrBaseMissing, got %v", err)
	}
}

func TestRejectsTraversalNames(t *testing.T) {
	base := t.TempDir()
	s := New(base)
	ctx := context.Background()

	if err := s.CreateCompany(ctx, ".."); !errors.Is(err, policystore.ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
	if _, err := s.SavePolicy(ctx, "Tryg", "../../etc/passwd", strings.NewReader("x")); !errors.Is(err, policystore.ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
	entries, _ := os.ReadDir(base)
	if len(entries) != 0 {
		t.Fatalf("expected nothing written, found %d entries", len(entries))
	}
}

func mustWrite(t *testing.T, p string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(p, []byte("%PDF-1.4"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}
