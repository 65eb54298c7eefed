package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"insurease-backend/internal/shared/storage/policystore"
)

// Store implements policystore.Store on the local filesystem.
type Store struct {
	baseDir string
}

// New creates a policy store rooted at baseDir.
func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) CompanyExists(ctx context.Context, company string) (bool, error) {
	dir, err := s.companyDir(ctx, company)
	if err != nil {
		return false, err
	}
	return exists(dir)
}

func (s *Store) CreateCompany(ctx context.Context, company string) error {
	dir, err := s.companyDir(ctx, company)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	return nil
}

func (s *Store) DeleteCompany(ctx context.Context, company string) error {
	dir, err := s.companyDir(ctx, company)
	if err != nil {
		return err
	}
	ok, err := exists(dir)
	if err != nil {
		return err
	}
	if !ok {
		return policystore.ErrNotFound
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove company: %w", err)
	}
	return nil
}

func (s *Store) PolicyExists(ctx context.Context, company, policy string) (bool, error) {
	p, err := s.policyPath(ctx, company, policy)
	if err != nil {
		return false, err
	}
	return exists(p)
}

// SavePolicy writes to a temporary file first so readers never observe a partial PDF.
func (s *Store) SavePolicy(ctx context.Context, company, policy string, r io.Reader) (int64, error) {
	p, err := s.policyPath(ctx, company, policy)
	if err != nil {
		return 0, err
	}
	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	written, copyErr := io.Copy(tmp, r)
	closeErr := tmp.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(tmpName)
		if copyErr != nil {
			return 0, fmt.Errorf("write body: %w", copyErr)
		}
		return 0, fmt.Errorf("close file: %w", closeErr)
	}
	if err := os.Rename(tmpName, p); err != nil {
		_ = os.Remove(tmpName)
		return 0, fmt.Errorf("rename: %w", err)
	}
	return written, nil
}

func (s *Store) OpenPolicy(ctx context.Context, company, policy string) (io.ReadCloser, error) {
	p, err := s.policyPath(ctx, company, policy)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", policystore.ErrNotFound, p)
		}
		return nil, err
	}
	return f, nil
}

func (s *Store) DeletePolicy(ctx context.Context, company, policy string) error {
	p, err := s.policyPath(ctx, company, policy)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return policystore.ErrNotFound
		}
		return err
	}
	return nil
}

func (s *Store) Structure(ctx context.Context) (map[string][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	info, err := os.Stat(s.baseDir)
	if err != nil || !info.IsDir() {
		return nil, policystore.ErrBaseMissing
	}
	companies, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("read base folder: %w", err)
	}

	out := make(map[string][]string)
	for _, company := range companies {
		if !company.IsDir() {
			continue
		}
		entries, err := os.ReadDir(filepath.Join(s.baseDir, company.Name()))
		if err != nil {
			return nil, fmt.Errorf("read company folder %s: %w", company.Name(), err)
		}
		policies := make([]string, 0, len(entries))
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), policystore.Extension) {
				continue
			}
			policies = append(policies, strings.TrimSuffix(e.Name(), policystore.Extension))
		}
		sort.Strings(policies)
		out[company.Name()] = policies
	}
	return out, nil
}

func (s *Store) companyDir(ctx context.Context, company string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name, err := policystore.CleanName(company)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.baseDir, name), nil
}

func (s *Store) policyPath(ctx context.Context, company, policy string) (string, error) {
	dir, err := s.companyDir(ctx, company)
	if err != nil {
		return "", err
	}
	name, err := policystore.CleanName(policy)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, policystore.PolicyFile(name)), nil
}

func exists(p string) (bool, error) {
	_, err := os.Stat(p)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

var _ policystore.Store = (*Store)(nil)
