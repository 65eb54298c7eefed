package policystore

import (
	"context"
	"errors"
	"fmt"
	"io"

	"insurease-backend/internal/shared/util"
)

// Extension is appended to every stored policy name.
const Extension = ".pdf"

var (
	ErrNotFound    = errors.New("not found")
	ErrBaseMissing = errors.New("policy base folder not found")
	ErrInvalidName = errors.New("invalid name")
)

// Store persists insurance companies and their policy PDFs as <company>/<policy>.pdf.
type Store interface {
	CompanyExists(ctx context.Context, company string) (bool, error)
	CreateCompany(ctx context.Context, company string) error
	// DeleteCompany removes the company and every policy below it.
	DeleteCompany(ctx context.Context, company string) error
	PolicyExists(ctx context.Context, company, policy string) (bool, error)
	SavePolicy(ctx context.Context, company, policy string, r io.Reader) (int64, error)
	OpenPolicy(ctx context.Context, company, policy string) (io.ReadCloser, error)
	DeletePolicy(ctx context.Context, company, policy string) error
	// Structure maps each company to its sorted policy names without extension.
	Structure(ctx context.Context) (map[string][]string, error)
}

// CleanName validates a company or policy name.
func CleanName(name string) (string, error) {
	s, err := util.CleanSegment(name)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return s, nil
}

// PolicyFile returns the file name of a policy.
func PolicyFile(policy string) string {
	return policy + Extension
}
