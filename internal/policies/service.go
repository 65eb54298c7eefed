package policies

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"insurease-backend/internal/shared/storage/policystore"
	"insurease-backend/internal/shared/telemetry"
)

var (
	ErrNotPDF          = errors.New("file must be a PDF")
	ErrInvalidName     = errors.New("invalid insurance or policy name")
	ErrCompanyNotFound = errors.New("insurance company not found")
	ErrPolicyNotFound  = errors.New("policy file not found")
	ErrBaseMissing     = errors.New("insurance folder not found")
)

// OpError wraps an unexpected storage failure during Op ("upload", "delete" or "list").
type OpError struct {
	Op  string
	Err error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s policy: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

type Service struct {
	Store policystore.Store
}

func NewService(store policystore.Store) *Service {
	return &Service{Store: store}
}

// Upload stores r as <company>/<policy>.pdf. fileName is the client's name for the upload
// and must carry a .pdf extension.
func (s *Service) Upload(ctx context.Context, fileName, company, policy string, r io.Reader) (string, error) {
	if err := CheckFileName(fileName); err != nil {
		return "", err
	}
	company, policy, err := cleanNames(company, policy)
	if err != nil {
		return "", err
	}
	ok, err := s.Store.CompanyExists(ctx, company)
	if err != nil {
		return "", &OpError{Op: "upload", Err: err}
	}
	if !ok {
		return "", ErrCompanyNotFound
	}
	size, err := s.Store.SavePolicy(ctx, company, policy, r)
	if err != nil {
		return "", &OpError{Op: "upload", Err: err}
	}
	telemetry.Info("policy.uploaded", map[string]any{
		"insurance_name": company,
		"policy_name":    policy,
		"bytes":          size,
	})
	return fmt.Sprintf("Successfully uploaded %s/%s", company, policystore.PolicyFile(policy)), nil
}

// Delete removes <company>/<policy>.pdf.
func (s *Service) Delete(ctx context.Context, company, policy string) (string, error) {
	company, policy, err := cleanNames(company, policy)
	if err != nil {
		return "", err
	}
	ok, err := s.Store.PolicyExists(ctx, company, policy)
	if err != nil {
		return "", &OpError{Op: "delete", Err: err}
	}
	if !ok {
		return "", ErrPolicyNotFound
	}
	if err := s.Store.DeletePolicy(ctx, company, policy); err != nil {
		if errors.Is(err, policystore.ErrNotFound) {
			return "", ErrPolicyNotFound
		}
		return "", &OpError{Op: "delete", Err: err}
	}
	telemetry.Info("policy.deleted", map[string]any{
		"insurance_name": company,
		"policy_name":    policy,
	})
	return fmt.Sprintf("Successfully deleted %s/%s", company, policystore.PolicyFile(policy)), nil
}

// List maps every company to its policy names.
func (s *Service) List(ctx context.Context) (map[string][]string, error) {
	structure, err := s.Store.Structure(ctx)
	if err != nil {
		if errors.Is(err, policystore.ErrBaseMissing) {
			return nil, ErrBaseMissing
		}
		return nil, &OpError{Op: "list", Err: err}
	}
	return structure, nil
}

// CheckFileName accepts only upload names ending in .pdf, in any case.
func CheckFileName(fileName string) error {
	if !strings.HasSuffix(strings.ToLower(strings.TrimSpace(fileName)), policystore.Extension) {
		return ErrNotPDF
	}
	return nil
}

func cleanNames(company, policy string) (string, string, error) {
	c, err := policystore.CleanName(strings.TrimSpace(company))
	if err != nil {
		return "", "", ErrInvalidName
	}
	p := strings.TrimSpace(policy)
	if strings.HasSuffix(strings.ToLower(p), policystore.Extension) {
		p = p[:len(p)-len(policystore.Extension)]
	}
	p, err = policystore.CleanName(p)
	if err != nil {
		return "", "", ErrInvalidName
	}
	return c, p, nil
}
