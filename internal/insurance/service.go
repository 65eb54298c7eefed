package insurance

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"insurease-backend/internal/shared/storage/policystore"
	"insurease-backend/internal/shared/telemetry"
)

var (
	ErrExists      = errors.New("insurance company already exists")
	ErrNotFound    = errors.New("insurance company not found")
	ErrInvalidName = errors.New("invalid insurance company name")
)

// StoreError wraps an unexpected storage failure during Op ("add" or "delete").
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s insurance company: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Service manages insurance companies, which are top-level folders of the policy store.
type Service struct {
	Store policystore.Store
}

func NewService(store policystore.Store) *Service {
	return &Service{Store: store}
}

// Add creates the company folder and returns the confirmation message.
func (s *Service) Add(ctx context.Context, name string) (string, error) {
	name, err := cleanName(name)
	if err != nil {
		return "", err
	}
	ok, err := s.Store.CompanyExists(ctx, name)
	if err != nil {
		return "", &StoreError{Op: "add", Err: err}
	}
	if ok {
		return "", ErrExists
	}
	if err := s.Store.CreateCompany(ctx, name); err != nil {
		return "", &StoreError{Op: "add", Err: err}
	}
	telemetry.Info("insurance.added", map[string]any{"insurance_name": name})
	return fmt.Sprintf("Insurance company %s added successfully", name), nil
}

// Delete removes the company together with all its policies.
func (s *Service) Delete(ctx context.Context, name string) (string, error) {
	name, err := cleanName(name)
	if err != nil {
		return "", err
	}
	ok, err := s.Store.CompanyExists(ctx, name)
	if err != nil {
		return "", &StoreError{Op: "delete", Err: err}
	}
	if !ok {
		return "", ErrNotFound
	}
	if err := s.Store.DeleteCompany(ctx, name); err != nil {
		if errors.Is(err, policystore.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", &StoreError{Op: "delete", Err: err}
	}
	telemetry.Info("insurance.deleted", map[string]any{"insurance_name": name})
	return fmt.Sprintf("Insurance company %s and all its policies deleted successfully", name), nil
}

func cleanName(name string) (string, error) {
	clean, err := policystore.CleanName(strings.TrimSpace(name))
	if err != nil {
		return "", ErrInvalidName
	}
	return clean, nil
}
