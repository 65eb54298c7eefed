package users

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"insurease-backend/internal/shared/auth"
)

func newTestService() *Service {
	svc := NewService(NewMemoryRepo(), bcrypt.MinCost)
	fixed := time.Date(2026, time.February, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }
	return svc
}

func mustCreate(t *testing.T, svc *Service, actor *User, email, role string) User {
	t.Helper()
	u, err := svc.Create(context.Background(), actor, CreateInput{
		Email:    email,
		Password: "hemmeligt",
		FullName: "Test Person",
		Role:     role,
	})
	if err != nil {
		t.Fatalf("Create(%s): %v", email, err)
	}
	return u
}

func TestCreateHashesPasswordAndDefaults(t *testing.T) {
	svc := newTestService()
	u, err := svc.Create(context.Background(), nil, CreateInput{
		Email:             "  Anna@Example.DK ",
		Password:          "hemmeligt",
		FullName:          "Anna Jensen",
		Role:              "admin",
		BureauAffiliation: "Tryg Forsikring",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if u.Email != "anna@example.dk" {
		t.Fatalf("expected normalized email, got %q", u.Email)
	}
	if u.Role != RoleUser {
		t.Fatalf("expected public sign-up to force role user, got %q", u.Role)
	}
	if u.AccountStatus != StatusActive {
		t.Fatalf("expected active status, got %q", u.AccountStatus)
	}
	if u.ID == "" || u.CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamps, got %+v", u)
	}
	if err := auth.ComparePassword(u.PasswordHash, "hemmeligt"); err != nil {
		t.Fatalf("expected stored bcrypt hash: %v", err)
	}
}

func TestCreateByAdminMayAssignRole(t *testing.T) {
	svc := newTestService()
	admin := User{ID: "admin-1", Role: RoleAdmin}
	u := mustCreate(t, svc, &admin, "boss@example.dk", "admin")
	if u.Role != RoleAdmin {
		t.Fatalf("expected admin role, got %q", u.Role)
	}
}

func TestCreateRejectsDuplicateEmail(t *testing.T) {
	svc := newTestService()
	mustCreate(t, svc, nil, "anna@example.dk", "")
	_, err := svc.Create(context.Background(), nil, CreateInput{Email: "ANNA@example.dk", Password: "x", FullName: "Anna"})
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestCreateValidatesInput(t *testing.T) {
	svc := newTestService()
	cases := []CreateInput{
		{Email: "", Password: "x", FullName: "A"},
		{Email: "not-an-email", Password: "x", FullName: "A"},
		{Email: "a@example.dk", Password: "", FullName: "A"},
		{Email: "a@example.dk", Password: "x", FullName: " "},
	}
	for _, in := range cases {
		if _, err := svc.Create(context.Background(), nil, in); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("Create(%+v) expected ErrInvalidInput, got %v", in, err)
		}
	}
}

func TestOwnershipRules(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	alice := mustCreate(t, svc, nil, "alice@example.dk", "")
	bob := mustCreate(t, svc, nil, "bob@example.dk", "")
	admin := User{ID: "admin-1", Role: RoleAdmin}

	if _, err := svc.Get(ctx, alice, alice.ID); err != nil {
		t.Fatalf("self read: %v", err)
	}
	if _, err := svc.Get(ctx, alice, bob.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden reading other user, got %v", err)
	}
	if _, err := svc.Get(ctx, admin, bob.ID); err != nil {
		t.Fatalf("admin read: %v", err)
	}

	name := "Alice Updated"
	if _, err := svc.Update(ctx, alice, bob.ID, UpdateInput{FullName: &name}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden updating other user, got %v", err)
	}
	if err := svc.Delete(ctx, alice, bob.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden deleting other user, got %v", err)
	}
	if _, err := svc.List(ctx, alice, 0, 0); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden listing users, got %v", err)
	}

	if err := svc.Delete(ctx, admin, bob.ID); err != nil {
		t.Fatalf("admin delete: %v", err)
	}
	if err := svc.Delete(ctx, admin, bob.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestUpdateIsPartialAndGuardsRole(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	alice := mustCreate(t, svc, nil, "alice@example.dk", "")
	later := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return later }

	admin := "admin"
	if _, err := svc.Update(ctx, alice, alice.ID, UpdateInput{Role: &admin}); !errors.Is(err, ErrRoleChange) {
		t.Fatalf("expected ErrRoleChange, got %v", err)
	}
	suspended := StatusSuspended
	if _, err := svc.Update(ctx, alice, alice.ID, UpdateInput{AccountStatus: &suspended}); !errors.Is(err, ErrStatusChange) {
		t.Fatalf("expected ErrStatusChange, got %v", err)
	}

	password := "nyt-kodeord"
	affiliation := "Codan Forsikring"
	updated, err := svc.Update(ctx, alice, alice.ID, UpdateInput{Password: &password, BureauAffiliation: &affiliation})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.FullName != alice.FullName || updated.Email != alice.Email {
		t.Fatalf("expected untouched fields to survive, got %+v", updated)
	}
	if updated.BureauAffiliation != "Codan Forsikring" {
		t.Fatalf("unexpected affiliation %q", updated.BureauAffiliation)
	}
	if err := auth.ComparePassword(updated.PasswordHash, "nyt-kodeord"); err != nil {
		t.Fatalf("expected password rehashed: %v", err)
	}
	if !updated.UpdatedAt.Equal(later) {
		t.Fatalf("expected updatedAt refreshed, got %s", updated.UpdatedAt)
	}

	adminActor := User{ID: "admin-1", Role: RoleAdmin}
	promoted, err := svc.Update(ctx, adminActor, alice.ID, UpdateInput{Role: &admin})
	if err != nil {
		t.Fatalf("admin Update: %v", err)
	}
	if promoted.Role != RoleAdmin {
		t.Fatalf("expected promoted role, got %q", promoted.Role)
	}
}

func TestUpdateEmailConflict(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	alice := mustCreate(t, svc, nil, "alice@example.dk", "")
	mustCreate(t, svc, nil, "bob@example.dk", "")

	taken := "bob@example.dk"
	if _, err := svc.Update(ctx, alice, alice.ID, UpdateInput{Email: &taken}); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestListPaging(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	for i, email := range []string{"a@example.dk", "b@example.dk", "c@example.dk"} {
		ts := time.Date(2026, time.February, 1, 9, i, 0, 0, time.UTC)
		svc.now = func() time.Time { return ts }
		mustCreate(t, svc, nil, email, "")
	}
	admin := User{ID: "admin-1", Role: RoleAdmin}

	page, err := svc.List(ctx, admin, 1, 1)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page) != 1 || page[0].Email != "b@example.dk" {
		t.Fatalf("unexpected page %+v", page)
	}
	all, _ := svc.List(ctx, admin, 0, DefaultListLimit)
	if len(all) != 3 {
		t.Fatalf("expected default limit to return all 3, got %d", len(all))
	}
	if _, err := svc.List(ctx, admin, 0, 0); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for zero limit, got %v", err)
	}
	if _, err := svc.List(ctx, admin, -1, 10); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for negative skip, got %v", err)
	}
	if _, err := svc.List(ctx, admin, 0, 101); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for large limit, got %v", err)
	}
}

func TestAuthenticate(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	alice := mustCreate(t, svc, nil, "alice@example.dk", "")

	got, err := svc.Authenticate(ctx, "Alice@example.dk", "hemmeligt")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if got.ID != alice.ID {
		t.Fatalf("unexpected user %+v", got)
	}
	if _, err := svc.Authenticate(ctx, "alice@example.dk", "forkert"); !errors.Is(err, auth.ErrPasswordMismatch) {
		t.Fatalf("expected ErrPasswordMismatch, got %v", err)
	}
	if _, err := svc.Authenticate(ctx, "nobody@example.dk", "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := svc.TouchLastLogin(ctx, &got); err != nil {
		t.Fatalf("TouchLastLogin: %v", err)
	}
	stored, _ := svc.Repo.GetByID(ctx, alice.ID)
	if stored.LastLogin == nil {
		t.Fatalf("expected last login recorded")
	}
}

func TestEnsureAdminIsIdempotent(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	created, err := svc.EnsureAdmin(ctx, "Admin@InsurEase.dk", "hemmeligt", "")
	if err != nil || !created {
		t.Fatalf("EnsureAdmin: created=%v err=%v", created, err)
	}
	u, err := svc.GetByEmail(ctx, "admin@insurease.dk")
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}
	if u.Role != RoleAdmin || u.FullName != "Administrator" {
		t.Fatalf("unexpected admin %+v", u)
	}

	created, err = svc.EnsureAdmin(ctx, "admin@insurease.dk", "andet", "")
	if err != nil || created {
		t.Fatalf("second EnsureAdmin: created=%v err=%v", created, err)
	}
}
