package licensing

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/perkpilot/backend/pkg/db/models"
	"github.com/perkpilot/backend/pkg/enums"
	pkgerrors "github.com/perkpilot/backend/pkg/errors"
)

type fakeUsersRepo struct {
	users map[uuid.UUID]*models.User
}

func (f *fakeUsersRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if user, ok := f.users[id]; ok {
		return user, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func newTestService(t *testing.T, repo Repository, users usersRepository, clock Clock) Service {
	t.Helper()
	signer, err := NewSigner("service-test-secret")
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	issuer, err := NewIssuer(repo, clock, 20)
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	svc, err := NewService(repo, users, signer, issuer, clock)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func activeLicenseFixture(now time.Time) (*models.License, *models.User) {
	key := "abcdefghij1234567890"
	created := now.Add(-30 * 24 * time.Hour)
	end := now.Add(30 * 24 * time.Hour)
	userID := uuid.New()
	license := &models.License{
		ID:                  uuid.New(),
		UserID:              userID,
		APIKey:              &key,
		Role:                enums.RoleFull,
		APIKeyCreatedAt:     &created,
		SubscriptionStatus:  enums.SubscriptionStatusActive,
		SubscriptionEndDate: &end,
	}
	user := &models.User{ID: userID, Username: "perkuser", Email: "perkuser@example.com"}
	return license, user
}

func expectCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error")
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != code {
		t.Fatalf("expected code %s, got %v", code, err)
	}
}

func TestValidateBindsAndSigns(t *testing.T) {
	now := time.Now()
	license, user := activeLicenseFixture(now)
	repo := &fakeRepository{
		findByKeyFn: func(ctx context.Context, apiKey string) (*models.License, error) {
			if apiKey == *license.APIKey {
				return license, nil
			}
			return nil, gorm.ErrRecordNotFound
		},
	}
	users := &fakeUsersRepo{users: map[uuid.UUID]*models.User{user.ID: user}}
	svc := newTestService(t, repo, users, &fakeClock{now: now})

	signed, err := svc.Validate(context.Background(), *license.APIKey, "device-A")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !signed.Valid {
		t.Fatal("expected valid=true")
	}
	if !signed.BoundToDevice {
		t.Fatal("expected boundToDevice=true after first binding")
	}
	if !signed.SubscriptionActive {
		t.Fatal("expected active subscription")
	}
	if signed.ProgramLimit != UnlimitedPrograms {
		t.Fatalf("program limit = %d, want unlimited", signed.ProgramLimit)
	}
	if signed.Username != "perkuser" {
		t.Fatalf("username = %q, want perkuser", signed.Username)
	}
	if signed.RoleLabel != "full" || signed.Role != 2 {
		t.Fatalf("role = %d/%s, want 2/full", signed.Role, signed.RoleLabel)
	}
	if signed.Timestamp != now.UTC().UnixMilli() {
		t.Fatalf("timestamp = %d, want %d", signed.Timestamp, now.UTC().UnixMilli())
	}

	signer, _ := NewSigner("service-test-secret")
	ok, err := signer.Verify(signed.Payload, signed.Signature)
	if err != nil || !ok {
		t.Fatalf("expected signature to verify, ok=%v err=%v", ok, err)
	}
}

func TestValidateSecondDeviceMismatch(t *testing.T) {
	now := time.Now()
	license, user := activeLicenseFixture(now)
	device := "device-A"
	license.InstallationID = &device
	repo := &fakeRepository{
		findByKeyFn: func(ctx context.Context, apiKey string) (*models.License, error) {
			return license, nil
		},
	}
	users := &fakeUsersRepo{users: map[uuid.UUID]*models.User{user.ID: user}}
	svc := newTestService(t, repo, users, &fakeClock{now: now})

	_, err := svc.Validate(context.Background(), *license.APIKey, "device-B")
	expectCode(t, err, pkgerrors.CodeInstallationMismatch)
	if repo.expireCalls != 0 {
		t.Fatal("mismatch must not proceed to subscription evaluation")
	}
}

func TestValidateMissingKey(t *testing.T) {
	repo := &fakeRepository{
		findByKeyFn: func(ctx context.Context, apiKey string) (*models.License, error) {
			t.Fatal("store must not be queried for a missing key")
			return nil, nil
		},
	}
	svc := newTestService(t, repo, &fakeUsersRepo{}, &fakeClock{now: time.Now()})

	_, err := svc.Validate(context.Background(), "   ", "")
	expectCode(t, err, pkgerrors.CodeUnauthorized)
	if typed := pkgerrors.As(err); typed.Message() != "Missing API key" {
		t.Fatalf("message = %q, want Missing API key", typed.Error())
	}
}

func TestValidateShortKeySkipsStore(t *testing.T) {
	repo := &fakeRepository{
		findByKeyFn: func(ctx context.Context, apiKey string) (*models.License, error) {
			t.Fatal("store must not be queried for a short key")
			return nil, nil
		},
	}
	svc := newTestService(t, repo, &fakeUsersRepo{}, &fakeClock{now: time.Now()})

	_, err := svc.Validate(context.Background(), "abcde", "")
	expectCode(t, err, pkgerrors.CodeUnauthorized)
	if typed := pkgerrors.As(err); typed.Message() != "Invalid API key format" {
		t.Fatalf("message = %q, want Invalid API key format", typed.Error())
	}
}

func TestValidateUnknownKey(t *testing.T) {
	repo := &fakeRepository{}
	svc := newTestService(t, repo, &fakeUsersRepo{}, &fakeClock{now: time.Now()})

	_, err := svc.Validate(context.Background(), "abcdefghij1234567890", "")
	expectCode(t, err, pkgerrors.CodeUnauthorized)
	if typed := pkgerrors.As(err); typed.Message() != "Invalid API key" {
		t.Fatalf("message = %q, want Invalid API key", typed.Error())
	}
}

func TestValidateLazyExpiry(t *testing.T) {
	now := time.Now()
	license, user := activeLicenseFixture(now)
	past := now.Add(-time.Hour)
	license.SubscriptionEndDate = &past
	repo := &fakeRepository{
		findByKeyFn: func(ctx context.Context, apiKey string) (*models.License, error) {
			return license, nil
		},
	}
	users := &fakeUsersRepo{users: map[uuid.UUID]*models.User{user.ID: user}}
	svc := newTestService(t, repo, users, &fakeClock{now: now})

	signed, err := svc.Validate(context.Background(), *license.APIKey, "")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if signed.SubscriptionActive {
		t.Fatal("expected lapsed subscription to be inactive")
	}
	if signed.SubscriptionStatus != "EXPIRED" {
		t.Fatalf("status = %s, want EXPIRED", signed.SubscriptionStatus)
	}
	if signed.Role != 1 || signed.RoleLabel != "demo" {
		t.Fatalf("role = %d/%s, want 1/demo", signed.Role, signed.RoleLabel)
	}
	if signed.ProgramLimit != DefaultProgramLimit {
		t.Fatalf("program limit = %d, want %d", signed.ProgramLimit, DefaultProgramLimit)
	}
	if repo.expireCalls != 1 {
		t.Fatalf("expire calls = %d, want 1", repo.expireCalls)
	}
}

func TestValidateIdempotentRepeat(t *testing.T) {
	now := time.Now()
	license, user := activeLicenseFixture(now)
	repo := &fakeRepository{
		findByKeyFn: func(ctx context.Context, apiKey string) (*models.License, error) {
			return license, nil
		},
	}
	users := &fakeUsersRepo{users: map[uuid.UUID]*models.User{user.ID: user}}
	svc := newTestService(t, repo, users, &fakeClock{now: now})

	first, err := svc.Validate(context.Background(), *license.APIKey, "device-A")
	if err != nil {
		t.Fatalf("first validate: %v", err)
	}
	second, err := svc.Validate(context.Background(), *license.APIKey, "device-A")
	if err != nil {
		t.Fatalf("second validate: %v", err)
	}

	if first.BoundToDevice != second.BoundToDevice || first.SubscriptionActive != second.SubscriptionActive {
		t.Fatal("repeated validation must report identical binding and subscription state")
	}
	if repo.bindCalls != 1 {
		t.Fatalf("bind calls = %d, want exactly 1 write across both requests", repo.bindCalls)
	}
	if repo.expireCalls != 0 {
		t.Fatalf("expire calls = %d, want 0", repo.expireCalls)
	}
}

func TestIssueKeyCreatesLicenseForNewUser(t *testing.T) {
	now := time.Now()
	var created *models.License
	repo := &fakeRepository{
		createFn: func(ctx context.Context, license *models.License) error {
			created = license
			return nil
		},
	}
	svc := newTestService(t, repo, &fakeUsersRepo{}, &fakeClock{now: now})

	userID := uuid.New()
	license, key, err := svc.IssueKey(context.Background(), userID)
	if err != nil {
		t.Fatalf("issue key: %v", err)
	}
	if len(key) != 40 {
		t.Fatalf("key length = %d, want 40 hex chars", len(key))
	}
	if strings.ToLower(key) != key {
		t.Fatal("expected lowercase hex key")
	}
	if created == nil || created.UserID != userID {
		t.Fatal("expected license row to be created for user")
	}
	if license.SubscriptionStatus != enums.SubscriptionStatusTrial {
		t.Fatalf("status = %s, want TRIAL", license.SubscriptionStatus)
	}
	if license.Role != enums.RoleDemo {
		t.Fatalf("role = %d, want demo", license.Role)
	}
}

func TestIssueKeyRotatesAndClearsBinding(t *testing.T) {
	now := time.Now()
	existing, _ := activeLicenseFixture(now)
	device := "device-A"
	existing.InstallationID = &device

	var rotatedKey string
	repo := &fakeRepository{
		findByUserFn: func(ctx context.Context, userID uuid.UUID) (*models.License, error) {
			return existing, nil
		},
		setAPIKeyFn: func(ctx context.Context, id uuid.UUID, apiKey string, ts time.Time) error {
			rotatedKey = apiKey
			return nil
		},
	}
	svc := newTestService(t, repo, &fakeUsersRepo{}, &fakeClock{now: now})

	license, key, err := svc.IssueKey(context.Background(), existing.UserID)
	if err != nil {
		t.Fatalf("rotate key: %v", err)
	}
	if key != rotatedKey {
		t.Fatal("returned key must match the stored key")
	}
	if license.InstallationID != nil || license.InstallationBoundAt != nil {
		t.Fatal("rotation must clear the installation binding")
	}
}

func TestRevokeKeyUnknownLicense(t *testing.T) {
	svc := newTestService(t, &fakeRepository{}, &fakeUsersRepo{}, &fakeClock{now: time.Now()})
	err := svc.RevokeKey(context.Background(), uuid.New())
	expectCode(t, err, pkgerrors.CodeNotFound)
}

func TestSetRoleRejectsUnknownRole(t *testing.T) {
	svc := newTestService(t, &fakeRepository{}, &fakeUsersRepo{}, &fakeClock{now: time.Now()})
	err := svc.SetRole(context.Background(), uuid.New(), enums.Role(42))
	expectCode(t, err, pkgerrors.CodeValidation)
}
