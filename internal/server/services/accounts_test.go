package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/funews/funews/internal/common"
	"golang.org/x/crypto/bcrypt"
)

func newAccountService(t *testing.T, rm *fakeRepoManager) (*AccountService, *SessionService) {
	t.Helper()
	db, _ := newSQLMockDB(t)
	t.Cleanup(func() { db.Close() })
	sessions := newSessionService(t, db, rm)
	return NewAccountService(db, rm, sessions, discardLogger()), sessions
}

func TestChangePassword_RevokesActiveSessions(t *testing.T) {
	account := activeAccount(t, 1, "old-pw")
	rm := newFixture(t, account)
	s, _ := newAccountService(t, rm)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := rm.r.Create(ctx, 1, time.Hour); err != nil {
			t.Fatalf("seed error: %v", err)
		}
	}

	if err := s.ChangePassword(ctx, 1, "old-pw", "new-pw"); err != nil {
		t.Fatalf("ChangePassword error: %v", err)
	}

	rows, _ := rm.r.FindActiveByAccount(ctx, 1)
	if len(rows) != 0 {
		t.Fatalf("expected all sessions revoked, %d still active", len(rows))
	}
}

func TestChangePassword_WrongCurrentPassword(t *testing.T) {
	rm := newFixture(t, activeAccount(t, 1, "old-pw"))
	s, _ := newAccountService(t, rm)

	ctx := context.Background()
	if _, err := rm.r.Create(ctx, 1, time.Hour); err != nil {
		t.Fatalf("seed error: %v", err)
	}

	err := s.ChangePassword(ctx, 1, "guess", "new-pw")
	if !errors.Is(err, common.ErrorUnauthorized) {
		t.Fatalf("want ErrorUnauthorized, got %v", err)
	}
	rows, _ := rm.r.FindActiveByAccount(ctx, 1)
	if len(rows) != 1 {
		t.Fatal("sessions must survive a failed password change")
	}
}

func TestSetActive_DeactivationRevokesSessions(t *testing.T) {
	rm := newFixture(t, activeAccount(t, 1, "pw"))
	s, _ := newAccountService(t, rm)

	ctx := context.Background()
	if _, err := rm.r.Create(ctx, 1, time.Hour); err != nil {
		t.Fatalf("seed error: %v", err)
	}

	if err := s.SetActive(ctx, 1, false); err != nil {
		t.Fatalf("SetActive error: %v", err)
	}
	rows, _ := rm.r.FindActiveByAccount(ctx, 1)
	if len(rows) != 0 {
		t.Fatal("deactivation must revoke sessions")
	}
}

func TestSetActive_ReactivationKeepsLedgerUntouched(t *testing.T) {
	rm := newFixture(t, activeAccount(t, 1, "pw"))
	s, _ := newAccountService(t, rm)

	ctx := context.Background()
	if _, err := rm.r.Create(ctx, 1, time.Hour); err != nil {
		t.Fatalf("seed error: %v", err)
	}

	if err := s.SetActive(ctx, 1, true); err != nil {
		t.Fatalf("SetActive error: %v", err)
	}
	rows, _ := rm.r.FindActiveByAccount(ctx, 1)
	if len(rows) != 1 {
		t.Fatal("activation must not touch the ledger")
	}
}

func TestCreate_HashesPassword(t *testing.T) {
	rm := newFixture(t, nil)
	s, _ := newAccountService(t, rm)

	account, err := s.Create(context.Background(), "Bob", "b@x.com", "secret", "Lecturer")
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if account.PasswordHash == "secret" {
		t.Fatal("password must not be stored in clear")
	}
	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte("secret")) != nil {
		t.Fatal("stored digest must verify against the original password")
	}
}
