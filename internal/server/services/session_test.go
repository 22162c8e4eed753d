package services

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/funews/funews/internal/common"
	"github.com/funews/funews/internal/dbx"
	"github.com/funews/funews/internal/logging"
	"github.com/funews/funews/internal/server/auth"
	"github.com/funews/funews/internal/server/config"
	"github.com/funews/funews/internal/server/models"
	accountsrepo "github.com/funews/funews/internal/server/repositories/accounts"
	articlesrepo "github.com/funews/funews/internal/server/repositories/articles"
	categoriesrepo "github.com/funews/funews/internal/server/repositories/categories"
	refreshtokensrepo "github.com/funews/funews/internal/server/repositories/refreshtokens"
	tagsrepo "github.com/funews/funews/internal/server/repositories/tags"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"
)

// --- helpers ---

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

func testConfig() *config.Config {
	return &config.Config{
		SecretKey:                    "k",
		TokenIssuer:                  "funews",
		TokenAudience:                "funews-api",
		AccessTokenValidityDuration:  time.Hour,
		RefreshTokenValidityDuration: 2 * time.Hour,
	}
}

func discardLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newSessionService(t *testing.T, db *sql.DB, rm *fakeRepoManager) *SessionService {
	t.Helper()
	return NewSessionService(db, rm, testConfig(), discardLogger())
}

// mintAccessToken signs a token with the same key material the service uses.
func mintAccessToken(t *testing.T, accountID int64, ttl time.Duration) string {
	t.Helper()
	cfg := testConfig()
	codec := auth.NewCodec([]byte(cfg.SecretKey), cfg.TokenIssuer, cfg.TokenAudience, ttl)
	token, _, err := codec.Mint(accountID, "a@x.com", "Staff")
	if err != nil {
		t.Fatalf("mint error: %v", err)
	}
	return token
}

func hashPassword(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt error: %v", err)
	}
	return string(h)
}

type fakeAccountsRepo struct {
	byEmail map[string]*models.Account
	byID    map[int64]*models.Account
	getErr  error
}

func (f *fakeAccountsRepo) Create(ctx context.Context, a *models.Account) (*models.Account, error) {
	return a, nil
}
func (f *fakeAccountsRepo) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if a, ok := f.byEmail[email]; ok {
		return a, nil
	}
	return nil, common.ErrorNotFound
}
func (f *fakeAccountsRepo) GetByID(ctx context.Context, id int64) (*models.Account, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if a, ok := f.byID[id]; ok {
		return a, nil
	}
	return nil, common.ErrorNotFound
}
func (f *fakeAccountsRepo) List(ctx context.Context) ([]*models.Account, error) { return nil, nil }
func (f *fakeAccountsRepo) UpdateProfile(ctx context.Context, id int64, name, email string) error {
	return nil
}
func (f *fakeAccountsRepo) UpdatePassword(ctx context.Context, id int64, hash string) error {
	return nil
}
func (f *fakeAccountsRepo) SetActive(ctx context.Context, id int64, active bool) error { return nil }

// memoryLedger is a mutex-guarded in-memory refresh token store. The mutex
// makes MarkUsedAndChain behave like the real conditional update: under
// concurrent callers exactly one transition wins.
type memoryLedger struct {
	mu     sync.Mutex
	rows   map[string]*models.RefreshToken
	nextID int64
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{rows: map[string]*models.RefreshToken{}}
}

func (l *memoryLedger) put(row *models.RefreshToken) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	row.ID = l.nextID
	l.rows[row.Token] = row
}

func (l *memoryLedger) Create(ctx context.Context, accountID int64, validity time.Duration) (*models.RefreshToken, error) {
	token, err := common.MakeRandBase64String(64)
	if err != nil {
		return nil, err
	}
	row := &models.RefreshToken{
		Token:       token,
		AccountID:   accountID,
		ExpiryDate:  time.Now().Add(validity),
		CreatedDate: time.Now(),
	}
	l.put(row)
	return row, nil
}

func (l *memoryLedger) Find(ctx context.Context, token string) (*models.RefreshToken, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	row, ok := l.rows[token]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *row
	return &c, nil
}

func (l *memoryLedger) FindActiveByAccount(ctx context.Context, accountID int64) ([]*models.RefreshToken, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*models.RefreshToken
	for _, row := range l.rows {
		if row.AccountID == accountID && row.Active(time.Now()) {
			c := *row
			out = append(out, &c)
		}
	}
	return out, nil
}

func (l *memoryLedger) MarkUsedAndChain(ctx context.Context, token, replacedBy string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	row, ok := l.rows[token]
	if !ok || row.IsUsed || row.IsRevoked {
		return common.ErrConflict
	}
	row.IsUsed = true
	row.ReplacedByToken = &replacedBy
	return nil
}

func (l *memoryLedger) Revoke(ctx context.Context, token, reason string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	row, ok := l.rows[token]
	if !ok {
		return common.ErrorNotFound
	}
	if row.IsRevoked {
		return nil
	}
	now := time.Now()
	row.IsRevoked = true
	row.RevokedDate = &now
	row.ReasonRevoked = &reason
	return nil
}

func (l *memoryLedger) RevokeAllActiveForAccount(ctx context.Context, accountID int64, reason string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var n int64
	now := time.Now()
	for _, row := range l.rows {
		if row.AccountID == accountID && row.Active(now) {
			row.IsRevoked = true
			row.RevokedDate = &now
			row.ReasonRevoked = &reason
			n++
		}
	}
	return n, nil
}

type fakeRepoManager struct {
	a *fakeAccountsRepo
	r *memoryLedger
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Accounts(db dbx.DBTX) accountsrepo.Repository {
	return m.a
}
func (m *fakeRepoManager) RefreshTokens(db dbx.DBTX) refreshtokensrepo.Repository {
	return m.r
}
func (m *fakeRepoManager) Categories(db dbx.DBTX) categoriesrepo.Repository { return nil }
func (m *fakeRepoManager) Articles(db dbx.DBTX) articlesrepo.Repository    { return nil }
func (m *fakeRepoManager) Tags(db dbx.DBTX) tagsrepo.Repository            { return nil }

func activeAccount(t *testing.T, id int64, password string) *models.Account {
	t.Helper()
	return &models.Account{
		ID: id, Name: "Alice", Email: "a@x.com",
		PasswordHash: hashPassword(t, password),
		Role:         models.RoleStaff, IsActive: true,
	}
}

func newFixture(t *testing.T, account *models.Account) *fakeRepoManager {
	t.Helper()
	a := &fakeAccountsRepo{
		byEmail: map[string]*models.Account{},
		byID:    map[int64]*models.Account{},
	}
	if account != nil {
		a.byEmail[account.Email] = account
		a.byID[account.ID] = account
	}
	return &fakeRepoManager{a: a, r: newMemoryLedger()}
}

// --- login ---

func TestLogin_Success(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	account := activeAccount(t, 1, "pw")
	rm := newFixture(t, account)
	s := newSessionService(t, db, rm)

	pair, err := s.Login(context.Background(), "a@x.com", "pw")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("empty tokens: %+v", pair)
	}
	if pair.Account.ID != 1 || pair.Account.Role != models.RoleStaff {
		t.Fatalf("unexpected account info: %+v", pair.Account)
	}
	if !pair.RefreshExpiresAt.After(pair.AccessExpiresAt) {
		t.Fatalf("refresh token must outlive access token")
	}
}

func TestLogin_UniformDenials(t *testing.T) {
	tests := []struct {
		name     string
		account  *models.Account
		email    string
		password string
	}{
		{"unknown email", activeAccount(t, 1, "pw"), "nobody@x.com", "pw"},
		{"wrong password", activeAccount(t, 1, "pw"), "a@x.com", "wrong"},
		{"deactivated account", inactiveAccount(t, 1, "pw"), "a@x.com", "pw"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			db, _ := newSQLMockDB(t)
			defer db.Close()

			s := newSessionService(t, db, newFixture(t, tc.account))
			_, err := s.Login(context.Background(), tc.email, tc.password)
			if !errors.Is(err, common.ErrorUnauthorized) {
				t.Fatalf("want ErrorUnauthorized, got %v", err)
			}
		})
	}
}

func inactiveAccount(t *testing.T, id int64, password string) *models.Account {
	t.Helper()
	a := activeAccount(t, id, password)
	a.IsActive = false
	return a
}

// --- refresh ---

func TestRefresh_Success(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectCommit()

	account := activeAccount(t, 1, "pw")
	rm := newFixture(t, account)
	s := newSessionService(t, db, rm)

	old, err := rm.r.Create(context.Background(), 1, time.Hour)
	if err != nil {
		t.Fatalf("seed error: %v", err)
	}
	access := mintAccessToken(t, 1, -time.Minute) // already expired

	pair, err := s.Refresh(context.Background(), access, old.Token)
	if err != nil {
		t.Fatalf("Refresh error: %v", err)
	}
	if pair.RefreshToken == old.Token {
		t.Fatal("refresh token was not rotated")
	}

	stored, err := rm.r.Find(context.Background(), old.Token)
	if err != nil {
		t.Fatalf("Find error: %v", err)
	}
	if !stored.IsUsed {
		t.Fatal("old token must be marked used")
	}
	if stored.ReplacedByToken == nil || *stored.ReplacedByToken != pair.RefreshToken {
		t.Fatalf("old token must chain to its replacement, got %v", stored.ReplacedByToken)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}

func TestRefresh_GarbageAccessToken(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := newFixture(t, activeAccount(t, 1, "pw"))
	s := newSessionService(t, db, rm)

	_, err := s.Refresh(context.Background(), "not-a-jwt", "whatever")
	if !errors.Is(err, common.ErrorUnauthorized) {
		t.Fatalf("want ErrorUnauthorized, got %v", err)
	}
}

func TestRefresh_TokenOwnedByAnotherAccount(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := newFixture(t, activeAccount(t, 1, "pw"))
	s := newSessionService(t, db, rm)

	other, _ := rm.r.Create(context.Background(), 2, time.Hour)
	access := mintAccessToken(t, 1, time.Hour)

	_, err := s.Refresh(context.Background(), access, other.Token)
	if !errors.Is(err, common.ErrorUnauthorized) {
		t.Fatalf("want ErrorUnauthorized, got %v", err)
	}
}

func TestRefresh_ExpiredRefreshToken(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := newFixture(t, activeAccount(t, 1, "pw"))
	s := newSessionService(t, db, rm)

	old, _ := rm.r.Create(context.Background(), 1, -time.Minute)
	access := mintAccessToken(t, 1, time.Hour)

	_, err := s.Refresh(context.Background(), access, old.Token)
	if !errors.Is(err, common.ErrorUnauthorized) {
		t.Fatalf("want ErrorUnauthorized, got %v", err)
	}
}

func TestRefresh_RevokedRefreshToken(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := newFixture(t, activeAccount(t, 1, "pw"))
	s := newSessionService(t, db, rm)

	old, _ := rm.r.Create(context.Background(), 1, time.Hour)
	if err := rm.r.Revoke(context.Background(), old.Token, "test"); err != nil {
		t.Fatalf("seed error: %v", err)
	}
	access := mintAccessToken(t, 1, time.Hour)

	_, err := s.Refresh(context.Background(), access, old.Token)
	if !errors.Is(err, common.ErrorUnauthorized) {
		t.Fatalf("want ErrorUnauthorized, got %v", err)
	}
}

func TestRefresh_DeactivatedAccount(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := newFixture(t, inactiveAccount(t, 1, "pw"))
	s := newSessionService(t, db, rm)

	old, _ := rm.r.Create(context.Background(), 1, time.Hour)
	access := mintAccessToken(t, 1, time.Hour)

	_, err := s.Refresh(context.Background(), access, old.Token)
	if !errors.Is(err, common.ErrorUnauthorized) {
		t.Fatalf("want ErrorUnauthorized, got %v", err)
	}
}

// TestRefresh_ConcurrentCallsSingleWinner drives N identical refresh calls at
// the same token. The consumed-state transition is conditional, so exactly
// one caller may win; everyone else must be denied.
func TestRefresh_ConcurrentCallsSingleWinner(t *testing.T) {
	const n = 16

	// sqlmock is not safe for concurrent transactions; use a real in-memory
	// database for the transaction boundaries.
	db, err := sql.Open("sqlite", "file:session_race?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("sql.Open error: %v", err)
	}
	defer db.Close()

	rm := newFixture(t, activeAccount(t, 1, "pw"))
	s := newSessionService(t, db, rm)

	old, err := rm.r.Create(context.Background(), 1, time.Hour)
	if err != nil {
		t.Fatalf("seed error: %v", err)
	}
	access := mintAccessToken(t, 1, time.Hour)

	var wg sync.WaitGroup
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Refresh(context.Background(), access, old.Token)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var wins, denials int
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, common.ErrorUnauthorized):
			denials++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly 1 winner, got %d (denials: %d)", wins, denials)
	}
	if denials != n-1 {
		t.Fatalf("expected %d denials, got %d", n-1, denials)
	}
}

// --- revoke ---

func TestRevokeOne_Success(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := newFixture(t, activeAccount(t, 1, "pw"))
	s := newSessionService(t, db, rm)

	row, _ := rm.r.Create(context.Background(), 1, time.Hour)
	if err := s.RevokeOne(context.Background(), 1, row.Token); err != nil {
		t.Fatalf("RevokeOne error: %v", err)
	}

	stored, _ := rm.r.Find(context.Background(), row.Token)
	if !stored.IsRevoked || stored.ReasonRevoked == nil || *stored.ReasonRevoked != ReasonRevokedByUser {
		t.Fatalf("unexpected ledger state: %+v", stored)
	}
}

func TestRevokeOne_WrongOwner(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := newFixture(t, activeAccount(t, 1, "pw"))
	s := newSessionService(t, db, rm)

	row, _ := rm.r.Create(context.Background(), 2, time.Hour)
	err := s.RevokeOne(context.Background(), 1, row.Token)
	if !errors.Is(err, common.ErrorForbidden) {
		t.Fatalf("want ErrorForbidden, got %v", err)
	}

	stored, _ := rm.r.Find(context.Background(), row.Token)
	if stored.IsRevoked {
		t.Fatal("token of another account must not be revoked")
	}
}

func TestRevokeOne_UnknownToken(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := newFixture(t, activeAccount(t, 1, "pw"))
	s := newSessionService(t, db, rm)

	err := s.RevokeOne(context.Background(), 1, "ghost")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want ErrorNotFound, got %v", err)
	}
}

func TestRevokeAll_CountsOnlyActive(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := newFixture(t, activeAccount(t, 1, "pw"))
	s := newSessionService(t, db, rm)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := rm.r.Create(ctx, 1, time.Hour); err != nil {
			t.Fatalf("seed error: %v", err)
		}
	}
	if _, err := rm.r.Create(ctx, 1, -time.Minute); err != nil {
		t.Fatalf("seed error: %v", err)
	}
	other, _ := rm.r.Create(ctx, 2, time.Hour)

	n, err := s.RevokeAll(ctx, 1, "password changed")
	if err != nil {
		t.Fatalf("RevokeAll error: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 revoked, got %d", n)
	}
	if stored, _ := rm.r.Find(ctx, other.Token); stored.IsRevoked {
		t.Fatal("other account's token must stay active")
	}
}

// --- validate ---

func TestValidate_GoodToken(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	s := newSessionService(t, db, newFixture(t, nil))
	access := mintAccessToken(t, 7, time.Hour)

	claims, err := s.Validate(context.Background(), access)
	if err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	id, err := claims.AccountID()
	if err != nil || id != 7 {
		t.Fatalf("unexpected subject: %v %v", id, err)
	}
}

func TestValidate_ExpiredToken(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	s := newSessionService(t, db, newFixture(t, nil))
	access := mintAccessToken(t, 7, -time.Minute)

	_, err := s.Validate(context.Background(), access)
	if !errors.Is(err, common.ErrTokenExpired) {
		t.Fatalf("want ErrTokenExpired, got %v", err)
	}
}

func TestValidate_Garbage(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	s := newSessionService(t, db, newFixture(t, nil))
	_, err := s.Validate(context.Background(), "junk")
	if !errors.Is(err, common.ErrorUnauthorized) {
		t.Fatalf("want ErrorUnauthorized, got %v", err)
	}
}
