package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"rpg-server/internal/domain/account"
	"rpg-server/internal/store"
)

type fakeAccounts struct {
	nextID   int64
	byHandle map[string]account.Account
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{byHandle: make(map[string]account.Account)}
}

func (f *fakeAccounts) Create(_ context.Context, handle, name, passwordHash string) (account.Account, error) {
	if _, ok := f.byHandle[handle]; ok {
		return account.Account{}, store.ErrDuplicate
	}
	f.nextID++
	a := account.Account{ID: f.nextID, Handle: handle, Name: name, PasswordHash: passwordHash, CreatedAt: time.Now()}
	f.byHandle[handle] = a
	return a, nil
}

func (f *fakeAccounts) FindByHandle(_ context.Context, handle string) (account.Account, error) {
	a, ok := f.byHandle[handle]
	if !ok {
		return account.Account{}, store.ErrNotFound
	}
	return a, nil
}

func TestPasswordHashAndVerify(t *testing.T) {
	h, err := hashPassword("supersecurepass")
	if err != nil {
		t.Fatalf("hashPassword err: %v", err)
	}
	ok, err := verifyPassword(h, "supersecurepass")
	if err != nil {
		t.Fatalf("verifyPassword err: %v", err)
	}
	if !ok {
		t.Fatal("expected password verification success")
	}
	ok, err = verifyPassword(h, "wrong-pass")
	if err != nil {
		t.Fatalf("verifyPassword wrong err: %v", err)
	}
	if ok {
		t.Fatal("expected password verification failure")
	}
}

func TestTokenIssueAndParse(t *testing.T) {
	s := &Service{jwtSecret: []byte("secret"), jwtTTL: time.Hour}
	tok, err := s.issueToken(42)
	if err != nil {
		t.Fatalf("issueToken err: %v", err)
	}
	parsed, err := s.ParseToken(tok)
	if err != nil {
		t.Fatalf("ParseToken err: %v", err)
	}
	if parsed != 42 {
		t.Fatalf("parsed account id mismatch: got %d want 42", parsed)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	s := &Service{jwtSecret: []byte("secret"), jwtTTL: -time.Minute}
	tok, err := s.issueToken(42)
	if err != nil {
		t.Fatalf("issueToken err: %v", err)
	}
	if _, err := s.ParseToken(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestTokenWrongSecretRejected(t *testing.T) {
	s := &Service{jwtSecret: []byte("secret"), jwtTTL: time.Hour}
	tok, err := s.issueToken(42)
	if err != nil {
		t.Fatalf("issueToken err: %v", err)
	}
	other := &Service{jwtSecret: []byte("different"), jwtTTL: time.Hour}
	if _, err := other.ParseToken(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for wrong secret, got %v", err)
	}
	if _, err := s.ParseToken("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for garbage, got %v", err)
	}
}

func TestSignUpValidation(t *testing.T) {
	s := NewService(newFakeAccounts(), nil, "secret", time.Hour)
	ctx := context.Background()

	if _, err := s.SignUp(ctx, "ABC123", "secret1", "secret1", "Alice"); !errors.Is(err, ErrInvalidHandle) {
		t.Fatalf("expected ErrInvalidHandle for uppercase handle, got %v", err)
	}
	if _, err := s.SignUp(ctx, "player one", "secret1", "secret1", "Alice"); !errors.Is(err, ErrInvalidHandle) {
		t.Fatalf("expected ErrInvalidHandle for spaced handle, got %v", err)
	}
	if _, err := s.SignUp(ctx, "player1", "ab12", "ab12", "Alice"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
	if _, err := s.SignUp(ctx, "player1", "secret1", "secret2", "Alice"); !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("expected ErrPasswordMismatch, got %v", err)
	}
}

func TestSignUpConflict(t *testing.T) {
	s := NewService(newFakeAccounts(), nil, "secret", time.Hour)
	ctx := context.Background()

	first, err := s.SignUp(ctx, "player1", "secret1", "secret1", "Alice")
	if err != nil {
		t.Fatalf("first SignUp err: %v", err)
	}
	if first.ID == 0 || first.Handle != "player1" || first.Name != "Alice" {
		t.Fatalf("unexpected summary: %+v", first)
	}
	if _, err := s.SignUp(ctx, "player1", "other66", "other66", "Bob"); !errors.Is(err, ErrHandleTaken) {
		t.Fatalf("expected ErrHandleTaken, got %v", err)
	}
}

func TestSignInFlow(t *testing.T) {
	accounts := newFakeAccounts()
	s := NewService(accounts, nil, "secret", time.Hour)
	ctx := context.Background()

	summary, err := s.SignUp(ctx, "player1", "secret1", "secret1", "Alice")
	if err != nil {
		t.Fatalf("SignUp err: %v", err)
	}
	if stored := accounts.byHandle["player1"]; stored.PasswordHash == "secret1" || stored.PasswordHash == "" {
		t.Fatalf("expected hashed password in store, got %q", stored.PasswordHash)
	}

	tok, err := s.SignIn(ctx, "player1", "secret1")
	if err != nil {
		t.Fatalf("SignIn err: %v", err)
	}
	parsed, err := s.ParseToken(tok)
	if err != nil {
		t.Fatalf("ParseToken err: %v", err)
	}
	if parsed != summary.ID {
		t.Fatalf("token account mismatch: got %d want %d", parsed, summary.ID)
	}

	if _, err := s.SignIn(ctx, "player1", "wrongpass"); !errors.Is(err, ErrWrongPassword) {
		t.Fatalf("expected ErrWrongPassword, got %v", err)
	}
	if _, err := s.SignIn(ctx, "nobody", "secret1"); !errors.Is(err, ErrUnknownAccount) {
		t.Fatalf("expected ErrUnknownAccount, got %v", err)
	}
}
