package service

import (
	"errors"
	"testing"
	"time"

	hmi "extruder_hmi"
)

// authRepoStub satisfies repository.Authorization in memory.
type authRepoStub struct {
	users  map[string]*hmi.User
	nextID int
	err    error
}

func newAuthRepoStub() *authRepoStub {
	return &authRepoStub{users: map[string]*hmi.User{}, nextID: 1}
}

func (r *authRepoStub) Create(username, hash string) (int, error) {
	if r.err != nil {
		return 0, r.err
	}
	id := r.nextID
	r.nextID++
	r.users[username] = &hmi.User{ID: id, Username: username, PasswordHash: hash}
	return id, nil
}

func (r *authRepoStub) GetByUsername(username string) (*hmi.User, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.users[username], nil
}

const testSigningKey = "test-signing-key"

func TestAuthService_SignUpAndTokenRoundTrip(t *testing.T) {
	repo := newAuthRepoStub()
	s := NewAuthService(repo, testSigningKey, time.Hour)

	id, err := s.SignUp("operator", "hunter2")
	if err != nil {
		t.Fatalf("SignUp(): %v", err)
	}
	if id != 1 {
		t.Errorf("id: want 1, got %d", id)
	}

	token, err := s.GenerateToken("operator", "hunter2")
	if err != nil {
		t.Fatalf("GenerateToken(): %v", err)
	}

	userID, err := s.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken(): %v", err)
	}
	if userID != id {
		t.Errorf("round-tripped user id: want %d, got %d", id, userID)
	}
}

func TestAuthService_SignUpRejectsEmptyPassword(t *testing.T) {
	s := NewAuthService(newAuthRepoStub(), testSigningKey, time.Hour)
	if _, err := s.SignUp("operator", "   "); err == nil {
		t.Fatalf("expected error for blank password")
	}
}

func TestAuthService_GenerateTokenFailures(t *testing.T) {
	repo := newAuthRepoStub()
	s := NewAuthService(repo, testSigningKey, time.Hour)
	if _, err := s.SignUp("operator", "hunter2"); err != nil {
		t.Fatalf("SignUp(): %v", err)
	}

	if _, err := s.GenerateToken("ghost", "hunter2"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("unknown user: want ErrUserNotFound, got %v", err)
	}
	if _, err := s.GenerateToken("operator", "wrong"); !errors.Is(err, ErrInvalidPassword) {
		t.Errorf("bad password: want ErrInvalidPassword, got %v", err)
	}
}

func TestAuthService_ParseTokenRejectsForgedKey(t *testing.T) {
	repo := newAuthRepoStub()
	issuer := NewAuthService(repo, "other-key", time.Hour)
	verifier := NewAuthService(repo, testSigningKey, time.Hour)

	if _, err := issuer.SignUp("operator", "hunter2"); err != nil {
		t.Fatalf("SignUp(): %v", err)
	}
	token, err := issuer.GenerateToken("operator", "hunter2")
	if err != nil {
		t.Fatalf("GenerateToken(): %v", err)
	}

	if _, err := verifier.ParseToken(token); err == nil {
		t.Fatalf("token signed with another key must not verify")
	}
}

func TestAuthService_ParseTokenRejectsGarbage(t *testing.T) {
	s := NewAuthService(newAuthRepoStub(), testSigningKey, time.Hour)
	if _, err := s.ParseToken("not.a.token"); err == nil {
		t.Fatalf("expected parse error")
	}
}
