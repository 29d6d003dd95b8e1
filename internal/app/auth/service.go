package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/argon2"

	"rpg-server/internal/domain/account"
	"rpg-server/internal/platform/mq"
	"rpg-server/internal/store"
)

var (
	ErrInvalidHandle    = errors.New("account handle must contain only lowercase letters and digits")
	ErrWeakPassword     = errors.New("password must be at least 6 characters")
	ErrPasswordMismatch = errors.New("password confirmation does not match")
	ErrHandleTaken      = errors.New("account handle already in use")
	ErrUnknownAccount   = errors.New("account does not exist")
	ErrWrongPassword    = errors.New("password does not match")
	ErrInvalidToken     = errors.New("invalid token")
)

var handlePattern = regexp.MustCompile(`^[a-z0-9]+$`)

const minPasswordLength = 6

// AccountStore is the slice of the persistence layer the auth flow needs.
type AccountStore interface {
	Create(ctx context.Context, handle, name, passwordHash string) (account.Account, error)
	FindByHandle(ctx context.Context, handle string) (account.Account, error)
}

type Service struct {
	accounts  AccountStore
	bus       mq.Bus
	jwtSecret []byte
	jwtTTL    time.Duration
}

func NewService(accounts AccountStore, bus mq.Bus, jwtSecret string, jwtTTL time.Duration) *Service {
	return &Service{accounts: accounts, bus: bus, jwtSecret: []byte(jwtSecret), jwtTTL: jwtTTL}
}

// SignUp validates the submitted credentials, stores the account with a
// freshly salted hash and returns the public summary. The plaintext
// password is never persisted or logged.
func (s *Service) SignUp(ctx context.Context, handle, password, confirmPassword, displayName string) (account.Summary, error) {
	handle = strings.TrimSpace(handle)
	if !handlePattern.MatchString(handle) {
		return account.Summary{}, ErrInvalidHandle
	}
	if len(password) < minPasswordLength {
		return account.Summary{}, ErrWeakPassword
	}
	if password != confirmPassword {
		return account.Summary{}, ErrPasswordMismatch
	}
	hash, err := hashPassword(password)
	if err != nil {
		return account.Summary{}, fmt.Errorf("hash password: %w", err)
	}
	acc, err := s.accounts.Create(ctx, handle, displayName, hash)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return account.Summary{}, ErrHandleTaken
		}
		return account.Summary{}, fmt.Errorf("create account: %w", err)
	}
	s.publish(ctx, "game.account.registered", map[string]any{"account_id": acc.ID, "account": acc.Handle})
	return acc.Summary(), nil
}

// SignIn resolves the handle and checks the password against the stored
// argon2id hash, then mints a signed session token carrying the account id.
func (s *Service) SignIn(ctx context.Context, handle, password string) (string, error) {
	acc, err := s.accounts.FindByHandle(ctx, strings.TrimSpace(handle))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrUnknownAccount
		}
		return "", fmt.Errorf("query account: %w", err)
	}
	ok, err := verifyPassword(acc.PasswordHash, password)
	if err != nil || !ok {
		return "", ErrWrongPassword
	}
	return s.issueToken(acc.ID)
}

// ParseToken verifies signature and expiry and yields the embedded account
// id. Everything the protected routes know about the caller comes from here.
func (s *Service) ParseToken(tokenString string) (int64, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return 0, ErrInvalidToken
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, ErrInvalidToken
	}
	sub, ok := claims["sub"].(string)
	if !ok {
		return 0, ErrInvalidToken
	}
	accountID, err := strconv.ParseInt(sub, 10, 64)
	if err != nil || accountID <= 0 {
		return 0, ErrInvalidToken
	}
	return accountID, nil
}

func (s *Service) issueToken(accountID int64) (string, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub": strconv.FormatInt(accountID, 10),
		"jti": uuid.NewString(),
		"iat": now.Unix(),
		"exp": now.Add(s.jwtTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (s *Service) publish(ctx context.Context, subject string, payload any) {
	if s.bus == nil {
		return
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return
	}
	_ = s.bus.Publish(ctx, subject, b)
}

func hashPassword(password string) (string, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	const memory = 64 * 1024
	const iterations = 3
	const parallelism = 2
	const keyLength = 32
	hash := argon2.IDKey([]byte(password), salt, iterations, memory, parallelism, keyLength)
	b64Salt := base64.RawStdEncoding.EncodeToString(salt)
	b64Hash := base64.RawStdEncoding.EncodeToString(hash)
	return fmt.Sprintf("$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s", memory, iterations, parallelism, b64Salt, b64Hash), nil
}

func verifyPassword(encodedHash, password string) (bool, error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 {
		return false, fmt.Errorf("invalid hash format")
	}
	var memory uint32
	var iterations uint32
	var parallelism uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism); err != nil {
		return false, fmt.Errorf("parse hash params: %w", err)
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, err
	}
	hash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, err
	}
	computed := argon2.IDKey([]byte(password), salt, iterations, memory, parallelism, uint32(len(hash)))
	if len(computed) != len(hash) {
		return false, nil
	}
	// Constant-time comparison; never short-circuit on the first byte.
	var diff byte
	for i := range hash {
		diff |= hash[i] ^ computed[i]
	}
	return diff == 0, nil
}
