package biz

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/arbiterhq/arbiter/internal/log"
)

// APIKey is a statically configured service credential. Keys authenticate
// callers of the decision endpoints; the name shows up in logs and traces.
type APIKey struct {
	Name string `conf:"name" yaml:"name" json:"name"`
	Key  string `conf:"key" yaml:"key" json:"key"`
}

type JWTConfig struct {
	// Secret signs admin tokens. When empty, a random secret is generated at
	// startup, which invalidates admin sessions across restarts.
	Secret     string        `conf:"secret" yaml:"secret" json:"secret"`
	Issuer     string        `conf:"issuer" yaml:"issuer" json:"issuer"`
	Expiration time.Duration `conf:"expiration" yaml:"expiration" json:"expiration"`
}

type AdminConfig struct {
	Username string `conf:"username" yaml:"username" json:"username"`
	// PasswordHash is the hex-encoded bcrypt hash of the admin password.
	PasswordHash string `conf:"password_hash" yaml:"password_hash" json:"password_hash"`
}

type AuthConfig struct {
	APIKeys []APIKey    `conf:"api_keys" yaml:"api_keys" json:"api_keys"`
	JWT     JWTConfig   `conf:"jwt" yaml:"jwt" json:"jwt"`
	Admin   AdminConfig `conf:"admin" yaml:"admin" json:"admin"`
}

const (
	defaultJWTIssuer     = "arbiter"
	defaultJWTExpiration = 24 * time.Hour
)

type AuthService struct {
	config AuthConfig
	secret []byte
}

func NewAuthService(config AuthConfig) (*AuthService, error) {
	secret := config.JWT.Secret
	if secret == "" {
		generated, err := GenerateSecretKey()
		if err != nil {
			return nil, err
		}

		secret = generated
	}

	if config.JWT.Issuer == "" {
		config.JWT.Issuer = defaultJWTIssuer
	}

	if config.JWT.Expiration <= 0 {
		config.JWT.Expiration = defaultJWTExpiration
	}

	return &AuthService{config: config, secret: []byte(secret)}, nil
}

// HashPassword hashes a password using bcrypt.
func HashPassword(password string) (string, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	return hex.EncodeToString(hashedPassword), nil
}

// VerifyPassword verifies a password against a hash.
func VerifyPassword(hashedPassword, password string) error {
	decodedHashedPassword, err := hex.DecodeString(hashedPassword)
	if err != nil {
		return fmt.Errorf("failed to decode hashed password: %w", err)
	}

	return bcrypt.CompareHashAndPassword(decodedHashedPassword, []byte(password))
}

// GenerateSecretKey generates a random secret key for JWT.
func GenerateSecretKey() (string, error) {
	bytes := make([]byte, 32) // 256 bits

	_, err := rand.Read(bytes)
	if err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	return hex.EncodeToString(bytes), nil
}

// AuthenticateAPIKey validates a decision-endpoint credential and returns the
// configured key name.
func (s *AuthService) AuthenticateAPIKey(ctx context.Context, key string) (string, error) {
	for _, candidate := range s.config.APIKeys {
		if subtle.ConstantTimeCompare([]byte(candidate.Key), []byte(key)) == 1 {
			return candidate.Name, nil
		}
	}

	return "", ErrInvalidAPIKey
}

// SignIn authenticates the configured admin and issues a JWT token.
func (s *AuthService) SignIn(ctx context.Context, username, password string) (string, error) {
	if s.config.Admin.Username == "" || s.config.Admin.PasswordHash == "" {
		return "", ErrInvalidCredentials
	}

	if subtle.ConstantTimeCompare([]byte(s.config.Admin.Username), []byte(username)) != 1 {
		return "", ErrInvalidCredentials
	}

	if err := VerifyPassword(s.config.Admin.PasswordHash, password); err != nil {
		return "", ErrInvalidCredentials
	}

	token, err := s.GenerateJWTToken(ctx, username)
	if err != nil {
		return "", err
	}

	log.Debug(ctx, "admin signed in", log.String("username", username))

	return token, nil
}

// GenerateJWTToken generates a JWT token for an admin subject.
func (s *AuthService) GenerateJWTToken(ctx context.Context, subject string) (string, error) {
	now := time.Now()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    s.config.JWT.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.config.JWT.Expiration)),
	})

	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	return tokenString, nil
}

// AuthenticateJWTToken validates a JWT token and returns the subject.
func (s *AuthService) AuthenticateJWTToken(ctx context.Context, tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}

		return s.secret, nil
	}, jwt.WithIssuer(s.config.JWT.Issuer), jwt.WithExpirationRequired())
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidJWT, err)
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", ErrInvalidJWT
	}

	return claims.Subject, nil
}
