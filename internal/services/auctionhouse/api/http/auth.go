package http

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/KREaTOR-Finance/EpicenterMarketplace/internal/errors"
	"github.com/KREaTOR-Finance/EpicenterMarketplace/internal/services/auctionhouse/domain"
)

// authEnv holds raw env values before post-parse validation.
type authEnv struct {
	Issuer    string `env:"EPICENTER_AUTH_ISSUER"`
	Audience  string `env:"EPICENTER_AUTH_AUDIENCE"`
	PublicKey string `env:"EPICENTER_AUTH_PUBLIC_KEY"`
}

// AuthConfig defines how bearer tokens are verified.
type AuthConfig struct {
	Issuer   string
	Audience string
	Key      ed25519.PublicKey
	Now      func() time.Time
}

// bearerClaims is the internal claims type used for JWT parsing.
type bearerClaims struct {
	jwt.RegisteredClaims
}

// LoadAuthConfigFromEnv reads bearer token verification configuration.
func LoadAuthConfigFromEnv(now func() time.Time) (AuthConfig, error) {
	var raw authEnv
	if err := env.Parse(&raw); err != nil {
		return AuthConfig{}, fmt.Errorf("parse auth env: %w", err)
	}
	issuer := strings.TrimSpace(raw.Issuer)
	audience := strings.TrimSpace(raw.Audience)
	publicKey := strings.TrimSpace(raw.PublicKey)
	if issuer == "" {
		return AuthConfig{}, fmt.Errorf("EPICENTER_AUTH_ISSUER is required")
	}
	if audience == "" {
		return AuthConfig{}, fmt.Errorf("EPICENTER_AUTH_AUDIENCE is required")
	}
	if publicKey == "" {
		return AuthConfig{}, fmt.Errorf("EPICENTER_AUTH_PUBLIC_KEY is required")
	}
	keyBytes, err := decodeBase64(publicKey)
	if err != nil {
		return AuthConfig{}, fmt.Errorf("decode auth public key: %w", err)
	}
	if len(keyBytes) != ed25519.PublicKeySize {
		return AuthConfig{}, fmt.Errorf("auth public key must be %d bytes", ed25519.PublicKeySize)
	}
	if now == nil {
		now = time.Now
	}
	return AuthConfig{
		Issuer:   issuer,
		Audience: audience,
		Key:      ed25519.PublicKey(keyBytes),
		Now:      now,
	}, nil
}

// VerifyBearer verifies a bearer token and returns the caller identity
// carried in the subject claim.
func VerifyBearer(token string, cfg AuthConfig) (domain.Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", apperrors.New(apperrors.CodeUnauthenticated, "bearer token is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Issuer == "" || cfg.Audience == "" || len(cfg.Key) != ed25519.PublicKeySize {
		return "", errors.New("bearer token verifier is not configured")
	}

	var parsed bearerClaims
	_, err := jwt.ParseWithClaims(token, &parsed, func(token *jwt.Token) (any, error) {
		return cfg.Key, nil
	},
		jwt.WithValidMethods([]string{"EdDSA"}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return "", mapJWTError(err)
	}

	if parsed.Issuer == "" || parsed.Issuer != cfg.Issuer {
		return "", apperrors.WithMetadata(
			apperrors.CodeUnauthenticated,
			"bearer token issuer mismatch",
			map[string]string{"Field": "issuer"},
		)
	}
	if !audienceContains(parsed.Audience, cfg.Audience) {
		return "", apperrors.WithMetadata(
			apperrors.CodeUnauthenticated,
			"bearer token audience mismatch",
			map[string]string{"Field": "audience"},
		)
	}
	if parsed.ExpiresAt == nil {
		return "", apperrors.New(apperrors.CodeUnauthenticated, "bearer token exp is required")
	}

	now := cfg.Now().UTC()
	if !parsed.ExpiresAt.Time.UTC().After(now) {
		return "", apperrors.New(apperrors.CodeUnauthenticated, "bearer token is expired")
	}
	if parsed.NotBefore != nil && now.Before(parsed.NotBefore.Time.UTC()) {
		return "", apperrors.New(apperrors.CodeUnauthenticated, "bearer token not active yet")
	}

	subject := strings.TrimSpace(parsed.Subject)
	if subject == "" {
		return "", apperrors.New(apperrors.CodeUnauthenticated, "bearer token subject is required")
	}
	return domain.Identity(subject), nil
}

// mapJWTError translates jwt library errors to application errors.
func mapJWTError(err error) error {
	if errors.Is(err, jwt.ErrTokenSignatureInvalid) || errors.Is(err, jwt.ErrEd25519Verification) {
		return apperrors.New(apperrors.CodeUnauthenticated, "bearer token signature is invalid")
	}
	if errors.Is(err, jwt.ErrTokenUnverifiable) {
		return apperrors.New(apperrors.CodeUnauthenticated, "bearer token alg is invalid")
	}
	return apperrors.New(apperrors.CodeUnauthenticated, "bearer token is invalid")
}

// audienceContains reports whether the audience list contains the given value.
func audienceContains(aud jwt.ClaimStrings, value string) bool {
	for _, item := range aud {
		if item == value {
			return true
		}
	}
	return false
}

func decodeBase64(value string) ([]byte, error) {
	if value == "" {
		return nil, errors.New("empty base64 value")
	}
	decoded, err := base64.RawStdEncoding.DecodeString(value)
	if err == nil {
		return decoded, nil
	}
	return base64.StdEncoding.DecodeString(value)
}
