package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

var hmacAlgorithms = map[string]bool{
	"HS256": true,
	"HS384": true,
	"HS512": true,
}

// TokenIssuer signs and verifies access/refresh tokens. It is stateless
// beyond the signing secret, algorithm and TTLs injected at construction;
// rotating the secret invalidates every outstanding token.
type TokenIssuer struct {
	secret     []byte
	method     jwt.SigningMethod
	algorithm  string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewTokenIssuer(secret, algorithm string, accessTTL, refreshTTL time.Duration) (*TokenIssuer, error) {
	if algorithm == "" {
		algorithm = "HS256"
	}
	if !hmacAlgorithms[algorithm] {
		return nil, fmt.Errorf("unsupported signing algorithm: %s", algorithm)
	}

	return &TokenIssuer{
		secret:     []byte(secret),
		method:     jwt.GetSigningMethod(algorithm),
		algorithm:  algorithm,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}, nil
}

func (t *TokenIssuer) AccessTTL() time.Duration  { return t.accessTTL }
func (t *TokenIssuer) RefreshTTL() time.Duration { return t.refreshTTL }

// IssueAccess mints an access token for the subject. Extra claims may not
// shadow the required ones.
func (t *TokenIssuer) IssueAccess(subject string, extra map[string]any) (string, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub": subject,
		"iat": now.Unix(),
		"exp": now.Add(t.accessTTL).Unix(),
		"typ": TokenTypeAccess,
	}
	for k, v := range extra {
		if _, reserved := claims[k]; !reserved {
			claims[k] = v
		}
	}

	return t.sign(claims)
}

// IssueRefresh mints a refresh token carrying a random jti so two tokens for
// the same subject and second are still distinct.
func (t *TokenIssuer) IssueRefresh(subject string) (string, error) {
	jti, err := randomHex(16)
	if err != nil {
		return "", fmt.Errorf("generate token id: %w", err)
	}

	now := time.Now().UTC()
	return t.sign(jwt.MapClaims{
		"sub": subject,
		"iat": now.Unix(),
		"exp": now.Add(t.refreshTTL).Unix(),
		"typ": TokenTypeRefresh,
		"jti": jti,
	})
}

func (t *TokenIssuer) IssuePair(subject string) (TokenPair, error) {
	access, err := t.IssueAccess(subject, nil)
	if err != nil {
		return TokenPair{}, err
	}

	refresh, err := t.IssueRefresh(subject)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    int64(t.accessTTL.Seconds()),
	}, nil
}

// Verify checks signature, expiry and type. Every failure wraps the single
// ErrInvalidToken sentinel; the wrapped reason is for logs only and callers
// must not surface it.
func (t *TokenIssuer) Verify(token, expectedType string) (TokenPayload, error) {
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{t.algorithm}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return TokenPayload{}, fmt.Errorf("%w: expired", ErrInvalidToken)
		}
		return TokenPayload{}, fmt.Errorf("%w: bad signature or malformed", ErrInvalidToken)
	}
	if !parsed.Valid {
		return TokenPayload{}, fmt.Errorf("%w: bad signature or malformed", ErrInvalidToken)
	}

	payload, err := payloadFromClaims(claims)
	if err != nil {
		return TokenPayload{}, err
	}
	if payload.Type != expectedType {
		return TokenPayload{}, fmt.Errorf("%w: unexpected type %q", ErrInvalidToken, payload.Type)
	}

	return payload, nil
}

func (t *TokenIssuer) sign(claims jwt.MapClaims) (string, error) {
	encoded, err := jwt.NewWithClaims(t.method, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return encoded, nil
}

// payloadFromClaims validates the required claim shape on decode instead of
// trusting the map as free-form.
func payloadFromClaims(claims jwt.MapClaims) (TokenPayload, error) {
	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return TokenPayload{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	expiresAt, err := claims.GetExpirationTime()
	if err != nil || expiresAt == nil {
		return TokenPayload{}, fmt.Errorf("%w: missing expiry", ErrInvalidToken)
	}

	issuedAt, err := claims.GetIssuedAt()
	if err != nil || issuedAt == nil {
		return TokenPayload{}, fmt.Errorf("%w: missing issued-at", ErrInvalidToken)
	}

	tokenType, _ := claims["typ"].(string)
	if tokenType == "" {
		return TokenPayload{}, fmt.Errorf("%w: missing type", ErrInvalidToken)
	}

	tokenID, _ := claims["jti"].(string)

	extra := make(map[string]any)
	for k, v := range claims {
		switch k {
		case "sub", "iat", "exp", "typ", "jti":
		default:
			extra[k] = v
		}
	}

	return TokenPayload{
		Subject:   subject,
		IssuedAt:  issuedAt.Time,
		ExpiresAt: expiresAt.Time,
		Type:      tokenType,
		TokenID:   tokenID,
		Extra:     extra,
	}, nil
}

func randomHex(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
