package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hongminglow/lms-be/internal/models"
)

// ErrInvalidToken covers every verification failure: bad signature, wrong
// algorithm, wrong issuer, malformed input or expiry.
var ErrInvalidToken = errors.New("invalid token")

// TokenType discriminates what a token may be used for.
type TokenType string

const (
	TokenAccess       TokenType = "access"
	TokenVerification TokenType = "verification"
	TokenReset        TokenType = "reset"
)

// Claims is the payload carried by every token. Subject holds the email.
type Claims struct {
	Type   TokenType `json:"type,omitempty"`
	Role   string    `json:"role,omitempty"`
	UserID string    `json:"id,omitempty"`
	jwt.RegisteredClaims
}

// Kind returns the token type; an absent type means access.
func (c Claims) Kind() TokenType {
	if c.Type == "" {
		return TokenAccess
	}
	return c.Type
}

// Expect checks that the token is of kind want.
func (c Claims) Expect(want TokenType) error {
	if c.Kind() != want {
		return fmt.Errorf("%w: expected %s token, got %s", ErrInvalidToken, want, c.Kind())
	}
	return nil
}

// Email returns the subject claim.
func (c Claims) Email() string {
	return c.Subject
}

// TokenTTLs groups the lifetimes of each token kind.
type TokenTTLs struct {
	Access       time.Duration
	Verification time.Duration
	Reset        time.Duration
}

// TokenManager issues and verifies signed JWTs.
type TokenManager struct {
	secret []byte
	issuer string
	method jwt.SigningMethod
	ttls   TokenTTLs
	now    func() time.Time
}

// NewTokenManager creates a manager with the provided secret, issuer, HMAC
// algorithm name (HS256, HS384, HS512) and lifetimes.
func NewTokenManager(secret, issuer, algorithm string, ttls TokenTTLs) (*TokenManager, error) {
	if secret == "" {
		return nil, errors.New("token secret must not be empty")
	}
	method, ok := jwt.GetSigningMethod(algorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported signing algorithm %q", algorithm)
	}
	return &TokenManager{
		secret: []byte(secret),
		issuer: issuer,
		method: method,
		ttls:   ttls,
		now:    time.Now,
	}, nil
}

// Issue signs claims with an expiry ttl from now.
func (t *TokenManager) Issue(claims Claims, ttl time.Duration) (string, error) {
	now := t.now()
	claims.Issuer = t.issuer
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.NotBefore = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))

	token := jwt.NewWithClaims(t.method, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// IssueAccess issues a bearer token for user. The type claim is omitted.
func (t *TokenManager) IssueAccess(user models.User) (string, error) {
	return t.Issue(Claims{
		Role:             string(user.Role),
		UserID:           user.ID.String(),
		RegisteredClaims: jwt.RegisteredClaims{Subject: user.Email},
	}, t.ttls.Access)
}

// IssueVerification issues an email verification token for email.
func (t *TokenManager) IssueVerification(email string) (string, error) {
	return t.Issue(Claims{
		Type:             TokenVerification,
		RegisteredClaims: jwt.RegisteredClaims{Subject: email},
	}, t.ttls.Verification)
}

// IssueReset issues a password reset token for email.
func (t *TokenManager) IssueReset(email string) (string, error) {
	return t.Issue(Claims{
		Type:             TokenReset,
		RegisteredClaims: jwt.RegisteredClaims{Subject: email},
	}, t.ttls.Reset)
}

// Verify parses tokenString and returns its claims.
func (t *TokenManager) Verify(tokenString string) (Claims, error) {
	var claims Claims
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{t.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	}
	if t.issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.issuer))
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return Claims{}, ErrInvalidToken
	}
	switch claims.Kind() {
	case TokenAccess, TokenVerification, TokenReset:
	default:
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}
