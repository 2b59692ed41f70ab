package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultAccessTokenTTL defines the fallback validity period for locally issued access tokens.
const DefaultAccessTokenTTL = 15 * time.Minute

// JWTConfig bundles the configuration required to build a JWTService.
// PublicKeyPEM enables RS256 verification of identity-provider tokens; Secret
// enables HS256 tokens, which is what GenerateAccessToken issues.
type JWTConfig struct {
	Secret         string
	PublicKeyPEM   string
	Issuer         string
	AccessTokenTTL time.Duration
	Clock          func() time.Time
}

// RealmAccess mirrors the identity-provider role container.
type RealmAccess struct {
	Roles []string `json:"roles,omitempty"`
}

// Claims represents the claims consumed from bearer tokens. The subject is the user id.
type Claims struct {
	RealmAccess       RealmAccess `json:"realm_access"`
	GivenName         string      `json:"given_name,omitempty"`
	FamilyName        string      `json:"family_name,omitempty"`
	PreferredUsername string      `json:"preferred_username,omitempty"`
	Email             string      `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// UserID returns the authenticated user identifier.
func (c *Claims) UserID() string {
	return c.Subject
}

// HasAnyRole reports whether the token carries one of the given realm roles.
func (c *Claims) HasAnyRole(roles ...string) bool {
	for _, role := range roles {
		if slices.Contains(c.RealmAccess.Roles, role) {
			return true
		}
	}
	return false
}

// DisplayName prefers the full name, then the username, then the subject.
func (c *Claims) DisplayName() string {
	full := strings.TrimSpace(c.GivenName + " " + c.FamilyName)
	switch {
	case full != "":
		return full
	case c.PreferredUsername != "":
		return c.PreferredUsername
	default:
		return c.Subject
	}
}

// AccessTokenInput holds the parameters used when generating a new access token.
type AccessTokenInput struct {
	UserID     string
	Roles      []string
	GivenName  string
	FamilyName string
	Username   string
	Audience   []string
}

// JWTService is responsible for issuing and validating JSON Web Tokens.
type JWTService struct {
	secret    []byte
	publicKey *rsa.PublicKey
	issuer    string
	ttl       time.Duration
	now       func() time.Time
}

// NewJWTService constructs a JWTService instance when provided with the required configuration.
func NewJWTService(cfg JWTConfig) (*JWTService, error) {
	if cfg.Secret == "" && strings.TrimSpace(cfg.PublicKeyPEM) == "" {
		return nil, errors.New("jwt: secret or public key must be provided")
	}

	var publicKey *rsa.PublicKey
	if pem := strings.TrimSpace(cfg.PublicKeyPEM); pem != "" {
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pem))
		if err != nil {
			return nil, fmt.Errorf("jwt: parse public key: %w", err)
		}
		publicKey = key
	}

	ttl := cfg.AccessTokenTTL
	if ttl <= 0 {
		ttl = DefaultAccessTokenTTL
	}

	now := time.Now
	if cfg.Clock != nil {
		now = cfg.Clock
	}

	return &JWTService{
		secret:    []byte(cfg.Secret),
		publicKey: publicKey,
		issuer:    cfg.Issuer,
		ttl:       ttl,
		now:       now,
	}, nil
}

// GenerateAccessToken issues an HS256 token carrying the identity-provider claim layout.
func (s *JWTService) GenerateAccessToken(input AccessTokenInput) (string, error) {
	if input.UserID == "" {
		return "", errors.New("jwt: user id is required")
	}
	if len(s.secret) == 0 {
		return "", errors.New("jwt: signing secret not configured")
	}

	now := s.now()
	claims := &Claims{
		RealmAccess:       RealmAccess{Roles: slices.Clone(input.Roles)},
		GivenName:         input.GivenName,
		FamilyName:        input.FamilyName,
		PreferredUsername: input.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   input.UserID,
			Issuer:    s.issuer,
			Audience:  input.Audience,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("jwt: sign token: %w", err)
	}

	return signed, nil
}

// ValidateAccessToken parses and validates a signed JWT, returning the application claims.
func (s *JWTService) ValidateAccessToken(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, errors.New("jwt: token string is empty")
	}

	methods := make([]string, 0, 2)
	if len(s.secret) > 0 {
		methods = append(methods, jwt.SigningMethodHS256.Alg())
	}
	if s.publicKey != nil {
		methods = append(methods, jwt.SigningMethodRS256.Alg())
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods(methods),
		jwt.WithTimeFunc(s.now),
	)

	var claims Claims
	_, err := parser.ParseWithClaims(tokenString, &claims, s.keyFunc)
	if err != nil {
		return nil, fmt.Errorf("jwt: parse token: %w", err)
	}

	if s.issuer != "" && claims.Issuer != s.issuer {
		return nil, errors.New("jwt: invalid issuer")
	}

	if claims.Subject == "" {
		return nil, errors.New("jwt: missing subject claim")
	}

	return &claims, nil
}

func (s *JWTService) keyFunc(token *jwt.Token) (interface{}, error) {
	switch token.Method.(type) {
	case *jwt.SigningMethodRSA:
		return s.publicKey, nil
	default:
		return s.secret, nil
	}
}
