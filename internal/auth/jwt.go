// Package auth issues and validates the bearer tokens that identify reviewers
// and admins.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Roles carried in the role claim.
const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

// DefaultTokenTTL is the lifetime of generated tokens.
const DefaultTokenTTL = 24 * time.Hour

// Default leeway for token validation.
const DefaultLeeway = 30 * time.Second

// Issuer is written to and required in the iss claim.
const Issuer = "fizzrank"

// ErrInvalidToken is returned when token validation fails.
var ErrInvalidToken = errors.New("invalid token")

// ErrExpiredToken is returned when the token has expired.
var ErrExpiredToken = errors.New("token has expired")

// ErrEmptyUserID is returned when userID is empty.
var ErrEmptyUserID = errors.New("userID cannot be empty")

// ErrInvalidRole is returned for roles other than member and admin.
var ErrInvalidRole = errors.New("role must be member or admin")

// Claims represents custom JWT claims for the application.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// IsAdmin reports whether the claims grant admin access.
func (c *Claims) IsAdmin() bool {
	return c.Role == RoleAdmin
}

// ValidRole reports whether role is a known role.
func ValidRole(role string) bool {
	return role == RoleMember || role == RoleAdmin
}

// Options configures a JWTService.
type Options struct {
	// CurrentSecret signs new tokens and validates presented ones.
	CurrentSecret string
	// PreviousSecret, when set, still validates tokens during a rotation.
	PreviousSecret string
	Leeway         time.Duration
	TokenTTL       time.Duration
}

// JWTService handles JWT token operations.
// Supports dual-key rotation: tokens are signed with currentSecret,
// but can be validated with either currentSecret or previousSecret.
type JWTService struct {
	currentSecret  []byte
	previousSecret []byte
	leeway         time.Duration
	ttl            time.Duration
	now            func() time.Time
}

// NewJWTService creates a JWTService with a single secret and default settings.
func NewJWTService(secret string) *JWTService {
	return NewJWTServiceWithOptions(Options{CurrentSecret: secret, Leeway: DefaultLeeway})
}

// NewJWTServiceWithRotation creates a JWTService that also accepts tokens
// signed with previousSecret. An empty previousSecret disables rotation.
func NewJWTServiceWithRotation(currentSecret, previousSecret string) *JWTService {
	return NewJWTServiceWithOptions(Options{
		CurrentSecret:  currentSecret,
		PreviousSecret: previousSecret,
		Leeway:         DefaultLeeway,
	})
}

// NewJWTServiceWithOptions creates a JWTService from opts. A negative Leeway
// disables leeway; zero TokenTTL uses DefaultTokenTTL.
func NewJWTServiceWithOptions(opts Options) *JWTService {
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = DefaultTokenTTL
	}
	if opts.Leeway < 0 {
		opts.Leeway = 0
	}
	svc := &JWTService{
		currentSecret: []byte(opts.CurrentSecret),
		leeway:        opts.Leeway,
		ttl:           opts.TokenTTL,
		now:           time.Now,
	}
	if opts.PreviousSecret != "" {
		svc.previousSecret = []byte(opts.PreviousSecret)
	}
	return svc
}

// GenerateToken creates a signed token for userID with the given role.
func (s *JWTService) GenerateToken(userID, role string) (string, error) {
	if userID == "" {
		return "", ErrEmptyUserID
	}
	if !ValidRole(role) {
		return "", ErrInvalidRole
	}

	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		Role: role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.currentSecret)
}

// ValidateToken parses and validates a JWT token, returning the claims if valid.
// Supports dual-key rotation: tries currentSecret first, then previousSecret if available.
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	claims, err := s.parse(tokenString, s.currentSecret)
	if err != nil && s.previousSecret != nil && !errors.Is(err, jwt.ErrTokenExpired) {
		claims, err = s.parse(tokenString, s.previousSecret)
	}

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" || !ValidRole(claims.Role) {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *JWTService) parse(tokenString string, secret []byte) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(s.leeway),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
