package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const defaultLeeway = 30 * time.Second

var (
	ErrNoKeySource    = errors.New("auth: a JWT secret or JWKS URL is required")
	ErrMissingSubject = errors.New("auth: token missing sub")
	ErrBadSubject     = errors.New("auth: token sub is not an account id")
)

// Config controls which tokens the Verifier accepts.
type Config struct {
	// Secret verifies HS256 tokens. Optional when JWKSURL is set.
	Secret string
	// JWKSURL verifies asymmetric tokens. Optional when Secret is set.
	JWKSURL  string
	Issuer   string
	Audience string
}

// Claims contains the verified session details the service uses.
type Claims struct {
	AccountID uuid.UUID
	Email     string
	Name      string
	Issuer    string
	ExpiresAt time.Time
}

type sessionClaims struct {
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
	jwt.RegisteredClaims
}

// Verifier validates session tokens.
type Verifier struct {
	secret []byte
	jwks   keyfunc.Keyfunc
	parser *jwt.Parser
}

// NewVerifier builds a Verifier. With a JWKS URL the key set is fetched
// and refreshed in the background.
func NewVerifier(cfg Config) (*Verifier, error) {
	if cfg.Secret == "" && cfg.JWKSURL == "" {
		return nil, ErrNoKeySource
	}

	v := &Verifier{}
	var methods []string

	if cfg.Secret != "" {
		v.secret = []byte(cfg.Secret)
		methods = append(methods, jwt.SigningMethodHS256.Name)
	}
	if cfg.JWKSURL != "" {
		k, err := keyfunc.NewDefault([]string{cfg.JWKSURL})
		if err != nil {
			return nil, fmt.Errorf("auth: init JWKS keyfunc: %w", err)
		}
		v.jwks = k
		methods = append(methods,
			jwt.SigningMethodRS256.Name,
			jwt.SigningMethodRS384.Name,
			jwt.SigningMethodRS512.Name,
			jwt.SigningMethodES256.Name,
		)
	}

	opts := []jwt.ParserOption{
		jwt.WithLeeway(defaultLeeway),
		jwt.WithValidMethods(methods),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	v.parser = jwt.NewParser(opts...)

	return v, nil
}

// Verify parses and validates a token, returning its claims.
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	var sc sessionClaims
	token, err := v.parser.ParseWithClaims(tokenString, &sc, v.keyFor)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("auth: invalid token")
	}

	if sc.Subject == "" {
		return nil, ErrMissingSubject
	}
	id, err := uuid.Parse(sc.Subject)
	if err != nil {
		return nil, ErrBadSubject
	}

	claims := &Claims{
		AccountID: id,
		Email:     strings.TrimSpace(sc.Email),
		Name:      readName(sc.UserMetadata),
		Issuer:    sc.Issuer,
	}
	if sc.ExpiresAt != nil {
		claims.ExpiresAt = sc.ExpiresAt.Time
	}
	return claims, nil
}

func (v *Verifier) keyFor(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); ok {
		if v.secret == nil {
			return nil, errors.New("auth: HMAC tokens not accepted")
		}
		return v.secret, nil
	}
	if v.jwks == nil {
		return nil, errors.New("auth: asymmetric tokens not accepted")
	}
	return v.jwks.Keyfunc(token)
}

// ExtractBearerToken returns the token from an Authorization header.
func ExtractBearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}

func readName(meta map[string]any) string {
	for _, key := range []string{"full_name", "name"} {
		if s, ok := meta[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
