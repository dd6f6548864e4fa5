package store

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"booksphere/internal/util"
	"booksphere/pkg/domain"
)

const (
	defaultJWTIssuer   = "booksphere"
	defaultJWTAudience = "booksphere-web"
	minJWTSecretLength = 16
)

var defaultJWTLeeway = 30 * time.Second

// JWTOptions configures JWT claim validation behavior.
type JWTOptions struct {
	Issuer   string
	Audience string
	Leeway   time.Duration
}

// sessionClaims carries the session snapshot next to the registered claims.
type sessionClaims struct {
	jwt.RegisteredClaims
	Name      string          `json:"name"`
	Role      domain.UserRole `json:"role"`
	IsPremium bool            `json:"premium"`
}

// JWTSessionStore keeps the session snapshot inside an HS256-signed token.
// Nothing is stored server side unless a revoker is configured.
type JWTSessionStore struct {
	secret  []byte
	ttl     time.Duration
	revoker TokenRevoker

	issuer   string
	audience string
	leeway   time.Duration
}

// NewJWTSessionStore builds a JWT session store signed with secret.
func NewJWTSessionStore(secret string, ttl time.Duration, revoker TokenRevoker, opts JWTOptions) (*JWTSessionStore, error) {
	if len(secret) < minJWTSecretLength {
		return nil, fmt.Errorf("session secret must be at least %d bytes", minJWTSecretLength)
	}
	if ttl <= 0 {
		return nil, errors.New("session ttl must be positive")
	}
	opts = normalizeJWTOptions(opts)
	return &JWTSessionStore{
		secret:   []byte(secret),
		ttl:      ttl,
		revoker:  revoker,
		issuer:   opts.Issuer,
		audience: opts.Audience,
		leeway:   opts.Leeway,
	}, nil
}

// NewSession signs a token holding the snapshot.
func (s *JWTSessionStore) NewSession(sess domain.Session) (string, error) {
	if sess.UserID <= 0 {
		return "", errors.New("session user id required")
	}
	now := time.Now().UTC()
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(sess.UserID, 10),
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        util.NewID(),
		},
		Name:      sess.Name,
		Role:      sess.Role,
		IsPremium: sess.IsPremium,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// GetSession validates token and returns its snapshot. Invalid, expired
// and revoked tokens report ok=false without an error.
func (s *JWTSessionStore) GetSession(token string) (domain.Session, bool, error) {
	claims, err := s.parseAndVerify(token)
	if err != nil {
		return domain.Session{}, false, nil
	}
	if s.revoker != nil {
		revoked, err := s.revoker.IsRevoked(claims.ID)
		if err != nil {
			return domain.Session{}, false, err
		}
		if revoked {
			return domain.Session{}, false, nil
		}
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return domain.Session{}, false, nil
	}
	return domain.Session{
		UserID:    userID,
		Name:      claims.Name,
		Role:      claims.Role,
		IsPremium: claims.IsPremium,
	}, true, nil
}

// RefreshSession issues a new token for the updated snapshot and revokes
// the old one when a revoker is configured.
func (s *JWTSessionStore) RefreshSession(token string, sess domain.Session) (string, error) {
	next, err := s.NewSession(sess)
	if err != nil {
		return "", err
	}
	if err := s.DeleteSession(token); err != nil {
		return "", err
	}
	return next, nil
}

// DeleteSession revokes the token until it expires. Without a revoker the
// client dropping its cookie is the only logout.
func (s *JWTSessionStore) DeleteSession(token string) error {
	if s.revoker == nil {
		return nil
	}
	claims, err := s.parseAndVerify(token)
	if err != nil || claims.ExpiresAt == nil {
		return nil
	}
	return s.revoker.Revoke(claims.ID, time.Until(claims.ExpiresAt.Time))
}

func (s *JWTSessionStore) parseAndVerify(token string) (sessionClaims, error) {
	claims := sessionClaims{}
	token = strings.TrimSpace(token)
	if token == "" {
		return claims, errors.New("invalid token format")
	}
	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(s.leeway),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
	}
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, parserOptions...)
	if err != nil || !parsed.Valid {
		if err == nil {
			err = errors.New("invalid token")
		}
		return claims, err
	}
	if strings.TrimSpace(claims.ID) == "" {
		return claims, errors.New("token jti missing")
	}
	return claims, nil
}

func normalizeJWTOptions(opts JWTOptions) JWTOptions {
	opts.Issuer = strings.TrimSpace(opts.Issuer)
	opts.Audience = strings.TrimSpace(opts.Audience)
	if opts.Issuer == "" {
		opts.Issuer = defaultJWTIssuer
	}
	if opts.Audience == "" {
		opts.Audience = defaultJWTAudience
	}
	if opts.Leeway <= 0 {
		opts.Leeway = defaultJWTLeeway
	}
	return opts
}
