package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const accessTokenType = "access"

// SignerConfig is fixed for the lifetime of the process. Rotating the secret
// invalidates every outstanding token.
type SignerConfig struct {
	Secret   string
	Issuer   string
	Audience string
}

type SignerOption func(*Signer)

// WithClock replaces the wall clock used to stamp and check tokens.
func WithClock(now func() time.Time) SignerOption {
	return func(s *Signer) {
		if now != nil {
			s.now = now
		}
	}
}

// Signer issues and verifies HS256 access tokens.
type Signer struct {
	secret   []byte
	issuer   string
	audience string
	now      func() time.Time
}

type tokenClaims struct {
	Name   string `json:"name"`
	CityID int64  `json:"city_id"`
	Type   string `json:"typ"`
	jwt.RegisteredClaims
}

func NewSigner(config SignerConfig, options ...SignerOption) (*Signer, error) {
	if config.Secret == "" {
		return nil, errors.New("signing secret is required")
	}

	s := &Signer{
		secret:   []byte(config.Secret),
		issuer:   config.Issuer,
		audience: config.Audience,
		now:      time.Now,
	}
	for _, option := range options {
		option(s)
	}

	return s, nil
}

// Issue signs claims into a token valid for ttl. Token times have whole
// second precision.
func (s *Signer) Issue(claims Claims, ttl time.Duration) (Token, error) {
	now := s.now().UTC().Truncate(time.Second)
	expiresAt := now.Add(ttl).Truncate(time.Second)
	if !expiresAt.After(now) {
		return Token{}, fmt.Errorf("token ttl must be at least one second, got %s", ttl)
	}

	registered := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(claims.SubjectID, 10),
		Issuer:    s.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	if s.audience != "" {
		registered.Audience = jwt.ClaimStrings{s.audience}
	}

	payload := tokenClaims{
		Name:             claims.Name,
		CityID:           claims.CityID,
		Type:             accessTokenType,
		RegisteredClaims: registered,
	}

	encoded, err := jwt.NewWithClaims(jwt.SigningMethodHS256, payload).SignedString(s.secret)
	if err != nil {
		return Token{}, fmt.Errorf("sign jwt: %w", err)
	}

	return Token{
		Value:     encoded,
		Claims:    claims,
		IssuedAt:  now,
		ExpiresAt: expiresAt,
	}, nil
}

// Verify checks the signature and expiry of tokenString and returns the
// claims it carries. The clock is read once per call.
func (s *Signer) Verify(tokenString string) (Claims, error) {
	now := s.now().UTC()

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
	}
	if s.issuer != "" {
		options = append(options, jwt.WithIssuer(s.issuer))
	}
	if s.audience != "" {
		options = append(options, jwt.WithAudience(s.audience))
	}

	var payload tokenClaims
	_, err := jwt.ParseWithClaims(tokenString, &payload, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, options...)
	if err != nil {
		return Claims{}, classifyJWTError(err)
	}

	// Tokens expire at exp, whatever the parser version does with now == exp.
	if !now.Before(payload.ExpiresAt.Time) {
		return Claims{}, ErrExpired
	}
	if payload.Type != accessTokenType {
		return Claims{}, ErrMalformedToken
	}

	subjectID, err := strconv.ParseInt(payload.Subject, 10, 64)
	if err != nil {
		return Claims{}, ErrMalformedToken
	}

	return Claims{
		SubjectID: subjectID,
		Name:      payload.Name,
		CityID:    payload.CityID,
	}, nil
}

func classifyJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrInvalidSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	default:
		return ErrMalformedToken
	}
}
