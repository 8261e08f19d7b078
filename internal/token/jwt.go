package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dtroode/sqrl-server/internal/model"
)

// Claims represents JWT claims with token type, identity key and correlator.
type Claims struct {
	jwt.RegisteredClaims
	Idk        string `json:"idk"`
	Correlator string `json:"cor,omitempty"`
	TokenType  string `json:"typ"`
}

// JWT implements TokenManager backed by symmetric HMAC.
type JWT struct {
	secretKey string
	now       func() time.Time
}

var _ model.TokenManager = (*JWT)(nil)

// NewJWT creates a new JWT token manager with the provided secret key.
func NewJWT(secretKey string) *JWT {
	return &JWT{secretKey: secretKey, now: time.Now}
}

const (
	cpsTTL    = 2 * time.Minute
	loginTTL  = 15 * time.Minute
	typeCPS   = "cps"
	typeLogin = "login"
)

// GenerateCPSToken creates the token carried in the url= reply field. It lets
// the browser finish the login the SQRL client authenticated.
func (j *JWT) GenerateCPSToken(correlator, idk string) (string, error) {
	return j.sign(Claims{Idk: idk, Correlator: correlator, TokenType: typeCPS}, cpsTTL)
}

// ParseCPSToken validates a CPS token.
func (j *JWT) ParseCPSToken(tokenString string) (model.CPSClaims, error) {
	claims, err := j.parse(tokenString, typeCPS)
	if err != nil {
		return model.CPSClaims{}, err
	}
	return model.CPSClaims{Correlator: claims.Correlator, Idk: claims.Idk}, nil
}

// GenerateLoginToken creates the session token handed to the browser.
func (j *JWT) GenerateLoginToken(idk string) (string, error) {
	return j.sign(Claims{Idk: idk, TokenType: typeLogin}, loginTTL)
}

// ParseLoginToken validates a login token and returns the identity key.
func (j *JWT) ParseLoginToken(tokenString string) (string, error) {
	claims, err := j.parse(tokenString, typeLogin)
	if err != nil {
		return "", err
	}
	return claims.Idk, nil
}

func (j *JWT) sign(claims Claims, ttl time.Duration) (string, error) {
	now := j.now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(j.secretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", claims.TokenType, err)
	}
	return tokenString, nil
}

func (j *JWT) parse(tokenString, tokenType string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("wrong signing method %v", t.Header["alg"])
		}
		return []byte(j.secretKey), nil
	}, jwt.WithTimeFunc(j.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, model.ErrTokenExpired
		}
		return nil, fmt.Errorf("failed to parse %s token: %w", tokenType, err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("%s token is invalid", tokenType)
	}
	if claims.TokenType != tokenType {
		return nil, fmt.Errorf("%w: %s", model.ErrTokenMismatch, claims.TokenType)
	}
	if claims.Idk == "" {
		return nil, fmt.Errorf("%s token has no idk", tokenType)
	}
	return claims, nil
}
