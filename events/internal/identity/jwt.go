package identity

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
)

// Claims are the token claims the events service reads.
type Claims struct {
	Org          string `json:"urn:altinn:org,omitempty"`
	UserID       string `json:"urn:altinn:userid,omitempty"`
	PersonID     string `json:"pid,omitempty"`
	SystemUserID string `json:"urn:altinn:systemuser,omitempty"`
	OrgNumber    string `json:"urn:altinn:orgNumber,omitempty"`
	Scope        string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// Parser verifies HMAC-signed bearer tokens.
type Parser struct {
	secret []byte
	issuer string
}

// NewParser creates a parser. An empty issuer disables the issuer check.
func NewParser(secret, issuer string) *Parser {
	return &Parser{secret: []byte(secret), issuer: issuer}
}

// Parse verifies tokenString and returns its claims.
func (p *Parser) Parse(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"})}
	if p.issuer != "" {
		opts = append(opts, jwt.WithIssuer(p.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return p.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Identify verifies tokenString and resolves the caller identity.
func (p *Parser) Identify(tokenString string) (Identity, error) {
	claims, err := p.Parse(tokenString)
	if err != nil {
		return Identity{}, err
	}
	return Resolve(claims), nil
}
