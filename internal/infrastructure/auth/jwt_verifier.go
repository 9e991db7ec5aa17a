package auth

import (
	"fmt"
	"time"

	"ticketing-realtime/internal/domain"

	"github.com/golang-jwt/jwt/v5"
)

// JWTVerifier checks HS256 tokens issued by the platform's auth service and decodes the
// user id from "sub" and the role from "role".
type JWTVerifier struct {
	secretKey []byte
	issuer    string
}

var _ domain.IdentityVerifier = (*JWTVerifier)(nil)

func NewJWTVerifier(secret, issuer string) *JWTVerifier {
	return &JWTVerifier{
		secretKey: []byte(secret),
		issuer:    issuer,
	}
}

// IssueToken signs a token for the given identity. Used by the relay's token command
// and tests; end-user credentials come from the platform's auth service.
func (v *JWTVerifier) IssueToken(identity domain.Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  identity.UserID,
		"role": string(identity.Role),
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
		"iss":  v.issuer,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secretKey)
}

// Verify returns domain.ErrAuthRejected for any token that cannot be trusted.
func (v *JWTVerifier) Verify(tokenStr string) (*domain.Identity, error) {
	if tokenStr == "" {
		return nil, fmt.Errorf("%w: missing token", domain.ErrAuthRejected)
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired()}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secretKey, nil
	}, opts...)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", domain.ErrAuthRejected, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: invalid claims", domain.ErrAuthRejected)
	}

	userID, _ := claims["sub"].(string)
	if userID == "" {
		return nil, fmt.Errorf("%w: subject not found in token", domain.ErrAuthRejected)
	}

	role := domain.Role(fmt.Sprint(claims["role"]))
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", domain.ErrAuthRejected, role)
	}

	return &domain.Identity{UserID: userID, Role: role}, nil
}
