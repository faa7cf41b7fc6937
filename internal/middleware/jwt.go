// Package middleware verifies bearer credentials. Verification must complete
// before a connection is admitted to any room operation; failures terminate
// the attempt before room state is touched.
package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidCredential covers missing, expired or malformed tokens.
var ErrInvalidCredential = errors.New("invalid credential")

// Identity is the verified result of a credential check.
type Identity struct {
	Subject  string
	Username string
}

// Claims are the JWT claims issued by the login endpoint.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Verifier turns a bearer credential into a verified identity. The JWT
// implementation below is the default; tests substitute their own.
type Verifier interface {
	Verify(token string) (Identity, error)
}

// JWTVerifier validates HS256 tokens signed with a shared secret.
type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

func (v *JWTVerifier) Verify(tokenString string) (Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Username == "" {
		return Identity{}, ErrInvalidCredential
	}
	return Identity{Subject: claims.Subject, Username: claims.Username}, nil
}

// JWTAuth guards HTTP endpoints. On success the verified identity is stored
// in the gin context under "identity".
func JWTAuth(verifier Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization header required",
			})
			return
		}

		// Extract token from "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid authorization header format",
			})
			return
		}

		identity, err := verifier.Verify(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid token",
			})
			return
		}

		c.Set("identity", identity)
		c.Next()
	}
}

// IdentityFrom retrieves the identity stored by JWTAuth.
func IdentityFrom(c *gin.Context) (Identity, bool) {
	v, ok := c.Get("identity")
	if !ok {
		return Identity{}, false
	}
	id, ok := v.(Identity)
	return id, ok
}
