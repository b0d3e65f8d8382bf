package middleware

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/orrn/printdesk/internal/model"
)

const (
	CookieName           = "printdesk_auth"
	settingsKeyJWTSecret = "jwt_secret"
	claimsKey            = "claims"
	issuer               = "printdesk"
)

type Claims struct {
	jwt.RegisteredClaims
	UserID   int64  `json:"uid"`
	Fullname string `json:"name"`
	Username string `json:"username"`
	Admin    bool   `json:"admin"`
}

// SecretStore persists the generated signing key when none is configured.
type SecretStore interface {
	GetOrCreateSetting(ctx context.Context, key, value string) (string, error)
}

type AuthConfig struct {
	Secret        string
	TokenDuration time.Duration
	SecureCookie  bool
}

type AuthMiddleware struct {
	secret        []byte
	tokenDuration time.Duration
	secureCookie  bool
}

func NewAuthMiddleware(ctx context.Context, cfg AuthConfig, store SecretStore) (*AuthMiddleware, error) {
	if cfg.TokenDuration <= 0 {
		cfg.TokenDuration = 24 * time.Hour
	}
	a := &AuthMiddleware{
		tokenDuration: cfg.TokenDuration,
		secureCookie:  cfg.SecureCookie,
	}

	if cfg.Secret != "" {
		a.secret = []byte(cfg.Secret)
		return a, nil
	}

	secret, err := getOrCreateSecret(ctx, store)
	if err != nil {
		return nil, err
	}
	a.secret = secret
	return a, nil
}

func getOrCreateSecret(ctx context.Context, store SecretStore) ([]byte, error) {
	if store == nil {
		return nil, errors.New("jwt secret is not configured and no settings store is available")
	}

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate jwt secret: %w", err)
	}

	value, err := store.GetOrCreateSetting(ctx, settingsKeyJWTSecret, hex.EncodeToString(key))
	if err != nil {
		return nil, err
	}
	return hex.DecodeString(value)
}

// IssueToken signs a session token for u.
func (a *AuthMiddleware) IssueToken(u *model.User, admin bool) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", u.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.tokenDuration)),
			Issuer:    issuer,
		},
		UserID:   u.ID,
		Fullname: u.Fullname,
		Username: u.Username,
		Admin:    admin,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

func (a *AuthMiddleware) validateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwt.WithIssuer(issuer))

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid && claims.UserID > 0 {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}

func (a *AuthMiddleware) getTokenFromRequest(c *gin.Context) string {
	if cookie, err := c.Cookie(CookieName); err == nil && cookie != "" {
		return cookie
	}

	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	return ""
}

func (a *AuthMiddleware) SetAuthCookie(c *gin.Context, token string) {
	c.SetCookie(CookieName, token, int(a.tokenDuration.Seconds()), "/", "", a.secureCookie, true)
}

func (a *AuthMiddleware) ClearAuthCookie(c *gin.Context) {
	c.SetCookie(CookieName, "", -1, "/", "", a.secureCookie, true)
}

func (a *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := a.getTokenFromRequest(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "Authentication required"})
			return
		}

		claims, err := a.validateToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "Invalid or expired token"})
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

// RequireAdmin must run after RequireAuth.
func (a *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := GetClaims(c)
		if !ok || !claims.Admin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden", "message": "Administrator access required"})
			return
		}
		c.Next()
	}
}

func GetClaims(c *gin.Context) (*Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*Claims)
	return claims, ok
}
