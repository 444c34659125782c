package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"marketplace/internal/config"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
)

// AuthJWTが通ったリクエストのcontextに入るキー。
const (
	CtxUserIDKey       = "user_id"       // int64
	CtxUserRoleKey     = "user_role"     // string
	CtxTokenVersionKey = "token_version" // int
)

type errorResponse struct {
	Error string `json:"error"`
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
}

// bearerAuth用のJWT検証ミドルウェア。
// HS256以外のalgは署名が正しくても拒否する。
func AuthJWT(cfg config.Config) echo.MiddlewareFunc {
	keyFunc := func(t *jwt.Token) (interface{}, error) {
		return []byte(cfg.JWTSecret), nil
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearerToken(c)
			if !ok {
				return unauthorized(c)
			}

			token, err := jwt.Parse(raw, keyFunc, jwt.WithValidMethods([]string{"HS256"}))
			if err != nil || !token.Valid {
				return unauthorized(c)
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				return unauthorized(c)
			}

			// sub / role / tv が揃っていないtokenは発行していない
			userID, ok := claimInt64(claims["sub"])
			if !ok || userID <= 0 {
				return unauthorized(c)
			}
			role, ok := claims["role"].(string)
			if !ok || role == "" {
				return unauthorized(c)
			}
			tv, ok := claimInt(claims["tv"])
			if !ok || tv < 0 {
				return unauthorized(c)
			}

			c.Set(CtxUserIDKey, userID)
			c.Set(CtxUserRoleKey, role)
			c.Set(CtxTokenVersionKey, tv)
			return next(c)
		}
	}
}

// AuthorizationヘッダからBearerトークン本体を抜く。
func bearerToken(c echo.Context) (string, bool) {
	authz := c.Request().Header.Get("Authorization")
	scheme, rest, found := strings.Cut(authz, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	raw := strings.TrimSpace(rest)
	if raw == "" {
		return "", false
	}
	return raw, true
}

// JSON経由のclaimはfloat64で来る。文字列のsubも一応受ける。
func claimInt64(v interface{}) (int64, bool) {
	switch t := v.(type) {
	case float64:
		return int64(t), true
	case string:
		n, err := strconv.ParseInt(t, 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

func claimInt(v interface{}) (int, bool) {
	n, ok := claimInt64(v)
	if !ok {
		return 0, false
	}
	return int(n), true
}
