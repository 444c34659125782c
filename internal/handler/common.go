package handler

import (
	"marketplace/internal/middleware"

	"github.com/labstack/echo/v4"
)

// 更新系APIの成功レスポンス。bodyを返す必要がないときはこれ。
type SuccessResponse struct {
	Message string `json:"message"`
}

// middleware.AuthJWTがcontextに積んだuser_idを取り出す。
// 認証必須のルートでfalseになるのはmiddlewareの付け忘れ。
func getUserIDFromContext(c echo.Context) (int64, bool) {
	id, ok := c.Get(middleware.CtxUserIDKey).(int64)
	if !ok {
		return 0, false
	}
	return id, true
}
