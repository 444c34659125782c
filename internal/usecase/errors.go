package usecase

import (
	"errors"
	"fmt"
)

// ドメイン層のエラー種別。handlerの境界でHTTPステータスと
// 機械可読コードに変換する。
var (
	//400 入力不足
	ErrValidation = errors.New("validation error")
	//401 認証失敗
	ErrUnauthorized = errors.New("unauthorized")
	//403　権限
	ErrForbidden = errors.New("forbidden")
	//401 再利用されてしまっている
	ErrSecurityIncident = errors.New("security incident")
	//競合
	ErrConflict = errors.New("conflict")
	//500
	ErrInternal = errors.New("internal error")

	//404 対象なし（他人の資源を隠すときにも使う）
	ErrNotFound = errors.New("not found")
	//403 本人以外の操作
	ErrAccessDenied = errors.New("access denied")
	//409 買えない商品（出品者が未認証・商品が非公開）
	ErrProductUnavailable = errors.New("product unavailable")
	//409 在庫不足
	ErrInsufficientStock = errors.New("insufficient stock")
	//409 注文ステータスがその操作を許さない
	ErrInvalidStatus = errors.New("invalid status")
	//409 エスクローの不正遷移（終端からの再遷移など）
	ErrInvalidEscrowTransition = errors.New("invalid escrow transition")
	//409 返金申請が許されない（期限切れ・escrow非held）
	ErrRefundNotAllowed = errors.New("refund not allowed")
)

type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func NewHTTPError(status int, message string) error {
	return &HTTPError{
		Status:  status,
		Message: message,
	}
}

func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	ok := errors.As(err, &he)
	return he, ok
}
