package validator

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"marketplace/internal/repository"
	"marketplace/internal/usecase"
)

// =====================
// auth入力の検証エラー
// =====================
// usecaseのsentinelをwrapしておく。handler側のwriteErrorがstatusに変換する。
var (
	ErrInvalidInput     = fmt.Errorf("%w: invalid auth input", usecase.ErrValidation)
	ErrEmailAlreadyUsed = fmt.Errorf("%w: email already used", usecase.ErrConflict)
	ErrInvalidRefresh   = fmt.Errorf("%w: invalid refresh token", usecase.ErrUnauthorized)
)

// 厳密なRFC準拠パースはしない。空白なし + @ + ドメインにドットがあれば通す。
var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const (
	minPasswordLen = 8
	// bcryptは72byteより先を見ないので、ここで上限として弾く
	maxPasswordLen = 72
	maxEmailLen    = 254
)

// email重複の事前チェックでDBを引くのでrepositoryを持つ
type authValidator struct {
	users repository.UserRepository
}

// usecase側にはinterface(usecase.AuthValidator)だけを見せる
func NewAuthValidator(users repository.UserRepository) usecase.AuthValidator {
	return &authValidator{users: users}
}

// 登録入力の形式チェック + email重複の事前確認
func (v *authValidator) ValidateRegister(ctx context.Context, email string, password string) error {
	email = strings.TrimSpace(email)
	if err := checkEmail(email); err != nil {
		return err
	}
	if err := checkPassword(password); err != nil {
		return err
	}

	// 重複emailはここで先に弾く。DBのunique制約が最終防衛。
	if existing, err := v.users.FindByEmail(ctx, email); err == nil && existing != nil {
		return ErrEmailAlreadyUsed
	}

	return nil
}

// ログインは形式チェックのみ。アカウントの存在確認はusecase側で401に寄せる。
func (v *authValidator) ValidateLogin(ctx context.Context, email string, password string) error {
	email = strings.TrimSpace(email)
	if err := checkEmail(email); err != nil {
		return err
	}
	if password == "" {
		return ErrInvalidInput
	}
	return nil
}

// refreshはtokenの中身をここでは見ない。空提示だけ弾く。
func (v *authValidator) ValidateRefresh(ctx context.Context, refreshToken string, userAgent string) error {
	if strings.TrimSpace(refreshToken) == "" {
		return ErrInvalidRefresh
	}
	return nil
}

// logoutに検証する入力はない
func (v *authValidator) ValidateLogout(ctx context.Context) error {
	return nil
}

func (v *authValidator) ValidateForceLogout(ctx context.Context, targetUserID int64) error {
	if targetUserID <= 0 {
		return ErrInvalidInput
	}
	return nil
}

func checkEmail(email string) error {
	if email == "" || len(email) > maxEmailLen {
		return ErrInvalidInput
	}
	if !emailRe.MatchString(email) {
		return ErrInvalidInput
	}
	return nil
}

func checkPassword(password string) error {
	if len(password) < minPasswordLen || len(password) > maxPasswordLen {
		return ErrInvalidInput
	}
	return nil
}
