package validator_test

import (
	"context"
	"strings"
	"testing"

	"marketplace/internal/domain/model"
	"marketplace/internal/repository"
	"marketplace/internal/usecase"
	"marketplace/internal/validator"

	"github.com/stretchr/testify/assert"
)

// FindByEmailだけ差し替えるstub
type usersByEmailStub struct {
	repository.UserRepository
	existing *model.User
	err      error
}

func (s *usersByEmailStub) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.existing, s.err
}

func newValidatorWith(existing *model.User, err error) usecase.AuthValidator {
	return validator.NewAuthValidator(&usersByEmailStub{existing: existing, err: err})
}

// =====================
// Register
// =====================

func TestValidateRegister_OK(t *testing.T) {
	v := newValidatorWith(nil, repository.ErrUserNotFound)

	err := v.ValidateRegister(context.Background(), "new@example.com", "password123")
	assert.NoError(t, err)
}

func TestValidateRegister_TrimsEmail(t *testing.T) {
	v := newValidatorWith(nil, repository.ErrUserNotFound)

	err := v.ValidateRegister(context.Background(), "  new@example.com  ", "password123")
	assert.NoError(t, err)
}

func TestValidateRegister_BadEmail(t *testing.T) {
	v := newValidatorWith(nil, repository.ErrUserNotFound)

	for _, email := range []string{
		"",
		"plainaddress",
		"no-at.example.com",
		"spaces in@example.com",
		"nodot@example",
		"a@" + strings.Repeat("x", 300) + ".com", // 長すぎ
	} {
		err := v.ValidateRegister(context.Background(), email, "password123")
		assert.ErrorIs(t, err, usecase.ErrValidation, "email=%q", email)
	}
}

func TestValidateRegister_BadPassword(t *testing.T) {
	v := newValidatorWith(nil, repository.ErrUserNotFound)

	// 短すぎ
	err := v.ValidateRegister(context.Background(), "new@example.com", "short")
	assert.ErrorIs(t, err, usecase.ErrValidation)

	// bcrypt上限超え
	err = v.ValidateRegister(context.Background(), "new@example.com", strings.Repeat("p", 73))
	assert.ErrorIs(t, err, usecase.ErrValidation)

	// 72byteちょうどは通る
	err = v.ValidateRegister(context.Background(), "new@example.com", strings.Repeat("p", 72))
	assert.NoError(t, err)
}

func TestValidateRegister_DuplicateEmail(t *testing.T) {
	v := newValidatorWith(&model.User{ID: 1, Email: "taken@example.com"}, nil)

	err := v.ValidateRegister(context.Background(), "taken@example.com", "password123")
	assert.ErrorIs(t, err, usecase.ErrConflict)
}

// =====================
// Login / Refresh / ForceLogout
// =====================

func TestValidateLogin(t *testing.T) {
	v := newValidatorWith(nil, repository.ErrUserNotFound)

	assert.NoError(t, v.ValidateLogin(context.Background(), "a@example.com", "password123"))
	assert.ErrorIs(t, v.ValidateLogin(context.Background(), "", "password123"), usecase.ErrValidation)
	assert.ErrorIs(t, v.ValidateLogin(context.Background(), "a@example.com", ""), usecase.ErrValidation)
	assert.ErrorIs(t, v.ValidateLogin(context.Background(), "not-an-email", "password123"), usecase.ErrValidation)
}

func TestValidateRefresh(t *testing.T) {
	v := newValidatorWith(nil, repository.ErrUserNotFound)

	assert.NoError(t, v.ValidateRefresh(context.Background(), "some-refresh-token", "agent"))

	// 空・空白のみはrefresh不正。401系に落とす。
	assert.ErrorIs(t, v.ValidateRefresh(context.Background(), "", "agent"), usecase.ErrUnauthorized)
	assert.ErrorIs(t, v.ValidateRefresh(context.Background(), "   ", "agent"), usecase.ErrUnauthorized)
}

func TestValidateForceLogout(t *testing.T) {
	v := newValidatorWith(nil, repository.ErrUserNotFound)

	assert.NoError(t, v.ValidateForceLogout(context.Background(), 42))
	assert.ErrorIs(t, v.ValidateForceLogout(context.Background(), 0), usecase.ErrValidation)
	assert.ErrorIs(t, v.ValidateForceLogout(context.Background(), -1), usecase.ErrValidation)
}
