package usecase

import (
	"context"
	"errors"
	"regexp"
	"time"

	"marketplace/internal/domain/model"
	"marketplace/internal/repository"
)

// 1ユーザーが登録できる住所の上限
const maxAddressesPerUser = 20

// 郵便番号は7桁（ハイフン任意）。国内配送のみ。
var postalCodeRe = regexp.MustCompile(`^\d{3}-?\d{4}$`)

// 電話は桁と記号をざっくり見るだけ
var phoneRe = regexp.MustCompile(`^[0-9+\-() ]{8,20}$`)

// 本人の住所のCRUD。形式の検証はここで行い、
// default住所の一意性はrepository側で維持する。
type AddressUsecase struct {
	addresses repository.AddressRepository
}

func NewAddressUsecase(addresses repository.AddressRepository) *AddressUsecase {
	return &AddressUsecase{addresses: addresses}
}

// 一覧・作成・更新で共通のレスポンス形。
type AddressDTO struct {
	ID     int64 `json:"id"`
	UserID int64 `json:"user_id"`

	PostalCode string `json:"postal_code"`
	Prefecture string `json:"prefecture"`
	City       string `json:"city"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`

	// 宛名と連絡先
	Name  string `json:"name"`
	Phone string `json:"phone"`

	IsDefault bool    `json:"is_default"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt *string `json:"updated_at,omitempty"`
}

type AddressCreateRequest struct {
	PostalCode string `json:"postal_code"`
	Prefecture string `json:"prefecture"`
	City       string `json:"city"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`

	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// 更新も全項目で受ける。部分更新はしない。
type AddressUpdateRequest = AddressCreateRequest

func (u *AddressUsecase) List(ctx context.Context, userID int64) ([]AddressDTO, error) {
	if userID <= 0 {
		return nil, ErrUnauthorized
	}
	list, err := u.addresses.ListByUserID(ctx, userID)
	if err != nil {
		return nil, ErrInternal
	}
	out := make([]AddressDTO, 0, len(list))
	for _, a := range list {
		out = append(out, toAddressDTO(a))
	}
	return out, nil
}

// 上限は1ユーザー20件。1件目は自動でdefaultになる。
func (u *AddressUsecase) Create(ctx context.Context, userID int64, req AddressCreateRequest) (AddressDTO, error) {
	if userID <= 0 {
		return AddressDTO{}, ErrUnauthorized
	}
	if err := checkAddressFields(req.PostalCode, req.Prefecture, req.City, req.Line1, req.Name, req.Phone); err != nil {
		return AddressDTO{}, err
	}

	existing, err := u.addresses.ListByUserID(ctx, userID)
	if err != nil {
		return AddressDTO{}, ErrInternal
	}
	if len(existing) >= maxAddressesPerUser {
		return AddressDTO{}, ErrValidation
	}

	a := addressFromRequest(req)
	a.UserID = userID
	// 最初の1件は自動でdefault。注文時に配送先が選べない状態を作らない。
	a.IsDefault = len(existing) == 0

	now := time.Now()
	a.CreatedAt = now
	a.UpdatedAt = now

	created, err := u.addresses.Create(ctx, a)
	if err != nil {
		return AddressDTO{}, ErrInternal
	}

	return toAddressDTO(created), nil
}

func (u *AddressUsecase) Update(ctx context.Context, userID int64, addressID int64, req AddressUpdateRequest) error {
	if err := u.requireOwned(ctx, userID, addressID); err != nil {
		return err
	}
	if err := checkAddressFields(req.PostalCode, req.Prefecture, req.City, req.Line1, req.Name, req.Phone); err != nil {
		return err
	}

	a := addressFromRequest(req)
	a.ID = addressID
	a.UpdatedAt = time.Now()

	if err := u.addresses.Update(ctx, a); err != nil {
		if errors.Is(err, repository.ErrAddressNotFound) {
			return ErrNotFound
		}
		return ErrInternal
	}
	return nil
}

func (u *AddressUsecase) Delete(ctx context.Context, userID int64, addressID int64) error {
	if err := u.requireOwned(ctx, userID, addressID); err != nil {
		return err
	}

	if err := u.addresses.Delete(ctx, addressID); err != nil {
		if errors.Is(err, repository.ErrAddressNotFound) {
			return ErrNotFound
		}
		// 注文が参照中などFK起因の失敗は409
		return ErrConflict
	}
	return nil
}

func (u *AddressUsecase) SetDefault(ctx context.Context, userID int64, addressID int64) error {
	if err := u.requireOwned(ctx, userID, addressID); err != nil {
		return err
	}

	if err := u.addresses.SetDefault(ctx, userID, addressID); err != nil {
		if errors.Is(err, repository.ErrAddressNotFound) {
			return ErrNotFound
		}
		return ErrInternal
	}
	return nil
}

// 本人の住所でなければ403、見つからなければ404。
func (u *AddressUsecase) requireOwned(ctx context.Context, userID, addressID int64) error {
	switch {
	case userID <= 0:
		return ErrUnauthorized
	case addressID <= 0:
		return ErrValidation
	}

	owned, err := u.addresses.IsOwnedByUser(ctx, addressID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrAddressNotFound) {
			return ErrNotFound
		}
		return ErrInternal
	}
	if !owned {
		return ErrForbidden
	}
	return nil
}

func checkAddressFields(postal, prefecture, city, line1, name, phone string) error {
	if postal == "" || prefecture == "" || city == "" || line1 == "" || name == "" {
		return ErrValidation
	}
	if !postalCodeRe.MatchString(postal) {
		return ErrValidation
	}
	if phone != "" && !phoneRe.MatchString(phone) {
		return ErrValidation
	}
	return nil
}

// リクエストの住所項目だけを写す。ID・所有者・時刻は呼び出し側で埋める。
func addressFromRequest(req AddressCreateRequest) model.Address {
	return model.Address{
		PostalCode: req.PostalCode,
		Prefecture: req.Prefecture,
		City:       req.City,
		Line1:      req.Line1,
		Line2:      req.Line2,
		Name:       req.Name,
		Phone:      req.Phone,
	}
}

func toAddressDTO(a model.Address) AddressDTO {
	updated := a.UpdatedAt.Format(time.RFC3339)
	return AddressDTO{
		ID:     a.ID,
		UserID: a.UserID,

		PostalCode: a.PostalCode,
		Prefecture: a.Prefecture,
		City:       a.City,
		Line1:      a.Line1,
		Line2:      a.Line2,

		Name:  a.Name,
		Phone: a.Phone,

		IsDefault: a.IsDefault,
		CreatedAt: a.CreatedAt.Format(time.RFC3339),
		UpdatedAt: &updated,
	}
}
