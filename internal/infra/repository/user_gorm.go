package repository

import (
	"context"
	"errors"

	"marketplace/internal/domain/model"
	domainrepo "marketplace/internal/repository"

	"gorm.io/gorm"
)

type userGormRepository struct {
	db *gorm.DB
}

// main.goでnewしてusecaseへ注入する。
func NewUserGormRepository(db *gorm.DB) domainrepo.UserRepository {
	return &userGormRepository{db: db}
}

func (r *userGormRepository) Create(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// 見つからないときは (nil, nil)。呼び出し側はnilチェックで分岐する。
func (r *userGormRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	err := r.db.WithContext(ctx).
		Where("email = ?", email).
		First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userGormRepository) FindByID(ctx context.Context, id int64) (*model.User, error) {
	var u model.User
	err := r.db.WithContext(ctx).First(&u, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// 全カラム保存。last_login_atやis_activeの変更はこの経路で書く。
func (r *userGormRepository) Update(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Save(user).Error
}

// 出品者審査の通過で USER -> SELLER に上げる。
func (r *userGormRepository) UpdateRole(ctx context.Context, id int64, role model.Role) error {
	res := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", id).
		Update("role", role)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domainrepo.ErrUserNotFound
	}
	return nil
}

func (r *userGormRepository) AddTrustScore(ctx context.Context, id int64, delta int) error {
	return r.bumpColumn(ctx, id, "trust_score", gorm.Expr("trust_score + ?", delta))
}

// token_versionが上がると既発行のaccess tokenはguardで弾かれる。
func (r *userGormRepository) IncrementTokenVersion(ctx context.Context, id int64) error {
	return r.bumpColumn(ctx, id, "token_version", gorm.Expr("token_version + ?", 1))
}

// カウンタ列の加算。updated_atは触らない。0件更新は対象ユーザーなし。
func (r *userGormRepository) bumpColumn(ctx context.Context, id int64, column string, expr any) error {
	res := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", id).
		UpdateColumn(column, expr)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domainrepo.ErrUserNotFound
	}
	return nil
}
