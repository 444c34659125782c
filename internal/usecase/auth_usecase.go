package usecase

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"time"

	"marketplace/internal/config"
	"marketplace/internal/domain/model"
	"marketplace/internal/repository"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// accessは短命にして、セッションの寿命はrefresh側で持つ。
const (
	accessTokenTTL  = 15 * time.Minute
	refreshTokenTTL = 30 * 24 * time.Hour
)

// 入力検証はvalidatorパッケージ側にあり、usecaseはこの窓口だけを知る。
type AuthValidator interface {
	ValidateRegister(ctx context.Context, email string, password string) error
	ValidateLogin(ctx context.Context, email string, password string) error
	ValidateRefresh(ctx context.Context, refreshToken string, userAgent string) error
	ValidateLogout(ctx context.Context) error
	ValidateForceLogout(ctx context.Context, targetUserID int64) error
}

type AuthUsecase struct {
	cfg    config.Config
	users  repository.UserRepository
	rtRepo repository.RefreshTokenRepository
	// 入力の形式チェック。email重複のようにDBを見る検証も含む。
	validator AuthValidator
}

func NewAuthUsecase(cfg config.Config, users repository.UserRepository,
	rtRepo repository.RefreshTokenRepository, validator AuthValidator) *AuthUsecase {
	return &AuthUsecase{cfg: cfg, users: users, rtRepo: rtRepo, validator: validator}
}

// =====================
// リクエスト/レスポンス
// =====================

type AuthRegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// レスポンスに載せる公開ユーザー情報。パスワード関連は含めない。
type UserDTO struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
	// セッション制御まわり
	TokenVersion int  `json:"token_version"`
	IsActive     bool `json:"is_active"`
}

type JwtAccessTokenDTO struct {
	AccessToken  string `json:"access_token"`
	ExpiresIn    int    `json:"expires_in"` // 秒
	TokenVersion int    `json:"token_version"`
}

type AuthRegisterResponse struct {
	User UserDTO `json:"user"`
}

type AuthLoginResponse struct {
	User  UserDTO           `json:"user"`
	Token JwtAccessTokenDTO `json:"token"`
}

// messageひとつだけの定型レスポンス
type SuccessResponse struct {
	Message string `json:"message"`
}

// 強制ログアウト後のtoken_versionをクライアントへ知らせる
type ForceLogoutResponse struct {
	UserID          int64 `json:"user_id"`
	NewTokenVersion int   `json:"new_token_version"`
}

// Bodyはそのままクライアントへ返し、平文トークン2つはhandlerがcookieに流す。
// bodyに平文refreshを載せない。
type LoginResult struct {
	Body              AuthLoginResponse
	RefreshTokenPlain string
	CsrfTokenPlain    string
}

// Refresh成功時もcookie差し替え用に平文を2つ返す
type RefreshResult struct {
	Body              JwtAccessTokenDTO
	RefreshTokenPlain string
	CsrfTokenPlain    string
}

// =====================
// Register / Login / Me
// =====================

func (u *AuthUsecase) Register(ctx context.Context, req AuthRegisterRequest) (*AuthRegisterResponse, error) {
	if err := u.validator.ValidateRegister(ctx, req.Email, req.Password); err != nil {
		return nil, err
	}

	// 平文は保存しない
	pwHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, ErrInternal
	}

	// token_versionは0始まり（intのゼロ値のまま）
	user := &model.User{
		Email:        req.Email,
		PasswordHash: string(pwHash),
		Role:         model.RoleUser,
		IsActive:     true,
	}

	// validatorの重複チェックとCreateの間に割り込まれてもunique制約で落ちる
	if err := u.users.Create(ctx, user); err != nil {
		return nil, ErrConflict
	}

	return &AuthRegisterResponse{User: toUserDTO(user)}, nil
}

func (u *AuthUsecase) Login(ctx context.Context, req AuthLoginRequest, userAgent string, ip string) (*LoginResult, error) {
	if err := u.validator.ValidateLogin(ctx, req.Email, req.Password); err != nil {
		return nil, err
	}

	// ユーザー特定に失敗しても理由は外に出さない（401で揃える）
	user, err := u.users.FindByEmail(ctx, req.Email)
	if err != nil || user == nil {
		return nil, ErrUnauthorized
	}

	// 停止ユーザーはログイン不可
	if !user.IsActive {
		return nil, ErrForbidden
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrUnauthorized
	}

	// last_login更新。失敗してもログイン自体は通す。
	now := time.Now()
	user.LastLoginAt = &now
	_ = u.users.Update(ctx, user)

	sess, err := u.issueSession(ctx, user, userAgent, ip)
	if err != nil {
		return nil, ErrInternal
	}

	return &LoginResult{
		Body: AuthLoginResponse{
			User: toUserDTO(user),
			Token: JwtAccessTokenDTO{
				AccessToken:  sess.accessToken,
				ExpiresIn:    sess.expiresIn,
				TokenVersion: user.TokenVersion,
			},
		},
		RefreshTokenPlain: sess.refreshPlain,
		CsrfTokenPlain:    sess.csrfPlain,
	}, nil
}

// 停止済みユーザーはアクセストークンが生きていても403にする
func (u *AuthUsecase) Me(ctx context.Context, userID int64) (*UserDTO, error) {
	if userID <= 0 {
		return nil, ErrUnauthorized
	}
	user, err := u.users.FindByID(ctx, userID)
	if err != nil || user == nil {
		return nil, ErrUnauthorized
	}
	if !user.IsActive {
		return nil, ErrForbidden
	}
	dto := toUserDTO(user)
	return &dto, nil
}

// =====================
// Refresh / Logout
// =====================

// refresh tokenは一回使い切り。hashで照合して使用済みマーク + 新tokenへローテーション。
func (u *AuthUsecase) Refresh(ctx context.Context, refreshTokenPlain string, userAgent string, ip string) (*RefreshResult, error) {
	if err := u.validator.ValidateRefresh(ctx, refreshTokenPlain, userAgent); err != nil {
		return nil, err
	}

	rt, err := u.rtRepo.FindByTokenHash(ctx, hashRefreshToken(refreshTokenPlain))
	if err != nil || rt == nil {
		return nil, ErrUnauthorized
	}

	// 期限切れは掃除して401
	if rt.ExpiresAt.Before(time.Now()) {
		_ = u.rtRepo.DeleteByID(ctx, rt.ID)
		return nil, ErrUnauthorized
	}
	if rt.RevokedAt != nil {
		return nil, ErrUnauthorized
	}

	// ★used済みの再提示=盗難の可能性。該当ユーザーのrefreshを全部落とす。
	if rt.UsedAt != nil {
		_ = u.rtRepo.DeleteAllByUserID(ctx, rt.UserID)
		return nil, ErrSecurityIncident
	}

	// 発行時と別のUser-Agentから来たら再認証扱い
	if userAgent != "" && rt.UserAgent != "" && userAgent != rt.UserAgent {
		_ = u.rtRepo.DeleteAllByUserID(ctx, rt.UserID)
		return nil, ErrSecurityIncident
	}

	user, err := u.users.FindByID(ctx, rt.UserID)
	if err != nil || user == nil {
		return nil, ErrUnauthorized
	}
	// 停止済みならローテーションもさせない
	if !user.IsActive {
		return nil, ErrForbidden
	}

	// MarkUsedの空振りは並行リクエストに先を越されたとき。incident扱いで落とす。
	if err := u.rtRepo.MarkUsed(ctx, rt.ID); err != nil {
		_ = u.rtRepo.DeleteAllByUserID(ctx, rt.UserID)
		return nil, ErrSecurityIncident
	}

	sess, err := u.issueSession(ctx, user, userAgent, ip)
	if err != nil {
		return nil, ErrInternal
	}

	return &RefreshResult{
		Body: JwtAccessTokenDTO{
			AccessToken:  sess.accessToken,
			ExpiresIn:    sess.expiresIn,
			TokenVersion: user.TokenVersion,
		},
		RefreshTokenPlain: sess.refreshPlain,
		CsrfTokenPlain:    sess.csrfPlain,
	}, nil
}

func (u *AuthUsecase) Logout(ctx context.Context, refreshTokenPlain string) (*SuccessResponse, error) {
	if err := u.validator.ValidateLogout(ctx); err != nil {
		return nil, err
	}
	if refreshTokenPlain == "" {
		return nil, ErrUnauthorized
	}

	rt, err := u.rtRepo.FindByTokenHash(ctx, hashRefreshToken(refreshTokenPlain))
	if err != nil || rt == nil {
		return nil, ErrUnauthorized
	}

	if err := u.rtRepo.DeleteByID(ctx, rt.ID); err != nil {
		return nil, ErrInternal
	}

	return &SuccessResponse{Message: "logout success"}, nil
}

// token_versionを上げて既存のaccess tokenを無効化し、refreshも全部消す。
func (u *AuthUsecase) ForceLogout(ctx context.Context, targetUserID int64) (*ForceLogoutResponse, error) {
	if err := u.validator.ValidateForceLogout(ctx, targetUserID); err != nil {
		return nil, err
	}
	if targetUserID <= 0 {
		return nil, ErrValidation
	}

	if err := u.users.IncrementTokenVersion(ctx, targetUserID); err != nil {
		return nil, ErrInternal
	}
	if err := u.rtRepo.DeleteAllByUserID(ctx, targetUserID); err != nil {
		return nil, ErrInternal
	}

	// 更新後のtoken_versionを読み直して返す
	user, err := u.users.FindByID(ctx, targetUserID)
	if err != nil || user == nil {
		return nil, ErrInternal
	}
	return &ForceLogoutResponse{UserID: user.ID, NewTokenVersion: user.TokenVersion}, nil
}

// =====================
// token発行まわり
// =====================

type sessionTokens struct {
	accessToken  string
	expiresIn    int
	refreshPlain string
	csrfPlain    string
}

// access + refresh + csrf をまとめて発行する。refreshはhashでDBに残る。
func (u *AuthUsecase) issueSession(ctx context.Context, user *model.User, userAgent string, ip string) (*sessionTokens, error) {
	accessToken, expiresIn, err := u.signAccessToken(user)
	if err != nil {
		return nil, err
	}

	refreshPlain, refreshHash, err := newOpaqueToken()
	if err != nil {
		return nil, err
	}

	rt := &model.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		TokenHash: refreshHash,
		UserAgent: userAgent,
		IP:        ip,
		ExpiresAt: time.Now().Add(refreshTokenTTL),
	}
	if err := u.rtRepo.Create(ctx, rt); err != nil {
		return nil, err
	}

	// csrfはcookie+headerの二重提出で使うだけなのでDBには置かない
	csrfPlain, _, err := newOpaqueToken()
	if err != nil {
		return nil, err
	}

	return &sessionTokens{
		accessToken:  accessToken,
		expiresIn:    expiresIn,
		refreshPlain: refreshPlain,
		csrfPlain:    csrfPlain,
	}, nil
}

func (u *AuthUsecase) signAccessToken(user *model.User) (string, int, error) {
	now := time.Now()

	claims := jwt.MapClaims{
		"sub":  user.ID,
		"role": string(user.Role),
		"tv":   user.TokenVersion,
		"iat":  now.Unix(),
		"exp":  now.Add(accessTokenTTL).Unix(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(u.cfg.JWTSecret))
	if err != nil {
		return "", 0, err
	}

	return signed, int(accessTokenTTL.Seconds()), nil
}

// ランダム32byteのopaque token。返り値は(平文, DB保存用sha256)。
func newOpaqueToken() (plain string, hash string, err error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", "", err
	}

	plain = base64.RawURLEncoding.EncodeToString(b)
	return plain, hashRefreshToken(plain), nil
}

func hashRefreshToken(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func toUserDTO(u *model.User) UserDTO {
	return UserDTO{
		ID:    u.ID,
		Email: u.Email,
		Role:  string(u.Role),

		TokenVersion: u.TokenVersion,
		IsActive:     u.IsActive,
	}
}
