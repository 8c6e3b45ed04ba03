package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/storefront-next/internal/cache"
	"github.com/storefront-next/internal/config"
	"github.com/storefront-next/internal/constants"
	"github.com/storefront-next/internal/logger"
	"github.com/storefront-next/internal/models"
	"github.com/storefront-next/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// RoleSyncer 用户角色同步（管理员标记 → RBAC 角色）
type RoleSyncer interface {
	SetUserRoles(userID uint, roles []string) error
}

// UserAuthService 用户认证与账号管理服务
type UserAuthService struct {
	cfg      *config.Config
	userRepo repository.UserRepository
	cache    *cache.Store
	roles    RoleSyncer
}

// NewUserAuthService 创建用户认证服务
func NewUserAuthService(cfg *config.Config, userRepo repository.UserRepository, store *cache.Store, roles RoleSyncer) *UserAuthService {
	return &UserAuthService{
		cfg:      cfg,
		userRepo: userRepo,
		cache:    store,
		roles:    roles,
	}
}

// UserJWTClaims 用户 JWT 声明
type UserJWTClaims struct {
	UserID       uint   `json:"user_id"`
	Email        string `json:"email"`
	TokenVersion uint64 `json:"token_version"`
	jwt.RegisteredClaims
}

// RegisterInput 注册输入
type RegisterInput struct {
	Username string
	Email    string
	Password string
	IsAdmin  bool
}

// UserPatch 用户局部更新，nil 字段保持不变
type UserPatch struct {
	Username *string `json:"username" validate:"omitempty,min=2,max=64"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Password *string `json:"password" validate:"omitempty,min=1"`
	IsAdmin  *bool   `json:"isAdmin"`
}

func (p UserPatch) empty() bool {
	return p.Username == nil && p.Email == nil && p.Password == nil && p.IsAdmin == nil
}

// GenerateUserJWT 生成用户 JWT Token
func (s *UserAuthService) GenerateUserJWT(user *models.User, expireHours int) (string, time.Time, error) {
	resolvedHours := expireHours
	if resolvedHours <= 0 {
		resolvedHours = resolveUserJWTExpireHours(s.cfg.UserJWT)
	}
	now := time.Now()
	expiresAt := now.Add(time.Duration(resolvedHours) * time.Hour)
	claims := UserJWTClaims{
		UserID:       user.ID,
		Email:        user.Email,
		TokenVersion: user.TokenVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.cfg.UserJWT.SecretKey))
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// ParseUserJWT 解析用户 JWT Token
func (s *UserAuthService) ParseUserJWT(tokenString string) (*UserJWTClaims, error) {
	return ParseUserJWT(s.cfg.UserJWT.SecretKey, tokenString)
}

// ParseUserJWT 使用给定密钥解析用户 JWT Token
func ParseUserJWT(secret, tokenString string) (*UserJWTClaims, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &UserJWTClaims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*UserJWTClaims); ok && token.Valid && claims.UserID > 0 {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}

// Register 注册用户；isAdmin 仅在调用方为管理员时生效
func (s *UserAuthService) Register(ctx context.Context, input RegisterInput, callerIsAdmin bool) (*models.User, error) {
	username := strings.TrimSpace(input.Username)
	if username == "" || strings.TrimSpace(input.Email) == "" || input.Password == "" {
		return nil, ErrInvalidUserInput
	}
	email, err := normalizeEmail(input.Email)
	if err != nil {
		return nil, err
	}
	if err := validatePassword(s.cfg.Security.PasswordPolicy, input.Password); err != nil {
		return nil, err
	}

	existing, err := s.userRepo.GetByEmail(email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrUserExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		IsAdmin:      input.IsAdmin && callerIsAdmin,
		Status:       constants.UserStatusActive,
	}
	if err := s.userRepo.Create(user); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, ErrUserExists
		}
		return nil, err
	}
	if err := s.SyncRoles(user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login 邮箱密码登录
func (s *UserAuthService) Login(ctx context.Context, email, password string) (*models.User, string, time.Time, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return nil, "", time.Time{}, ErrInvalidCredentials
	}
	user, err := s.userRepo.GetByEmail(normalized)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	if user == nil {
		return nil, "", time.Time{}, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, "", time.Time{}, ErrInvalidCredentials
	}
	if strings.ToLower(user.Status) != constants.UserStatusActive {
		return nil, "", time.Time{}, ErrUserDisabled
	}

	token, expiresAt, err := s.GenerateUserJWT(user, 0)
	if err != nil {
		return nil, "", time.Time{}, err
	}

	now := time.Now()
	if _, err := s.userRepo.Update(user.ID, map[string]interface{}{"last_login_at": now}); err != nil {
		logger.Warnw("user_login_touch_failed", "user_id", user.ID, "error", err)
	}
	user.LastLoginAt = &now
	if err := s.cache.SetUserAuthState(ctx, cache.BuildUserAuthState(user)); err != nil {
		logger.Warnw("user_auth_state_cache_failed", "user_id", user.ID, "error", err)
	}
	return user, token, expiresAt, nil
}

// Logout 令牌版本号加一，使该用户所有已签发 Token 失效
func (s *UserAuthService) Logout(ctx context.Context, userID uint) error {
	if userID == 0 {
		return ErrUserNotFound
	}
	if _, err := s.userRepo.BumpTokenVersion(userID); err != nil {
		return err
	}
	s.dropAuthState(ctx, userID)
	return nil
}

// GetUser 获取用户
func (s *UserAuthService) GetUser(id uint) (*models.User, error) {
	if id == 0 {
		return nil, ErrUserNotFound
	}
	user, err := s.userRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// ListUsers 分页查询用户
func (s *UserAuthService) ListUsers(page, pageSize int, keyword string) ([]models.User, int64, error) {
	users, total, err := s.userRepo.List(repository.UserListFilter{Page: page, PageSize: pageSize, Keyword: keyword})
	if err != nil {
		return nil, 0, err
	}
	if users == nil {
		users = []models.User{}
	}
	return users, total, nil
}

// UpdateUser 按补丁局部更新用户；修改密码或管理员标记后旧 Token 失效
func (s *UserAuthService) UpdateUser(ctx context.Context, id uint, patch UserPatch) (*models.User, error) {
	patch.Username = trimPtr(patch.Username)
	patch.Email = trimPtr(patch.Email)
	if patch.empty() {
		return nil, ErrNoFieldsToUpdate
	}
	if field, err := validateStruct(patch); err != nil {
		if field == "email" {
			return nil, ErrInvalidEmail
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidUserInput, field)
	}

	user, err := s.GetUser(id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	revoke := false
	if patch.Username != nil {
		updates["username"] = *patch.Username
	}
	if patch.Email != nil {
		email, err := normalizeEmail(*patch.Email)
		if err != nil {
			return nil, err
		}
		other, err := s.userRepo.GetByEmail(email)
		if err != nil {
			return nil, err
		}
		if other != nil && other.ID != user.ID {
			return nil, ErrUserExists
		}
		updates["email"] = email
	}
	if patch.Password != nil {
		if err := validatePassword(s.cfg.Security.PasswordPolicy, *patch.Password); err != nil {
			return nil, err
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*patch.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		updates["password_hash"] = string(hash)
		revoke = true
	}
	if patch.IsAdmin != nil && *patch.IsAdmin != user.IsAdmin {
		updates["is_admin"] = *patch.IsAdmin
		revoke = true
	}

	if len(updates) > 0 {
		if _, err := s.userRepo.Update(id, updates); err != nil {
			if repository.IsUniqueViolation(err) {
				return nil, ErrUserExists
			}
			return nil, err
		}
	}
	if revoke {
		if _, err := s.userRepo.BumpTokenVersion(id); err != nil {
			return nil, err
		}
	}
	s.dropAuthState(ctx, id)

	updated, err := s.GetUser(id)
	if err != nil {
		return nil, err
	}
	if patch.IsAdmin != nil {
		if err := s.SyncRoles(updated); err != nil {
			return nil, err
		}
	}
	return updated, nil
}

// DeleteUser 删除用户
func (s *UserAuthService) DeleteUser(ctx context.Context, id uint) error {
	if id == 0 {
		return ErrUserNotFound
	}
	affected, err := s.userRepo.Delete(id)
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrUserNotFound
	}
	s.dropAuthState(ctx, id)
	if s.roles != nil {
		if err := s.roles.SetUserRoles(id, nil); err != nil {
			logger.Warnw("user_roles_clear_failed", "user_id", id, "error", err)
		}
	}
	return nil
}

// SyncRoles 按管理员标记同步 RBAC 角色
func (s *UserAuthService) SyncRoles(user *models.User) error {
	if s.roles == nil || user == nil || user.ID == 0 {
		return nil
	}
	var roles []string
	if user.IsAdmin {
		roles = []string{constants.RoleAdmin}
	}
	return s.roles.SetUserRoles(user.ID, roles)
}

// SyncAdminRolesByEmail 启动时为种子管理员同步角色
func (s *UserAuthService) SyncAdminRolesByEmail(email string) error {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return nil
	}
	user, err := s.userRepo.GetByEmail(normalized)
	if err != nil || user == nil {
		return err
	}
	return s.SyncRoles(user)
}

func (s *UserAuthService) dropAuthState(ctx context.Context, userID uint) {
	if err := s.cache.DelUserAuthState(ctx, userID); err != nil {
		logger.Warnw("user_auth_state_cache_drop_failed", "user_id", userID, "error", err)
	}
}

func normalizeEmail(email string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	if normalized == "" {
		return "", ErrInvalidEmail
	}
	if _, err := mail.ParseAddress(normalized); err != nil {
		return "", ErrInvalidEmail
	}
	return normalized, nil
}

func resolveUserJWTExpireHours(cfg config.JWTConfig) int {
	if cfg.ExpireHours <= 0 {
		return 24
	}
	return cfg.ExpireHours
}
