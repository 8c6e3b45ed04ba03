package models

import (
	"errors"
	"strings"

	"github.com/storefront-next/internal/logger"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// InitDefaultAdmin 按配置确保存在一个管理员账号；邮箱为空时跳过
func InitDefaultAdmin(db *gorm.DB, email, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil
	}

	var existing User
	err := db.Where("email = ?", email).First(&existing).Error
	if err == nil {
		if !existing.IsAdmin {
			if err := db.Model(&existing).Update("is_admin", true).Error; err != nil {
				logger.Warnw("ensure_default_admin_flag_failed", "email", email, "error", err)
			}
		}
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	if strings.TrimSpace(password) == "" {
		return errors.New("admin password is required when admin email is set")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	admin := User{
		Username:     strings.SplitN(email, "@", 2)[0],
		Email:        email,
		PasswordHash: string(hash),
		IsAdmin:      true,
		Status:       "active",
	}
	if err := db.Create(&admin).Error; err != nil {
		return err
	}
	logger.Warnw("default_admin_created", "email", email, "password_hidden", true)
	return nil
}
