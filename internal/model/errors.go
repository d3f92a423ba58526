package model

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// IsUniqueViolation 唯一约束冲突。未开启 TranslateError 时 sqlite 只给出原始报错文本。
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique")
}
