package repository

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// dbDialectName 获取数据库方言名称，默认按 sqlite 处理。
func dbDialectName(db *gorm.DB) string {
	if db == nil || db.Dialector == nil {
		return "sqlite"
	}
	name := strings.ToLower(strings.TrimSpace(db.Dialector.Name()))
	if name == "" {
		return "sqlite"
	}
	return name
}

func isPostgresDialect(dialect string) bool {
	switch strings.ToLower(strings.TrimSpace(dialect)) {
	case "postgres", "postgresql":
		return true
	}
	return false
}

// buildContainsCondition 构建多列大小写不敏感的包含匹配条件，并返回参数数量。
// postgres 使用 ILIKE，sqlite 使用 LOWER(col) LIKE LOWER(?) 并显式声明转义符。
func buildContainsCondition(db *gorm.DB, columns []string) (string, int) {
	return buildContainsConditionByDialect(dbDialectName(db), columns)
}

func buildContainsConditionByDialect(dialect string, columns []string) (string, int) {
	parts := make([]string, 0, len(columns))
	for _, column := range columns {
		trimmed := strings.TrimSpace(column)
		if trimmed == "" {
			continue
		}
		if isPostgresDialect(dialect) {
			parts = append(parts, fmt.Sprintf("%s ILIKE ?", trimmed))
		} else {
			parts = append(parts, fmt.Sprintf(`LOWER(%s) LIKE LOWER(?) ESCAPE '\'`, trimmed))
		}
	}
	return strings.Join(parts, " OR "), len(parts)
}

// equalFoldCondition 大小写不敏感的等值条件
func equalFoldCondition(column string) string {
	return fmt.Sprintf("LOWER(%s) = LOWER(?)", strings.TrimSpace(column))
}

// containsPattern 生成 LIKE 包含模式，转义通配符
func containsPattern(term string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + replacer.Replace(strings.TrimSpace(term)) + "%"
}

// repeatLikeArgs 生成重复的 LIKE 参数列表。
func repeatLikeArgs(like string, count int) []interface{} {
	args := make([]interface{}, 0, count)
	for i := 0; i < count; i++ {
		args = append(args, like)
	}
	return args
}
