// none.go — адаптер отключённых прав.
package auth

import (
	"context"
	"log/slog"
)

// NoneAdapter — режим "rights disabled": нет пользователя, нет групп,
// все запросы административные. Это ЯВНЫЙ выбор конфигурации
// (CU_AUTH_ADAPTER=none), а не молчаливый fallback частично
// настроенной системы: при старте пишется предупреждение.
type NoneAdapter struct{}

// NewNoneAdapter создаёт адаптер отключённых прав.
func NewNoneAdapter(logger *slog.Logger) *NoneAdapter {
	logger.Warn("Проверка прав отключена: auth-адаптер 'none', все запросы имеют права администратора")
	return &NoneAdapter{}
}

// UserID — пользователя нет.
func (a *NoneAdapter) UserID(context.Context) string { return "" }

// UserGroups — групп нет.
func (a *NoneAdapter) UserGroups(context.Context) []string { return nil }

// IsAdmin — всегда true: проверка прав выключена.
func (a *NoneAdapter) IsAdmin(context.Context) bool { return true }
