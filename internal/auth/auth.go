// Пакет auth — контракт провайдера идентификации и адаптеры к нему.
// Cumulus потребляет от SSO ровно три вещи: идентификатор пользователя,
// его группы и признак администратора. Выбор адаптера — явный реестр
// по значению конфигурации (CU_AUTH_ADAPTER), без динамического
// разрешения типов по строке из конфига.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// Adapter — контракт провайдера идентификации.
// Все методы работают от контекста запроса: адаптеры без состояния
// на уровне запроса (none) контекст игнорируют.
type Adapter interface {
	// UserID возвращает идентификатор текущего пользователя
	// или пустую строку, если пользователь не аутентифицирован.
	UserID(ctx context.Context) string
	// UserGroups возвращает группы текущего пользователя.
	UserGroups(ctx context.Context) []string
	// IsAdmin сообщает, является ли текущий пользователь администратором.
	IsAdmin(ctx context.Context) bool
}

// Principal — снимок идентичности на момент операции.
type Principal struct {
	// UserID — идентификатор пользователя ("" — аноним)
	UserID string
	// Groups — группы пользователя
	Groups []string
	// IsAdmin — администратору проверка прав не применяется
	IsAdmin bool
}

// PrincipalFrom собирает Principal из адаптера для данного контекста.
func PrincipalFrom(ctx context.Context, a Adapter) Principal {
	return Principal{
		UserID:  a.UserID(ctx),
		Groups:  a.UserGroups(ctx),
		IsAdmin: a.IsAdmin(ctx),
	}
}

// InGroup сообщает, входит ли принципал в группу g.
func (p Principal) InGroup(g string) bool {
	for _, pg := range p.Groups {
		if pg == g {
			return true
		}
	}
	return false
}

// Options — параметры создания адаптера, извлечённые из конфигурации.
// Передаются фабрикам реестра; каждый адаптер берёт своё.
type Options struct {
	// AdminGroups — группы IdP, дающие права администратора (jwt)
	AdminGroups []string
	// Logger — базовый логгер
	Logger *slog.Logger
}

// Factory — конструктор адаптера.
type Factory func(opts Options) (Adapter, error)

// registry — явное соответствие имени адаптера его конструктору.
// Замена динамической инстанциации класса по строке из конфига:
// набор адаптеров известен на этапе компиляции.
var registry = map[string]Factory{
	AdapterNone: func(opts Options) (Adapter, error) {
		return NewNoneAdapter(opts.Logger), nil
	},
	AdapterJWT: func(opts Options) (Adapter, error) {
		return NewJWTAdapter(opts.AdminGroups), nil
	},
}

// Имена адаптеров, допустимые в CU_AUTH_ADAPTER.
const (
	// AdapterNone — режим отключённых прав (все администраторы)
	AdapterNone = "none"
	// AdapterJWT — идентичность из JWT-claims, положенных в контекст middleware
	AdapterJWT = "jwt"
)

// New создаёт адаптер по имени из реестра.
func New(name string, opts Options) (Adapter, error) {
	factory, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("неизвестный auth-адаптер %q, допустимые: %s", name, knownAdapters())
	}
	return factory(opts)
}

// knownAdapters возвращает отсортированный список имён реестра.
func knownAdapters() string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
