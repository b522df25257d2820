// jwt.go — адаптер идентичности из JWT-claims.
// Валидацию подписи и извлечение claims выполняет HTTP middleware
// (internal/api/middleware), которое кладёт Claims в контекст запроса;
// адаптер только читает их оттуда.
package auth

import "context"

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

// claimsKey — ключ контекста с Claims аутентифицированного запроса.
const claimsKey contextKey = "auth_claims"

// Claims — идентичность, извлечённая middleware из валидного JWT.
type Claims struct {
	// Subject — sub из JWT
	Subject string
	// PreferredUsername — preferred_username из JWT
	PreferredUsername string
	// Groups — группы пользователя из JWT
	Groups []string
	// Roles — роли из realm_access.roles
	Roles []string
}

// ContextWithClaims кладёт Claims в контекст запроса.
func ContextWithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

// ClaimsFromContext извлекает Claims из контекста.
// Возвращает nil, если запрос не аутентифицирован.
func ClaimsFromContext(ctx context.Context) *Claims {
	c, _ := ctx.Value(claimsKey).(*Claims)
	return c
}

// JWTAdapter — идентичность текущего запроса из JWT-claims в контексте.
type JWTAdapter struct {
	adminGroups map[string]bool
}

// NewJWTAdapter создаёт адаптер. adminGroups — группы IdP,
// членство в которых даёт права администратора.
func NewJWTAdapter(adminGroups []string) *JWTAdapter {
	set := make(map[string]bool, len(adminGroups))
	for _, g := range adminGroups {
		set[g] = true
	}
	return &JWTAdapter{adminGroups: set}
}

// UserID возвращает sub из claims или "" для неаутентифицированного запроса.
func (a *JWTAdapter) UserID(ctx context.Context) string {
	if c := ClaimsFromContext(ctx); c != nil {
		return c.Subject
	}
	return ""
}

// UserGroups возвращает группы из claims.
func (a *JWTAdapter) UserGroups(ctx context.Context) []string {
	if c := ClaimsFromContext(ctx); c != nil {
		return c.Groups
	}
	return nil
}

// IsAdmin — true, если пользователь состоит хотя бы в одной
// административной группе.
func (a *JWTAdapter) IsAdmin(ctx context.Context) bool {
	c := ClaimsFromContext(ctx)
	if c == nil {
		return false
	}
	for _, g := range c.Groups {
		if a.adminGroups[g] {
			return true
		}
	}
	return false
}
