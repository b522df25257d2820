package auth

import (
	"io"
	"log/slog"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- Тесты реестра ---

// TestNew_None проверяет создание адаптера отключённых прав.
func TestNew_None(t *testing.T) {
	a, err := New(AdapterNone, Options{Logger: discardLogger()})
	if err != nil {
		t.Fatalf("New(none) вернул ошибку: %v", err)
	}

	ctx := t.Context()
	if a.UserID(ctx) != "" {
		t.Error("none-адаптер должен возвращать пустой UserID")
	}
	if len(a.UserGroups(ctx)) != 0 {
		t.Error("none-адаптер должен возвращать пустые группы")
	}
	if !a.IsAdmin(ctx) {
		t.Error("none-адаптер должен возвращать IsAdmin=true (права отключены)")
	}
}

// TestNew_Unknown проверяет ошибку для неизвестного имени адаптера.
func TestNew_Unknown(t *testing.T) {
	_, err := New("ldap", Options{Logger: discardLogger()})
	if err == nil {
		t.Fatal("ожидалась ошибка для неизвестного адаптера")
	}
}

// --- Тесты JWT-адаптера ---

// TestJWTAdapter_FromClaims проверяет чтение идентичности из контекста.
func TestJWTAdapter_FromClaims(t *testing.T) {
	a := NewJWTAdapter([]string{"cumulus-admins"})

	ctx := ContextWithClaims(t.Context(), &Claims{
		Subject: "user-42",
		Groups:  []string{"botanistes", "cumulus-admins"},
	})

	if got := a.UserID(ctx); got != "user-42" {
		t.Errorf("UserID = %q, ожидался user-42", got)
	}
	if got := a.UserGroups(ctx); len(got) != 2 {
		t.Errorf("UserGroups = %v, ожидалось 2 группы", got)
	}
	if !a.IsAdmin(ctx) {
		t.Error("член административной группы должен быть администратором")
	}
}

// TestJWTAdapter_NoClaims проверяет поведение без аутентификации.
func TestJWTAdapter_NoClaims(t *testing.T) {
	a := NewJWTAdapter([]string{"cumulus-admins"})
	ctx := t.Context()

	if a.UserID(ctx) != "" {
		t.Error("без claims UserID должен быть пустым")
	}
	if a.IsAdmin(ctx) {
		t.Error("без claims IsAdmin должен быть false")
	}
}

// TestJWTAdapter_NotAdmin проверяет отсутствие прав администратора.
func TestJWTAdapter_NotAdmin(t *testing.T) {
	a := NewJWTAdapter([]string{"cumulus-admins"})
	ctx := ContextWithClaims(t.Context(), &Claims{
		Subject: "user-7",
		Groups:  []string{"botanistes"},
	})
	if a.IsAdmin(ctx) {
		t.Error("пользователь вне административных групп не должен быть администратором")
	}
}

// TestPrincipalFrom проверяет сборку Principal из адаптера.
func TestPrincipalFrom(t *testing.T) {
	a := NewJWTAdapter(nil)
	ctx := ContextWithClaims(t.Context(), &Claims{
		Subject: "user-1",
		Groups:  []string{"g1"},
	})

	p := PrincipalFrom(ctx, a)
	if p.UserID != "user-1" || !p.InGroup("g1") || p.IsAdmin {
		t.Errorf("неожиданный Principal: %+v", p)
	}
	if p.InGroup("g2") {
		t.Error("InGroup(g2) = true для принципала без этой группы")
	}
}
