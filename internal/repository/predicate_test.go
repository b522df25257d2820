package repository

import (
	"strings"
	"testing"

	"github.com/bigkaa/cumulus/internal/auth"
)

func strPtr(s string) *string { return &s }

// --- Тесты BuildSearchWhere ---

// TestBuildSearchWhere_Empty проверяет пустые фильтры.
func TestBuildSearchWhere_Empty(t *testing.T) {
	where, args := BuildSearchWhere(SearchParams{}, 1)

	if where != "" {
		t.Errorf("where = %q, ожидалась пустая строка", where)
	}
	if len(args) != 0 {
		t.Errorf("args count = %d, ожидался 0", len(args))
	}
}

// TestBuildSearchWhere_Key проверяет поиск по ключу файла.
func TestBuildSearchWhere_Key(t *testing.T) {
	where, args := BuildSearchWhere(SearchParams{Key: strPtr("abc")}, 1)

	if !strings.Contains(where, "fkey = $1") {
		t.Errorf("where = %q, ожидался fkey = $1", where)
	}
	if len(args) != 1 || args[0] != "abc" {
		t.Errorf("args = %v, ожидался [abc]", args)
	}
}

// TestBuildSearchWhere_PathExact проверяет точное совпадение пути.
func TestBuildSearchWhere_PathExact(t *testing.T) {
	where, args := BuildSearchWhere(SearchParams{Path: strPtr("/docs")}, 1)

	if !strings.Contains(where, "path = $1") {
		t.Errorf("where = %q, ожидался path = $1", where)
	}
	if args[0] != "/docs" {
		t.Errorf("args[0] = %v, ожидался '/docs'", args[0])
	}
}

// TestBuildSearchWhere_PathRecursive проверяет поиск по префиксу пути.
func TestBuildSearchWhere_PathRecursive(t *testing.T) {
	where, args := BuildSearchWhere(SearchParams{Path: strPtr("/docs"), PathRecursive: true}, 1)

	if !strings.Contains(where, "path LIKE $1") {
		t.Errorf("where = %q, ожидался path LIKE $1", where)
	}
	if args[0] != "/docs%" {
		t.Errorf("args[0] = %v, ожидался '/docs%%'", args[0])
	}
}

// TestBuildSearchWhere_NameSubstring проверяет нестрогий поиск по имени:
// подстрока с '*' как многосимвольным wildcard.
func TestBuildSearchWhere_NameSubstring(t *testing.T) {
	where, args := BuildSearchWhere(SearchParams{Name: strPtr("rap*ort")}, 1)

	if !strings.Contains(where, "name LIKE $1") {
		t.Errorf("where = %q, ожидался name LIKE $1", where)
	}
	if args[0] != "%rap%ort%" {
		t.Errorf("args[0] = %v, ожидался '%%rap%%ort%%'", args[0])
	}
}

// TestBuildSearchWhere_NameStrict проверяет строгий поиск по имени.
func TestBuildSearchWhere_NameStrict(t *testing.T) {
	where, args := BuildSearchWhere(SearchParams{Name: strPtr("a*b"), NameStrict: true}, 1)

	if !strings.Contains(where, "name = $1") {
		t.Errorf("where = %q, ожидался name = $1", where)
	}
	// В строгом режиме '*' — обычный символ
	if args[0] != "a*b" {
		t.Errorf("args[0] = %v, ожидался 'a*b'", args[0])
	}
}

// TestBuildSearchWhere_Keywords проверяет поиск по ключевым словам
// с обрамлением запятыми.
func TestBuildSearchWhere_Keywords(t *testing.T) {
	where, args := BuildSearchWhere(SearchParams{Keywords: strPtr("botanique,herbier")}, 1)

	if !strings.Contains(where, "COALESCE(keywords, '')") {
		t.Errorf("where = %q, ожидалось условие по keywords", where)
	}
	if strings.Count(where, "LIKE") != 2 {
		t.Errorf("where = %q, ожидалось 2 LIKE", where)
	}
	// По умолчанию — AND
	if !strings.Contains(where, " AND ") {
		t.Errorf("where = %q, ожидался AND между элементами", where)
	}
	if len(args) != 2 || args[0] != "%,botanique,%" || args[1] != "%,herbier,%" {
		t.Errorf("args = %v, ожидались обёрнутые запятыми элементы", args)
	}
}

// TestBuildSearchWhere_KeywordsNegation проверяет префикс '!' (отсутствие слова).
func TestBuildSearchWhere_KeywordsNegation(t *testing.T) {
	where, args := BuildSearchWhere(SearchParams{Keywords: strPtr("!brouillon")}, 1)

	if !strings.Contains(where, "NOT LIKE $1") {
		t.Errorf("where = %q, ожидался NOT LIKE $1", where)
	}
	if args[0] != "%,brouillon,%" {
		t.Errorf("args[0] = %v, ожидался '%%,brouillon,%%'", args[0])
	}
}

// TestBuildSearchWhere_KeywordsOrMode проверяет режим OR для списка слов.
func TestBuildSearchWhere_KeywordsOrMode(t *testing.T) {
	where, _ := BuildSearchWhere(SearchParams{
		Keywords:     strPtr("a,b"),
		KeywordsMode: "or",
	}, 1)

	if !strings.Contains(where, " OR ") {
		t.Errorf("where = %q, ожидался OR между элементами", where)
	}
}

// TestBuildSearchWhere_Groups проверяет поиск по группам файла.
func TestBuildSearchWhere_Groups(t *testing.T) {
	where, args := BuildSearchWhere(SearchParams{Groups: strPtr("botanistes")}, 1)

	if !strings.Contains(where, "COALESCE(file_groups, '')") {
		t.Errorf("where = %q, ожидалось условие по file_groups", where)
	}
	if args[0] != "%,botanistes,%" {
		t.Errorf("args[0] = %v, ожидался '%%,botanistes,%%'", args[0])
	}
}

// TestBuildSearchWhere_Dates проверяет сравнение дат: только по дате,
// граничные условия строгие.
func TestBuildSearchWhere_Dates(t *testing.T) {
	where, args := BuildSearchWhere(SearchParams{
		MinCreationDate:  strPtr("2026-01-01"),
		MaxCreationDate:  strPtr("2026-02-01"),
		LastModifDate:    strPtr("2026-01-15"),
	}, 1)

	if !strings.Contains(where, "creation_date::date > $1::date") {
		t.Errorf("where = %q, ожидалась строгая нижняя граница", where)
	}
	if !strings.Contains(where, "creation_date::date < $2::date") {
		t.Errorf("where = %q, ожидалась строгая верхняя граница", where)
	}
	if !strings.Contains(where, "last_modification_date::date = $3::date") {
		t.Errorf("where = %q, ожидалось точное совпадение даты изменения", where)
	}
	if len(args) != 3 {
		t.Errorf("args count = %d, ожидался 3", len(args))
	}
}

// TestBuildSearchWhere_MultipleFilters проверяет комбинацию разных полей.
func TestBuildSearchWhere_MultipleFilters(t *testing.T) {
	where, args := BuildSearchWhere(SearchParams{
		Path:     strPtr("/docs"),
		Mimetype: strPtr("image/png"),
		User:     strPtr("alice"),
	}, 1)

	if strings.Count(where, "AND") != 2 {
		t.Errorf("where = %q, ожидалось 2 AND", where)
	}
	if len(args) != 3 {
		t.Errorf("args count = %d, ожидался 3", len(args))
	}
}

// TestBuildSearchWhere_OrMode проверяет комбинирование полей по OR.
func TestBuildSearchWhere_OrMode(t *testing.T) {
	where, _ := BuildSearchWhere(SearchParams{
		Mimetype: strPtr("image/png"),
		License:  strPtr("CC-BY"),
		Mode:     "OR",
	}, 1)

	if !strings.Contains(where, ") OR (") {
		t.Errorf("where = %q, ожидался OR между полями", where)
	}
}

// TestBuildSearchWhere_StartArgOffset проверяет корректную нумерацию аргументов.
func TestBuildSearchWhere_StartArgOffset(t *testing.T) {
	where, args := BuildSearchWhere(SearchParams{
		User:     strPtr("alice"),
		Mimetype: strPtr("text/plain"),
	}, 5)

	if !strings.Contains(where, "owner = $5") {
		t.Errorf("where = %q, ожидался owner = $5", where)
	}
	if !strings.Contains(where, "mimetype = $6") {
		t.Errorf("where = %q, ожидался mimetype = $6", where)
	}
	if len(args) != 2 {
		t.Errorf("args count = %d, ожидался 2", len(args))
	}
}

// --- Тесты RightsClause ---

// TestRightsClause_Admin проверяет пустой фрагмент для администратора.
func TestRightsClause_Admin(t *testing.T) {
	clause, args := RightsClause(auth.Principal{IsAdmin: true}, 1)

	if clause != "" {
		t.Errorf("clause = %q, ожидалась пустая строка", clause)
	}
	if len(args) != 0 {
		t.Errorf("args count = %d, ожидался 0", len(args))
	}
}

// TestRightsClause_Anonymous проверяет права анонимного запроса:
// только публичные файлы и файлы с правом чтения для остальных.
func TestRightsClause_Anonymous(t *testing.T) {
	clause, args := RightsClause(auth.Principal{}, 1)

	if !strings.Contains(clause, "owner IS NULL") {
		t.Errorf("clause = %q, ожидалось условие публичности", clause)
	}
	if !strings.Contains(clause, "substr(permissions, 2, 1) IN ('r', 'w')") {
		t.Errorf("clause = %q, ожидалось право чтения для остальных", clause)
	}
	if strings.Contains(clause, "owner = $") {
		t.Errorf("clause = %q, условие владельца не должно добавляться без UserID", clause)
	}
	if len(args) != 0 {
		t.Errorf("args count = %d, ожидался 0", len(args))
	}
}

// TestRightsClause_UserWithGroups проверяет полный фрагмент прав:
// публичность, владение, групповое чтение, чтение для остальных.
func TestRightsClause_UserWithGroups(t *testing.T) {
	p := auth.Principal{
		UserID: "alice",
		Groups: []string{"botanistes", "chercheurs"},
	}
	clause, args := RightsClause(p, 3)

	if !strings.Contains(clause, "owner = $3") {
		t.Errorf("clause = %q, ожидался owner = $3", clause)
	}
	if !strings.Contains(clause, "substr(permissions, 1, 1) IN ('r', 'w')") {
		t.Errorf("clause = %q, ожидалась проверка групповых прав", clause)
	}
	if !strings.Contains(clause, "LIKE $4") || !strings.Contains(clause, "LIKE $5") {
		t.Errorf("clause = %q, ожидались параметры групп $4 и $5", clause)
	}
	if len(args) != 3 {
		t.Errorf("args count = %d, ожидался 3", len(args))
	}
	if args[1] != "%,botanistes,%" {
		t.Errorf("args[1] = %v, ожидался '%%,botanistes,%%'", args[1])
	}
}

// --- Тесты Negate ---

// TestNegate проверяет логическое отрицание предиката.
func TestNegate(t *testing.T) {
	if got := Negate("(path = $1)"); got != "NOT ((path = $1))" {
		t.Errorf("Negate = %q", got)
	}
	if got := Negate(""); got != "" {
		t.Errorf("Negate пустой строки = %q, ожидалась пустая строка", got)
	}
}
