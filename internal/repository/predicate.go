// predicate.go — построение булевых предикатов поиска по cumulus_files.
// Семантические параметры переводятся в WHERE-фрагменты с $-параметрами;
// значения никогда не вклеиваются в текст запроса. Нумерация параметров
// протягивается через startArg, чтобы фрагменты можно было комбинировать.
package repository

import (
	"fmt"
	"strings"

	"github.com/bigkaa/cumulus/internal/auth"
)

// Режимы комбинирования условий.
const (
	ModeAnd = "AND"
	ModeOr  = "OR"
)

// Колонки дат, допустимые в запросах по дате.
const (
	ColumnCreationDate         = "creation_date"
	ColumnLastModificationDate = "last_modification_date"
)

// SearchParams — семантические параметры поиска файлов.
// Все строковые поля — указатели, nil = фильтр не применяется.
type SearchParams struct {
	// Key — точное совпадение ключа файла
	Key *string
	// Path — путь папки; при PathRecursive — совпадение по префиксу
	Path          *string
	PathRecursive bool
	// Name — имя файла; по умолчанию поиск по подстроке, '*' — wildcard;
	// при NameStrict — точное совпадение
	Name       *string
	NameStrict bool
	// Keywords — список через запятую, каждый элемент может иметь префикс '!'
	// (отсутствие); элементы комбинируются по KeywordsMode (AND по умолчанию)
	Keywords     *string
	KeywordsMode string
	// Groups — та же форма, что Keywords, но по группам файла
	Groups     *string
	GroupsMode string
	// User — точное совпадение владельца
	User *string
	// Mimetype — точное совпадение MIME-типа
	Mimetype *string
	// License — точное совпадение лицензии
	License *string

	// Даты в формате YYYY-MM-DD; сравнение только по дате,
	// время суток игнорируется. Min/Max — строгие границы.
	CreationDate     *string
	MinCreationDate  *string
	MaxCreationDate  *string
	LastModifDate    *string
	MinLastModifDate *string
	MaxLastModifDate *string

	// Mode — комбинирование разных полей между собой: AND (по умолчанию) или OR
	Mode string
}

// BuildSearchWhere строит WHERE-фрагмент (без слова WHERE) и аргументы
// для параметров поиска. startArg — номер первого $-параметра.
// Возвращает пустую строку, если ни один фильтр не задан.
func BuildSearchWhere(params SearchParams, startArg int) (string, []any) {
	var conditions []string
	var args []any
	argNum := startArg

	appendCond := func(cond string, vals ...any) {
		conditions = append(conditions, cond)
		args = append(args, vals...)
		argNum += len(vals)
	}

	// Точное совпадение ключа
	if params.Key != nil && *params.Key != "" {
		appendCond(fmt.Sprintf("(fkey = $%d)", argNum), *params.Key)
	}

	// Путь: точное совпадение или префикс при рекурсивном поиске
	if params.Path != nil && *params.Path != "" {
		if params.PathRecursive {
			appendCond(fmt.Sprintf("(path LIKE $%d)", argNum), *params.Path+"%")
		} else {
			appendCond(fmt.Sprintf("(path = $%d)", argNum), *params.Path)
		}
	}

	// Имя: точное или подстрока с '*' как многосимвольным wildcard
	if params.Name != nil && *params.Name != "" {
		if params.NameStrict {
			appendCond(fmt.Sprintf("(name = $%d)", argNum), *params.Name)
		} else {
			pattern := "%" + strings.ReplaceAll(*params.Name, "*", "%") + "%"
			appendCond(fmt.Sprintf("(name LIKE $%d)", argNum), pattern)
		}
	}

	// Ключевые слова: проверка присутствия/отсутствия в множестве
	if params.Keywords != nil && *params.Keywords != "" {
		cond, vals := buildSetMembership("keywords", *params.Keywords, params.KeywordsMode, argNum)
		appendCond(cond, vals...)
	}

	// Группы файла: та же семантика множества
	if params.Groups != nil && *params.Groups != "" {
		cond, vals := buildSetMembership("file_groups", *params.Groups, params.GroupsMode, argNum)
		appendCond(cond, vals...)
	}

	// Владелец
	if params.User != nil && *params.User != "" {
		appendCond(fmt.Sprintf("(owner = $%d)", argNum), *params.User)
	}

	// MIME-тип
	if params.Mimetype != nil && *params.Mimetype != "" {
		appendCond(fmt.Sprintf("(mimetype = $%d)", argNum), *params.Mimetype)
	}

	// Лицензия
	if params.License != nil && *params.License != "" {
		appendCond(fmt.Sprintf("(license = $%d)", argNum), *params.License)
	}

	// Даты: сравнение по ::date, граничные условия строгие
	dateFilters := []struct {
		val    *string
		column string
		op     string
	}{
		{params.CreationDate, ColumnCreationDate, "="},
		{params.MinCreationDate, ColumnCreationDate, ">"},
		{params.MaxCreationDate, ColumnCreationDate, "<"},
		{params.LastModifDate, ColumnLastModificationDate, "="},
		{params.MinLastModifDate, ColumnLastModificationDate, ">"},
		{params.MaxLastModifDate, ColumnLastModificationDate, "<"},
	}
	for _, f := range dateFilters {
		if f.val != nil && *f.val != "" {
			appendCond(fmt.Sprintf("(%s::date %s $%d::date)", f.column, f.op, argNum), *f.val)
		}
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return strings.Join(conditions, " "+combineMode(params.Mode)+" "), args
}

// buildSetMembership строит условие принадлежности множеству для колонки
// с элементами через запятую. Каждый элемент списка list проверяется на
// присутствие (или отсутствие — префикс '!') в множестве; элементы
// комбинируются по mode. Обрамление запятыми не даёт LIKE находить
// элементы, содержащие искомую строку как подстроку.
func buildSetMembership(column, list, mode string, startArg int) (string, []any) {
	var conditions []string
	var args []any
	argNum := startArg

	for term := range strings.SplitSeq(list, ",") {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		not := ""
		if strings.HasPrefix(term, "!") {
			not = "NOT "
			term = term[1:]
		}
		conditions = append(conditions,
			fmt.Sprintf("(',' || COALESCE(%s, '') || ',') %sLIKE $%d", column, not, argNum))
		args = append(args, "%,"+term+",%")
		argNum++
	}

	return "(" + strings.Join(conditions, " "+combineMode(mode)+" ") + ")", args
}

// combineMode возвращает оператор комбинирования: OR по запросу, иначе AND.
func combineMode(mode string) string {
	if strings.EqualFold(mode, ModeOr) {
		return ModeOr
	}
	return ModeAnd
}

// RightsClause строит фрагмент проверки прав чтения, добавляемый
// к каждому multi-record запросу: недоступные строки отфильтровываются
// до выдачи, а не после — это и быстрее, и не раскрывает существование
// чужих записей через неполные выборки.
//
// Права есть, если: файл публичный, ИЛИ принципал — владелец, ИЛИ
// принципал в одной из групп файла и группам разрешено чтение, ИЛИ
// чтение разрешено "остальным". Для администратора фрагмент пуст.
func RightsClause(p auth.Principal, startArg int) (string, []any) {
	if p.IsAdmin {
		return "", nil
	}

	var alternatives []string
	var args []any
	argNum := startArg

	// Файл публичный: нет владельца или не заданы права
	alternatives = append(alternatives,
		"owner IS NULL OR owner = '' OR permissions IS NULL OR permissions = ''")

	// Принципал — владелец
	if p.UserID != "" {
		alternatives = append(alternatives, fmt.Sprintf("owner = $%d", argNum))
		args = append(args, p.UserID)
		argNum++
	}

	// Принципал в группе файла, и группам разрешено чтение (или больше).
	// Строка прав иной длины прав не даёт.
	if len(p.Groups) > 0 {
		var groupLikes []string
		for _, g := range p.Groups {
			groupLikes = append(groupLikes,
				fmt.Sprintf("(',' || COALESCE(file_groups, '') || ',') LIKE $%d", argNum))
			args = append(args, "%,"+g+",%")
			argNum++
		}
		alternatives = append(alternatives, fmt.Sprintf(
			"(length(permissions) = 2 AND substr(permissions, 1, 1) IN ('r', 'w') AND (%s))",
			strings.Join(groupLikes, " OR ")))
	}

	// "Остальным" разрешено чтение (или больше)
	alternatives = append(alternatives,
		"(length(permissions) = 2 AND substr(permissions, 2, 1) IN ('r', 'w'))")

	return "(" + strings.Join(alternatives, " OR ") + ")", args
}

// Negate оборачивает предикат в логическое отрицание.
// Используется для inverse criteria: вернуть всё, что НЕ соответствует
// критериям. Отрицание применяется к итоговому предикату целиком,
// включая фрагмент прав.
func Negate(clause string) string {
	if clause == "" {
		return ""
	}
	return "NOT (" + clause + ")"
}
