// rights.go — проверка прав доступа к записи файла.
//
// Модель прав: строка permissions из двух символов {-,r,w}:
// [0] — права групп файла, [1] — права остальных.
// Файл без владельца или без строки прав — публичный.
// Владелец имеет все права на свой файл. 'w' включает 'r'.
package service

import (
	"github.com/bigkaa/cumulus/internal/auth"
	"github.com/bigkaa/cumulus/internal/domain/model"
)

// Access — требуемый уровень доступа.
type Access int

const (
	// AccessRead — чтение записи и содержимого
	AccessRead Access = iota
	// AccessWrite — изменение метаданных, содержимого, удаление
	AccessWrite
)

// permissionsLen — ожидаемая длина строки прав.
// Строка другой длины не даёт прав ни группам, ни остальным.
const permissionsLen = 2

// CheckAccess сообщает, имеет ли принципал требуемый доступ к записи.
func CheckAccess(f *model.FileRecord, p auth.Principal, access Access) bool {
	if p.IsAdmin {
		return true
	}
	if f.IsPublic() {
		return true
	}

	// Владелец имеет все права
	if p.UserID != "" && f.Owner != nil && *f.Owner == p.UserID {
		return true
	}

	perms := ""
	if f.Permissions != nil {
		perms = *f.Permissions
	}
	if len(perms) != permissionsLen {
		return false
	}

	// Права групп файла: принципал должен состоять хотя бы в одной
	if inAnyGroup(p, f.Groups) && grantsAccess(perms[0], access) {
		return true
	}

	// Права остальных
	return grantsAccess(perms[1], access)
}

// grantsAccess сообщает, даёт ли символ прав требуемый доступ.
func grantsAccess(c byte, access Access) bool {
	switch access {
	case AccessRead:
		return c == 'r' || c == 'w'
	case AccessWrite:
		return c == 'w'
	}
	return false
}

// inAnyGroup сообщает, состоит ли принципал хотя бы в одной из групп.
func inAnyGroup(p auth.Principal, groups []string) bool {
	for _, g := range groups {
		if p.InGroup(g) {
			return true
		}
	}
	return false
}
