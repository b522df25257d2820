package service

import (
	"testing"

	"github.com/bigkaa/cumulus/internal/auth"
	"github.com/bigkaa/cumulus/internal/domain/model"
)

// makeRecord создаёт запись с заданными владельцем, группами и правами.
func makeRecord(owner, permissions string, groups ...string) *model.FileRecord {
	f := &model.FileRecord{
		Fkey: "k", Name: "n", Path: "/p", StoragePath: "/s",
		Groups: groups,
	}
	if owner != "" {
		f.Owner = &owner
	}
	if permissions != "" {
		f.Permissions = &permissions
	}
	return f
}

// --- Тесты CheckAccess ---

// TestCheckAccess_Public проверяет публичные файлы: без владельца
// или без строки прав доступ открыт всем, включая анонимов.
func TestCheckAccess_Public(t *testing.T) {
	anonymous := auth.Principal{}

	if !CheckAccess(makeRecord("", ""), anonymous, AccessWrite) {
		t.Error("файл без владельца должен быть доступен на запись")
	}
	if !CheckAccess(makeRecord("alice", ""), anonymous, AccessWrite) {
		t.Error("файл без строки прав должен быть доступен на запись")
	}
}

// TestCheckAccess_Admin проверяет права администратора.
func TestCheckAccess_Admin(t *testing.T) {
	admin := auth.Principal{UserID: "root", IsAdmin: true}
	f := makeRecord("alice", "--")

	if !CheckAccess(f, admin, AccessRead) || !CheckAccess(f, admin, AccessWrite) {
		t.Error("администратор должен иметь все права")
	}
}

// TestCheckAccess_Owner проверяет права владельца: все операции,
// независимо от строки прав.
func TestCheckAccess_Owner(t *testing.T) {
	owner := auth.Principal{UserID: "alice"}
	f := makeRecord("alice", "--")

	if !CheckAccess(f, owner, AccessRead) || !CheckAccess(f, owner, AccessWrite) {
		t.Error("владелец должен иметь все права на свой файл")
	}
}

// TestCheckAccess_GroupRights проверяет права групп файла.
func TestCheckAccess_GroupRights(t *testing.T) {
	member := auth.Principal{UserID: "bob", Groups: []string{"botanistes"}}
	outsider := auth.Principal{UserID: "carol", Groups: []string{"autres"}}

	// Группам — чтение, остальным — ничего
	f := makeRecord("alice", "r-", "botanistes")
	if !CheckAccess(f, member, AccessRead) {
		t.Error("член группы должен читать при правах 'r-'")
	}
	if CheckAccess(f, member, AccessWrite) {
		t.Error("член группы не должен писать при правах 'r-'")
	}
	if CheckAccess(f, outsider, AccessRead) {
		t.Error("не член группы не должен читать при правах 'r-'")
	}

	// Группам — запись ('w' включает 'r')
	f = makeRecord("alice", "w-", "botanistes")
	if !CheckAccess(f, member, AccessRead) || !CheckAccess(f, member, AccessWrite) {
		t.Error("член группы должен читать и писать при правах 'w-'")
	}
}

// TestCheckAccess_OtherRights проверяет права "остальных".
func TestCheckAccess_OtherRights(t *testing.T) {
	stranger := auth.Principal{UserID: "dave"}
	anonymous := auth.Principal{}

	f := makeRecord("alice", "-r")
	if !CheckAccess(f, stranger, AccessRead) || !CheckAccess(f, anonymous, AccessRead) {
		t.Error("при правах '-r' чтение открыто всем")
	}
	if CheckAccess(f, stranger, AccessWrite) {
		t.Error("при правах '-r' запись закрыта")
	}

	f = makeRecord("alice", "-w")
	if !CheckAccess(f, stranger, AccessWrite) {
		t.Error("при правах '-w' запись открыта остальным")
	}
}

// TestCheckAccess_Closed проверяет полностью закрытый файл.
func TestCheckAccess_Closed(t *testing.T) {
	member := auth.Principal{UserID: "bob", Groups: []string{"botanistes"}}
	f := makeRecord("alice", "--", "botanistes")

	if CheckAccess(f, member, AccessRead) {
		t.Error("при правах '--' доступа нет даже у членов группы")
	}
}

// TestCheckAccess_MalformedPermissions проверяет строку прав
// некорректной длины: не даёт прав ни группам, ни остальным.
func TestCheckAccess_MalformedPermissions(t *testing.T) {
	member := auth.Principal{UserID: "bob", Groups: []string{"botanistes"}}

	for _, perms := range []string{"r", "rwx", "rrrr"} {
		f := makeRecord("alice", perms, "botanistes")
		if CheckAccess(f, member, AccessRead) {
			t.Errorf("permissions=%q: доступа быть не должно", perms)
		}
	}
}

// TestCheckAccess_MultipleGroups проверяет членство хотя бы в одной группе файла.
func TestCheckAccess_MultipleGroups(t *testing.T) {
	p := auth.Principal{UserID: "bob", Groups: []string{"chercheurs"}}
	f := makeRecord("alice", "r-", "botanistes", "chercheurs")

	if !CheckAccess(f, p, AccessRead) {
		t.Error("членство в любой из групп файла даёт групповые права")
	}
}
