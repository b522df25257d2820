// Пакет filekey — вычисление и проверка ключей файлов.
// Ключ — SHA-1 от конкатенации пути и имени, не от содержимого:
// переименование файла означает новый ключ.
package filekey

import (
	"crypto/sha1"
	"encoding/hex"
	"regexp"
)

// keyPattern — формат ключа: ровно 40 шестнадцатеричных символов.
var keyPattern = regexp.MustCompile(`^[0-9a-fA-F]{40}$`)

// Compute вычисляет ключ файла из пути и имени.
// Детерминированно: одинаковые (path, name) всегда дают один ключ,
// без соли. Две записи с одинаковой парой (path, name) коллидируют
// намеренно — последняя запись побеждает.
func Compute(path, name string) string {
	sum := sha1.Sum([]byte(path + name))
	return hex.EncodeToString(sum[:])
}

// IsKey сообщает, похожа ли строка на ключ файла.
//
// ВНИМАНИЕ: проверка эвристическая, по формату, а не по существованию.
// Имя файла из 40 hex-символов неотличимо от настоящего ключа.
// Надёжной эту проверку делает только последующий поиск записи в БД.
func IsKey(s string) bool {
	return keyPattern.MatchString(s)
}
