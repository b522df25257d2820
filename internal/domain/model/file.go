// Пакет model — доменные модели Cumulus.
// FileRecord — маппинг таблицы cumulus_files.
package model

import "time"

// FileRecord — запись файла или ссылки в хранилище.
// Одна строка на файл; первичный ключ — Fkey, производный от (Path, Name).
type FileRecord struct {
	// Fkey — ключ файла: SHA-1 от конкатенации пути и имени.
	// Меняется при переименовании (не content-addressed).
	Fkey string
	// Name — оригинальное имя файла
	Name string
	// Path — нормализованный путь папки (начинается с "/", без завершающего "/")
	Path string
	// StoragePath — путь блоба на диске либо внешний URL (ссылка).
	// Различаются по шаблону http(s):// — явного флага типа нет.
	StoragePath string
	// Mimetype — MIME-тип содержимого (может отсутствовать для ссылок)
	Mimetype *string
	// Size — размер в байтах
	Size *int64
	// Owner — идентификатор загрузившего / последнего изменившего.
	// NULL — файл без владельца (публичный с точки зрения прав).
	Owner *string
	// Groups — группы файла; в БД хранятся строкой через запятую
	Groups []string
	// Permissions — строка прав из двух символов {-,r,w}:
	// [0] — права групп, [1] — права остальных. NULL/пустая — файл публичный.
	Permissions *string
	// Keywords — ключевые слова; в БД хранятся строкой через запятую
	Keywords []string
	// License — лицензия (свободный текст)
	License *string
	// Meta — произвольный JSON-объект метаданных
	Meta map[string]any
	// CreationDate — время создания записи
	CreationDate time.Time
	// LastModificationDate — обновляется при каждом изменении метаданных или блоба
	LastModificationDate time.Time
}

// IsPublic сообщает, является ли файл публичным: нет владельца
// или не задана строка прав.
func (f *FileRecord) IsPublic() bool {
	if f.Owner == nil || *f.Owner == "" {
		return true
	}
	if f.Permissions == nil || *f.Permissions == "" {
		return true
	}
	return false
}

// Folder — папка, выведенная из путей записей.
// Отдельной сущности папки в хранилище нет: папка существует,
// если хотя бы одна запись имеет путь с таким префиксом.
type Folder struct {
	// Path — полный путь папки
	Path string
	// Name — сегмент имени относительно запрошенного префикса
	Name string
}

// DeleteResult — результат удаления файла.
type DeleteResult struct {
	Deleted bool
	Fkey    string
	Path    string
}
