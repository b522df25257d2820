// Пакет service — бизнес-логика Cumulus: оркестрация блобов,
// метаданных, прав доступа и поиска.
package service

import "errors"

// Ошибки бизнес-логики. Handlers транслируют их в HTTP-статусы.
var (
	// ErrNotFound — файл не найден.
	ErrNotFound = errors.New("файл не найден")
	// ErrPermissionDenied — недостаточно прав для операции.
	ErrPermissionDenied = errors.New("недостаточно прав для операции")
	// ErrValidation — некорректные входные данные.
	ErrValidation = errors.New("некорректные входные данные")
	// ErrConflict — конфликт ключей файлов.
	ErrConflict = errors.New("файл с таким ключом уже существует")
	// ErrInvalidState — несогласованность блобов и метаданных.
	ErrInvalidState = errors.New("несогласованное состояние хранилища")
)
