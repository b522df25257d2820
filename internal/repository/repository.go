// Пакет repository — слой доступа к данным PostgreSQL.
// Таблица cumulus_files — единственный источник истины о существовании
// файлов; блобы на диске вторичны. Все запросы — чистый SQL через pgx,
// без ORM; значения фильтров передаются только через $-параметры.
package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Ошибки слоя репозиториев.
var (
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("запись не найдена")
	// ErrConflict — нарушение уникальности (дублирующийся ключ).
	ErrConflict = errors.New("запись с таким ключом уже существует")
)

// DBTX — интерфейс для выполнения SQL-запросов.
// Реализуется как *pgxpool.Pool, так и pgx.Tx, что позволяет
// использовать репозитории как внутри, так и вне транзакций.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// uniqueViolation — код SQLSTATE нарушения уникальности PostgreSQL.
const uniqueViolation = "23505"

// isUniqueViolation сообщает, вызвана ли ошибка дубликатом первичного ключа.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
