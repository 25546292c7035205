package storage

import (
	"account_service/internal/models"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/gofrs/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

const uniqueViolation = "23505"

//go:embed schema.sql
var schema string

var accountColumns = []string{
	"id",
	"email",
	"username",
	"password_hash",
	"phone",
	"date_joined",
	"is_active",
	"is_admin",
}

// pgxExecutor is the subset of *pgxpool.Pool the store needs.
type pgxExecutor interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

type PostgresStorage struct {
	db      pgxExecutor
	builder squirrel.StatementBuilderType
}

func NewPostgresStorage(ctx context.Context, DbURL string) (*PostgresStorage, error) {
	const op = "storage.NewPostgresStorage"

	conn, err := pgxpool.Connect(ctx, DbURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return newPostgresStorage(conn), nil
}

func newPostgresStorage(db pgxExecutor) *PostgresStorage {
	return &PostgresStorage{
		db:      db,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Migrate creates the accounts table and its case-insensitive email index.
func (p *PostgresStorage) Migrate(ctx context.Context) error {
	const op = "storage.Migrate"

	if _, err := p.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (p *PostgresStorage) CreateAccount(ctx context.Context, account models.Account) (models.Account, error) {
	const op = "storage.CreateAccount"

	query, args, err := p.builder.
		Insert(accountsTable).
		Columns(accountColumns...).
		Values(
			account.ID,
			account.Email,
			account.Username,
			account.PasswordHash,
			account.Phone,
			account.DateJoined,
			account.IsActive,
			account.IsAdmin,
		).
		Suffix("RETURNING " + strings.Join(accountColumns, ", ")).
		ToSql()
	if err != nil {
		return models.Account{}, fmt.Errorf("%s: build query: %w", op, err)
	}

	created, err := scanAccount(p.db.QueryRow(ctx, query, args...))
	if err != nil {
		if isUniqueViolation(err) {
			return models.Account{}, fmt.Errorf("%s: %w", op, ErrDuplicateEmail)
		}
		return models.Account{}, fmt.Errorf("%s: %w", op, err)
	}

	return created, nil
}

func (p *PostgresStorage) GetAccountByID(ctx context.Context, id uuid.UUID) (models.Account, error) {
	const op = "storage.GetAccountByID"

	return p.getAccount(ctx, op, squirrel.Expr("id = ?", id))
}

func (p *PostgresStorage) GetAccountByEmail(ctx context.Context, email string) (models.Account, error) {
	const op = "storage.GetAccountByEmail"

	return p.getAccount(ctx, op, squirrel.Expr("lower(email) = lower(?)", email))
}

func (p *PostgresStorage) getAccount(ctx context.Context, op string, where squirrel.Sqlizer) (models.Account, error) {
	query, args, err := p.builder.
		Select(accountColumns...).
		From(accountsTable).
		Where(where).
		ToSql()
	if err != nil {
		return models.Account{}, fmt.Errorf("%s: build query: %w", op, err)
	}

	account, err := scanAccount(p.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Account{}, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return models.Account{}, fmt.Errorf("%s: %w", op, err)
	}

	return account, nil
}

func (p *PostgresStorage) UpdateAccount(ctx context.Context, id uuid.UUID, patch models.AccountPatch) (models.Account, error) {
	const op = "storage.UpdateAccount"

	if patch.IsEmpty() {
		return p.GetAccountByID(ctx, id)
	}

	update := p.builder.Update(accountsTable)
	if patch.Email != nil {
		update = update.Set("email", *patch.Email)
	}
	if patch.Username != nil {
		update = update.Set("username", *patch.Username)
	}
	if patch.Phone != nil {
		update = update.Set("phone", *patch.Phone)
	}
	if patch.IsActive != nil {
		update = update.Set("is_active", *patch.IsActive)
	}
	if patch.IsAdmin != nil {
		update = update.Set("is_admin", *patch.IsAdmin)
	}

	query, args, err := update.
		Where(squirrel.Expr("id = ?", id)).
		Suffix("RETURNING " + strings.Join(accountColumns, ", ")).
		ToSql()
	if err != nil {
		return models.Account{}, fmt.Errorf("%s: build query: %w", op, err)
	}

	updated, err := scanAccount(p.db.QueryRow(ctx, query, args...))
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return models.Account{}, fmt.Errorf("%s: %w", op, ErrNotFound)
		case isUniqueViolation(err):
			return models.Account{}, fmt.Errorf("%s: %w", op, ErrDuplicateEmail)
		}
		return models.Account{}, fmt.Errorf("%s: %w", op, err)
	}

	return updated, nil
}

func (p *PostgresStorage) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	const op = "storage.DeleteAccount"

	query, args, err := p.builder.
		Delete(accountsTable).
		Where(squirrel.Expr("id = ?", id)).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: build query: %w", op, err)
	}

	tag, err := p.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	return nil
}

func (p *PostgresStorage) ListAccounts(ctx context.Context) ([]models.Account, error) {
	const op = "storage.ListAccounts"

	query, args, err := p.builder.
		Select(accountColumns...).
		From(accountsTable).
		OrderBy("date_joined", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: build query: %w", op, err)
	}

	rows, err := p.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	accounts := make([]models.Account, 0)
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s (rows): %w", op, err)
	}

	return accounts, nil
}

func (p *PostgresStorage) Close() {
	if closer, ok := p.db.(interface{ Close() }); ok {
		closer.Close()
	}
}

func scanAccount(row rowScanner) (models.Account, error) {
	var account models.Account

	err := row.Scan(
		&account.ID,
		&account.Email,
		&account.Username,
		&account.PasswordHash,
		&account.Phone,
		&account.DateJoined,
		&account.IsActive,
		&account.IsAdmin,
	)

	return account, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
