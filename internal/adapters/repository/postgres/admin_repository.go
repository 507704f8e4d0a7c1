package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ogurasousui/codex-expense-approval/internal/core/admin"
	pgdb "github.com/ogurasousui/codex-expense-approval/internal/platform/db/postgres"
)

const adminColumns = `id, name, email, password_hash, country, session_token_hash, created_at, updated_at`

// registrationLockKey は初回登録を直列化する advisory lock のキーです。
const registrationLockKey int64 = 0x61646d696e73

// AdminRepository は PostgreSQL を利用した管理者永続化の実装です。
type AdminRepository struct {
	pool pgdb.Queryer
}

// NewAdminRepository は AdminRepository を生成します。
func NewAdminRepository(pool pgdb.Queryer) *AdminRepository {
	return &AdminRepository{pool: pool}
}

// Create は管理者を新規作成します。
func (r *AdminRepository) Create(ctx context.Context, a *admin.Admin) (*admin.Admin, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        INSERT INTO admins (name, email, password_hash, country, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING `+adminColumns+`
    `, a.Name, a.Email, a.PasswordHash, a.Country, a.CreatedAt, a.UpdatedAt)

	created, err := scanAdmin(row)
	if err != nil {
		return nil, translateAdminPgError(err)
	}
	return created, nil
}

// FindByID は ID で管理者を取得します。
func (r *AdminRepository) FindByID(ctx context.Context, id string) (*admin.Admin, error) {
	return r.findOne(ctx, `WHERE id = $1`, id)
}

// FindByEmail はメールアドレスで管理者を取得します。
func (r *AdminRepository) FindByEmail(ctx context.Context, email string) (*admin.Admin, error) {
	return r.findOne(ctx, `WHERE email = $1`, email)
}

// FindBySessionToken はセッショントークンのハッシュで管理者を取得します。
func (r *AdminRepository) FindBySessionToken(ctx context.Context, tokenHash string) (*admin.Admin, error) {
	return r.findOne(ctx, `WHERE session_token_hash = $1`, tokenHash)
}

// FindEarliest は最初に登録された管理者を取得します。
func (r *AdminRepository) FindEarliest(ctx context.Context) (*admin.Admin, error) {
	return r.findOne(ctx, `ORDER BY created_at ASC, id ASC`)
}

func (r *AdminRepository) findOne(ctx context.Context, clause string, args ...any) (*admin.Admin, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT `+adminColumns+`
          FROM admins
         `+clause+`
         LIMIT 1
    `, args...)

	found, err := scanAdmin(row)
	if err != nil {
		return nil, translateAdminPgError(err)
	}
	return found, nil
}

// UpdateSessionToken はセッショントークンのハッシュを差し替えます。
func (r *AdminRepository) UpdateSessionToken(ctx context.Context, id string, tokenHash *string, updatedAt time.Time) error {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	tag, err := exec.Exec(ctx, `
        UPDATE admins
           SET session_token_hash = $1,
               updated_at = $2
         WHERE id = $3
    `, tokenHash, updatedAt, id)
	if err != nil {
		return translateAdminPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return admin.ErrAdminNotFound
	}
	return nil
}

// UpdatePassword はパスワードハッシュを差し替え、セッションを無効化します。
func (r *AdminRepository) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	tag, err := exec.Exec(ctx, `
        UPDATE admins
           SET password_hash = $1,
               session_token_hash = NULL,
               updated_at = $2
         WHERE id = $3
    `, passwordHash, updatedAt, id)
	if err != nil {
		return translateAdminPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return admin.ErrAdminNotFound
	}
	return nil
}

// List は管理者を登録順に取得します。
func (r *AdminRepository) List(ctx context.Context) ([]*admin.Admin, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, `
        SELECT `+adminColumns+`
          FROM admins
         ORDER BY created_at ASC, id ASC
    `)
	if err != nil {
		return nil, translateAdminPgError(err)
	}
	defer rows.Close()

	var admins []*admin.Admin
	for rows.Next() {
		a, err := scanAdmin(rows)
		if err != nil {
			return nil, translateAdminPgError(err)
		}
		admins = append(admins, a)
	}
	if err := rows.Err(); err != nil {
		return nil, translateAdminPgError(err)
	}
	return admins, nil
}

// LockRegistration は現在のトランザクションが終わるまで他の登録処理を待たせます。
func (r *AdminRepository) LockRegistration(ctx context.Context) error {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	if _, err := exec.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, registrationLockKey); err != nil {
		return fmt.Errorf("lock registration: %w", err)
	}
	return nil
}

// Count は登録済みの管理者数を返します。
func (r *AdminRepository) Count(ctx context.Context) (int, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	var n int
	if err := exec.QueryRow(ctx, `SELECT COUNT(*) FROM admins`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// EmailExists は admins テーブルに同じメールアドレスが存在するかを返します。
func (r *AdminRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	var exists bool
	if err := exec.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM admins WHERE email = $1)`, email).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func scanAdmin(row pgx.Row) (*admin.Admin, error) {
	var (
		id, name, email, passwordHash string
		country, tokenHash            sql.NullString
		createdAt, updatedAt          time.Time
	)

	if err := row.Scan(&id, &name, &email, &passwordHash, &country, &tokenHash, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, admin.ErrAdminNotFound
		}
		return nil, err
	}

	return &admin.Admin{
		ID:               id,
		Name:             name,
		Email:            email,
		PasswordHash:     passwordHash,
		Country:          nullString(country),
		SessionTokenHash: nullString(tokenHash),
		CreatedAt:        createdAt,
		UpdatedAt:        updatedAt,
	}, nil
}

func translateAdminPgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return admin.ErrAdminNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolationCode:
			return admin.ErrEmailAlreadyExists
		case invalidTextRepresCode:
			return admin.ErrAdminNotFound
		}
	}
	return err
}
