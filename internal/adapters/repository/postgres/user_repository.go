package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ogurasousui/codex-expense-approval/internal/core/role"
	"github.com/ogurasousui/codex-expense-approval/internal/core/user"
	pgdb "github.com/ogurasousui/codex-expense-approval/internal/platform/db/postgres"
)

const (
	uniqueViolationCode     = "23505"
	foreignKeyViolationCode = "23503"
	checkViolationCode      = "23514"
	invalidTextRepresCode   = "22P02"
	stringTooLongCode       = "22001"
	numericOutOfRangeCode   = "22003"
)

const userColumns = `u.id, u.email, u.username, u.password_hash, u.session_token_hash, u.role, u.manager_id, m.username, u.created_at, u.updated_at`

// UserRepository は PostgreSQL を利用したユーザー永続化の実装です。
type UserRepository struct {
	pool pgdb.Queryer
}

// NewUserRepository は UserRepository を生成します。
func NewUserRepository(pool pgdb.Queryer) *UserRepository {
	return &UserRepository{pool: pool}
}

// Create はユーザーを新規作成します。
func (r *UserRepository) Create(ctx context.Context, u *user.User) (*user.User, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        WITH inserted AS (
            INSERT INTO users (email, username, password_hash, role, manager_id, created_at, updated_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7)
            RETURNING id, email, username, password_hash, session_token_hash, role, manager_id, created_at, updated_at
        )
        SELECT `+userColumns+`
          FROM inserted u
          LEFT JOIN users m ON m.id = u.manager_id
    `,
		u.Email,
		u.Username,
		u.PasswordHash,
		u.Role.String(),
		u.ManagerID,
		u.CreatedAt,
		u.UpdatedAt,
	)

	created, err := scanUser(row)
	if err != nil {
		return nil, translateUserPgError(err)
	}
	return created, nil
}

// Delete はユーザーを削除します。部下の manager_id は NULL になります。
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	tag, err := exec.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return translateUserPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return user.ErrUserNotFound
	}
	return nil
}

// FindByID は ID でユーザーを取得します。
func (r *UserRepository) FindByID(ctx context.Context, id string) (*user.User, error) {
	return r.findOne(ctx, "u.id = $1", id)
}

// FindByEmail はメールアドレスでユーザーを取得します。
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*user.User, error) {
	return r.findOne(ctx, "u.email = $1", email)
}

// FindBySessionToken はセッショントークンのハッシュでユーザーを取得します。
func (r *UserRepository) FindBySessionToken(ctx context.Context, tokenHash string) (*user.User, error) {
	return r.findOne(ctx, "u.session_token_hash = $1", tokenHash)
}

func (r *UserRepository) findOne(ctx context.Context, condition string, arg any) (*user.User, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT `+userColumns+`
          FROM users u
          LEFT JOIN users m ON m.id = u.manager_id
         WHERE `+condition+`
         LIMIT 1
    `, arg)

	found, err := scanUser(row)
	if err != nil {
		return nil, translateUserPgError(err)
	}
	return found, nil
}

// UpdateSessionToken はセッショントークンのハッシュを差し替えます。nil の場合はログアウト状態になります。
func (r *UserRepository) UpdateSessionToken(ctx context.Context, id string, tokenHash *string, updatedAt time.Time) error {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	tag, err := exec.Exec(ctx, `
        UPDATE users
           SET session_token_hash = $1,
               updated_at = $2
         WHERE id = $3
    `, tokenHash, updatedAt, id)
	if err != nil {
		return translateUserPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return user.ErrUserNotFound
	}
	return nil
}

// UpdatePassword はパスワードハッシュを差し替え、セッションを無効化します。
func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	tag, err := exec.Exec(ctx, `
        UPDATE users
           SET password_hash = $1,
               session_token_hash = NULL,
               updated_at = $2
         WHERE id = $3
    `, passwordHash, updatedAt, id)
	if err != nil {
		return translateUserPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return user.ErrUserNotFound
	}
	return nil
}

// List はユーザーの一覧を作成日時の降順で取得します。
func (r *UserRepository) List(ctx context.Context, filter user.ListUsersFilter) ([]*user.User, error) {
	if filter.Limit <= 0 {
		return nil, user.ErrInvalidLimit
	}

	args := make([]any, 0, 3)
	conditions := make([]string, 0, 2)

	if q := strings.TrimSpace(filter.Query); q != "" {
		placeholder := "$" + strconv.Itoa(len(args)+1)
		conditions = append(conditions, "(u.email ILIKE "+placeholder+" OR u.username ILIKE "+placeholder+")")
		args = append(args, "%"+escapeLike(q)+"%")
	}

	if filter.Role != nil {
		placeholder := "$" + strconv.Itoa(len(args)+1)
		conditions = append(conditions, "u.role = "+placeholder)
		args = append(args, filter.Role.String())
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	limitPlaceholder := "$" + strconv.Itoa(len(args)+1)
	args = append(args, filter.Limit)

	query := `
        SELECT ` + userColumns + `
          FROM users u
          LEFT JOIN users m ON m.id = u.manager_id` + whereClause + `
         ORDER BY u.created_at DESC, u.id DESC
         LIMIT ` + limitPlaceholder + `
    `

	return r.query(ctx, query, filter.Limit, args...)
}

// ListByManager は指定した上長の直属の部下を取得します。
func (r *UserRepository) ListByManager(ctx context.Context, managerID string) ([]*user.User, error) {
	return r.query(ctx, `
        SELECT `+userColumns+`
          FROM users u
          LEFT JOIN users m ON m.id = u.manager_id
         WHERE u.manager_id = $1
         ORDER BY u.username ASC, u.id ASC
    `, 0, managerID)
}

// EmailExists は users テーブルに同じメールアドレスが存在するかを返します。
func (r *UserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	var exists bool
	if err := exec.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists); err != nil {
		return false, translateUserPgError(err)
	}
	return exists, nil
}

func (r *UserRepository) query(ctx context.Context, query string, capacity int, args ...any) ([]*user.User, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, query, args...)
	if err != nil {
		return nil, translateUserPgError(err)
	}
	defer rows.Close()

	users := make([]*user.User, 0, capacity)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, translateUserPgError(err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, translateUserPgError(err)
	}
	return users, nil
}

func scanUser(row pgx.Row) (*user.User, error) {
	var (
		id, email, username, passwordHash string
		rawRole                           string
		tokenHash, managerID, managerName sql.NullString
		createdAt, updatedAt              time.Time
	)

	if err := row.Scan(
		&id,
		&email,
		&username,
		&passwordHash,
		&tokenHash,
		&rawRole,
		&managerID,
		&managerName,
		&createdAt,
		&updatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrUserNotFound
		}
		return nil, err
	}

	r, err := role.Parse(rawRole)
	if err != nil || r == role.Admin {
		r = role.Employee
	}

	return &user.User{
		ID:               id,
		Email:            email,
		Username:         username,
		PasswordHash:     passwordHash,
		SessionTokenHash: nullString(tokenHash),
		Role:             r,
		ManagerID:        nullString(managerID),
		ManagerName:      nullString(managerName),
		CreatedAt:        createdAt,
		UpdatedAt:        updatedAt,
	}, nil
}

func translateUserPgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return user.ErrUserNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolationCode:
			return user.ErrEmailAlreadyExists
		case foreignKeyViolationCode:
			return user.ErrManagerNotFound
		case checkViolationCode:
			return user.ErrInvalidRole
		case invalidTextRepresCode:
			return user.ErrUserNotFound
		}
	}
	return err
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
