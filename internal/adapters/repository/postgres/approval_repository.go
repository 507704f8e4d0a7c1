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
	"github.com/shopspring/decimal"

	"github.com/ogurasousui/codex-expense-approval/internal/core/approval"
	pgdb "github.com/ogurasousui/codex-expense-approval/internal/platform/db/postgres"
)

const approvalColumns = `a.id, a.requestor_email, u.username, a.description, a.category, a.amount, a.currency, a.status,
               a.approver_email, a.approver_comments, a.receipt_filename, a.created_at, a.updated_at`

// ApprovalRepository は PostgreSQL を利用した経費申請永続化の実装です。
type ApprovalRepository struct {
	pool pgdb.Queryer
}

// NewApprovalRepository は ApprovalRepository を生成します。
func NewApprovalRepository(pool pgdb.Queryer) *ApprovalRepository {
	return &ApprovalRepository{pool: pool}
}

// Create は経費申請を新規作成します。
func (r *ApprovalRepository) Create(ctx context.Context, a *approval.Approval) (*approval.Approval, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        WITH inserted AS (
            INSERT INTO approvals (requestor_email, description, category, amount, currency, status, receipt_filename, created_at, updated_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
            RETURNING *
        )
        SELECT `+approvalColumns+`
          FROM inserted a
          LEFT JOIN users u ON u.email = a.requestor_email
    `,
		a.RequestorEmail,
		a.Description,
		a.Category,
		nullableDecimal(a.Amount),
		a.Currency,
		string(a.Status),
		a.ReceiptFilename,
		a.CreatedAt,
		a.UpdatedAt,
	)

	created, err := scanApproval(row)
	if err != nil {
		return nil, translateApprovalPgError(err)
	}
	return created, nil
}

// FindByID は ID で経費申請を取得します。
func (r *ApprovalRepository) FindByID(ctx context.Context, id string) (*approval.Approval, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT `+approvalColumns+`
          FROM approvals a
          LEFT JOIN users u ON u.email = a.requestor_email
         WHERE a.id = $1
         LIMIT 1
    `, id)

	found, err := scanApproval(row)
	if err != nil {
		return nil, translateApprovalPgError(err)
	}
	return found, nil
}

// UpdateDecision は承認者の判断を記録します。
func (r *ApprovalRepository) UpdateDecision(ctx context.Context, id string, d approval.Decision) (*approval.Approval, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        WITH updated AS (
            UPDATE approvals
               SET status = $1,
                   approver_email = $2,
                   approver_comments = $3,
                   updated_at = $4
             WHERE id = $5
            RETURNING *
        )
        SELECT `+approvalColumns+`
          FROM updated a
          LEFT JOIN users u ON u.email = a.requestor_email
    `, string(d.Status), d.ApproverEmail, d.Comments, d.UpdatedAt, id)

	updated, err := scanApproval(row)
	if err != nil {
		return nil, translateApprovalPgError(err)
	}
	return updated, nil
}

// List は条件に一致する経費申請を作成日時の降順で取得します。
func (r *ApprovalRepository) List(ctx context.Context, filter approval.ListFilter) ([]*approval.Approval, error) {
	if filter.Limit <= 0 {
		return nil, approval.ErrInvalidLimit
	}

	args := make([]any, 0, 4)
	conditions := make([]string, 0, 3)

	if filter.Status != nil {
		placeholder := "$" + strconv.Itoa(len(args)+1)
		conditions = append(conditions, "a.status = "+placeholder)
		args = append(args, string(*filter.Status))
	}

	if filter.RequestorEmails != nil {
		placeholder := "$" + strconv.Itoa(len(args)+1)
		conditions = append(conditions, "a.requestor_email = ANY("+placeholder+")")
		args = append(args, filter.RequestorEmails)
	}

	if filter.ApproverEmail != nil {
		placeholder := "$" + strconv.Itoa(len(args)+1)
		conditions = append(conditions, "a.approver_email = "+placeholder)
		args = append(args, *filter.ApproverEmail)
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	limitPlaceholder := "$" + strconv.Itoa(len(args)+1)
	args = append(args, filter.Limit)

	query := `
        SELECT ` + approvalColumns + `
          FROM approvals a
          LEFT JOIN users u ON u.email = a.requestor_email` + whereClause + `
         ORDER BY a.created_at DESC, a.id DESC
         LIMIT ` + limitPlaceholder + `
    `

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, query, args...)
	if err != nil {
		return nil, translateApprovalPgError(err)
	}
	defer rows.Close()

	approvals := make([]*approval.Approval, 0, filter.Limit)
	for rows.Next() {
		a, err := scanApproval(rows)
		if err != nil {
			return nil, translateApprovalPgError(err)
		}
		approvals = append(approvals, a)
	}
	if err := rows.Err(); err != nil {
		return nil, translateApprovalPgError(err)
	}
	return approvals, nil
}

func scanApproval(row pgx.Row) (*approval.Approval, error) {
	var (
		id, requestorEmail, description, category, status string
		requestorName, currency                           sql.NullString
		approverEmail, comments, receipt                  sql.NullString
		amount                                            decimal.NullDecimal
		createdAt, updatedAt                              time.Time
	)

	if err := row.Scan(
		&id,
		&requestorEmail,
		&requestorName,
		&description,
		&category,
		&amount,
		&currency,
		&status,
		&approverEmail,
		&comments,
		&receipt,
		&createdAt,
		&updatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, approval.ErrApprovalNotFound
		}
		return nil, err
	}

	return &approval.Approval{
		ID:               id,
		RequestorEmail:   requestorEmail,
		RequestorName:    nullString(requestorName),
		Description:      description,
		Category:         category,
		Amount:           decimalPtr(amount),
		Currency:         nullString(currency),
		Status:           approval.Status(status),
		ApproverEmail:    nullString(approverEmail),
		ApproverComments: nullString(comments),
		ReceiptFilename:  nullString(receipt),
		CreatedAt:        createdAt,
		UpdatedAt:        updatedAt,
	}, nil
}

func translateApprovalPgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return approval.ErrApprovalNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case invalidTextRepresCode:
			return approval.ErrApprovalNotFound
		case numericOutOfRangeCode:
			return approval.ErrAmountOutOfRange
		case stringTooLongCode:
			return approval.ErrCurrencyTooLong
		case checkViolationCode:
			switch pgErr.ConstraintName {
			case "approval_rules_required_approvers_check":
				return approval.ErrInvalidRequiredApprovers
			case "approval_rules_amount_range_check":
				return approval.ErrInvalidAmountRange
			default:
				return approval.ErrInvalidStatus
			}
		}
	}
	return err
}

func nullableDecimal(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}
