package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/ogurasousui/codex-expense-approval/internal/core/approval"
	pgdb "github.com/ogurasousui/codex-expense-approval/internal/platform/db/postgres"
)

const ruleColumns = `id, name, min_amount, max_amount, category, required_approvers, created_at`

// RuleRepository は PostgreSQL を利用した承認ルール永続化の実装です。
type RuleRepository struct {
	pool pgdb.Queryer
}

// NewRuleRepository は RuleRepository を生成します。
func NewRuleRepository(pool pgdb.Queryer) *RuleRepository {
	return &RuleRepository{pool: pool}
}

// CreateRule は承認ルールを作成します。
func (r *RuleRepository) CreateRule(ctx context.Context, rule *approval.Rule) (*approval.Rule, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        INSERT INTO approval_rules (name, min_amount, max_amount, category, required_approvers, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING `+ruleColumns+`
    `,
		rule.Name,
		nullableDecimal(rule.MinAmount),
		nullableDecimal(rule.MaxAmount),
		rule.Category,
		rule.RequiredApprovers,
		rule.CreatedAt,
	)

	created, err := scanRule(row)
	if err != nil {
		return nil, translateApprovalPgError(err)
	}
	return created, nil
}

// ListRules は承認ルールを作成順に取得します。
func (r *RuleRepository) ListRules(ctx context.Context) ([]*approval.Rule, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, `
        SELECT `+ruleColumns+`
          FROM approval_rules
         ORDER BY created_at ASC, id ASC
    `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*approval.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rules, nil
}

func scanRule(row pgx.Row) (*approval.Rule, error) {
	var (
		id, name             string
		minAmount, maxAmount decimal.NullDecimal
		category             sql.NullString
		required             int
		createdAt            time.Time
	)

	if err := row.Scan(&id, &name, &minAmount, &maxAmount, &category, &required, &createdAt); err != nil {
		return nil, err
	}

	return &approval.Rule{
		ID:                id,
		Name:              name,
		MinAmount:         decimalPtr(minAmount),
		MaxAmount:         decimalPtr(maxAmount),
		Category:          nullString(category),
		RequiredApprovers: required,
		CreatedAt:         createdAt,
	}, nil
}

func decimalPtr(v decimal.NullDecimal) *decimal.Decimal {
	if !v.Valid {
		return nil
	}
	d := v.Decimal
	return &d
}
