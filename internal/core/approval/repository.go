package approval

import "context"

// Repository は経費申請の永続化を行うインターフェースです。
type Repository interface {
	Create(ctx context.Context, approval *Approval) (*Approval, error)
	FindByID(ctx context.Context, id string) (*Approval, error)
	// UpdateDecision は状態・承認者・コメントを更新します。対象が存在しない場合は ErrApprovalNotFound を返します。
	UpdateDecision(ctx context.Context, id string, decision Decision) (*Approval, error)
	List(ctx context.Context, filter ListFilter) ([]*Approval, error)
}

// ListFilter は一覧取得時の検索条件です。結果は作成日時の降順です。
type ListFilter struct {
	Status          *Status
	RequestorEmails []string
	ApproverEmail   *string
	Limit           int
}

// RuleRepository は承認ルールの永続化を行うインターフェースです。
type RuleRepository interface {
	CreateRule(ctx context.Context, rule *Rule) (*Rule, error)
	ListRules(ctx context.Context) ([]*Rule, error)
}
