package approval

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Status は経費申請の状態です。
type Status string

const (
	StatusPending   Status = "Pending"
	StatusApproved  Status = "Approved"
	StatusRejected  Status = "Rejected"
	StatusEscalated Status = "Escalated"
)

// Terminal は承認・却下・エスカレーションのいずれかで処理済みかどうかを返します。
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusEscalated
}

// ParseStatus は大文字小文字を区別せずに状態名を解析します。
func ParseStatus(raw string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "pending":
		return StatusPending, nil
	case "approved":
		return StatusApproved, nil
	case "rejected":
		return StatusRejected, nil
	case "escalated":
		return StatusEscalated, nil
	default:
		return "", ErrInvalidStatus
	}
}

// Action は承認者の判断です。
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

// ParseAction は大文字小文字を区別せずに判断を解析します。
func ParseAction(raw string) (Action, error) {
	switch Action(strings.ToLower(strings.TrimSpace(raw))) {
	case ActionApprove:
		return ActionApprove, nil
	case ActionReject:
		return ActionReject, nil
	default:
		return "", ErrInvalidAction
	}
}

func (a Action) status() Status {
	if a == ActionApprove {
		return StatusApproved
	}
	return StatusRejected
}

// Approval は経費申請です。
type Approval struct {
	ID             string
	RequestorEmail string
	// RequestorName は users テーブルから結合される申請者のユーザー名です。
	RequestorName    *string
	Description      string
	Category         string
	Amount           *decimal.Decimal
	Currency         *string
	Status           Status
	ApproverEmail    *string
	ApproverComments *string
	ReceiptFilename  *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Decision は承認者による状態変更の内容です。
type Decision struct {
	Status        Status
	ApproverEmail string
	Comments      *string
	UpdatedAt     time.Time
}

// Rule は金額帯とカテゴリに応じた必要承認者数の定義です。
type Rule struct {
	ID                string
	Name              string
	MinAmount         *decimal.Decimal
	MaxAmount         *decimal.Decimal
	Category          *string
	RequiredApprovers int
	CreatedAt         time.Time
}
