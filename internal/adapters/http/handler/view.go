package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ogurasousui/codex-expense-approval/internal/core/admin"
	"github.com/ogurasousui/codex-expense-approval/internal/core/approval"
	"github.com/ogurasousui/codex-expense-approval/internal/core/auth"
	"github.com/ogurasousui/codex-expense-approval/internal/core/user"
)

type identityView struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

func toIdentityView(id *auth.Identity) *identityView {
	if id == nil {
		return nil
	}
	return &identityView{ID: id.ID, Email: id.Email, Name: id.Name, Role: id.Role.String()}
}

type approvalView struct {
	ID               string           `json:"id"`
	RequestorEmail   string           `json:"requestor_email"`
	RequestorName    string           `json:"requestor_name"`
	Description      string           `json:"description"`
	Category         string           `json:"category"`
	Amount           *decimal.Decimal `json:"amount"`
	Currency         *string          `json:"currency"`
	Status           string           `json:"status"`
	ApproverEmail    *string          `json:"approver_email"`
	ApproverComments *string          `json:"approver_comments"`
	ReceiptFilename  *string          `json:"receipt_filename"`
	ConvertedAmount  *decimal.Decimal `json:"converted_amount,omitempty"`
	BaseCurrency     string           `json:"base_currency,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

func toApprovalView(v approval.View) approvalView {
	a := v.Approval
	return approvalView{
		ID:               a.ID,
		RequestorEmail:   a.RequestorEmail,
		RequestorName:    v.RequestorDisplayName,
		Description:      a.Description,
		Category:         a.Category,
		Amount:           a.Amount,
		Currency:         a.Currency,
		Status:           string(a.Status),
		ApproverEmail:    a.ApproverEmail,
		ApproverComments: a.ApproverComments,
		ReceiptFilename:  a.ReceiptFilename,
		ConvertedAmount:  v.ConvertedAmount,
		BaseCurrency:     v.BaseCurrency,
		CreatedAt:        a.CreatedAt,
		UpdatedAt:        a.UpdatedAt,
	}
}

func toApprovalViews(views []approval.View) []approvalView {
	out := make([]approvalView, 0, len(views))
	for _, v := range views {
		out = append(out, toApprovalView(v))
	}
	return out
}

// plainApprovalView は換算を伴わない単一の申請を表示用に変換します。
func plainApprovalView(a *approval.Approval) approvalView {
	v := approval.View{Approval: a, RequestorDisplayName: a.RequestorEmail}
	if a.RequestorName != nil && *a.RequestorName != "" {
		v.RequestorDisplayName = *a.RequestorName
	}
	return toApprovalView(v)
}

type userView struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	Username    string    `json:"username"`
	Role        string    `json:"role"`
	ManagerID   *string   `json:"manager_id"`
	ManagerName *string   `json:"manager_name"`
	CreatedAt   time.Time `json:"created_at"`
}

func toUserViews(users []*user.User) []userView {
	out := make([]userView, 0, len(users))
	for _, u := range users {
		out = append(out, toUserView(u))
	}
	return out
}

func toUserView(u *user.User) userView {
	return userView{
		ID:          u.ID,
		Email:       u.Email,
		Username:    u.Username,
		Role:        u.Role.String(),
		ManagerID:   u.ManagerID,
		ManagerName: u.ManagerName,
		CreatedAt:   u.CreatedAt,
	}
}

type adminView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Country   *string   `json:"country"`
	CreatedAt time.Time `json:"created_at"`
}

func toAdminViews(admins []*admin.Admin) []adminView {
	out := make([]adminView, 0, len(admins))
	for _, a := range admins {
		out = append(out, adminView{ID: a.ID, Name: a.Name, Email: a.Email, Country: a.Country, CreatedAt: a.CreatedAt})
	}
	return out
}

type ruleView struct {
	ID                string           `json:"id"`
	Name              string           `json:"name"`
	MinAmount         *decimal.Decimal `json:"min_amount"`
	MaxAmount         *decimal.Decimal `json:"max_amount"`
	Category          *string          `json:"category"`
	RequiredApprovers int              `json:"required_approvers"`
	CreatedAt         time.Time        `json:"created_at"`
}

func toRuleView(r *approval.Rule) ruleView {
	return ruleView{
		ID:                r.ID,
		Name:              r.Name,
		MinAmount:         r.MinAmount,
		MaxAmount:         r.MaxAmount,
		Category:          r.Category,
		RequiredApprovers: r.RequiredApprovers,
		CreatedAt:         r.CreatedAt,
	}
}

func toRuleViews(rules []*approval.Rule) []ruleView {
	out := make([]ruleView, 0, len(rules))
	for _, r := range rules {
		out = append(out, toRuleView(r))
	}
	return out
}
