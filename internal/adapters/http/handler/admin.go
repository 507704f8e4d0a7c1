package handler

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/ogurasousui/codex-expense-approval/internal/core/approval"
	"github.com/ogurasousui/codex-expense-approval/internal/core/auth"
	"github.com/ogurasousui/codex-expense-approval/internal/core/role"
	"github.com/ogurasousui/codex-expense-approval/internal/core/user"
)

const adminExpensesLimit = 500

type createUserRequest struct {
	Email     string `json:"email" form:"email" validate:"required,email"`
	Username  string `json:"username" form:"username" validate:"required,max=120"`
	Role      string `json:"role" form:"role" validate:"required"`
	ManagerID string `json:"manager_id" form:"manager_id" validate:"omitempty,uuid"`
}

type createRuleRequest struct {
	Name              string              `json:"name" form:"name" validate:"max=120"`
	MinAmount         decimal.NullDecimal `json:"min_amount" form:"min_amount"`
	MaxAmount         decimal.NullDecimal `json:"max_amount" form:"max_amount"`
	Category          string              `json:"category" form:"category" validate:"max=120"`
	RequiredApprovers int                 `json:"required_approvers" form:"required_approvers" validate:"gte=0"`
}

type overrideRequest struct {
	Action   string `json:"action" form:"action" validate:"required"`
	Comments string `json:"comments" form:"comments" validate:"max=2000"`
}

func (h *Handler) adminOverview(w http.ResponseWriter, r *http.Request) {
	admins, err := h.admins.ListAdmins(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{
		"admins":        toAdminViews(admins),
		"base_currency": h.baseCurrency(r.Context(), identity(r)),
	})
}

func (h *Handler) adminListUsers(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	in := user.ListUsersInput{Query: r.URL.Query().Get("q"), Limit: limit}
	if raw := strings.TrimSpace(r.URL.Query().Get("role")); raw != "" {
		parsed, err := role.Parse(raw)
		if err != nil {
			h.writeError(w, r, user.ErrInvalidRole)
			return
		}
		in.Role = &parsed
	}

	users, err := h.users.ListUsers(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	managers, err := h.users.ListManagers(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope{
		"users":    toUserViews(users),
		"managers": toUserViews(managers),
		"query":    in.Query,
	})
}

func (h *Handler) adminCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := h.bind(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	parsed, err := role.Parse(req.Role)
	if err != nil {
		h.writeError(w, r, user.ErrInvalidRole)
		return
	}

	in := auth.ProvisionUserInput{Email: req.Email, Username: req.Username, Role: parsed}
	if req.ManagerID != "" {
		in.ManagerID = &req.ManagerID
	}

	res, err := h.auth.ProvisionUser(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	done(w, r, "/admin/users", http.StatusCreated, envelope{
		"user":       toUserView(res.User),
		"email_sent": res.Delivered,
	})
}

func (h *Handler) adminDeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.users.DeleteUser(r.Context(), user.DeleteUserInput{ID: mux.Vars(r)["id"]}); err != nil {
		h.writeError(w, r, err)
		return
	}
	done(w, r, "/admin/users", http.StatusOK, nil)
}

func (h *Handler) adminSendPassword(w http.ResponseWriter, r *http.Request) {
	delivered, err := h.auth.SendTemporaryPassword(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	done(w, r, "/admin/users", http.StatusOK, envelope{"email_sent": delivered})
}

func (h *Handler) adminListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.approvals.ListRules(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"rules": toRuleViews(rules)})
}

func (h *Handler) adminCreateRule(w http.ResponseWriter, r *http.Request) {
	var req createRuleRequest
	if err := h.bind(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	rule, err := h.approvals.CreateRule(r.Context(), approval.CreateRuleInput{
		Name:              req.Name,
		MinAmount:         nullDecimalPtr(req.MinAmount),
		MaxAmount:         nullDecimalPtr(req.MaxAmount),
		Category:          req.Category,
		RequiredApprovers: req.RequiredApprovers,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	done(w, r, "/admin/approval-rules", http.StatusCreated, envelope{"rule": toRuleView(rule)})
}

func (h *Handler) adminListExpenses(w http.ResponseWriter, r *http.Request) {
	in, err := listInput(r, adminExpensesLimit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	items, err := h.approvals.List(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	base := h.baseCurrency(r.Context(), identity(r))
	writeJSON(w, http.StatusOK, envelope{
		"approvals":     toApprovalViews(h.enricher.Enrich(r.Context(), items, base)),
		"base_currency": base,
	})
}

func (h *Handler) adminOverride(w http.ResponseWriter, r *http.Request) {
	var req overrideRequest
	if err := h.bind(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	updated, err := h.approvals.Decide(r.Context(), approval.DecideInput{
		ID:            mux.Vars(r)["id"],
		ApproverEmail: identity(r).Email,
		Action:        req.Action,
		Comments:      req.Comments,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	done(w, r, "/admin/expenses", http.StatusOK, envelope{"approval": plainApprovalView(updated)})
}

// listInput はクエリ文字列の status と limit を読み取ります。limit 未指定時は defaultLimit を使います。
func listInput(r *http.Request, defaultLimit int) (approval.ListInput, error) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		return approval.ListInput{}, err
	}
	if limit == 0 {
		limit = defaultLimit
	}

	in := approval.ListInput{Limit: limit}
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status, err := approval.ParseStatus(raw)
		if err != nil {
			return approval.ListInput{}, err
		}
		in.Status = &status
	}
	return in, nil
}

func nullDecimalPtr(v decimal.NullDecimal) *decimal.Decimal {
	if !v.Valid {
		return nil
	}
	d := v.Decimal
	return &d
}
