package handler

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/ogurasousui/codex-expense-approval/internal/core/approval"
)

type decideRequest struct {
	Action   string `json:"action" form:"action" validate:"required"`
	Comments string `json:"comments" form:"comments" validate:"max=2000"`
}

type commentRequest struct {
	Comments string `json:"comments" form:"comments" validate:"max=2000"`
}

func (h *Handler) managerDashboard(w http.ResponseWriter, r *http.Request) {
	in, err := listInput(r, 0)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	id := identity(r)
	reports, err := h.users.ListDirectReports(r.Context(), id.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	emails := make([]string, 0, len(reports))
	for _, u := range reports {
		emails = append(emails, u.Email)
	}
	items, err := h.approvals.ListByRequestors(r.Context(), emails, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	base := h.baseCurrency(r.Context(), id)
	writeJSON(w, http.StatusOK, envelope{
		"identity":      toIdentityView(id),
		"reports":       toUserViews(reports),
		"approvals":     toApprovalViews(h.enricher.Enrich(r.Context(), items, base)),
		"base_currency": base,
	})
}

func (h *Handler) managerDecideForm(action approval.Action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req commentRequest
		if err := h.bind(r, &req); err != nil {
			h.writeError(w, r, err)
			return
		}

		updated, err := h.approvals.Decide(r.Context(), approval.DecideInput{
			ID:            mux.Vars(r)["id"],
			ApproverEmail: identity(r).Email,
			Action:        string(action),
			Comments:      req.Comments,
		})
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		done(w, r, "/manager/dashboard", http.StatusOK, envelope{"approval": plainApprovalView(updated)})
	}
}

// managerAPIList は approver_email が指定されればその承認者の処理済み申請、なければ Pending の申請を返します。
func (h *Handler) managerAPIList(w http.ResponseWriter, r *http.Request) {
	in, err := listInput(r, 0)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var items []*approval.Approval
	if approver := strings.TrimSpace(r.URL.Query().Get("approver_email")); approver != "" {
		items, err = h.approvals.ListByApprover(r.Context(), approver, in)
	} else {
		if in.Status == nil {
			pending := approval.StatusPending
			in.Status = &pending
		}
		items, err = h.approvals.List(r.Context(), in)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	base := h.baseCurrency(r.Context(), identity(r))
	writeOK(w, http.StatusOK, envelope{
		"approvals":     toApprovalViews(h.enricher.Enrich(r.Context(), items, base)),
		"base_currency": base,
	})
}

func (h *Handler) managerAPIDecide(w http.ResponseWriter, r *http.Request) {
	var req decideRequest
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
	writeOK(w, http.StatusOK, envelope{"approval": plainApprovalView(updated)})
}

func (h *Handler) managerAPIEscalate(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if err := h.bind(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	updated, err := h.approvals.Escalate(r.Context(), approval.EscalateInput{
		ID:            mux.Vars(r)["id"],
		ApproverEmail: identity(r).Email,
		Comments:      req.Comments,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{"approval": plainApprovalView(updated)})
}
