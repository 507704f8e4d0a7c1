package handler

import (
	"errors"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/ogurasousui/codex-expense-approval/internal/adapters/storage/minio"
	"github.com/ogurasousui/codex-expense-approval/internal/core/approval"
)

const receiptField = "receipt"

type submitRequest struct {
	Description string              `json:"description" form:"description" validate:"max=2000"`
	Category    string              `json:"category" form:"category" validate:"max=120"`
	Amount      decimal.NullDecimal `json:"amount" form:"amount"`
	Currency    string              `json:"currency" form:"currency"`
}

func (req submitRequest) input(requestor string, receipt string) approval.SubmitInput {
	in := approval.SubmitInput{
		RequestorEmail: requestor,
		Description:    req.Description,
		Category:       req.Category,
		Amount:         nullDecimalPtr(req.Amount),
	}
	if req.Currency != "" {
		currency := req.Currency
		in.Currency = &currency
	}
	if receipt != "" {
		in.ReceiptFilename = &receipt
	}
	return in
}

func (h *Handler) employeeDashboard(w http.ResponseWriter, r *http.Request) {
	in, err := listInput(r, 0)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	id := identity(r)
	items, err := h.approvals.ListByRequestor(r.Context(), id.Email, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	base := h.baseCurrency(r.Context(), id)
	writeJSON(w, http.StatusOK, envelope{
		"identity":      toIdentityView(id),
		"approvals":     toApprovalViews(h.enricher.Enrich(r.Context(), items, base)),
		"base_currency": base,
	})
}

func (h *Handler) employeeSubmitView(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, envelope{
		"requestor_email": identity(r).Email,
		"base_currency":   h.baseCurrency(r.Context(), identity(r)),
	})
}

func (h *Handler) employeeSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := h.bind(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	receipt, err := h.saveReceipt(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	created, err := h.approvals.Submit(r.Context(), req.input(identity(r).Email, receipt))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	done(w, r, "/employee/dashboard", http.StatusCreated, envelope{"approval": plainApprovalView(created)})
}

// saveReceipt はマルチパートの領収書ファイルを保存し、記録するファイル名を返します。
func (h *Handler) saveReceipt(r *http.Request) (string, error) {
	if r.MultipartForm == nil {
		return "", nil
	}
	file, header, err := r.FormFile(receiptField)
	if errors.Is(err, http.ErrMissingFile) {
		return "", nil
	}
	if err != nil {
		return "", errBadRequest
	}
	defer file.Close()

	return h.receipts.Save(r.Context(), minio.Receipt{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	})
}

func (h *Handler) employeeAPIList(w http.ResponseWriter, r *http.Request) {
	in, err := listInput(r, 0)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	items, err := h.approvals.ListByRequestor(r.Context(), identity(r).Email, in)
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

func (h *Handler) employeeAPICreate(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := h.bind(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	created, err := h.approvals.Submit(r.Context(), req.input(identity(r).Email, ""))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, envelope{"approval": plainApprovalView(created)})
}
