package handler

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/ogurasousui/codex-expense-approval/internal/core/admin"
	"github.com/ogurasousui/codex-expense-approval/internal/core/approval"
	"github.com/ogurasousui/codex-expense-approval/internal/core/auth"
	"github.com/ogurasousui/codex-expense-approval/internal/core/user"
)

var errBadRequest = errors.New("bad request")

func toHTTPStatus(err error) int {
	var (
		validationErrs validator.ValidationErrors
		tooLarge       *http.MaxBytesError
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &validationErrs),
		errors.Is(err, errBadRequest),
		errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, approval.ErrInvalidID),
		errors.Is(err, approval.ErrInvalidRequestor),
		errors.Is(err, approval.ErrInvalidApprover),
		errors.Is(err, approval.ErrInvalidAction),
		errors.Is(err, approval.ErrInvalidStatus),
		errors.Is(err, approval.ErrAmountOutOfRange),
		errors.Is(err, approval.ErrCurrencyTooLong),
		errors.Is(err, approval.ErrInvalidLimit),
		errors.Is(err, approval.ErrInvalidAmountRange),
		errors.Is(err, approval.ErrInvalidRequiredApprovers),
		errors.Is(err, user.ErrInvalidEmail),
		errors.Is(err, user.ErrInvalidUsername),
		errors.Is(err, user.ErrInvalidPassword),
		errors.Is(err, user.ErrInvalidRole),
		errors.Is(err, user.ErrInvalidID),
		errors.Is(err, user.ErrInvalidLimit),
		errors.Is(err, user.ErrInvalidManager),
		errors.Is(err, user.ErrManagerNotFound),
		errors.Is(err, admin.ErrInvalidEmail),
		errors.Is(err, admin.ErrInvalidName),
		errors.Is(err, admin.ErrInvalidPassword):
		return http.StatusBadRequest
	case errors.Is(err, user.ErrEmailAlreadyExists), errors.Is(err, admin.ErrEmailAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, user.ErrRoleNotAllowed):
		return http.StatusForbidden
	case errors.Is(err, approval.ErrApprovalNotFound),
		errors.Is(err, user.ErrUserNotFound),
		errors.Is(err, admin.ErrAdminNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
