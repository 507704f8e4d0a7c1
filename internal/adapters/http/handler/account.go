package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ogurasousui/codex-expense-approval/internal/core/auth"
)

type registerRequest struct {
	Name     string `json:"name" form:"name" validate:"required,max=120"`
	Email    string `json:"email" form:"email" validate:"required,email"`
	Password string `json:"password" form:"password" validate:"required"`
	Country  string `json:"country" form:"country" validate:"max=120"`
}

type loginRequest struct {
	Email    string `json:"email" form:"email" validate:"required"`
	Password string `json:"password" form:"password" validate:"required"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" form:"email" validate:"required"`
}

func (h *Handler) home(w http.ResponseWriter, r *http.Request) {
	if id := identity(r); id != nil {
		http.Redirect(w, r, homeFor(id.Role), http.StatusFound)
		return
	}
	http.Redirect(w, r, "/login", http.StatusFound)
}

func (h *Handler) registerView(w http.ResponseWriter, r *http.Request) {
	var countries []string
	if h.currency != nil {
		countries = h.currency.Countries(r.Context())
	}
	if countries == nil {
		countries = []string{}
	}

	adminExists := false
	if h.admins != nil {
		n, err := h.admins.CountAdmins(r.Context())
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		adminExists = n > 0
	}

	writeJSON(w, http.StatusOK, envelope{
		"countries":    countries,
		"admin_exists": adminExists,
	})
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := h.bind(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	id, err := h.auth.Register(r.Context(), auth.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Country:  req.Country,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	done(w, r, "/login", http.StatusCreated, envelope{"account": toIdentityView(id)})
}

func (h *Handler) loginView(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	body := envelope{"authenticated": id != nil}
	if id != nil {
		body["identity"] = toIdentityView(id)
		body["home"] = homeFor(id.Role)
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := h.bind(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	sess, err := h.auth.Login(r.Context(), auth.LoginInput{Email: req.Email, Password: req.Password})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sess.Token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	done(w, r, homeFor(sess.Identity.Role), http.StatusOK, envelope{"identity": toIdentityView(sess.Identity)})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if id := identity(r); id != nil {
		if err := h.auth.Logout(r.Context(), id); err != nil {
			h.logger.Warn("logout failed", zap.String("email", id.Email), zap.Error(err))
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (h *Handler) forgotPasswordView(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, envelope{"fields": []string{"email"}})
}

func (h *Handler) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := h.bind(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.auth.ForgotPassword(r.Context(), req.Email); err != nil {
		h.writeError(w, r, err)
		return
	}
	done(w, r, "/login", http.StatusOK, envelope{
		"message": "If the account exists, a temporary password has been sent.",
	})
}
