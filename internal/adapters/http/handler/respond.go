package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-playground/form/v4"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const maxMultipartMemory = 8 << 20

type envelope map[string]any

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeOK(w http.ResponseWriter, status int, body envelope) {
	if body == nil {
		body = envelope{}
	}
	body["ok"] = true
	writeJSON(w, status, body)
}

// writeError はエラーを HTTP ステータスに変換して返します。500 の詳細はログにのみ残します。
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := toHTTPStatus(err)
	msg := err.Error()
	switch status {
	case http.StatusInternalServerError:
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", requestIDFromContext(r.Context())),
			zap.Error(err),
		)
		msg = "internal error"
	case http.StatusUnauthorized:
		msg = "invalid email or password"
	case http.StatusBadRequest:
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msg = describeValidation(verrs)
		}
	}
	writeJSON(w, status, envelope{"ok": false, "error": msg})
}

func describeValidation(verrs validator.ValidationErrors) string {
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s is %s", fe.Field(), fe.Tag()))
	}
	return "invalid input: " + strings.Join(parts, ", ")
}

func wantsJSON(r *http.Request) bool {
	if isJSON(r) {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func isJSON(r *http.Request) bool {
	ct, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && ct == "application/json"
}

// done はフォーム送信には 303 リダイレクト、JSON クライアントには本文で応答します。
func done(w http.ResponseWriter, r *http.Request, location string, status int, body envelope) {
	if !wantsJSON(r) {
		http.Redirect(w, r, location, http.StatusSeeOther)
		return
	}
	if body == nil {
		body = envelope{}
	}
	body["redirect"] = location
	writeOK(w, status, body)
}

// bind はリクエスト本文を dst に読み込み、validate タグで検証します。
// JSON 以外はフォームとして扱い、json タグ名のフィールドに値を設定します。
func (h *Handler) bind(r *http.Request, dst any) error {
	if isJSON(r) {
		dec := json.NewDecoder(r.Body)
		if err := dec.Decode(dst); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return err
			}
			return fmt.Errorf("%w: malformed json", errBadRequest)
		}
	} else {
		if err := parseForm(r); err != nil {
			return err
		}
		if err := bindForm(h.forms, r, dst); err != nil {
			return err
		}
	}
	return h.validate.Struct(dst)
}

func parseForm(r *http.Request) error {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	var err error
	if ct == "multipart/form-data" {
		err = r.ParseMultipartForm(maxMultipartMemory)
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return fmt.Errorf("%w: malformed form", errBadRequest)
	}
	return nil
}

func newFormDecoder() *form.Decoder {
	dec := form.NewDecoder()
	dec.RegisterCustomTypeFunc(func(vals []string) (any, error) {
		d, err := decimal.NewFromString(vals[0])
		if err != nil {
			return nil, err
		}
		return decimal.NullDecimal{Decimal: d, Valid: true}, nil
	}, decimal.NullDecimal{})
	return dec
}

// bindForm は前後の空白を除いた非空のフォーム値だけを form タグに従って dst へ読み込みます。
func bindForm(dec *form.Decoder, r *http.Request, dst any) error {
	values := make(url.Values, len(r.Form))
	for key, raw := range r.Form {
		for _, v := range raw {
			if v = strings.TrimSpace(v); v != "" {
				values.Add(key, v)
			}
		}
	}
	if err := dec.Decode(dst, values); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s", errBadRequest, key)
	}
	return n, nil
}
