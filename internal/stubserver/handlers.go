package stubserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go-ledger-client/internal/model"
)

var (
	errInvalidCredentials = errors.New("invalid credentials")
	errInvalidToken       = errors.New("invalid or expired token")
	errWrongPassword      = errors.New("current password is incorrect")
)

type handlers struct {
	auth  *authService
	users *userStore
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload model.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	fields := map[string]string{}
	if strings.TrimSpace(payload.Username) == "" {
		fields["username"] = "Username is required"
	}
	if payload.Password == "" {
		fields["password"] = "Password is required"
	}
	if len(fields) > 0 {
		writeValidation(w, fields)
		return
	}

	resp, err := h.auth.login(payload.Username, payload.Password)
	if err != nil {
		writeMessage(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) refresh(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload model.RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	payload.RefreshToken = strings.TrimSpace(payload.RefreshToken)
	if payload.RefreshToken == "" {
		writeValidation(w, map[string]string{"refresh_token": "Refresh token is required"})
		return
	}

	resp, err := h.auth.refresh(payload.RefreshToken)
	if err != nil {
		writeMessage(w, http.StatusUnauthorized, "Session is no longer valid")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	h.auth.logout(claims.UserID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) me(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	user, exists := h.users.get(claims.UserID)
	if !exists {
		writeMessage(w, http.StatusNotFound, "User not found")
		return
	}

	writeJSON(w, http.StatusOK, user.public())
}

func (h *handlers) changePassword(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var payload model.ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	if len(payload.NewPassword) < 8 {
		writeValidation(w, map[string]string{"new_password": "Password must be at least 8 characters"})
		return
	}

	if err := h.auth.changePassword(claims.UserID, payload.CurrentPassword, payload.NewPassword); err != nil {
		if errors.Is(err, errWrongPassword) {
			writeMessage(w, http.StatusBadRequest, "Current password is incorrect")
			return
		}
		writeMessage(w, http.StatusInternalServerError, "Could not update password")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Sample ledger resources so permission-gated traffic has somewhere to go.

func (h *handlers) listAccounts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, []map[string]any{
		{"id": 1, "code": "1000", "name": "Cash", "type": "asset"},
		{"id": 2, "code": "2000", "name": "Accounts Payable", "type": "liability"},
		{"id": 3, "code": "4000", "name": "Grant Revenue", "type": "revenue"},
	})
}

func (h *handlers) listJournalEntries(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, []map[string]any{
		{"id": 1, "reference": "JE-2026-0001", "status": "posted"},
		{"id": 2, "reference": "JE-2026-0002", "status": "draft"},
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

func writeValidation(w http.ResponseWriter, fields map[string]string) {
	writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
		"message": "Validation failed",
		"errors":  fields,
	})
}
