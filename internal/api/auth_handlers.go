package api

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/flowpbx/ivrflow/internal/api/middleware"
	"github.com/flowpbx/ivrflow/internal/auth"
)

type tokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// handleIssueToken exchanges the operator credentials for a bearer token.
func (s *Server) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	if s.cfg.AdminPasswordHash == "" {
		writeError(w, http.StatusServiceUnavailable, "token issuance is disabled")
		return
	}

	var req tokenRequest
	if errMsg := readJSON(r, &req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	if msg := validateRequiredStringLen("username", req.Username, maxUsernameLen); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if msg := validateRequiredStringLen("password", req.Password, maxPasswordLen); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(s.cfg.AdminUsername)) == 1
	passOK, err := auth.CheckPassword(req.Password, s.cfg.AdminPasswordHash)
	if err != nil {
		s.logger.Error("configured admin password hash is unusable", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !userOK || !passOK {
		s.logger.Warn("rejected token request",
			"username", req.Username,
			"remote_addr", middleware.ClientIP(r),
		)
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, expiresAt, err := middleware.GenerateAdminToken(s.jwtSecret, req.Username)
	if err != nil {
		s.logger.Error("failed to sign admin token", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{Token: token, ExpiresAt: expiresAt})
}
