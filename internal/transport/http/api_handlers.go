package http

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-widget/internal/auth"
	"github.com/vovakirdan/wirechat-widget/internal/identity"
)

// adminSecretHeader must carry the signing secret to mint admin tokens.
const adminSecretHeader = "X-Admin-Secret"

// APIHandlers provides HTTP handlers for token endpoints.
type APIHandlers struct {
	authService *auth.Service
	adminSecret string
	log         *zerolog.Logger
}

// NewAPIHandlers creates a new API handlers instance.
func NewAPIHandlers(authService *auth.Service, adminSecret string, logger *zerolog.Logger) *APIHandlers {
	return &APIHandlers{
		authService: authService,
		adminSecret: adminSecret,
		log:         logger,
	}
}

// TokenRequest represents the token request body.
type TokenRequest struct {
	UserID string `json:"userId"`
	Name   string `json:"name" binding:"required"`
	Role   string `json:"role"`
}

// TokenResponse represents the token response body.
type TokenResponse struct {
	Token       string `json:"token"`
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	Role        string `json:"role"`
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// IssueToken mints a chat token.
// POST /api/token
func (h *APIHandlers) IssueToken(c *gin.Context) {
	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid token request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	role := identity.ParseRole(req.Role)
	if role == identity.RoleAdmin && !h.adminAllowed(c) {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "admin tokens require the admin secret"})
		return
	}

	id, err := h.authService.Issue(req.UserID, req.Name, role)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidUsername) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid name"})
			return
		}
		h.log.Error().Err(err).Str("name", req.Name).Msg("failed to issue token")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Str("user_id", id.ID).Str("role", string(id.Role)).Msg("token issued")
	c.JSON(http.StatusCreated, tokenResponse(id))
}

// GuestToken mints a token for a generated guest user.
// POST /api/guest
func (h *APIHandlers) GuestToken(c *gin.Context) {
	id, err := h.authService.IssueGuest()
	if err != nil {
		h.log.Error().Err(err).Msg("failed to issue guest token")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Str("user_id", id.ID).Msg("guest token issued")
	c.JSON(http.StatusOK, tokenResponse(id))
}

func (h *APIHandlers) adminAllowed(c *gin.Context) bool {
	got := c.GetHeader(adminSecretHeader)
	return h.adminSecret != "" && subtle.ConstantTimeCompare([]byte(got), []byte(h.adminSecret)) == 1
}

func tokenResponse(id identity.Identity) TokenResponse {
	return TokenResponse{
		Token:       id.Token,
		UserID:      id.ID,
		DisplayName: id.DisplayName,
		Role:        string(id.Role),
	}
}
