package handlers

import (
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"carepulse-server/internal/models"
	"carepulse-server/internal/utils"
)

// adminSubject is the token subject of the shared admin session.
const adminSubject = "admin"

// AuthHandler handles authentication-related requests.
type AuthHandler struct {
	PasskeyHash []byte
	Tokens      utils.TokenConfig
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(passkeyHash string, tokens utils.TokenConfig) *AuthHandler {
	return &AuthHandler{PasskeyHash: []byte(passkeyHash), Tokens: tokens}
}

// AdminLoginRequest represents the request body for admin login.
type AdminLoginRequest struct {
	Passkey string `json:"passkey" binding:"required,len=6,numeric"`
}

// AdminLogin exchanges the admin passkey for an admin access token.
func (h *AuthHandler) AdminLogin(c *gin.Context) {
	var req AdminLoginRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	if err := bcrypt.CompareHashAndPassword(h.PasskeyHash, []byte(req.Passkey)); err != nil {
		utils.Unauthorized(c, "Invalid passkey. Please try again.")
		return
	}

	token, expiresAt, err := utils.GenerateAccessToken(adminSubject, models.RoleAdmin, h.Tokens)
	if err != nil {
		utils.InternalServerError(c, "Failed to issue token")
		return
	}
	utils.Success(c, "Login successful", SessionResponse{Token: token, ExpiresAt: expiresAt})
}
