package controllers

import (
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"gatebot/internal/models/request_models"
	"gatebot/pkg/utils"
)

type AuthController struct{}

func NewAuthController() *AuthController {
	return &AuthController{}
}

// Login exchanges the operator password for a short-lived admin token.
// The bcrypt hash of the password lives in ADMIN_PASSWORD_HASH.
func (a *AuthController) Login(c *gin.Context) {

	var request request_models.AdminLoginRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid request payload")
		return
	}

	hash := os.Getenv("ADMIN_PASSWORD_HASH")
	if hash == "" || utils.ComparePasswords(hash, request.Password) != nil {
		utils.RespondError(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := utils.CreateToken("admin", "admin")
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, gin.H{"token": token}, "Login successful")
}
