package handlers

import (
	"net/http"
	"time"

	"github.com/maderasur/trozasgo/internal/middleware"
	"github.com/maderasur/trozasgo/internal/models"
	"github.com/maderasur/trozasgo/internal/utils"
)

// LoginRequest is the login payload.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest carries a refresh token.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

func (r *Router) login(w http.ResponseWriter, req *http.Request) {
	var in LoginRequest
	if !r.decodeAndValidate(w, req, &in) {
		return
	}

	var user models.User
	if err := r.db.Where("username = ?", in.Username).First(&user).Error; err != nil {
		respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if !user.IsActive || !user.HasAppAccess {
		respondError(w, http.StatusUnauthorized, "Account is not allowed to use the app")
		return
	}
	if !utils.CheckPasswordHash(in.Password, user.Password) {
		respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	now := time.Now()
	user.LastLogin = &now
	r.db.Save(&user)

	accessToken, refreshToken, err := utils.GenerateTokens(&user, r.cfg.JWTSecret)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to generate tokens")
		return
	}

	respondData(w, http.StatusOK, map[string]interface{}{
		"tokens": map[string]string{
			"accessToken":  accessToken,
			"refreshToken": refreshToken,
		},
		"user": user,
	})
}

func (r *Router) refreshToken(w http.ResponseWriter, req *http.Request) {
	var in RefreshRequest
	if !r.decodeAndValidate(w, req, &in) {
		return
	}

	claims, err := utils.ValidateToken(in.RefreshToken, r.cfg.JWTSecret)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Invalid or expired refresh token")
		return
	}
	userID, err := utils.UserIDFromClaims(claims)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Invalid token claims")
		return
	}

	var user models.User
	if err := r.db.First(&user, userID).Error; err != nil {
		respondError(w, http.StatusUnauthorized, "User no longer exists")
		return
	}
	if !user.IsActive || !user.HasAppAccess {
		respondError(w, http.StatusUnauthorized, "Account is not allowed to use the app")
		return
	}

	accessToken, refreshToken, err := utils.GenerateTokens(&user, r.cfg.JWTSecret)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to generate tokens")
		return
	}

	respondData(w, http.StatusOK, map[string]string{
		"accessToken":  accessToken,
		"refreshToken": refreshToken,
	})
}

// verifyToken confirms the presented token is valid; the middleware already
// did the work by the time this runs.
func (r *Router) verifyToken(w http.ResponseWriter, req *http.Request) {
	userID, ok := middleware.UserID(req)
	if !ok {
		respondError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	respondData(w, http.StatusOK, map[string]interface{}{
		"valid":  true,
		"userId": userID,
	})
}

// logout exists for client symmetry; tokens are stateless so there is
// nothing to revoke server-side.
func (r *Router) logout(w http.ResponseWriter, req *http.Request) {
	respondMessage(w, http.StatusOK, "Logged out successfully", nil)
}

func (r *Router) currentUser(w http.ResponseWriter, req *http.Request) {
	userID, ok := middleware.UserID(req)
	if !ok {
		respondError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	var user models.User
	if err := r.db.First(&user, userID).Error; err != nil {
		respondError(w, http.StatusNotFound, "User not found")
		return
	}
	respondData(w, http.StatusOK, user)
}
