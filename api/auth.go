package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/novaclub/club-sync/middleware"
	"github.com/novaclub/club-sync/store"
)

type registerRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required"`
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name" binding:"required"`
	ClubName  string `json:"club_name" binding:"required"`
	Phone     string `json:"phone"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

func (s *Server) issueToken(c *gin.Context, user *store.User) {
	token, err := s.auth.Tokens().Issue(user)
	if err != nil {
		abortStore(c, err)
		return
	}
	c.JSON(http.StatusOK, tokenResponse{AccessToken: token, TokenType: "bearer"})
}

func (s *Server) handleRegister(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	hashed, err := middleware.HashPassword(req.Password)
	if err != nil {
		abortStore(c, err)
		return
	}
	club := &store.Club{Name: req.ClubName, Phone: req.Phone, IsActive: true}
	admin := &store.User{
		Email:          req.Email,
		HashedPassword: hashed,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Phone:          req.Phone,
		Role:           store.RoleAdmin,
		IsActive:       true,
	}
	if err := s.storage.CreateClub(c.Request.Context(), club, admin); err != nil {
		abortStore(c, err)
		return
	}
	s.issueToken(c, admin)
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	user, err := s.storage.GetUserByEmail(c.Request.Context(), req.Email)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		abortStore(c, err)
		return
	}
	if user == nil || !middleware.CheckPassword(user.HashedPassword, req.Password) {
		abort(c, http.StatusUnauthorized, "Incorrect email or password")
		return
	}
	if !user.IsActive {
		abort(c, http.StatusForbidden, "User account is inactive")
		return
	}
	s.issueToken(c, user)
}

func (s *Server) handleMe(c *gin.Context) {
	user, err := s.storage.GetUser(c.Request.Context(), principal(c).UserID)
	if err != nil {
		abortStore(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":         user.ID,
		"email":      user.Email,
		"first_name": user.FirstName,
		"last_name":  user.LastName,
		"role":       user.Role,
		"club_id":    user.ClubID,
	})
}

func (s *Server) handleMyClub(c *gin.Context) {
	club, err := s.storage.GetClub(c.Request.Context(), principal(c).ClubID)
	if err != nil {
		abortStore(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":       club.ID,
		"name":     club.Name,
		"address":  club.Address,
		"phone":    club.Phone,
		"email":    club.Email,
		"logo_url": club.LogoURL,
	})
}
