package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/novaclub/club-sync/middleware"
	"github.com/novaclub/club-sync/store"
)

type employeeCreate struct {
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name" binding:"required"`
	Email     string `json:"email" binding:"required,email"`
	Phone     string `json:"phone"`
	Role      string `json:"role" binding:"required"`
	Password  string `json:"password" binding:"required"`
}

type employeeUpdate struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Email     *string `json:"email" binding:"omitempty,email"`
	Phone     *string `json:"phone"`
	Role      *string `json:"role"`
}

type employee struct {
	ID        string     `json:"id"`
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	Email     string     `json:"email"`
	Phone     string     `json:"phone"`
	Role      store.Role `json:"role"`
	IsActive  bool       `json:"is_active"`
}

func toEmployee(u *store.User) employee {
	return employee{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		Phone:     u.Phone,
		Role:      u.Role,
		IsActive:  u.IsActive,
	}
}

func (s *Server) handleListEmployees(c *gin.Context) {
	users, err := s.storage.ListUsers(c.Request.Context(), principal(c).ClubID)
	if err != nil {
		abortStore(c, err)
		return
	}
	employees := make([]employee, len(users))
	for i := range users {
		employees[i] = toEmployee(&users[i])
	}
	c.JSON(http.StatusOK, employees)
}

func (s *Server) handleCreateEmployee(c *gin.Context) {
	var req employeeCreate
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	role, ok := store.ParseRole(strings.ToUpper(req.Role))
	if !ok {
		abort(c, http.StatusBadRequest, "Invalid role")
		return
	}
	hashed, err := middleware.HashPassword(req.Password)
	if err != nil {
		abortStore(c, err)
		return
	}
	user := &store.User{
		ClubID:         principal(c).ClubID,
		Email:          req.Email,
		HashedPassword: hashed,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Phone:          req.Phone,
		Role:           role,
		IsActive:       true,
	}
	if err := s.storage.CreateUser(c.Request.Context(), user); err != nil {
		abortStore(c, err)
		return
	}
	c.JSON(http.StatusOK, toEmployee(user))
}

// clubEmployee loads the employee named by the :id parameter, restricted to
// the caller's club.
func (s *Server) clubEmployee(c *gin.Context) (*store.User, bool) {
	user, err := s.storage.GetUser(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) || (err == nil && user.ClubID != principal(c).ClubID) {
		abort(c, http.StatusNotFound, "Employee not found")
		return nil, false
	}
	if err != nil {
		abortStore(c, err)
		return nil, false
	}
	return user, true
}

func (s *Server) handleUpdateEmployee(c *gin.Context) {
	var req employeeUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	user, ok := s.clubEmployee(c)
	if !ok {
		return
	}
	if req.FirstName != nil {
		user.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		user.LastName = *req.LastName
	}
	if req.Email != nil {
		user.Email = *req.Email
	}
	if req.Phone != nil {
		user.Phone = *req.Phone
	}
	if req.Role != nil {
		role, ok := store.ParseRole(strings.ToUpper(*req.Role))
		if !ok {
			abort(c, http.StatusBadRequest, "Invalid role")
			return
		}
		user.Role = role
	}
	if err := s.storage.UpdateUser(c.Request.Context(), user); err != nil {
		abortStore(c, err)
		return
	}
	c.JSON(http.StatusOK, toEmployee(user))
}

func (s *Server) handleDeleteEmployee(c *gin.Context) {
	user, ok := s.clubEmployee(c)
	if !ok {
		return
	}
	if user.Role == store.RoleAdmin {
		abort(c, http.StatusBadRequest, "Cannot delete admin users")
		return
	}
	if err := s.storage.DeleteUser(c.Request.Context(), user.ClubID, user.ID); err != nil {
		abortStore(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Employee deleted successfully"})
}
