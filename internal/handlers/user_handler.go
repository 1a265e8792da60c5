package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "expenseflow/internal/errors"
	"expenseflow/internal/models"
	"expenseflow/internal/pagination"
	"expenseflow/internal/services"
)

// UserHandler handles user administration
type UserHandler struct {
	userService  services.UserServicer
	auditService services.AuditServicer
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(userService services.UserServicer, auditService services.AuditServicer) *UserHandler {
	return &UserHandler{userService: userService, auditService: auditService}
}

// CreateUserRequest represents the payload for provisioning a user
type CreateUserRequest struct {
	Username string `json:"username" binding:"required,min=3,max=100"`
	Password string `json:"password" binding:"required,min=8,max=128"`
	Role     string `json:"role" binding:"required,user_role"`
}

// UpdateUserRequest represents the payload for changing a user
type UpdateUserRequest struct {
	Password string  `json:"password" binding:"omitempty,min=8,max=128"`
	Role     *string `json:"role" binding:"omitempty,user_role"`
	Enabled  *bool   `json:"enabled"`
}

// ListUsers handles listing users
// @Summary     List users
// @Tags        admin
// @Produce     json
// @Security    BearerAuth
// @Param       page      query int false "Zero-based page"
// @Param       page_size query int false "Page size (max 100)"
// @Success     200 {object} pagination.PageResponse[UserResponse] "Page of users"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     403 {object} ErrorResponse "Forbidden"
// @Router      /admin/users [get]
func (h *UserHandler) ListUsers(c *gin.Context) {
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.userService.ListUsers(page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	users := make([]UserResponse, 0, len(result.Data))
	for i := range result.Data {
		users = append(users, toUserResponse(&result.Data[i]))
	}
	c.JSON(http.StatusOK, pagination.NewPageResponse(users, result.Page, result.PageSize, result.TotalItems))
}

// GetUser handles the retrieval of a single user
// @Summary     Get user by ID
// @Tags        admin
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "User ID"
// @Success     200 {object} UserResponse "User"
// @Failure     404 {object} ErrorResponse "User not found"
// @Router      /admin/users/{id} [get]
func (h *UserHandler) GetUser(c *gin.Context) {
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	user, err := h.userService.GetUserByID(id)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": toUserResponse(user)})
}

// CreateUser handles provisioning a user
// @Summary     Create a user
// @Tags        admin
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateUserRequest true "User details"
// @Success     201 {object} UserResponse "User created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     409 {object} ErrorResponse "Duplicate username"
// @Router      /admin/users [post]
func (h *UserHandler) CreateUser(c *gin.Context) {
	adminID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	user, err := h.userService.CreateUser(req.Username, req.Password, models.Role(req.Role))
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(adminID, services.AuditActionCreate, "user", user.ID, c.ClientIP(), map[string]interface{}{
		"username": user.Username,
		"role":     user.Role,
	})

	c.JSON(http.StatusCreated, gin.H{"user": toUserResponse(user)})
}

// UpdateUser handles changing a user's password, role or enabled flag
// @Summary     Update user
// @Tags        admin
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "User ID"
// @Param       request body UpdateUserRequest true "Fields to change"
// @Success     200 {object} UserResponse "Updated user"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "User not found"
// @Router      /admin/users/{id} [put]
func (h *UserHandler) UpdateUser(c *gin.Context) {
	adminID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	var role *models.Role
	if req.Role != nil {
		r := models.Role(*req.Role)
		role = &r
	}
	if id == adminID && ((req.Enabled != nil && !*req.Enabled) || (role != nil && *role != models.RoleAdmin)) {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "Administrators cannot disable or demote themselves"))
		return
	}

	user, err := h.userService.UpdateUser(id, req.Password, role, req.Enabled)
	if err != nil {
		respondWithError(c, err)
		return
	}

	changes := map[string]interface{}{"password_changed": req.Password != ""}
	if role != nil {
		changes["role"] = *role
	}
	if req.Enabled != nil {
		changes["enabled"] = *req.Enabled
	}
	h.auditService.Log(adminID, services.AuditActionUpdate, "user", user.ID, c.ClientIP(), changes)

	c.JSON(http.StatusOK, gin.H{"user": toUserResponse(user)})
}

// DeleteUser handles removing a user
// @Summary     Delete user
// @Description Delete a user. Users with expense history are disabled instead.
// @Tags        admin
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "User ID"
// @Success     200 {object} MessageResponse "User deleted"
// @Failure     400 {object} ErrorResponse "Cannot delete yourself"
// @Failure     404 {object} ErrorResponse "User not found"
// @Router      /admin/users/{id} [delete]
func (h *UserHandler) DeleteUser(c *gin.Context) {
	adminID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}
	if id == adminID {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "Administrators cannot delete themselves"))
		return
	}

	if err := h.userService.DeleteUser(id); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(adminID, services.AuditActionDelete, "user", id, c.ClientIP(), nil)

	c.JSON(http.StatusOK, MessageResponse{Message: "User deleted successfully"})
}
