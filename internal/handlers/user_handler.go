package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"natours/internal/pagination"
	"natours/internal/services"
)

// UserHandler handles profile and admin user requests
type UserHandler struct {
	userService services.UserServicer
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(userService services.UserServicer) *UserHandler {
	return &UserHandler{userService: userService}
}

// UpdateMeRequest represents the profile update payload. Password fields are
// accepted only so they can be rejected explicitly.
type UpdateMeRequest struct {
	Name            *string `json:"name" binding:"omitempty,max=100"`
	Email           *string `json:"email" binding:"omitempty,max=255"`
	Password        *string `json:"password"`
	PasswordConfirm *string `json:"passwordConfirm"`
}

// GetMe returns the current user's profile
// @Summary     Get my profile
// @Tags        users
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} UserEnvelope "User profile"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /users/me [get]
func (h *UserHandler) GetMe(c *gin.Context) {
	user, err := currentUser(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	me, err := h.userService.GetMe(requestContext(c), user.ID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, UserEnvelope{Status: "success", Data: UserData{User: toUserResponse(me)}})
}

// UpdateMe updates the current user's name or email
// @Summary     Update my profile
// @Tags        users
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body UpdateMeRequest true "Profile fields"
// @Success     200 {object} UserEnvelope "Updated profile"
// @Failure     400 {object} ErrorResponse "Invalid input or password update attempted"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     409 {object} ErrorResponse "Email already registered"
// @Router      /users/updateMe [patch]
func (h *UserHandler) UpdateMe(c *gin.Context) {
	user, err := currentUser(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateMeRequest
	if err := bindJSON(c, &req); err != nil {
		respondWithError(c, err)
		return
	}

	updated, err := h.userService.UpdateMe(requestContext(c), user.ID, services.UpdateMeInput{
		Name:        req.Name,
		Email:       req.Email,
		HasPassword: req.Password != nil || req.PasswordConfirm != nil,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, UserEnvelope{Status: "success", Data: UserData{User: toUserResponse(updated)}})
}

// DeleteMe deactivates the current user
// @Summary     Delete my account
// @Description Deactivate the current user. The account is kept but can no longer log in.
// @Tags        users
// @Security    BearerAuth
// @Success     204 "Account deactivated"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /users/deleteMe [delete]
func (h *UserHandler) DeleteMe(c *gin.Context) {
	user, err := currentUser(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.userService.DeleteMe(requestContext(c), user.ID); err != nil {
		respondWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ListUsers returns a page of users
// @Summary     List users
// @Tags        users
// @Produce     json
// @Security    BearerAuth
// @Param       page  query int false "Page number" minimum(1)
// @Param       limit query int false "Page size"   minimum(1) maximum(100)
// @Success     200 {object} UserListResponse "Users"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     403 {object} ErrorResponse "Admins only"
// @Router      /users [get]
func (h *UserHandler) ListUsers(c *gin.Context) {
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, bindQueryError())
		return
	}

	res, err := h.userService.ListUsers(requestContext(c), page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	data := make([]UserResponse, 0, len(res.Data))
	for i := range res.Data {
		data = append(data, toUserResponse(&res.Data[i]))
	}

	c.JSON(http.StatusOK, UserListResponse{
		Status:     "success",
		Results:    len(data),
		Data:       data,
		Page:       res.Page,
		Limit:      res.Limit,
		TotalItems: res.TotalItems,
		TotalPages: res.TotalPages,
	})
}

// GetUser returns a single user
// @Summary     Get user
// @Tags        users
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "User ID"
// @Success     200 {object} UserEnvelope "User"
// @Failure     400 {object} ErrorResponse "Invalid id"
// @Failure     403 {object} ErrorResponse "Admins only"
// @Failure     404 {object} ErrorResponse "Not found"
// @Router      /users/{id} [get]
func (h *UserHandler) GetUser(c *gin.Context) {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	user, err := h.userService.GetUser(requestContext(c), id)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, UserEnvelope{Status: "success", Data: UserData{User: toUserResponse(user)}})
}
