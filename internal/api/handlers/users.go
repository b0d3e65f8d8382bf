package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/orrn/printdesk/internal/api/middleware"
	"github.com/orrn/printdesk/internal/core"
	"github.com/orrn/printdesk/internal/model"
)

type RegisterRequest struct {
	Fullname string `json:"fullname" binding:"required"`
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Contact  string `json:"contact"`
	Password string `json:"password" binding:"required"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
	Admin bool        `json:"admin"`
}

type UpdateProfileRequest struct {
	Fullname string `json:"fullname"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Contact  string `json:"contact"`
	Password string `json:"password"`
}

type UserHandler struct {
	accounts *core.AccountService
	auth     *middleware.AuthMiddleware
	isAdmin  func(username string) bool
	logger   *slog.Logger
}

func NewUserHandler(accounts *core.AccountService, auth *middleware.AuthMiddleware, isAdmin func(string) bool, logger *slog.Logger) *UserHandler {
	if isAdmin == nil {
		isAdmin = func(string) bool { return false }
	}
	return &UserHandler{
		accounts: accounts,
		auth:     auth,
		isAdmin:  isAdmin,
		logger:   logger,
	}
}

func (h *UserHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	u, err := h.accounts.Register(c.Request.Context(), core.RegisterRequest{
		Fullname: req.Fullname,
		Username: req.Username,
		Email:    req.Email,
		Contact:  req.Contact,
		Password: req.Password,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, u)
}

func (h *UserHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	u, err := h.accounts.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	admin := h.isAdmin(u.Username)
	token, err := h.auth.IssueToken(u, admin)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.auth.SetAuthCookie(c, token)
	c.JSON(http.StatusOK, LoginResponse{Token: token, User: u, Admin: admin})
}

func (h *UserHandler) Logout(c *gin.Context) {
	h.auth.ClearAuthCookie(c)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Logged out"})
}

func (h *UserHandler) Me(c *gin.Context) {
	u, err := h.accounts.Profile(c.Request.Context(), currentUser(c).UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *UserHandler) UpdateMe(c *gin.Context) {
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	u, err := h.accounts.UpdateProfile(c.Request.Context(), currentUser(c).UserID, core.ProfileUpdate{
		Fullname: req.Fullname,
		Username: req.Username,
		Email:    req.Email,
		Contact:  req.Contact,
		Password: req.Password,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, u)
}
