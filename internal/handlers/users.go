package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"prepmate/internal/auth"
	"prepmate/internal/models"
	"prepmate/internal/store"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Users serves registration, login, and profile endpoints.
type Users struct {
	store  store.UserStore
	tokens *auth.Tokens
	logger *slog.Logger
}

// NewUsers builds the user handler set.
func NewUsers(s store.UserStore, tokens *auth.Tokens, logger *slog.Logger) *Users {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Users{store: s, tokens: tokens, logger: logger}
}

type credentialsResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Token string `json:"token"`
}

// Register handles POST /api/users.
func (h *Users) Register(c *gin.Context) {
	var body struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondMessage(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	if strings.TrimSpace(body.Name) == "" {
		respondMessage(c, http.StatusBadRequest, "Name is required")
		return
	}
	if !emailPattern.MatchString(body.Email) {
		respondMessage(c, http.StatusBadRequest, "Invalid email format")
		return
	}
	if len(body.Password) < 6 {
		respondMessage(c, http.StatusBadRequest, "Password must be at least 6 characters long")
		return
	}

	hash, err := auth.HashPassword(body.Password)
	if err != nil {
		h.logger.Error("hash password", "error", err)
		serverError(c)
		return
	}

	user := &models.User{
		ID:       uuid.NewString(),
		Name:     body.Name,
		Email:    strings.ToLower(body.Email),
		Password: hash,
	}
	if err := h.store.CreateUser(c.Request.Context(), user); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			respondMessage(c, http.StatusBadRequest, "User already exists")
			return
		}
		h.logger.Error("create user", "error", err)
		serverError(c)
		return
	}

	token, err := h.tokens.Issue(user.ID)
	if err != nil {
		h.logger.Error("issue token", "error", err)
		serverError(c)
		return
	}

	c.JSON(http.StatusCreated, credentialsResponse{
		ID:    user.ID,
		Name:  user.Name,
		Email: user.Email,
		Token: token,
	})
}

// Login handles POST /api/users/login.
func (h *Users) Login(c *gin.Context) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondMessage(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	if strings.TrimSpace(body.Email) == "" {
		respondMessage(c, http.StatusBadRequest, "Email is required")
		return
	}
	if !emailPattern.MatchString(body.Email) {
		respondMessage(c, http.StatusBadRequest, "Invalid email format")
		return
	}
	if body.Password == "" {
		respondMessage(c, http.StatusBadRequest, "Password is required")
		return
	}

	user, err := h.store.UserByEmail(c.Request.Context(), body.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondMessage(c, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		h.logger.Error("lookup user", "error", err)
		serverError(c)
		return
	}
	if !auth.CheckPassword(user.Password, body.Password) {
		respondMessage(c, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	token, err := h.tokens.Issue(user.ID)
	if err != nil {
		h.logger.Error("issue token", "error", err)
		serverError(c)
		return
	}

	c.JSON(http.StatusOK, credentialsResponse{
		ID:    user.ID,
		Name:  user.Name,
		Email: user.Email,
		Token: token,
	})
}

// Profile handles GET /api/users/profile.
func (h *Users) Profile(c *gin.Context) {
	userID, ok := authedUserID(c)
	if !ok {
		return
	}

	user, err := h.store.UserByID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondMessage(c, http.StatusNotFound, "User not found")
			return
		}
		h.logger.Error("load profile", "error", err)
		serverError(c)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":        user.ID,
		"name":      user.Name,
		"email":     user.Email,
		"createdAt": user.CreatedAt,
	})
}
