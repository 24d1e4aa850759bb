package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"crm-backend/internal/core/auth"
	"crm-backend/internal/store"
	mdw "crm-backend/internal/transport/http/middleware"
	resp "crm-backend/internal/transport/http/response"
	"crm-backend/pkg/utils"
)

type Auth struct {
	base
	jwt *auth.JWTer
}

func NewAuth(s *store.Store, j *auth.JWTer, l *zap.Logger) *Auth {
	return &Auth{base: base{store: s, log: l}, jwt: j}
}

// stripPassword copies the record minus the password hash. User payloads are
// never serialized with it.
func stripPassword(rec store.Record) store.Record {
	out := make(store.Record, len(rec))
	for k, v := range rec {
		if k == "password" {
			continue
		}
		out[k] = v
	}
	return out
}

func (h *Auth) Login(c *gin.Context) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		resp.Err(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if in.Email == "" || in.Password == "" {
		resp.Err(c, http.StatusBadRequest, "Email and password are required")
		return
	}

	user, err := h.store.FindUserByEmail(c.Request.Context(), in.Email)
	if err != nil {
		h.fail(c, "login lookup", err)
		return
	}
	// Unknown email and wrong password are indistinguishable on the wire.
	if user == nil || !utils.CheckPassword(in.Password, user.Str("password")) {
		resp.Err(c, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	if blocked, _ := user["isBlocked"].(bool); blocked {
		resp.Err(c, http.StatusForbidden, "Your account has been blocked. Contact admin.")
		return
	}

	token, err := h.jwt.Issue(auth.Identity{
		ID:    user.Str("id"),
		Email: user.Str("email"),
		Name:  user.Str("name"),
		Role:  user.Str("role"),
	})
	if err != nil {
		h.fail(c, "issue token", err)
		return
	}
	resp.OK(c, http.StatusOK, gin.H{"token": token, "user": stripPassword(user)})
}

func (h *Auth) Me(c *gin.Context) {
	user, err := h.store.Get(c.Request.Context(), mdw.Identity(c).ID)
	if err != nil {
		h.fail(c, "get me", err)
		return
	}
	if user == nil {
		resp.Err(c, http.StatusNotFound, "User not found")
		return
	}
	resp.OK(c, http.StatusOK, gin.H{"user": stripPassword(user)})
}

// ListUsers shows all users to admins; everyone else sees only non-blocked
// accounts. Passwords are stripped in every case.
func (h *Auth) ListUsers(c *gin.Context) {
	users, err := h.store.ScanByType(c.Request.Context(), "user")
	if err != nil {
		h.fail(c, "list users", err)
		return
	}
	admin := mdw.Identity(c).IsAdmin()
	safe := make([]store.Record, 0, len(users))
	for _, u := range users {
		if blocked, _ := u["isBlocked"].(bool); blocked && !admin {
			continue
		}
		safe = append(safe, stripPassword(u))
	}
	resp.OK(c, http.StatusOK, gin.H{"users": safe})
}

func (h *Auth) CreateUser(c *gin.Context) {
	var in struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		resp.Err(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if in.Name == "" || in.Email == "" || in.Password == "" {
		resp.Err(c, http.StatusBadRequest, "Name, email, and password are required")
		return
	}
	if len(in.Password) < 6 {
		resp.Err(c, http.StatusBadRequest, "Password must be at least 6 characters")
		return
	}

	// Existence check, not a uniqueness constraint: two concurrent creates of
	// the same email can both pass. Accepted.
	existing, err := h.store.FindUserByEmail(c.Request.Context(), in.Email)
	if err != nil {
		h.fail(c, "create user lookup", err)
		return
	}
	if existing != nil {
		resp.Err(c, http.StatusBadRequest, "Email already exists")
		return
	}

	user := store.Record{
		"id":        utils.NewID("user"),
		"type":      "user",
		"email":     strings.ToLower(in.Email),
		"password":  utils.HashPassword(in.Password),
		"name":      in.Name,
		"role":      "user",
		"isBlocked": false,
		"createdAt": utils.NowISO(),
		"createdBy": mdw.Identity(c).ID,
	}
	if err := h.store.Put(c.Request.Context(), user); err != nil {
		h.fail(c, "create user", err)
		return
	}
	resp.OK(c, http.StatusCreated, gin.H{"user": stripPassword(user)})
}

func (h *Auth) BlockUser(c *gin.Context) {
	user, ok := h.fetchUser(c)
	if !ok {
		return
	}
	if user.Str("role") == "admin" {
		resp.Err(c, http.StatusBadRequest, "Cannot block admin")
		return
	}
	if _, err := h.store.PartialUpdate(c.Request.Context(), user.Str("id"), map[string]any{"isBlocked": true}); err != nil {
		h.fail(c, "block user", err)
		return
	}
	resp.OK(c, http.StatusOK, gin.H{"message": "User blocked"})
}

func (h *Auth) UnblockUser(c *gin.Context) {
	user, ok := h.fetchUser(c)
	if !ok {
		return
	}
	if _, err := h.store.PartialUpdate(c.Request.Context(), user.Str("id"), map[string]any{"isBlocked": false}); err != nil {
		h.fail(c, "unblock user", err)
		return
	}
	resp.OK(c, http.StatusOK, gin.H{"message": "User unblocked"})
}

func (h *Auth) DeleteUser(c *gin.Context) {
	user, ok := h.fetchUser(c)
	if !ok {
		return
	}
	if user.Str("role") == "admin" {
		resp.Err(c, http.StatusBadRequest, "Cannot delete admin")
		return
	}
	if err := h.store.Delete(c.Request.Context(), user.Str("id")); err != nil {
		h.fail(c, "delete user", err)
		return
	}
	resp.OK(c, http.StatusOK, gin.H{"message": "User deleted"})
}

func (h *Auth) fetchUser(c *gin.Context) (store.Record, bool) {
	return h.fetch(c, c.Param("id"), "user", "User not found")
}
