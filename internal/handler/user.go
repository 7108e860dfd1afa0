package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"campustrack/internal/auth"
	"campustrack/internal/user"
)

type userLoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// UserLogin authenticates a reviewer/admin and returns a token whose
// role reflects the admin flag.
func (h *Handler) UserLogin(c *gin.Context) {
	var req userLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	u, err := h.users.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, user.ErrInvalidCredentials) {
			fail(c, http.StatusUnauthorized, "invalid email or password")
			return
		}
		log.Printf("user login failed: %v", err)
		fail(c, http.StatusInternalServerError, "login failed")
		return
	}
	role := auth.RoleUser
	if u.IsAdmin {
		role = auth.RoleAdmin
	}
	token, err := auth.Issue(u.ID, role, h.cfg.JWTIssuer, h.cfg.JWTSigningKey, h.cfg.TokenTTL)
	if err != nil {
		log.Printf("token issue failed: %v", err)
		fail(c, http.StatusInternalServerError, "token issue failed")
		return
	}
	ok(c, http.StatusOK, gin.H{"user": u, "token": token.Value, "expiresAt": token.ExpiresAt.Unix()})
}

type userRegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// UserRegister creates a regular (non-admin) user account.
func (h *Handler) UserRegister(c *gin.Context) {
	var req userRegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	u, err := h.users.Register(c.Request.Context(), req.Name, req.Email, req.Password, false)
	if err != nil {
		if errors.Is(err, user.ErrExists) {
			fail(c, http.StatusBadRequest, "user already exists")
			return
		}
		log.Printf("register user failed: %v", err)
		fail(c, http.StatusInternalServerError, "failed to register user")
		return
	}
	ok(c, http.StatusCreated, u)
}

// UserProfile returns the authenticated user's own account.
func (h *Handler) UserProfile(c *gin.Context) {
	claims, _ := auth.FromContext(c)
	u, err := h.userRepo.GetByID(c.Request.Context(), claims.Subject)
	switch {
	case err == nil:
		ok(c, http.StatusOK, u)
	case errors.Is(err, user.ErrNotFound):
		fail(c, http.StatusNotFound, "user not found")
	default:
		log.Printf("get profile failed: %v", err)
		fail(c, http.StatusInternalServerError, "failed to fetch profile")
	}
}

type userUpdateRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	IsAdmin  *bool  `json:"isAdmin"`
}

func (h *Handler) updateUser(c *gin.Context, id string, allowAdminFlag bool) {
	var req userUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	u, err := h.userRepo.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			fail(c, http.StatusNotFound, "user not found")
			return
		}
		log.Printf("get user failed: %v", err)
		fail(c, http.StatusInternalServerError, "failed to fetch user")
		return
	}
	if req.Name != "" {
		u.Name = req.Name
	}
	if req.Email != "" {
		u.Email = req.Email
	}
	if allowAdminFlag && req.IsAdmin != nil {
		u.IsAdmin = *req.IsAdmin
	}
	// The UI sends a masked placeholder when the password is untouched.
	password := req.Password
	if password == "********" {
		password = ""
	}
	updated, err := h.users.UpdateProfile(c.Request.Context(), u, password)
	if err != nil {
		if errors.Is(err, user.ErrExists) {
			fail(c, http.StatusConflict, "email already in use")
			return
		}
		log.Printf("update user failed: %v", err)
		fail(c, http.StatusInternalServerError, "failed to update user")
		return
	}
	ok(c, http.StatusOK, updated)
}

// UserUpdateProfile lets the authenticated user change their own account.
func (h *Handler) UserUpdateProfile(c *gin.Context) {
	claims, _ := auth.FromContext(c)
	h.updateUser(c, claims.Subject, false)
}

// UserList returns all users.
func (h *Handler) UserList(c *gin.Context) {
	users, err := h.userRepo.List(c.Request.Context())
	if err != nil {
		log.Printf("list users failed: %v", err)
		fail(c, http.StatusInternalServerError, "failed to fetch users")
		return
	}
	ok(c, http.StatusOK, users)
}

// UserGet returns one user by id.
func (h *Handler) UserGet(c *gin.Context) {
	u, err := h.userRepo.GetByID(c.Request.Context(), c.Param("id"))
	switch {
	case err == nil:
		ok(c, http.StatusOK, gin.H{"id": u.ID, "name": u.Name})
	case errors.Is(err, user.ErrNotFound):
		fail(c, http.StatusNotFound, "user not found")
	default:
		log.Printf("get user failed: %v", err)
		fail(c, http.StatusInternalServerError, "failed to fetch user")
	}
}

// UserUpdate lets an admin change any user, including the admin flag.
func (h *Handler) UserUpdate(c *gin.Context) {
	h.updateUser(c, c.Param("id"), true)
}

// UserDelete removes a user.
func (h *Handler) UserDelete(c *gin.Context) {
	err := h.userRepo.Delete(c.Request.Context(), c.Param("id"))
	switch {
	case err == nil:
		okMsg(c, http.StatusOK, "user removed")
	case errors.Is(err, user.ErrNotFound):
		fail(c, http.StatusNotFound, "user not found")
	default:
		log.Printf("delete user failed: %v", err)
		fail(c, http.StatusInternalServerError, "failed to delete user")
	}
}
