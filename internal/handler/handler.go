package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"campustrack/internal/attendance"
	"campustrack/internal/auth"
	"campustrack/internal/cloudinary"
	"campustrack/internal/config"
	"campustrack/internal/student"
	"campustrack/internal/user"
)

// Handler carries the services behind the HTTP surface.
type Handler struct {
	cfg config.App

	attendance *attendance.Service
	records    *attendance.Repository

	students    *student.Service
	studentRepo *student.Repository

	users    *user.Service
	userRepo *user.Repository

	cloud *cloudinary.Client // nil when Cloudinary is not configured
}

// New wires a handler.
func New(cfg config.App, att *attendance.Service, records *attendance.Repository,
	students *student.Service, studentRepo *student.Repository,
	users *user.Service, userRepo *user.Repository, cloud *cloudinary.Client) *Handler {
	return &Handler{
		cfg:         cfg,
		attendance:  att,
		records:     records,
		students:    students,
		studentRepo: studentRepo,
		users:       users,
		userRepo:    userRepo,
		cloud:       cloud,
	}
}

// Register mounts all routes. Reconciliation, backfill, retention and
// account management are admin-gated; reads and intake only need a token.
func (h *Handler) Register(r gin.IRouter) {
	authed := auth.RequireAuth(h.cfg.JWTSigningKey, h.cfg.JWTIssuer)
	admin := auth.RequireAdmin()

	users := r.Group("/users")
	{
		users.POST("/login", h.UserLogin)
		users.POST("/register", h.UserRegister)
		users.GET("/profile", authed, h.UserProfile)
		users.PUT("/profile", authed, h.UserUpdateProfile)
		users.GET("", authed, admin, h.UserList)
		users.GET("/:id", authed, admin, h.UserGet)
		users.PUT("/:id", authed, admin, h.UserUpdate)
		users.DELETE("/:id", authed, admin, h.UserDelete)
	}

	students := r.Group("/students")
	{
		students.POST("/login", h.StudentLogin)
		students.POST("/send-otp", h.StudentSendOTP)
		students.POST("/verify-otp", h.StudentVerifyOTP)
		students.POST("/reset-password", h.StudentResetPassword)
		students.POST("", authed, admin, h.StudentCreate)
		students.GET("", authed, h.StudentList)
		students.GET("/dept/:deptId", authed, h.StudentsByDepartment)
		students.GET("/:id", authed, h.StudentGet)
		students.PUT("/:id", authed, admin, h.StudentUpdate)
		students.DELETE("/:id", authed, admin, h.StudentDelete)
	}

	att := r.Group("/attendance", authed)
	{
		att.POST("/mark", h.Mark)
		att.POST("/verify", h.Verify)
		att.GET("/date/:date", h.ByDate)
		att.GET("/unverified/:date", h.UnverifiedByDate)
		att.GET("/student/:studentId", h.ByStudent)
		att.GET("/department/:deptId", h.ByDepartment)
		att.GET("/percentage/:studentId", h.Percentage)
		att.GET("/today", h.Today)
		att.GET("/date-range", h.DateRange)
		att.PUT("/approve/:id", admin, h.Approve)
		att.PUT("/decline/:id", admin, h.Decline)
		att.PUT("/approve-all", admin, h.ApproveAll)
		att.POST("/generate/:date", admin, h.Generate)
		att.DELETE("/older-than/:days", admin, h.DeleteOlderThan)
		att.DELETE("/:id", admin, h.Delete)
	}
}

// respond helpers keep one envelope across every endpoint: either
// {"success":true,"data":...} with optional message, or
// {"success":false,"message":...}.

func ok(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func okMsg(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"success": true, "message": msg})
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"success": false, "message": msg})
}

func parseDate(s string) (time.Time, error) {
	return time.Parse(attendance.DateLayout, s)
}

// dateRangeQuery reads startDate/endDate query params, both required.
func dateRangeQuery(c *gin.Context) (start, end time.Time, ok bool) {
	var err error
	start, err = parseDate(c.Query("startDate"))
	if err != nil {
		fail(c, http.StatusBadRequest, "startDate must be YYYY-MM-DD")
		return start, end, false
	}
	end, err = parseDate(c.Query("endDate"))
	if err != nil {
		fail(c, http.StatusBadRequest, "endDate must be YYYY-MM-DD")
		return start, end, false
	}
	return start, end, true
}
