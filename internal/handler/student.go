package handler

import (
	"errors"
	"io"
	"log"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"campustrack/internal/attendance"
	"campustrack/internal/auth"
	"campustrack/internal/student"
)

type studentLoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// StudentLogin authenticates a student and returns a token.
func (h *Handler) StudentLogin(c *gin.Context) {
	var req studentLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	st, err := h.students.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, student.ErrInvalidCredentials) {
			fail(c, http.StatusUnauthorized, "invalid email or password")
			return
		}
		log.Printf("student login failed: %v", err)
		fail(c, http.StatusInternalServerError, "login failed")
		return
	}
	token, err := auth.Issue(st.ID, auth.RoleStudent, h.cfg.JWTIssuer, h.cfg.JWTSigningKey, h.cfg.TokenTTL)
	if err != nil {
		log.Printf("token issue failed: %v", err)
		fail(c, http.StatusInternalServerError, "token issue failed")
		return
	}
	ok(c, http.StatusOK, gin.H{"student": st, "token": token.Value, "expiresAt": token.ExpiresAt.Unix()})
}

type studentCreateRequest struct {
	Name          string `form:"name" binding:"required"`
	RegisterNo    string `form:"registerNo" binding:"required"`
	Email         string `form:"email" binding:"required,email"`
	Password      string `form:"password" binding:"required"`
	DOB           string `form:"dob"`
	Address       string `form:"address"`
	City          string `form:"city"`
	Contact       string `form:"contact"`
	FatherContact string `form:"fatherContact"`
	Department    string `form:"department" binding:"required"`
	Year          string `form:"year"`
	Status        string `form:"status"`
}

// StudentCreate registers a student from a multipart form. The reference
// image goes to Cloudinary first; intake compares probes against it later.
func (h *Handler) StudentCreate(c *gin.Context) {
	var req studentCreateRequest
	if err := c.ShouldBind(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	file, header, err := c.Request.FormFile("image")
	if err != nil {
		fail(c, http.StatusBadRequest, "image file is required")
		return
	}
	defer file.Close()
	imageBytes, err := io.ReadAll(file)
	if err != nil {
		fail(c, http.StatusInternalServerError, "failed to read image")
		return
	}

	var imageURL string
	if h.cloud != nil {
		result, err := h.cloud.UploadBytes(imageBytes, header.Filename)
		if err != nil {
			log.Printf("cloudinary upload failed: %v", err)
			fail(c, http.StatusInternalServerError, "image upload failed")
			return
		}
		imageURL = result.SecureURL
	}

	st, err := h.students.Create(c.Request.Context(), student.Student{
		Name:          req.Name,
		RegisterNo:    req.RegisterNo,
		Email:         req.Email,
		DOB:           req.DOB,
		Address:       req.Address,
		City:          req.City,
		Contact:       req.Contact,
		FatherContact: req.FatherContact,
		ImageURL:      imageURL,
		Department:    req.Department,
		Year:          req.Year,
		Status:        req.Status,
	}, req.Password)
	if err != nil {
		if errors.Is(err, student.ErrExists) {
			fail(c, http.StatusConflict, "student already exists")
			return
		}
		log.Printf("create student failed: %v", err)
		fail(c, http.StatusInternalServerError, "failed to create student")
		return
	}
	ok(c, http.StatusCreated, st)
}

// StudentList returns a page of students with an optional name keyword.
func (h *Handler) StudentList(c *gin.Context) {
	page := 1
	if v := c.Query("page"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			page = parsed
		}
	}
	const pageSize = 15
	students, total, err := h.studentRepo.List(c.Request.Context(), c.Query("keyword"), page, pageSize)
	if err != nil {
		log.Printf("list students failed: %v", err)
		fail(c, http.StatusInternalServerError, "failed to fetch students")
		return
	}
	ok(c, http.StatusOK, gin.H{
		"students": students,
		"page":     page,
		"pages":    int(math.Ceil(float64(total) / float64(pageSize))),
	})
}

// StudentGet returns one student.
func (h *Handler) StudentGet(c *gin.Context) {
	st, err := h.studentRepo.GetByID(c.Request.Context(), c.Param("id"))
	switch {
	case err == nil:
		ok(c, http.StatusOK, st)
	case errors.Is(err, student.ErrNotFound):
		fail(c, http.StatusNotFound, "student not found")
	default:
		log.Printf("get student failed: %v", err)
		fail(c, http.StatusInternalServerError, "failed to fetch student")
	}
}

// StudentsByDepartment returns a department's students together with
// today's attendance records for that department.
func (h *Handler) StudentsByDepartment(c *gin.Context) {
	dept := c.Param("deptId")
	students, err := h.studentRepo.ListByDepartment(c.Request.Context(), dept)
	if err != nil {
		log.Printf("list by department failed: %v", err)
		fail(c, http.StatusInternalServerError, "failed to fetch students")
		return
	}
	day := attendance.DayOf(time.Now())
	records, err := h.records.ListByDepartment(c.Request.Context(), dept, day)
	if err != nil {
		log.Printf("department records failed: %v", err)
		fail(c, http.StatusInternalServerError, "failed to fetch attendance")
		return
	}
	ok(c, http.StatusOK, gin.H{"students": students, "attendance": records})
}

type studentUpdateRequest struct {
	Name          string `json:"name"`
	RegisterNo    string `json:"registerNo"`
	Address       string `json:"address"`
	City          string `json:"city"`
	Contact       string `json:"contact"`
	FatherContact string `json:"fatherContact"`
	Image         string `json:"image"`
	Department    string `json:"department"`
	Year          string `json:"year"`
	Status        string `json:"status"`
}

// StudentUpdate overwrites profile fields, keeping current values for
// anything the request leaves empty.
func (h *Handler) StudentUpdate(c *gin.Context) {
	var req studentUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	st, err := h.studentRepo.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, student.ErrNotFound) {
			fail(c, http.StatusNotFound, "student not found")
			return
		}
		log.Printf("get student failed: %v", err)
		fail(c, http.StatusInternalServerError, "failed to fetch student")
		return
	}

	apply := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	apply(&st.Name, req.Name)
	apply(&st.RegisterNo, req.RegisterNo)
	apply(&st.Address, req.Address)
	apply(&st.City, req.City)
	apply(&st.Contact, req.Contact)
	apply(&st.FatherContact, req.FatherContact)
	apply(&st.ImageURL, req.Image)
	apply(&st.Department, req.Department)
	apply(&st.Year, req.Year)
	apply(&st.Status, req.Status)

	updated, err := h.studentRepo.Update(c.Request.Context(), st)
	if err != nil {
		if errors.Is(err, student.ErrExists) {
			fail(c, http.StatusConflict, "register number already in use")
			return
		}
		log.Printf("update student failed: %v", err)
		fail(c, http.StatusInternalServerError, "failed to update student")
		return
	}
	ok(c, http.StatusOK, updated)
}

// StudentDelete removes a student and, via the foreign key, their records.
func (h *Handler) StudentDelete(c *gin.Context) {
	err := h.studentRepo.Delete(c.Request.Context(), c.Param("id"))
	switch {
	case err == nil:
		okMsg(c, http.StatusOK, "student removed")
	case errors.Is(err, student.ErrNotFound):
		fail(c, http.StatusNotFound, "student not found")
	default:
		log.Printf("delete student failed: %v", err)
		fail(c, http.StatusInternalServerError, "failed to delete student")
	}
}

type otpRequest struct {
	RegisterNumber string `json:"registerNumber" binding:"required"`
}

// StudentSendOTP mails a fresh reset code to the student.
func (h *Handler) StudentSendOTP(c *gin.Context) {
	var req otpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	err := h.students.SendResetOTP(c.Request.Context(), req.RegisterNumber)
	switch {
	case err == nil:
		okMsg(c, http.StatusOK, "OTP sent successfully")
	case errors.Is(err, student.ErrNotFound):
		fail(c, http.StatusNotFound, "student not found")
	default:
		log.Printf("send otp failed: %v", err)
		fail(c, http.StatusInternalServerError, "error sending OTP")
	}
}

type verifyOTPRequest struct {
	RegisterNumber string `json:"registerNumber" binding:"required"`
	OTP            string `json:"otp" binding:"required"`
}

// StudentVerifyOTP checks a submitted reset code.
func (h *Handler) StudentVerifyOTP(c *gin.Context) {
	var req verifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	err := h.students.VerifyResetOTP(c.Request.Context(), req.RegisterNumber, req.OTP)
	switch {
	case err == nil:
		okMsg(c, http.StatusOK, "OTP verified successfully")
	case errors.Is(err, student.ErrNotFound):
		fail(c, http.StatusNotFound, "student not found")
	case errors.Is(err, student.ErrInvalidOTP):
		fail(c, http.StatusBadRequest, "invalid OTP")
	default:
		log.Printf("verify otp failed: %v", err)
		fail(c, http.StatusInternalServerError, "error verifying OTP")
	}
}

type resetPasswordRequest struct {
	RegisterNumber string `json:"registerNumber" binding:"required"`
	Password       string `json:"password" binding:"required"`
}

// StudentResetPassword stores the new password and consumes the OTP.
func (h *Handler) StudentResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	err := h.students.ResetPassword(c.Request.Context(), req.RegisterNumber, req.Password)
	switch {
	case err == nil:
		okMsg(c, http.StatusOK, "password reset successfully")
	case errors.Is(err, student.ErrNotFound):
		fail(c, http.StatusNotFound, "student not found")
	default:
		log.Printf("reset password failed: %v", err)
		fail(c, http.StatusInternalServerError, "error resetting password")
	}
}
