package handler

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"campustrack/internal/attendance"
	"campustrack/internal/faceclient"
)

type markRequest struct {
	StudentID        string `json:"studentId" binding:"required"`
	Timestamp        string `json:"timestamp"`
	CurrentFaceImage string `json:"currentFaceImage"`
}

// Mark runs intake for one student. With currentFaceImage set the face
// path is taken; without it the record is a manual mark.
func (h *Handler) Mark(c *gin.Context) {
	var req markRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	ts := time.Now()
	if req.Timestamp != "" {
		parsed, err := time.Parse(time.RFC3339, req.Timestamp)
		if err != nil {
			fail(c, http.StatusBadRequest, "timestamp must be RFC3339")
			return
		}
		ts = parsed
	}

	rec, err := h.attendance.Mark(c.Request.Context(), req.StudentID, req.CurrentFaceImage, ts)
	switch {
	case err == nil:
		ok(c, http.StatusOK, rec)
	case errors.Is(err, attendance.ErrAlreadyMarked):
		fail(c, http.StatusBadRequest, "attendance already marked for today")
	case errors.Is(err, attendance.ErrStudentNotFound):
		fail(c, http.StatusNotFound, "student not found")
	case errors.Is(err, attendance.ErrFaceMismatch):
		fail(c, http.StatusBadRequest, "face does not match")
	case errors.Is(err, attendance.ErrFaceNotDetected):
		fail(c, http.StatusBadRequest, "no face detected in image")
	default:
		log.Printf("mark attendance failed: %v", err)
		fail(c, http.StatusInternalServerError, "failed to mark attendance")
	}
}

type verifyRequest struct {
	StudentID        string `json:"studentId" binding:"required"`
	CurrentFaceImage string `json:"currentFaceImage" binding:"required"`
}

// Verify compares a probe against the student's reference image without
// writing a record.
func (h *Handler) Verify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.attendance.Verify(c.Request.Context(), req.StudentID, req.CurrentFaceImage)
	switch {
	case err == nil:
		ok(c, http.StatusOK, gin.H{"isMatch": result.Matched, "distance": result.Distance})
	case errors.Is(err, faceclient.ErrNoFaceDetected):
		ok(c, http.StatusOK, gin.H{"isMatch": false, "message": "no face detected in image"})
	case errors.Is(err, attendance.ErrStudentNotFound):
		fail(c, http.StatusNotFound, "student not found")
	default:
		log.Printf("face verify failed: %v", err)
		fail(c, http.StatusInternalServerError, "face verification failed")
	}
}

// ByDate lists all records of a day.
func (h *Handler) ByDate(c *gin.Context) {
	day, err := parseDate(c.Param("date"))
	if err != nil {
		fail(c, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	records, err := h.records.ListByDay(c.Request.Context(), day)
	if err != nil {
		log.Printf("list by day failed: %v", err)
		fail(c, http.StatusInternalServerError, "failed to fetch attendance")
		return
	}
	ok(c, http.StatusOK, records)
}

// UnverifiedByDate lists a day's records still awaiting review.
func (h *Handler) UnverifiedByDate(c *gin.Context) {
	day, err := parseDate(c.Param("date"))
	if err != nil {
		fail(c, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	records, err := h.records.ListUnverifiedByDay(c.Request.Context(), day)
	if err != nil {
		log.Printf("list unverified failed: %v", err)
		fail(c, http.StatusInternalServerError, "failed to fetch attendance")
		return
	}
	ok(c, http.StatusOK, records)
}

// ByStudent lists a student's records over startDate..endDate.
func (h *Handler) ByStudent(c *gin.Context) {
	start, end, valid := dateRangeQuery(c)
	if !valid {
		return
	}
	records, err := h.records.ListByStudent(c.Request.Context(), c.Param("studentId"), start, end)
	if err != nil {
		log.Printf("list by student failed: %v", err)
		fail(c, http.StatusInternalServerError, "failed to fetch attendance")
		return
	}
	ok(c, http.StatusOK, records)
}

// ByDepartment lists today's records for one department.
func (h *Handler) ByDepartment(c *gin.Context) {
	day := attendance.DayOf(time.Now())
	records, err := h.records.ListByDepartment(c.Request.Context(), c.Param("deptId"), day)
	if err != nil {
		log.Printf("list by department failed: %v", err)
		fail(c, http.StatusInternalServerError, "failed to fetch attendance")
		return
	}
	ok(c, http.StatusOK, records)
}

// Percentage reports a student's presence percentage over a range.
func (h *Handler) Percentage(c *gin.Context) {
	start, end, valid := dateRangeQuery(c)
	if !valid {
		return
	}
	pct, err := h.attendance.Percentage(c.Request.Context(), c.Param("studentId"), start, end)
	if err != nil {
		log.Printf("percentage failed: %v", err)
		fail(c, http.StatusInternalServerError, "failed to compute percentage")
		return
	}
	ok(c, http.StatusOK, gin.H{"percentage": pct})
}

// Today reports today's aggregate counts overall and per department.
func (h *Handler) Today(c *gin.Context) {
	day := attendance.DayOf(time.Now())
	counts, err := h.records.CountsForDay(c.Request.Context(), day)
	if err != nil {
		log.Printf("today counts failed: %v", err)
		fail(c, http.StatusInternalServerError, "failed to fetch counts")
		return
	}
	departments, err := h.records.DepartmentBreakdown(c.Request.Context(), day)
	if err != nil {
		log.Printf("department breakdown failed: %v", err)
		fail(c, http.StatusInternalServerError, "failed to fetch counts")
		return
	}
	ok(c, http.StatusOK, gin.H{"counts": counts, "departments": departments})
}

// DateRange lists records in a range, optionally filtered by department.
func (h *Handler) DateRange(c *gin.Context) {
	start, end, valid := dateRangeQuery(c)
	if !valid {
		return
	}
	records, err := h.records.ListRange(c.Request.Context(), start, end, c.Query("department"))
	if err != nil {
		log.Printf("date range failed: %v", err)
		fail(c, http.StatusInternalServerError, "failed to fetch attendance")
		return
	}
	ok(c, http.StatusOK, records)
}

type reviewRequest struct {
	VerifiedBy string `json:"verifiedBy" binding:"required"`
}

func (h *Handler) review(c *gin.Context, apply func(recordID, reviewer string) (attendance.Record, error)) {
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	rec, err := apply(c.Param("id"), req.VerifiedBy)
	switch {
	case err == nil:
		ok(c, http.StatusOK, rec)
	case errors.Is(err, attendance.ErrRecordNotFound):
		fail(c, http.StatusNotFound, "attendance record not found")
	case errors.Is(err, attendance.ErrReviewerNotFound):
		fail(c, http.StatusNotFound, "reviewer not found")
	default:
		log.Printf("review failed: %v", err)
		fail(c, http.StatusInternalServerError, "failed to update record")
	}
}

// Approve confirms the record's current proposal and stamps the reviewer.
func (h *Handler) Approve(c *gin.Context) {
	h.review(c, func(recordID, reviewer string) (attendance.Record, error) {
		return h.attendance.Approve(c.Request.Context(), recordID, reviewer)
	})
}

// Decline marks the record Absent and stamps the reviewer.
func (h *Handler) Decline(c *gin.Context) {
	h.review(c, func(recordID, reviewer string) (attendance.Record, error) {
		return h.attendance.Decline(c.Request.Context(), recordID, reviewer)
	})
}

// ApproveAll bulk-approves every unverified record.
func (h *Handler) ApproveAll(c *gin.Context) {
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	updated, err := h.attendance.ApproveAll(c.Request.Context(), req.VerifiedBy)
	switch {
	case err == nil:
		ok(c, http.StatusOK, gin.H{"updated": updated})
	case errors.Is(err, attendance.ErrReviewerNotFound):
		fail(c, http.StatusNotFound, "reviewer not found")
	default:
		log.Printf("approve all failed: %v", err)
		fail(c, http.StatusInternalServerError, "failed to approve records")
	}
}

// Generate backfills absent records for a day.
func (h *Handler) Generate(c *gin.Context) {
	day, err := parseDate(c.Param("date"))
	if err != nil {
		fail(c, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	created, err := h.attendance.Generate(c.Request.Context(), day)
	if err != nil {
		log.Printf("generate failed: %v", err)
		fail(c, http.StatusInternalServerError, "failed to generate attendance")
		return
	}
	ok(c, http.StatusOK, gin.H{"created": created})
}

// Delete removes one record by id.
func (h *Handler) Delete(c *gin.Context) {
	err := h.records.Delete(c.Request.Context(), c.Param("id"))
	switch {
	case err == nil:
		okMsg(c, http.StatusOK, "attendance record removed")
	case errors.Is(err, attendance.ErrRecordNotFound):
		fail(c, http.StatusNotFound, "attendance record not found")
	default:
		log.Printf("delete record failed: %v", err)
		fail(c, http.StatusInternalServerError, "failed to delete record")
	}
}

// DeleteOlderThan removes records created more than N days ago.
func (h *Handler) DeleteOlderThan(c *gin.Context) {
	days, err := strconv.Atoi(c.Param("days"))
	if err != nil || days < 1 {
		fail(c, http.StatusBadRequest, "days must be a positive integer")
		return
	}
	deleted, err := h.records.DeleteOlderThan(c.Request.Context(), days)
	if err != nil {
		log.Printf("retention delete failed: %v", err)
		fail(c, http.StatusInternalServerError, "failed to delete records")
		return
	}
	ok(c, http.StatusOK, gin.H{"deleted": deleted})
}
