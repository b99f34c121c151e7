package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sigillo-app/backend/internal/auth"
	"github.com/sigillo-app/backend/internal/submissions"
)

type submissionPayload struct {
	ID               string     `json:"id"`
	Status           string     `json:"status"`
	StatusLabel      string     `json:"status_label"`
	AppointmentAt    *time.Time `json:"appointment_at,omitempty"`
	Timezone         string     `json:"timezone,omitempty"`
	ClientID         *string    `json:"client_id,omitempty"`
	ClientFirstName  string     `json:"client_first_name"`
	ClientLastName   string     `json:"client_last_name"`
	ClientEmail      string     `json:"client_email"`
	ClientPhone      string     `json:"client_phone"`
	AssignedNotaryID *string    `json:"assigned_notary_id,omitempty"`
	NotaryCost       float64    `json:"notary_cost"`
	TotalPrice       float64    `json:"total_price"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func submissionToPayload(submission submissions.Submission) submissionPayload {
	return submissionPayload{
		ID:               submission.ID,
		Status:           submission.Status,
		StatusLabel:      submissions.Status(submission.Status).Label(),
		AppointmentAt:    submission.AppointmentAt,
		Timezone:         submission.Timezone,
		ClientID:         submission.ClientID,
		ClientFirstName:  submission.ClientFirstName,
		ClientLastName:   submission.ClientLastName,
		ClientEmail:      submission.ClientEmail,
		ClientPhone:      submission.ClientPhone,
		AssignedNotaryID: submission.AssignedNotaryID,
		NotaryCost:       submission.NotaryCost,
		TotalPrice:       submission.TotalPrice,
		CreatedAt:        submission.CreatedAt,
		UpdatedAt:        submission.UpdatedAt,
	}
}

func (h *httpHandler) handleListSubmissions(c *gin.Context) {
	filter := submissions.Filter{}
	if raw := c.Query("status"); raw != "" {
		status, err := submissions.ParseStatus(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_status"})
			return
		}
		filter.Status = status
	}
	// A notary only sees their own assignments regardless of query filters.
	if c.GetString(roleContextKey) == auth.RoleNotary {
		filter.NotaryID = c.GetString(userIDContextKey)
	} else if raw := c.Query("notary_id"); raw != "" {
		filter.NotaryID = raw
	}

	rows, err := h.submissions.List(c.Request.Context(), filter)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	payload := make([]submissionPayload, 0, len(rows))
	for _, row := range rows {
		payload = append(payload, submissionToPayload(row))
	}
	c.JSON(http.StatusOK, gin.H{"submissions": payload})
}

func (h *httpHandler) handleGetSubmission(c *gin.Context) {
	submission, ok := h.loadVisibleSubmission(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, submissionToPayload(submission))
}

// loadVisibleSubmission loads the path submission and enforces that a notary
// only reaches submissions assigned to them.
func (h *httpHandler) loadVisibleSubmission(c *gin.Context) (submissions.Submission, bool) {
	submission, err := h.submissions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondServiceError(c, err)
		return submissions.Submission{}, false
	}
	if c.GetString(roleContextKey) == auth.RoleNotary {
		notaryID := c.GetString(userIDContextKey)
		if submission.AssignedNotaryID == nil || *submission.AssignedNotaryID != notaryID {
			c.JSON(http.StatusForbidden, gin.H{
				"error": "forbidden",
				"hint":  "this submission is not assigned to you",
			})
			return submissions.Submission{}, false
		}
	}
	return submission, true
}

type updateStatusPayload struct {
	Status string `json:"status"`
}

func (h *httpHandler) handleUpdateStatus(c *gin.Context) {
	var request updateStatusPayload
	if err := c.ShouldBindJSON(&request); err != nil || request.Status == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	submission, err := h.submissions.UpdateStatus(c.Request.Context(), c.Param("id"), submissions.Status(request.Status))
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, submissionToPayload(submission))
}

type assignNotaryPayload struct {
	NotaryID string `json:"notary_id"`
}

func (h *httpHandler) handleAssignNotary(c *gin.Context) {
	var request assignNotaryPayload
	if err := c.ShouldBindJSON(&request); err != nil || request.NotaryID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	submission, err := h.submissions.AssignNotary(c.Request.Context(), c.Param("id"), request.NotaryID)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, submissionToPayload(submission))
}

type pricingPayload struct {
	NotaryCost float64 `json:"notary_cost"`
	TotalPrice float64 `json:"total_price"`
}

func (h *httpHandler) handleSetPricing(c *gin.Context) {
	var request pricingPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	submission, err := h.submissions.SetPricing(c.Request.Context(), c.Param("id"), request.NotaryCost, request.TotalPrice)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, submissionToPayload(submission))
}
