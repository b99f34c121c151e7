package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sigillo-app/backend/internal/finance"
)

const dayFormat = "2006-01-02"

// handleKPIs recomputes the financial indicators for a calendar month
// (?month=2026-04) or an arbitrary range (?from=...&to=..., day precision).
func (h *httpHandler) handleKPIs(c *gin.Context) {
	var period finance.Period

	if month := c.Query("month"); month != "" {
		parsed, err := time.Parse("2006-01", month)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_month"})
			return
		}
		period = finance.MonthPeriod(parsed.Year(), parsed.Month())
	} else {
		from, err := time.Parse(dayFormat, c.Query("from"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_from"})
			return
		}
		to, err := time.Parse(dayFormat, c.Query("to"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_to"})
			return
		}
		period = finance.RangePeriod(from, to)
	}

	kpis, err := h.finance.KPIs(c.Request.Context(), period)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, kpis)
}

type payoutPayload struct {
	ID           string    `json:"id"`
	NotaryID     string    `json:"notary_id"`
	SubmissionID *string   `json:"submission_id,omitempty"`
	Amount       float64   `json:"amount"`
	Date         time.Time `json:"date"`
	Description  string    `json:"description"`
	Status       string    `json:"status"`
	StatusLabel  string    `json:"status_label"`
}

func payoutToPayload(payout finance.Payout) payoutPayload {
	return payoutPayload{
		ID:           payout.ID,
		NotaryID:     payout.NotaryID,
		SubmissionID: payout.SubmissionID,
		Amount:       payout.Amount,
		Date:         payout.Date,
		Description:  payout.Description,
		Status:       string(payout.NormalizedStatus()),
		StatusLabel:  finance.PayoutStatusLabel(payout.Status),
	}
}

func (h *httpHandler) handleListPayouts(c *gin.Context) {
	payouts, err := h.finance.ListPayouts(c.Request.Context(), c.Query("notary_id"))
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	payload := make([]payoutPayload, 0, len(payouts))
	for _, payout := range payouts {
		payload = append(payload, payoutToPayload(payout))
	}
	c.JSON(http.StatusOK, gin.H{"payouts": payload})
}

type createPayoutPayload struct {
	NotaryID     string  `json:"notary_id"`
	SubmissionID *string `json:"submission_id,omitempty"`
	Amount       float64 `json:"amount"`
	Date         string  `json:"date,omitempty"`
	Description  string  `json:"description,omitempty"`
}

func (h *httpHandler) handleCreatePayout(c *gin.Context) {
	var request createPayoutPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	payoutRequest := finance.PayoutRequest{
		NotaryID:     request.NotaryID,
		SubmissionID: request.SubmissionID,
		Amount:       request.Amount,
		Description:  request.Description,
	}
	if request.Date != "" {
		date, err := time.Parse(dayFormat, request.Date)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_date"})
			return
		}
		payoutRequest.Date = date
	}
	payout, err := h.finance.CreatePayout(c.Request.Context(), payoutRequest)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, payoutToPayload(payout))
}

type advancePayoutPayload struct {
	Status string `json:"status"`
}

func (h *httpHandler) handleAdvancePayout(c *gin.Context) {
	var request advancePayoutPayload
	if err := c.ShouldBindJSON(&request); err != nil || request.Status == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	payout, err := h.finance.AdvancePayoutStatus(c.Request.Context(), c.Param("id"), finance.PayoutStatus(request.Status))
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, payoutToPayload(payout))
}

func (h *httpHandler) handleDeletePayout(c *gin.Context) {
	if err := h.finance.DeletePayout(c.Request.Context(), c.Param("id")); err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleListCosts(c *gin.Context) {
	webservice, ads, other, err := h.finance.ListCosts(c.Request.Context())
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"webservice": webservice,
		"ads":        ads,
		"other":      other,
	})
}

type webserviceCostPayload struct {
	Name       string  `json:"name"`
	Amount     float64 `json:"amount"`
	Date       string  `json:"date,omitempty"`
	Recurring  bool    `json:"recurring"`
	BillingDay int     `json:"billing_day"`
	Active     bool    `json:"active"`
}

func (p webserviceCostPayload) toModel() (finance.WebserviceCost, bool) {
	cost := finance.WebserviceCost{
		Name:       p.Name,
		Amount:     p.Amount,
		Recurring:  p.Recurring,
		BillingDay: p.BillingDay,
		Active:     p.Active,
	}
	if p.Date != "" {
		date, err := time.Parse(dayFormat, p.Date)
		if err != nil {
			return finance.WebserviceCost{}, false
		}
		cost.Date = date
	}
	return cost, true
}

func (h *httpHandler) handleCreateWebserviceCost(c *gin.Context) {
	var request webserviceCostPayload
	if err := c.ShouldBindJSON(&request); err != nil || request.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	cost, ok := request.toModel()
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_date"})
		return
	}
	created, err := h.finance.CreateWebserviceCost(c.Request.Context(), cost)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *httpHandler) handleUpdateWebserviceCost(c *gin.Context) {
	var request webserviceCostPayload
	if err := c.ShouldBindJSON(&request); err != nil || request.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	cost, ok := request.toModel()
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_date"})
		return
	}
	cost.ID = c.Param("id")
	updated, err := h.finance.UpdateWebserviceCost(c.Request.Context(), cost)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *httpHandler) handleDeleteWebserviceCost(c *gin.Context) {
	if err := h.finance.DeleteWebserviceCost(c.Request.Context(), c.Param("id")); err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type adCostPayload struct {
	Campaign string  `json:"campaign,omitempty"`
	Amount   float64 `json:"amount"`
	Date     string  `json:"date,omitempty"`
}

func (h *httpHandler) handleCreateAdCost(c *gin.Context) {
	var request adCostPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	cost := finance.AdCost{Campaign: request.Campaign, Amount: request.Amount}
	if request.Date != "" {
		date, err := time.Parse(dayFormat, request.Date)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_date"})
			return
		}
		cost.Date = date
	}
	created, err := h.finance.CreateAdCost(c.Request.Context(), cost)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *httpHandler) handleDeleteAdCost(c *gin.Context) {
	if err := h.finance.DeleteAdCost(c.Request.Context(), c.Param("id")); err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type otherCostPayload struct {
	Description string  `json:"description,omitempty"`
	Amount      float64 `json:"amount"`
	Date        string  `json:"date,omitempty"`
}

func (h *httpHandler) handleCreateOtherCost(c *gin.Context) {
	var request otherCostPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	cost := finance.OtherCost{Description: request.Description, Amount: request.Amount}
	if request.Date != "" {
		date, err := time.Parse(dayFormat, request.Date)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_date"})
			return
		}
		cost.Date = date
	}
	created, err := h.finance.CreateOtherCost(c.Request.Context(), cost)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *httpHandler) handleDeleteOtherCost(c *gin.Context) {
	if err := h.finance.DeleteOtherCost(c.Request.Context(), c.Param("id")); err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
