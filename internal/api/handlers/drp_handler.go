// backend-go/internal/api/handlers/drp_handler.go
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/andresuchdata/autodrp/backend-go/internal/domain"
	"github.com/andresuchdata/autodrp/backend-go/internal/drp"
	"github.com/andresuchdata/autodrp/backend-go/internal/pipeline"
	"github.com/andresuchdata/autodrp/backend-go/internal/repository"
	"github.com/andresuchdata/autodrp/backend-go/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const maxBatchSize = 500

type DRPHandler struct {
	planner *service.Planner
	jobs    *pipeline.Worker
}

// NewDRPHandler wires the planning endpoints. jobs may be nil, in which case
// the job endpoints answer 503.
func NewDRPHandler(planner *service.Planner, jobs *pipeline.Worker) *DRPHandler {
	return &DRPHandler{planner: planner, jobs: jobs}
}

// allocationPayload is the JSON body of the allocation endpoints
type allocationPayload struct {
	ProductID            string   `json:"product_id" binding:"required"`
	SourceBranchID       string   `json:"source_branch_id"`
	DestinationBranchIDs []string `json:"destination_branch_ids"`
	WindowDays           int      `json:"window_days"`
	LeadTimeDays         int      `json:"lead_time_days"`
	SafetyDays           int      `json:"safety_days"`
	SaleMultiple         int64    `json:"sale_multiple"`
	Mode                 string   `json:"mode"`
	AsOf                 string   `json:"as_of"`
	SourceQuantity       *int64   `json:"source_quantity"`
}

func (p allocationPayload) toRequest() (domain.AllocationRequest, error) {
	asOf, err := parseDate(p.AsOf)
	if err != nil {
		return domain.AllocationRequest{}, err
	}
	return domain.AllocationRequest{
		ProductID:            p.ProductID,
		SourceBranchID:       p.SourceBranchID,
		DestinationBranchIDs: p.DestinationBranchIDs,
		WindowDays:           p.WindowDays,
		Policy:               domain.Policy{LeadTimeDays: p.LeadTimeDays, SafetyDays: p.SafetyDays},
		SaleMultiple:         p.SaleMultiple,
		Mode:                 domain.AllocationMode(p.Mode),
		AsOf:                 asOf,
		SourceQuantity:       p.SourceQuantity,
	}, nil
}

// PlanAllocation handles POST /drp/allocations
func (h *DRPHandler) PlanAllocation(c *gin.Context) {
	var payload allocationPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	req, err := payload.toRequest()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.planner.Plan(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, "failed to plan allocation")
		return
	}

	c.JSON(http.StatusOK, result)
}

// PlanReceipt handles POST /drp/receipts
func (h *DRPHandler) PlanReceipt(c *gin.Context) {
	var payload allocationPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	req, err := payload.toRequest()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.planner.PlanReceipt(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, "failed to plan receipt")
		return
	}

	c.JSON(http.StatusOK, result)
}

// PlanBatch handles POST /drp/allocations/batch
func (h *DRPHandler) PlanBatch(c *gin.Context) {
	var body struct {
		Requests []allocationPayload `json:"requests" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if len(body.Requests) == 0 || len(body.Requests) > maxBatchSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("requests must hold between 1 and %d items", maxBatchSize)})
		return
	}

	reqs := make([]domain.AllocationRequest, 0, len(body.Requests))
	for i, p := range body.Requests {
		req, err := p.toRequest()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("requests[%d]: %s", i, err)})
			return
		}
		reqs = append(reqs, req)
	}

	items, err := h.planner.PlanBatch(c.Request.Context(), reqs)
	if err != nil {
		respondError(c, err, "failed to plan batch")
		return
	}

	failed := 0
	for _, it := range items {
		if it.Err() != nil {
			failed++
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"items":  items,
		"total":  len(items),
		"failed": failed,
	})
}

// GetProfiles handles GET /drp/profiles?product_id=&branch_ids=&window_days=&as_of=
func (h *DRPHandler) GetProfiles(c *gin.Context) {
	productID := strings.TrimSpace(c.Query("product_id"))
	if productID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "product_id is required"})
		return
	}

	windowDays := 0
	if raw := strings.TrimSpace(c.Query("window_days")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "window_days must be an integer"})
			return
		}
		windowDays = v
	}

	asOf, err := parseDate(c.Query("as_of"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	profiles, err := h.planner.Profiles(c.Request.Context(), productID, parseList(c.Query("branch_ids")), windowDays, asOf)
	if err != nil {
		respondError(c, err, "failed to compute profiles")
		return
	}

	c.JSON(http.StatusOK, gin.H{"profiles": profiles})
}

// StartMinimumStockJob handles POST /drp/jobs/minimum-stock
func (h *DRPHandler) StartMinimumStockJob(c *gin.Context) {
	if h.jobs == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "job runner is not configured"})
		return
	}

	run, err := h.jobs.Start(c.Request.Context())
	if err != nil {
		respondError(c, err, "failed to start job")
		return
	}

	c.JSON(http.StatusAccepted, run)
}

// GetMinimumStockJob handles GET /drp/jobs/minimum-stock/:id
func (h *DRPHandler) GetMinimumStockJob(c *gin.Context) {
	if h.jobs == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "job runner is not configured"})
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
		return
	}

	run, err := h.jobs.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "failed to fetch job run")
		return
	}

	c.JSON(http.StatusOK, run)
}

// InvalidateCache handles DELETE /drp/cache and DELETE /drp/cache/:product_id
func (h *DRPHandler) InvalidateCache(c *gin.Context) {
	productID := strings.TrimSpace(c.Param("product_id"))
	if err := h.planner.InvalidateCache(c.Request.Context(), productID); err != nil {
		respondError(c, err, "failed to invalidate plan cache")
		return
	}

	scope := productID
	if scope == "" {
		scope = "all"
	}
	log.Info().Str("scope", scope).Msg("plan cache invalidated")
	c.JSON(http.StatusOK, gin.H{"invalidated": scope})
}

// respondError maps domain errors to HTTP status codes
func respondError(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, drp.ErrInvalidInput), errors.Is(err, drp.ErrUnsupportedWindow):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg(message)
		c.JSON(http.StatusInternalServerError, gin.H{"error": message})
	}
}

func parseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("as_of must be YYYY-MM-DD or RFC3339, got %q", value)
	}
	return t, nil
}

func parseList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
