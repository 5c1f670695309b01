package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ajitpratap0/hybridopt/internal/coordinator"
	"github.com/ajitpratap0/hybridopt/internal/db"
	"github.com/ajitpratap0/hybridopt/internal/sink"
	"github.com/ajitpratap0/hybridopt/internal/strategy"
	"github.com/ajitpratap0/hybridopt/pkg/optimizer"
)

// MaxResultLimit caps the history page size
const MaxResultLimit = 500

// Coordinator is the read side of the run coordinator
type Coordinator interface {
	Status() coordinator.Status
	LastReport() *coordinator.RunReport
}

// Scheduler accepts manual triggers and pause requests
type Scheduler interface {
	Trigger() bool
	Pause()
	Resume()
	Paused() bool
}

// ResultStore reads persisted results
type ResultStore interface {
	Recent(ctx context.Context, algorithm string, limit int) ([]db.StoredResult, error)
}

// StrategyView exposes the live settings
type StrategyView interface {
	Document() strategy.Document
}

// Handler serves the optimizer routes
type Handler struct {
	coord    Coordinator
	sched    Scheduler
	store    ResultStore
	strategy StrategyView
	health   func(ctx context.Context) error
}

// NewHandler creates a handler; store, strategy and health may be nil
func NewHandler(coord Coordinator, sched Scheduler, store ResultStore, strat StrategyView, health func(ctx context.Context) error) *Handler {
	return &Handler{
		coord:    coord,
		sched:    sched,
		store:    store,
		strategy: strat,
		health:   health,
	}
}

// RegisterRoutes registers the optimizer routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	opt := router.Group("/optimizer")
	{
		opt.GET("/status", h.GetStatus)
		opt.GET("/results", h.GetResults)
		opt.POST("/trigger", h.Trigger)
		opt.POST("/pause", h.Pause)
		opt.POST("/resume", h.Resume)
		opt.GET("/strategy", h.GetStrategy)
	}
}

// StatusResponse is the body of GET /optimizer/status
type StatusResponse struct {
	coordinator.Status
	Paused bool `json:"paused"`
}

// ReportView is the JSON form of a run report
type ReportView struct {
	ID         uuid.UUID            `json:"id"`
	StartedAt  time.Time            `json:"started_at"`
	DurationMs int64                `json:"duration_ms"`
	Policy     string               `json:"merge_policy"`
	Outcome    string               `json:"outcome"`
	Bars       int                  `json:"bars"`
	Heuristic  bool                 `json:"heuristic"`
	Applied    []string             `json:"applied"`
	Errors     []string             `json:"errors,omitempty"`
	Results    []sink.ResultMessage `json:"results"`
}

// NewReportView converts a report; non-finite scores are dropped by the message form
func NewReportView(r *coordinator.RunReport) *ReportView {
	if r == nil {
		return nil
	}
	v := &ReportView{
		ID:         r.ID,
		StartedAt:  r.StartedAt,
		DurationMs: r.Duration.Milliseconds(),
		Policy:     string(r.Policy),
		Outcome:    r.Outcome.String(),
		Bars:       r.Bars,
		Heuristic:  r.Heuristic,
		Applied:    make([]string, 0, len(r.Applied)),
		Errors:     r.Messages,
		Results:    make([]sink.ResultMessage, 0, len(r.Results)),
	}
	for _, alg := range r.Applied {
		v.Applied = append(v.Applied, string(alg))
	}
	for _, res := range r.Results {
		if res != nil {
			v.Results = append(v.Results, sink.NewResultMessage(res))
		}
	}
	return v
}

// ResultsResponse is the body of GET /optimizer/results
type ResultsResponse struct {
	LastRun *ReportView       `json:"last_run"`
	History []db.StoredResult `json:"history,omitempty"`
}

// Health reports process readiness
func (h *Handler) Health(c *gin.Context) {
	if h.health != nil {
		if err := h.health(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// GetStatus returns the coordinator state
func (h *Handler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, StatusResponse{
		Status: h.coord.Status(),
		Paused: h.sched.Paused(),
	})
}

// GetResults returns the last run and, when a store is configured, stored history.
// Query parameters: algorithm (PSO, GA, MAYFLY) and limit.
func (h *Handler) GetResults(c *gin.Context) {
	resp := ResultsResponse{LastRun: NewReportView(h.coord.LastReport())}
	if h.store == nil {
		c.JSON(http.StatusOK, resp)
		return
	}

	limit := db.DefaultResultLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, MaxResultLimit)
	}

	algorithm := strings.ToUpper(c.Query("algorithm"))
	switch optimizer.Algorithm(algorithm) {
	case "", optimizer.AlgorithmPSO, optimizer.AlgorithmGA, optimizer.AlgorithmMayfly:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown algorithm " + algorithm})
		return
	}

	history, err := h.store.Recent(c.Request.Context(), algorithm, limit)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load results"})
		return
	}
	resp.History = history
	c.JSON(http.StatusOK, resp)
}

// errBusy is reported when a run is in flight or already requested
var errBusy = errors.New("optimization run already in progress or pending")

// Trigger requests an immediate run
func (h *Handler) Trigger(c *gin.Context) {
	if h.coord.Status().Running || !h.sched.Trigger() {
		c.JSON(http.StatusConflict, gin.H{"error": errBusy.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "triggered"})
}

// Pause stops scheduled runs
func (h *Handler) Pause(c *gin.Context) {
	h.sched.Pause()
	c.JSON(http.StatusOK, gin.H{"paused": true})
}

// Resume restarts scheduled runs
func (h *Handler) Resume(c *gin.Context) {
	h.sched.Resume()
	c.JSON(http.StatusOK, gin.H{"paused": false})
}

// GetStrategy returns the live settings
func (h *Handler) GetStrategy(c *gin.Context) {
	if h.strategy == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no live strategy configured"})
		return
	}
	c.JSON(http.StatusOK, h.strategy.Document())
}
