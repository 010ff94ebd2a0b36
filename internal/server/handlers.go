package server

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/shell/internal/domain/toggle"
	"github.com/GriffinCanCode/AgentOS/shell/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/shell/internal/infrastructure/perf"
	"github.com/GriffinCanCode/AgentOS/shell/internal/providers/storage"
	"github.com/GriffinCanCode/AgentOS/shell/internal/shared/types"
	"github.com/GriffinCanCode/AgentOS/shell/internal/shared/utils"
	"github.com/GriffinCanCode/AgentOS/shell/internal/shell"
)

// Storage keys owned by the API
const (
	RemoteToggleKey  = "mfe-remote-toggle"
	PanelKey         = "mfe-perf-panel"
	PanelPositionKey = "mfe-perf-panel-pos"
)

const announceTimeout = 2 * time.Second

// Handlers contains all HTTP handlers
type Handlers struct {
	tab     *shell.Tab
	service *storage.Tab
	metrics *monitoring.Metrics
	logger  *zap.Logger
}

// NewHandlers creates a new handler set
func NewHandlers(tab *shell.Tab, service *storage.Tab, metrics *monitoring.Metrics, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		tab:     tab,
		service: service,
		metrics: metrics,
		logger:  logger,
	}
}

// page returns the started current generation, answering 503 otherwise
func (h *Handlers) page(c *gin.Context) (*shell.Page, bool) {
	p := h.tab.Page()
	if p != nil {
		select {
		case <-p.Ready():
			return p, true
		default:
		}
	}
	c.JSON(http.StatusServiceUnavailable, gin.H{"error": "shell is starting"})
	return nil, false
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	sc := h.tab.Context()
	resp := gin.H{
		"status":     "healthy",
		"tab":        sc.TabID(),
		"env":        sc.Env(),
		"generation": h.tab.Generation(),
		"apps":       sc.Registry().Len(),
		"metrics":    h.metrics.GetSnapshot(),
	}
	if p := h.tab.Page(); p != nil {
		resp["layout"] = p.Layout.Stats()
	}
	c.JSON(http.StatusOK, resp)
}

// State returns the published toggle and availability state and the
// layout engine's application table
func (h *Handlers) State(c *gin.Context) {
	p, ok := h.page(c)
	if !ok {
		return
	}
	sc := h.tab.Context()
	c.JSON(http.StatusOK, gin.H{
		"tab":     sc.TabID(),
		"env":     sc.Env(),
		"visible": sc.Visibility().Visible(),
		"page":    p.Snapshot(),
	})
}

// GetToggle serves the stored remote toggle state in canonical form so
// that an unchanged state always yields identical bytes
func (h *Handlers) GetToggle(c *gin.Context) {
	state := toggle.Empty()
	if raw, ok := h.service.Lookup(c.Request.Context(), RemoteToggleKey); ok {
		state = toggle.Decode([]byte(raw))
	}
	body, err := toggle.Encode(state)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

// SaveToggle replaces the stored remote toggle state
func (h *Handlers) SaveToggle(c *gin.Context) {
	timer := monitoring.NewTimer(h.metrics, "toggle-service", "save")

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, int64(utils.MaxTogglePayloadSize)+1))
	if err != nil {
		timer.Stop("error")
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return
	}
	if err := utils.ValidateSize(body, utils.MaxTogglePayloadSize); err != nil {
		timer.Stop("rejected")
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
		return
	}
	var obj map[string]interface{}
	if err := sonic.Unmarshal(body, &obj); err != nil {
		timer.Stop("rejected")
		c.JSON(http.StatusBadRequest, gin.H{"error": "toggle payload must be a JSON object"})
		return
	}

	state := toggle.Decode(body)
	if err := validateNames(state.Disabled); err != nil {
		timer.Stop("rejected")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	encoded, err := toggle.Encode(state)
	if err == nil {
		err = h.service.Set(c.Request.Context(), RemoteToggleKey, string(encoded))
	}
	if err != nil {
		timer.Stop("error")
		h.logger.Error("Failed to store toggle state", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store toggle state"})
		return
	}

	timer.Stop("ok")
	h.logger.Info("Remote toggle state saved", zap.Strings("disabled", state.Disabled))
	c.Data(http.StatusOK, "application/json; charset=utf-8", encoded)
}

// LocalToggle replaces this device's override and tells other tabs
func (h *Handlers) LocalToggle(c *gin.Context) {
	var req types.ToggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := validateNames(req.Disabled); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !validModes(req.DisabledMode) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid disabled mode"})
		return
	}

	p, ok := h.page(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	state := p.Reconciler.Apply(ctx, types.ToggleState{
		Disabled:     types.SortedUnique(req.Disabled),
		DisabledMode: req.DisabledMode,
	})

	announceCtx, cancel := context.WithTimeout(ctx, announceTimeout)
	defer cancel()
	if err := p.Sync.AnnounceToggle(announceCtx, state); err != nil {
		h.logger.Warn("Failed to announce toggle change", zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{"toggle": state})
}

// LocalMode sets one application's rendering mode on this device
func (h *Handlers) LocalMode(c *gin.Context) {
	var req types.ModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := utils.ValidateAppName(req.App); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !req.Mode.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "mode must be hide or placeholder"})
		return
	}

	p, ok := h.page(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	state := p.Reconciler.SetMode(ctx, req.App, req.Mode)

	announceCtx, cancel := context.WithTimeout(ctx, announceTimeout)
	defer cancel()
	if err := p.Sync.AnnounceMode(announceCtx, req.App, req.Mode); err != nil {
		h.logger.Warn("Failed to announce mode change", zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{"toggle": state})
}

// Perf lists performance entries, optionally filtered by type and name
// prefix, plus per-measure statistics
func (h *Handlers) Perf(c *gin.Context) {
	kind := perf.Kind(c.Query("type"))
	if kind != perf.KindAny && kind != perf.KindMark && kind != perf.KindMeasure {
		c.JSON(http.StatusBadRequest, gin.H{"error": "type must be mark or measure"})
		return
	}
	p, ok := h.page(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"entries": p.Recorder.Entries(kind, c.Query("prefix")),
		"summary": p.Recorder.Summary(),
	})
}

// GetPanel returns the persisted perf panel state
func (h *Handlers) GetPanel(c *gin.Context) {
	ctx := c.Request.Context()
	local := h.tab.Context().Local()

	var state types.PanelState
	if raw, ok := local.Lookup(ctx, PanelKey); ok {
		state.Visible, _ = strconv.ParseBool(raw)
	}
	if raw, ok := local.Lookup(ctx, PanelPositionKey); ok {
		var pos types.PanelPosition
		if err := sonic.UnmarshalString(raw, &pos); err == nil {
			state.Position = &pos
		}
	}
	c.JSON(http.StatusOK, state)
}

// SavePanel persists the perf panel state
func (h *Handlers) SavePanel(c *gin.Context) {
	var state types.PanelState
	if err := c.ShouldBindJSON(&state); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	local := h.tab.Context().Local()
	local.Store(ctx, PanelKey, strconv.FormatBool(state.Visible))
	if state.Position != nil {
		if pos, err := sonic.MarshalString(state.Position); err == nil {
			local.Store(ctx, PanelPositionKey, pos)
		}
	} else if err := local.Remove(ctx, PanelPositionKey); err != nil {
		h.logger.Debug("Failed to clear panel position", zap.Error(err))
	}

	c.JSON(http.StatusOK, state)
}

// SetVisibility flips the tab's visibility
func (h *Handlers) SetVisibility(c *gin.Context) {
	var req types.VisibilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	changed := h.tab.Context().Visibility().Set(req.Visible)
	c.JSON(http.StatusOK, gin.H{
		"visible": req.Visible,
		"changed": changed,
	})
}

func validateNames(names []string) error {
	for _, n := range names {
		if err := utils.ValidateAppName(n); err != nil {
			return err
		}
	}
	return nil
}

func validModes(m types.DisabledMode) bool {
	if m.Default != "" && !m.Default.Valid() {
		return false
	}
	for _, mode := range m.Apps {
		if !mode.Valid() {
			return false
		}
	}
	return true
}
