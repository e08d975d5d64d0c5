package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/lookahead/internal/journal"
	"github.com/BaSui01/lookahead/precache"
	"github.com/BaSui01/lookahead/types"
)

// =============================================================================
// 🔮 Engine Handler
// =============================================================================

// EngineService 引擎在 HTTP 层暴露的能力
type EngineService interface {
	Stats() precache.Stats
	Pending() []precache.Request
	Cached(targetID, actionID, inputText string) bool
	Resolve(ctx context.Context, actionID, inputText, genContext, targetID string) (*precache.Outcome, error)
	LookAhead(ctx context.Context) precache.LookAheadResult
	Invalidate(reason string) int
}

// JournalReader 生成日志查询
type JournalReader interface {
	Recent(ctx context.Context, limit int) ([]journal.GenerationRecord, error)
	Summary(ctx context.Context) ([]journal.SourceSummary, error)
}

// EngineHandler 预测缓存引擎处理器
type EngineHandler struct {
	engine  EngineService
	journal JournalReader // 可为 nil
	logger  *zap.Logger
}

// ResolveRequest 结果解析请求
type ResolveRequest struct {
	ActionID  string `json:"action_id" binding:"required"`
	InputText string `json:"input_text"`
	Context   string `json:"context,omitempty"`
	TargetID  string `json:"target_id,omitempty"`
}

// ResolveResponse 结果解析响应
type ResolveResponse struct {
	Outcome  *precache.Outcome `json:"outcome"`
	Cached   bool              `json:"cached"`
	Duration string            `json:"duration"`
}

// InvalidateRequest 手动失效请求
type InvalidateRequest struct {
	Reason string `json:"reason,omitempty"`
}

// InvalidateResponse 手动失效响应
type InvalidateResponse struct {
	Cleared int `json:"cleared"`
}

// PendingRequest 队列中的请求
type PendingRequest struct {
	ID        string    `json:"id"`
	TargetID  string    `json:"target_id"`
	ActionID  string    `json:"action_id"`
	InputText string    `json:"input_text"`
	Priority  string    `json:"priority"`
	Distance  float64   `json:"distance"`
	CreatedAt time.Time `json:"created_at"`
}

// JournalResponse 生成日志响应
type JournalResponse struct {
	Recent  []journal.GenerationRecord `json:"recent"`
	Summary []journal.SourceSummary    `json:"summary"`
}

// NewEngineHandler 创建引擎处理器，journal 可为 nil
func NewEngineHandler(engine EngineService, journal JournalReader, logger *zap.Logger) *EngineHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EngineHandler{
		engine:  engine,
		journal: journal,
		logger:  logger.With(zap.String("handler", "engine")),
	}
}

// =============================================================================
// HTTP Handlers
// =============================================================================

// HandleStats 返回引擎统计
// @Summary 引擎统计
// @Tags precache
// @Produce json
// @Success 200 {object} Response{data=precache.Stats}
// @Router /api/v1/stats [get]
func (h *EngineHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, h.engine.Stats())
}

// HandleQueue 按出队顺序返回待生成请求
// @Summary 待生成队列
// @Tags precache
// @Produce json
// @Success 200 {object} Response{data=[]PendingRequest}
// @Router /api/v1/queue [get]
func (h *EngineHandler) HandleQueue(w http.ResponseWriter, r *http.Request) {
	pending := h.engine.Pending()
	out := make([]PendingRequest, 0, len(pending))
	for _, req := range pending {
		out = append(out, PendingRequest{
			ID:        req.ID,
			TargetID:  req.TargetID,
			ActionID:  req.ActionID,
			InputText: req.InputText,
			Priority:  req.Priority.String(),
			Distance:  req.Distance,
			CreatedAt: req.CreatedAt,
		})
	}
	WriteSuccess(w, out)
}

// HandleResolve 解析一次动作结果，缓存优先
// @Summary 解析动作结果
// @Tags precache
// @Accept json
// @Produce json
// @Param request body ResolveRequest true "解析请求"
// @Success 200 {object} Response{data=ResolveResponse}
// @Failure 400 {object} Response "参数错误"
// @Failure 502 {object} Response "生成失败"
// @Router /api/v1/resolve [post]
func (h *EngineHandler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}

	var req ResolveRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if req.ActionID == "" {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "action_id is required", h.logger)
		return
	}

	cached := req.TargetID != "" && h.engine.Cached(req.TargetID, req.ActionID, req.InputText)

	start := time.Now()
	out, err := h.engine.Resolve(r.Context(), req.ActionID, req.InputText, req.Context, req.TargetID)
	if err != nil {
		WriteError(w, AsAPIError(err, types.ErrGenerationFailed, "generation failed"), h.logger)
		return
	}

	WriteSuccess(w, ResolveResponse{
		Outcome:  out,
		Cached:   cached,
		Duration: time.Since(start).String(),
	})
}

// HandleLookAhead 立即执行一次前瞻
// @Summary 执行前瞻
// @Tags precache
// @Produce json
// @Success 200 {object} Response{data=precache.LookAheadResult}
// @Router /api/v1/lookahead [post]
func (h *EngineHandler) HandleLookAhead(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, h.engine.LookAhead(r.Context()))
}

// HandleInvalidate 手动清空缓存与队列
// @Summary 手动失效
// @Tags precache
// @Accept json
// @Produce json
// @Param request body InvalidateRequest false "失效原因"
// @Success 200 {object} Response{data=InvalidateResponse}
// @Router /api/v1/invalidate [post]
func (h *EngineHandler) HandleInvalidate(w http.ResponseWriter, r *http.Request) {
	req := InvalidateRequest{Reason: "manual"}
	if r.ContentLength > 0 {
		if !ValidateContentType(w, r, h.logger) {
			return
		}
		if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
			return
		}
		if req.Reason == "" {
			req.Reason = "manual"
		}
	}

	cleared := h.engine.Invalidate(req.Reason)
	h.logger.Info("manual invalidation", zap.String("reason", req.Reason), zap.Int("cleared", cleared))
	WriteSuccess(w, InvalidateResponse{Cleared: cleared})
}

// HandleJournal 返回最近的生成记录与按来源汇总
// @Summary 生成日志
// @Tags precache
// @Produce json
// @Param limit query int false "返回条数（默认 50，最大 500）"
// @Success 200 {object} Response{data=JournalResponse}
// @Failure 404 {object} Response "日志未启用"
// @Router /api/v1/journal [get]
func (h *EngineHandler) HandleJournal(w http.ResponseWriter, r *http.Request) {
	if h.journal == nil {
		WriteErrorMessage(w, http.StatusNotFound, types.ErrNotFound, "journal is not enabled", h.logger)
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 500 {
			WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "limit must be between 1 and 500", h.logger)
			return
		}
		limit = n
	}

	recent, err := h.journal.Recent(r.Context(), limit)
	if err != nil {
		WriteError(w, AsAPIError(err, types.ErrInternalError, "journal query failed"), h.logger)
		return
	}
	summary, err := h.journal.Summary(r.Context())
	if err != nil {
		WriteError(w, AsAPIError(err, types.ErrInternalError, "journal query failed"), h.logger)
		return
	}

	WriteSuccess(w, JournalResponse{Recent: recent, Summary: summary})
}
