package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/BaSui01/lookahead/precache"
	"github.com/BaSui01/lookahead/types"
)

// =============================================================================
// 🗺️ World Handler
// =============================================================================

// WorldService 可操作的世界模拟
type WorldService interface {
	Position() (x, y, heading float64)
	Targets() []precache.Target
	NearbyTargets() []precache.Target
	MoveTo(x, y float64)
	Face(heading float64)
	Turn(delta float64)
	Step(distance float64)
	AddTarget(t precache.Target) error
	RemoveTarget(id string) bool
}

// WorldHandler 世界模拟处理器，用于演示时手动驱动智能体
type WorldHandler struct {
	world  WorldService
	logger *zap.Logger
}

// WorldState 世界快照
type WorldState struct {
	X       float64           `json:"x"`
	Y       float64           `json:"y"`
	Heading float64           `json:"heading"`
	Targets []precache.Target `json:"targets"`
	Nearby  []precache.Target `json:"nearby"`
}

// MoveRequest 移动请求。Heading 为空时保持朝向
type MoveRequest struct {
	X       float64  `json:"x"`
	Y       float64  `json:"y"`
	Heading *float64 `json:"heading,omitempty"`
}

// StepRequest 先转向再前进
type StepRequest struct {
	Turn     float64 `json:"turn,omitempty"`
	Distance float64 `json:"distance"`
}

// NewWorldHandler 创建世界处理器
func NewWorldHandler(world WorldService, logger *zap.Logger) *WorldHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorldHandler{world: world, logger: logger.With(zap.String("handler", "world"))}
}

func (h *WorldHandler) state() WorldState {
	x, y, heading := h.world.Position()
	return WorldState{
		X:       x,
		Y:       y,
		Heading: heading,
		Targets: h.world.Targets(),
		Nearby:  h.world.NearbyTargets(),
	}
}

// HandleGet 返回世界快照
// @Summary 世界快照
// @Tags world
// @Produce json
// @Success 200 {object} Response{data=WorldState}
// @Router /api/v1/world [get]
func (h *WorldHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, h.state())
}

// HandleMove 传送智能体
// @Summary 移动智能体
// @Tags world
// @Accept json
// @Produce json
// @Param request body MoveRequest true "目标位置"
// @Success 200 {object} Response{data=WorldState}
// @Router /api/v1/world/move [post]
func (h *WorldHandler) HandleMove(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}
	var req MoveRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	h.world.MoveTo(req.X, req.Y)
	if req.Heading != nil {
		h.world.Face(*req.Heading)
	}
	WriteSuccess(w, h.state())
}

// HandleStep 沿朝向前进
// @Summary 前进
// @Tags world
// @Accept json
// @Produce json
// @Param request body StepRequest true "转向与距离"
// @Success 200 {object} Response{data=WorldState}
// @Router /api/v1/world/step [post]
func (h *WorldHandler) HandleStep(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}
	var req StepRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	if req.Turn != 0 {
		h.world.Turn(req.Turn)
	}
	h.world.Step(req.Distance)
	WriteSuccess(w, h.state())
}

// HandlePutTarget 添加或更新目标
// @Summary 添加目标
// @Tags world
// @Accept json
// @Produce json
// @Param request body precache.Target true "目标"
// @Success 200 {object} Response{data=WorldState}
// @Failure 400 {object} Response "参数错误"
// @Router /api/v1/world/targets [post]
func (h *WorldHandler) HandlePutTarget(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}
	var t precache.Target
	if err := DecodeJSONBody(w, r, &t, h.logger); err != nil {
		return
	}
	if err := h.world.AddTarget(t); err != nil {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, err.Error(), h.logger)
		return
	}
	WriteSuccess(w, h.state())
}

// HandleDeleteTarget 移除目标
// @Summary 移除目标
// @Tags world
// @Produce json
// @Param id path string true "目标 ID"
// @Success 200 {object} Response{data=WorldState}
// @Failure 404 {object} Response "目标不存在"
// @Router /api/v1/world/targets/{id} [delete]
func (h *WorldHandler) HandleDeleteTarget(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !h.world.RemoveTarget(id) {
		WriteErrorMessage(w, http.StatusNotFound, types.ErrNotFound, "target not found: "+id, h.logger)
		return
	}
	WriteSuccess(w, h.state())
}
