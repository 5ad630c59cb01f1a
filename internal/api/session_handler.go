package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/theloomik/Bunker/internal/errors"
	"github.com/theloomik/Bunker/internal/game"
	"go.uber.org/zap"
)

// SessionHandler 游戏会话处理器
type SessionHandler struct {
	manager *game.SessionManager
	logger  *zap.Logger
}

// NewSessionHandler 创建会话处理器
func NewSessionHandler(manager *game.SessionManager, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		manager: manager,
		logger:  logger,
	}
}

// CreateSessionRequest 创建会话请求
type CreateSessionRequest struct {
	ChannelID string `json:"channel_id" binding:"required"`
	HostID    string `json:"host_id" binding:"required"`
	HostName  string `json:"host_name"`
	Capacity  int    `json:"capacity"` // 0 表示开局时按人数折算
}

// JoinRequest 加入请求
type JoinRequest struct {
	PlayerID string `json:"player_id" binding:"required"`
	Name     string `json:"name"`
}

// LeaveRequest 离开请求
type LeaveRequest struct {
	PlayerID string `json:"player_id" binding:"required"`
}

// HostActionRequest 主持人操作请求
type HostActionRequest struct {
	CallerID string `json:"caller_id" binding:"required"`
}

// RevealRequest 公开槽位请求
type RevealRequest struct {
	CallerID string `json:"caller_id" binding:"required"`
	PlayerID string `json:"player_id" binding:"required"`
	Slot     string `json:"slot" binding:"required"`
}

// BallotRequest 投票请求
type BallotRequest struct {
	VoterID  string `json:"voter_id" binding:"required"`
	TargetID string `json:"target_id" binding:"required"`
}

// SetNameRequest 设置昵称请求
type SetNameRequest struct {
	Name string `json:"name" binding:"required,max=64"`
}

// respond 统一成功响应
func respond(c *gin.Context, data interface{}) {
	c.JSON(200, gin.H{
		"success":   true,
		"data":      data,
		"timestamp": time.Now().Unix(),
	})
}

// respondError 统一错误响应（按错误码映射HTTP状态）
func (h *SessionHandler) respondError(c *gin.Context, err error) {
	appErr, ok := err.(*errors.AppError)
	if !ok {
		appErr = errors.Wrap(err, errors.ErrInternal)
	}

	h.logger.Warn("请求失败",
		zap.String("path", c.FullPath()),
		zap.Int("code", int(appErr.Code)),
		zap.Error(appErr))

	c.JSON(appErr.HTTPStatus(), errors.ErrorResponse{
		Success:   false,
		Error:     appErr,
		Timestamp: time.Now().Unix(),
	})
}

func (h *SessionHandler) bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		h.respondError(c, errors.Wrap(err, errors.ErrInvalidParam))
		return false
	}
	return true
}

// Create 创建会话
func (h *SessionHandler) Create(c *gin.Context) {
	var req CreateSessionRequest
	if !h.bindJSON(c, &req) {
		return
	}

	snap, err := h.manager.CreateSession(c.Request.Context(), req.ChannelID, req.HostID, req.HostName, req.Capacity)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, snap)
}

// Snapshot 按观察者裁剪的会话快照
func (h *SessionHandler) Snapshot(c *gin.Context) {
	key := c.Param("key")
	viewerID := c.Query("viewer_id")

	snap, err := h.manager.GetSnapshot(key, viewerID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, snap)
}

// Join 加入大厅
func (h *SessionHandler) Join(c *gin.Context) {
	var req JoinRequest
	if !h.bindJSON(c, &req) {
		return
	}

	snap, err := h.manager.JoinSession(c.Request.Context(), c.Param("key"), req.PlayerID, req.Name)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, snap)
}

// Leave 离开大厅
func (h *SessionHandler) Leave(c *gin.Context) {
	var req LeaveRequest
	if !h.bindJSON(c, &req) {
		return
	}

	snap, err := h.manager.LeaveSession(c.Request.Context(), c.Param("key"), req.PlayerID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, snap)
}

// Start 主持人开始游戏
func (h *SessionHandler) Start(c *gin.Context) {
	var req HostActionRequest
	if !h.bindJSON(c, &req) {
		return
	}

	snap, err := h.manager.StartGame(c.Request.Context(), c.Param("key"), req.CallerID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, snap)
}

// Reveal 公开角色卡槽位
func (h *SessionHandler) Reveal(c *gin.Context) {
	var req RevealRequest
	if !h.bindJSON(c, &req) {
		return
	}

	snap, err := h.manager.RevealSlot(c.Request.Context(), c.Param("key"),
		req.CallerID, req.PlayerID, game.CardSlot(req.Slot))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, snap)
}

// StartVote 主持人开启投票轮
func (h *SessionHandler) StartVote(c *gin.Context) {
	var req HostActionRequest
	if !h.bindJSON(c, &req) {
		return
	}

	snap, err := h.manager.StartVote(c.Request.Context(), c.Param("key"), req.CallerID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, snap)
}

// CastBallot 投票
func (h *SessionHandler) CastBallot(c *gin.Context) {
	var req BallotRequest
	if !h.bindJSON(c, &req) {
		return
	}

	ack, err := h.manager.CastBallot(c.Request.Context(), c.Param("key"), req.VoterID, req.TargetID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, ack)
}

// CloseVote 主持人结算投票轮
func (h *SessionHandler) CloseVote(c *gin.Context) {
	var req HostActionRequest
	if !h.bindJSON(c, &req) {
		return
	}

	outcome, err := h.manager.CloseVote(c.Request.Context(), c.Param("key"), req.CallerID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, outcome)
}

// LastOutcome 最近一轮投票的结算结果
func (h *SessionHandler) LastOutcome(c *gin.Context) {
	outcome, err := h.manager.LastOutcome(c.Param("key"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, outcome)
}

// AcknowledgeEnd 主持人确认终局
func (h *SessionHandler) AcknowledgeEnd(c *gin.Context) {
	var req HostActionRequest
	if !h.bindJSON(c, &req) {
		return
	}

	if err := h.manager.AcknowledgeEnd(c.Request.Context(), c.Param("key"), req.CallerID); err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, gin.H{"ended": true})
}

// Cancel 主持人中止游戏
func (h *SessionHandler) Cancel(c *gin.Context) {
	var req HostActionRequest
	if !h.bindJSON(c, &req) {
		return
	}

	if err := h.manager.CancelSession(c.Request.Context(), c.Param("key"), req.CallerID); err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, gin.H{"cancelled": true})
}

// PlayerStats 查询玩家战绩
func (h *SessionHandler) PlayerStats(c *gin.Context) {
	stats, err := h.manager.GetPlayerStats(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, stats)
}

// SetPlayerName 设置玩家自定义昵称
func (h *SessionHandler) SetPlayerName(c *gin.Context) {
	var req SetNameRequest
	if !h.bindJSON(c, &req) {
		return
	}

	if err := h.manager.SetCustomName(c.Request.Context(), c.Param("id"), req.Name); err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, gin.H{"name": req.Name})
}
