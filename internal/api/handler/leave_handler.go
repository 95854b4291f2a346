package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"

	"salm/portal/internal/dto"
	"salm/portal/internal/service"
	pkgerrors "salm/portal/pkg/errors"
	"salm/portal/pkg/response"
)

// LeaveHandler 请假模块 HTTP 处理器
type LeaveHandler struct {
	leaveSvc service.LeaveService
}

// NewLeaveHandler 创建 LeaveHandler
func NewLeaveHandler(leaveSvc service.LeaveService) *LeaveHandler {
	return &LeaveHandler{leaveSvc: leaveSvc}
}

// Summary 出勤影响预估
// GET /leaves/summary?requested_days=N
func (h *LeaveHandler) Summary(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	days := 0
	if raw := c.Query("requested_days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			response.ValidationError(c, "requested_days must be an integer")
			return
		}
		days = n
	}

	result, err := h.leaveSvc.Summary(c.Request.Context(), actor, days)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.OK(c, result)
}

// Apply 提交请假
// POST /leaves/
func (h *LeaveHandler) Apply(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	var req dto.ApplyLeaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "Invalid leave payload")
		return
	}

	result, err := h.leaveSvc.Apply(c.Request.Context(), actor, &req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.OK(c, result)
}

// Me 当前学生的请假记录
// GET /leaves/me
func (h *LeaveHandler) Me(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	result, err := h.leaveSvc.ListMine(c.Request.Context(), actor)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.OK(c, result)
}

// Pending 本班待审批列表
// GET /leaves/pending
func (h *LeaveHandler) Pending(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	result, err := h.leaveSvc.ListPending(c.Request.Context(), actor)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.OK(c, result)
}

// Calendar 本班已通过的请假
// GET /leaves/calendar
func (h *LeaveHandler) Calendar(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	result, err := h.leaveSvc.Calendar(c.Request.Context(), actor)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.OK(c, result)
}

// Approve 通过请假
// PUT /leaves/:id/approve
func (h *LeaveHandler) Approve(c *gin.Context) {
	h.decide(c, h.leaveSvc.Approve)
}

// Reject 驳回请假
// PUT /leaves/:id/reject
func (h *LeaveHandler) Reject(c *gin.Context) {
	h.decide(c, h.leaveSvc.Reject)
}

type decideFunc func(ctx context.Context, actor service.Actor, leaveID int64, comment string) (*dto.LeaveRequest, error)

func (h *LeaveHandler) decide(c *gin.Context, fn decideFunc) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	// 请求体可省略
	var req dto.LeaveActionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.ValidationError(c, "Invalid action payload")
			return
		}
	}

	result, err := fn(c.Request.Context(), actor, id, req.Comment)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.OK(c, result)
}

// handleError 业务错误到 HTTP 响应的映射
func (h *LeaveHandler) handleError(c *gin.Context, err error) {
	var balErr *service.InsufficientBalanceError
	switch {
	case errors.As(err, &balErr):
		response.BadRequest(c, fmt.Sprintf(
			"Student does not have enough leave balance. Has %d, needs %d.", balErr.Has, balErr.Needs))
	case errors.Is(err, service.ErrInvalidDateRange):
		response.BadRequest(c, "End date cannot be before start date")
	case errors.Is(err, service.ErrInvalidDate):
		response.ValidationError(c, "Dates must use YYYY-MM-DD")
	case errors.Is(err, service.ErrInvalidRequestedDays):
		response.ValidationError(c, "requested_days cannot be negative")
	case errors.Is(err, service.ErrUserNotFound), errors.Is(err, service.ErrStudentNotFound):
		response.NotFound(c, "User not found")
	case errors.Is(err, service.ErrLeaveNotFound):
		response.NotFound(c, "Leave not found")
	case errors.Is(err, service.ErrNotSameClass):
		response.Forbidden(c, "Faculty not assigned to this class")
	case errors.Is(err, service.ErrLeaveAlreadyDecided), errors.Is(err, pkgerrors.ErrOptimisticLock):
		response.Conflict(c, "Leave has already been decided")
	default:
		_ = c.Error(err)
		response.InternalError(c)
	}
}
