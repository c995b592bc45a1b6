package tasks

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"

	"github.com/dotanrosenberg-oss/ImagineAgentClient/internal/store"
	"github.com/dotanrosenberg-oss/ImagineAgentClient/internal/task"
	"github.com/dotanrosenberg-oss/ImagineAgentClient/pkg/log"
	"github.com/dotanrosenberg-oss/ImagineAgentClient/pkg/router"
	"github.com/dotanrosenberg-oss/ImagineAgentClient/pkg/validation"
)

// Controller serves the per-chat task cache.
type Controller struct {
	store    *store.Store
	workflow *task.Workflow
}

func NewController(s *store.Store, w *task.Workflow) *Controller {
	return &Controller{store: s, workflow: w}
}

// List
// @Summary     List the cached tasks of a chat
// @Tags        ChatTasks
// @Produce     json
// @Param       chat_id path string true "Chat id"
// @Success     200
// @Router      /local-api/chat-tasks/{chat_id} [get]
func (ctl *Controller) List(c *fiber.Ctx) error {
	chatID := c.Params("chat_id")
	if err := validation.ValidateChatID(chatID); err != nil {
		return router.ResponseBadRequest(c, err.Error())
	}

	list, err := ctl.workflow.List(c.UserContext(), chatID)
	if err != nil {
		log.TaskOp(c, "ListTasks", chatID).WithError(err).Error("Failed to list chat tasks")
		return router.ResponseInternalError(c, err.Error())
	}

	return router.ResponseSuccessWithData(c, "Success get chat tasks", list)
}

// Refresh
// @Summary     Refresh a chat's tasks from their trackers
// @Description Re-reads every non-terminal task from its tracker and returns the full list
// @Tags        ChatTasks
// @Produce     json
// @Param       chat_id path string true "Chat id"
// @Success     200
// @Router      /local-api/chat-tasks/{chat_id}/refresh [post]
func (ctl *Controller) Refresh(c *fiber.Ctx) error {
	chatID := c.Params("chat_id")
	if err := validation.ValidateChatID(chatID); err != nil {
		return router.ResponseBadRequest(c, err.Error())
	}

	list, err := ctl.workflow.Refresh(c.UserContext(), chatID)
	if err != nil {
		log.TaskOp(c, "RefreshTasks", chatID).WithError(err).Error("Failed to refresh chat tasks")
		return router.ResponseInternalError(c, err.Error())
	}

	return router.ResponseSuccessWithData(c, "Success refresh chat tasks", list)
}

type requestUpsertTask struct {
	ChatID         string          `json:"chatId"`
	ActionID       string          `json:"actionId"`
	ActionName     string          `json:"actionName"`
	ExternalTaskID string          `json:"externalTaskId"`
	Title          string          `json:"title"`
	Status         string          `json:"status"`
	RequestSummary string          `json:"requestSummary"`
	Response       string          `json:"response"`
	ResponseData   json.RawMessage `json:"responseData"`
}

// Upsert
// @Summary     Upsert a chat task record directly
// @Description Ingest path for task records the console already holds
// @Tags        ChatTasks
// @Accept      json
// @Produce     json
// @Success     200
// @Router      /local-api/chat-tasks [post]
func (ctl *Controller) Upsert(c *fiber.Ctx) error {
	var req requestUpsertTask
	if err := c.BodyParser(&req); err != nil {
		log.TaskOp(c, "UpsertTask", "").Warn("Failed to parse body request")
		return router.ResponseBadRequest(c, "Failed parse body request")
	}
	if err := validation.ValidateChatID(req.ChatID); err != nil {
		return router.ResponseBadRequest(c, err.Error())
	}
	if req.ExternalTaskID == "" {
		return router.ResponseBadRequest(c, "externalTaskId is required")
	}

	t := store.ChatTask{
		ChatID:         req.ChatID,
		ActionID:       req.ActionID,
		ActionName:     req.ActionName,
		ExternalTaskID: req.ExternalTaskID,
		Title:          req.Title,
		Status:         task.NormalizeStatus(req.Status),
		RequestSummary: req.RequestSummary,
		Response:       req.Response,
		ResponseData:   req.ResponseData,
	}
	if err := ctl.store.UpsertTask(c.UserContext(), t); err != nil {
		log.TaskOp(c, "UpsertTask", req.ChatID).WithError(err).Error("Failed to save chat task")
		return router.ResponseInternalError(c, err.Error())
	}

	log.TaskOp(c, "UpsertTask", req.ChatID).
		WithField("external_task_id", req.ExternalTaskID).Info("Chat task saved")
	return router.ResponseSuccessWithData(c, "Success save chat task", t)
}
