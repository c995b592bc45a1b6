package action

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/dotanrosenberg-oss/ImagineAgentClient/internal/store"
	"github.com/dotanrosenberg-oss/ImagineAgentClient/internal/task"
	"github.com/dotanrosenberg-oss/ImagineAgentClient/pkg/log"
	"github.com/dotanrosenberg-oss/ImagineAgentClient/pkg/router"
	"github.com/dotanrosenberg-oss/ImagineAgentClient/pkg/validation"
)

// Controller serves the action registry and action execution.
type Controller struct {
	store    *store.Store
	workflow *task.Workflow
}

func NewController(s *store.Store, w *task.Workflow) *Controller {
	return &Controller{store: s, workflow: w}
}

// List
// @Summary     List configured actions
// @Description List the action definitions for one scope
// @Tags        Actions
// @Produce     json
// @Param       type path string true "Action scope (group or chat)"
// @Success     200
// @Router      /local-api/actions/{type} [get]
func (ctl *Controller) List(c *fiber.Ctx) error {
	actionType := c.Params("type")
	if err := validation.ValidateActionType(actionType); err != nil {
		return router.ResponseBadRequest(c, err.Error())
	}

	actions, err := ctl.store.ListActions(c.UserContext(), actionType)
	if err != nil {
		log.ActionOp(c, "ListActions", "").WithError(err).Error("Failed to list actions")
		return router.ResponseInternalError(c, err.Error())
	}

	return router.ResponseSuccessWithData(c, "Success get actions", actions)
}

type requestUpsertAction struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	APIURL      string `json:"apiUrl"`
	APIKey      string `json:"apiKey"`
	APIDocURL   string `json:"apiDocUrl"`
	ProjectID   *int64 `json:"projectId"`
}

// Upsert
// @Summary     Create or update an action
// @Tags        Actions
// @Accept      json
// @Produce     json
// @Param       type path string true "Action scope (group or chat)"
// @Success     200
// @Router      /local-api/actions/{type} [post]
func (ctl *Controller) Upsert(c *fiber.Ctx) error {
	actionType := c.Params("type")
	if err := validation.ValidateActionType(actionType); err != nil {
		return router.ResponseBadRequest(c, err.Error())
	}

	var req requestUpsertAction
	if err := c.BodyParser(&req); err != nil {
		log.ActionOp(c, "UpsertAction", "").Warn("Failed to parse body request")
		return router.ResponseBadRequest(c, "Failed parse body request")
	}
	if req.Name == "" {
		return router.ResponseBadRequest(c, "Action name is required")
	}
	if req.APIURL != "" {
		if err := validation.ValidateURL(req.APIURL); err != nil {
			return router.ResponseBadRequest(c, err.Error())
		}
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	a := store.Action{
		ID:          req.ID,
		Type:        actionType,
		Name:        req.Name,
		Description: req.Description,
		APIURL:      req.APIURL,
		APIKey:      req.APIKey,
		APIDocURL:   req.APIDocURL,
		ProjectID:   req.ProjectID,
	}
	if err := ctl.store.UpsertAction(c.UserContext(), a); err != nil {
		log.ActionOp(c, "UpsertAction", a.ID).WithError(err).Error("Failed to save action")
		return router.ResponseInternalError(c, err.Error())
	}

	log.ActionOp(c, "UpsertAction", a.ID).WithField("name", a.Name).Info("Action saved")
	return router.ResponseSuccessWithData(c, "Success save action", a)
}

// Delete
// @Summary     Delete an action
// @Tags        Actions
// @Param       type path string true "Action scope (group or chat)"
// @Param       id   path string true "Action id"
// @Success     200
// @Router      /local-api/actions/{type}/{id} [delete]
func (ctl *Controller) Delete(c *fiber.Ctx) error {
	actionType := c.Params("type")
	actionID := c.Params("id")
	if err := validation.ValidateActionType(actionType); err != nil {
		return router.ResponseBadRequest(c, err.Error())
	}

	if err := ctl.store.DeleteAction(c.UserContext(), actionType, actionID); err != nil {
		log.ActionOp(c, "DeleteAction", actionID).WithError(err).Error("Failed to delete action")
		return router.ResponseInternalError(c, err.Error())
	}

	log.ActionOp(c, "DeleteAction", actionID).Info("Action deleted")
	return router.ResponseSuccess(c, "Success delete action")
}

type requestExecuteAction struct {
	ActionID        string                `json:"actionId"`
	ChatID          string                `json:"chatId"`
	ChatName        string                `json:"chatName"`
	IsGroup         bool                  `json:"isGroup"`
	Note            string                `json:"note"`
	ContextMessages []task.ContextMessage `json:"contextMessages"`
}

// Execute
// @Summary     Invoke an action for a chat
// @Description Trigger the action's external tracker and persist the resulting chat task
// @Tags        Actions
// @Accept      json
// @Produce     json
// @Success     200
// @Router      /local-api/actions/execute [post]
func (ctl *Controller) Execute(c *fiber.Ctx) error {
	var req requestExecuteAction
	if err := c.BodyParser(&req); err != nil {
		log.ActionOp(c, "ExecuteAction", "").Warn("Failed to parse body request")
		return router.ResponseBadRequest(c, "Failed parse body request")
	}
	if req.ActionID == "" {
		return router.ResponseBadRequest(c, "actionId is required")
	}
	if err := validation.ValidateChatID(req.ChatID); err != nil {
		return router.ResponseBadRequest(c, err.Error())
	}

	action, err := ctl.store.GetAction(c.UserContext(), req.ActionID)
	if err != nil {
		log.ActionOp(c, "ExecuteAction", req.ActionID).WithError(err).Error("Failed to load action")
		return router.ResponseInternalError(c, err.Error())
	}
	if action == nil {
		return router.ResponseNotFound(c, "Action not found")
	}
	if action.APIURL == "" {
		return router.ResponseBadRequest(c, "Action has no api url configured")
	}

	chat := task.ChatRef{ID: req.ChatID, Name: req.ChatName, IsGroup: req.IsGroup}
	outcome := ctl.workflow.Invoke(c.UserContext(), action, req.Note, req.ContextMessages, chat)

	// The outcome is always renderable, error status included.
	return router.ResponseSuccessWithData(c, "Action executed", outcome)
}
