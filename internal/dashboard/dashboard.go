package dashboard

import (
	"sync/atomic"

	"github.com/gofiber/fiber/v2"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/singleflight"

	"github.com/dotanrosenberg-oss/ImagineAgentClient/internal/store"
	"github.com/dotanrosenberg-oss/ImagineAgentClient/internal/task"
	"github.com/dotanrosenberg-oss/ImagineAgentClient/pkg/log"
	"github.com/dotanrosenberg-oss/ImagineAgentClient/pkg/router"
)

// Summary is the console's landing-page snapshot: the pending count from
// the most recently updated action's tracker, plus whether the realtime
// link to the automation server is believed alive.
type Summary struct {
	PendingTasks      *int   `json:"pendingTasks"`
	TotalTasks        *int   `json:"totalTasks,omitempty"`
	Source            string `json:"source,omitempty"`
	Error             string `json:"error,omitempty"`
	RealtimeConnected bool   `json:"realtimeConnected"`
	ServiceAvailable  bool   `json:"serviceAvailable"`
}

// Controller serves the dashboard summary. Concurrent requests share one
// tracker round-trip; the availability flag is flipped by the realtime
// session on service_unavailable events.
type Controller struct {
	store  *store.Store
	client *task.Client

	connected   func() bool
	unavailable atomic.Bool
	group       singleflight.Group
}

func NewController(s *store.Store, c *task.Client, connected func() bool) *Controller {
	if connected == nil {
		connected = func() bool { return false }
	}
	return &Controller{store: s, client: c, connected: connected}
}

// SetServiceUnavailable flips the availability flag surfaced in the
// summary. Called from the realtime event subscription.
func (ctl *Controller) SetServiceUnavailable(down bool) {
	ctl.unavailable.Store(down)
}

// Summary
// @Summary     Dashboard snapshot
// @Description Pending task count from the most recently updated action's tracker
// @Tags        Dashboard
// @Produce     json
// @Success     200
// @Router      /local-api/dashboard [get]
func (ctl *Controller) Summary(c *fiber.Ctx) error {
	v, err, _ := ctl.group.Do("summary", func() (interface{}, error) {
		return ctl.buildSummary(c)
	})
	if err != nil {
		log.Print(c).WithError(err).Error("Failed to load dashboard summary")
		return router.ResponseInternalError(c, err.Error())
	}
	return router.ResponseSuccessWithData(c, "Success get dashboard summary", v)
}

func (ctl *Controller) buildSummary(c *fiber.Ctx) (*Summary, error) {
	summary := &Summary{
		RealtimeConnected: ctl.connected(),
		ServiceAvailable:  !ctl.unavailable.Load(),
	}

	action, err := ctl.store.LatestConfiguredAction(c.UserContext())
	if err != nil {
		return nil, err
	}
	if action == nil {
		return summary, nil
	}

	origin, err := task.TrackerOrigin(action.APIURL)
	if err != nil {
		summary.Error = err.Error()
		return summary, nil
	}
	summary.Source = origin

	body, err := ctl.client.ListTasks(c.UserContext(), action.APIURL, action.APIKey)
	if err != nil {
		// A dead tracker is a degraded summary, not a failed endpoint.
		summary.Error = err.Error()
		return summary, nil
	}

	total, pending := 0, 0
	gjson.GetBytes(body, "tasks").ForEach(func(_, t gjson.Result) bool {
		total++
		if !task.IsTerminal(t.Get("status").String()) {
			pending++
		}
		return true
	})
	summary.PendingTasks = &pending
	summary.TotalTasks = &total
	return summary, nil
}
