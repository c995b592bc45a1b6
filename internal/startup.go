package internal

import (
	"context"
	"time"

	ctlAction "github.com/dotanrosenberg-oss/ImagineAgentClient/internal/action"
	ctlDashboard "github.com/dotanrosenberg-oss/ImagineAgentClient/internal/dashboard"
	ctlProxy "github.com/dotanrosenberg-oss/ImagineAgentClient/internal/proxy"
	ctlStatus "github.com/dotanrosenberg-oss/ImagineAgentClient/internal/status"
	ctlTasks "github.com/dotanrosenberg-oss/ImagineAgentClient/internal/tasks"

	"github.com/dotanrosenberg-oss/ImagineAgentClient/internal/realtime"
	"github.com/dotanrosenberg-oss/ImagineAgentClient/internal/store"
	"github.com/dotanrosenberg-oss/ImagineAgentClient/internal/task"
	"github.com/dotanrosenberg-oss/ImagineAgentClient/pkg/env"
	"github.com/dotanrosenberg-oss/ImagineAgentClient/pkg/log"
)

// App wires the storage, workflow, realtime session, and controllers
// together for the lifetime of the process.
type App struct {
	store    *store.Store
	client   *task.Client
	workflow *task.Workflow
	rt       *realtime.Session

	actions   *ctlAction.Controller
	tasks     *ctlTasks.Controller
	proxy     *ctlProxy.Controller
	dashboard *ctlDashboard.Controller
	status    *ctlStatus.Controller
}

func NewApp() (*App, error) {
	s, err := store.OpenDefault()
	if err != nil {
		return nil, err
	}

	client := task.NewClient()
	workflow := task.NewWorkflow(s, client)

	var rt *realtime.Session
	connected := func() bool { return false }
	if wsURL := env.GetEnvStringOrDefault("REALTIME_WS_URL", ""); wsURL != "" {
		rt = realtime.NewSession(realtime.DefaultConfig(wsURL))
		connected = rt.Connected
	}

	a := &App{
		store:     s,
		client:    client,
		workflow:  workflow,
		rt:        rt,
		actions:   ctlAction.NewController(s, workflow),
		tasks:     ctlTasks.NewController(s, workflow),
		proxy:     ctlProxy.NewController(),
		status:    ctlStatus.NewController(connected),
		dashboard: ctlDashboard.NewController(s, client, connected),
	}
	return a, nil
}

// Startup brings the realtime link up and subscribes the task refresh and
// availability reactions.
func (a *App) Startup() {
	log.Print(nil).Info("Running Startup Tasks")

	if a.rt == nil {
		log.Print(nil).Info("REALTIME_WS_URL not configured; realtime session disabled")
		return
	}

	a.rt.OnEvent(func(evt realtime.Event) {
		switch evt.Type {
		case realtime.EventMessage, realtime.EventChatUpdate:
			if evt.Chat == nil || evt.Chat.ID == "" {
				return
			}
			chatID := evt.Chat.ID
			// Refresh off the dispatch goroutine; a slow tracker must not
			// stall event delivery.
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
				defer cancel()
				if _, err := a.workflow.Refresh(ctx, chatID); err != nil {
					log.TaskOp(nil, "RealtimeRefresh", chatID).WithError(err).Warn("Background refresh failed")
				}
			}()
		case realtime.EventServiceUnavailable:
			a.dashboard.SetServiceUnavailable(true)
		case realtime.EventConnected, realtime.EventChatsSynced:
			a.dashboard.SetServiceUnavailable(false)
		}
	})

	a.rt.Connect()
}

// Shutdown releases the realtime link and the database pool.
func (a *App) Shutdown() {
	if a.rt != nil {
		a.rt.Disconnect()
	}
	if err := a.store.Close(); err != nil {
		log.SysErr("shutdown", err)
	}
}
