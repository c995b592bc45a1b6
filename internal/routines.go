package internal

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/dotanrosenberg-oss/ImagineAgentClient/pkg/env"
	"github.com/dotanrosenberg-oss/ImagineAgentClient/pkg/log"
)

// Routines registers the background jobs: a periodic refresh of every chat
// still holding active tasks, and an hourly prune of old terminal tasks.
func (a *App) Routines(c *cron.Cron) {
	log.Print(nil).Info("Running Routine Tasks")

	refreshSpec := env.GetEnvStringOrDefault("TASK_REFRESH_CRON_SPEC", "0 */2 * * * *")
	if _, err := c.AddFunc(refreshSpec, a.refreshAllChats); err != nil {
		log.Print(nil).WithField("error", err.Error()).Error("Failed to add task refresh cron job")
	} else {
		log.Print(nil).WithField("spec", refreshSpec).Info("Task refresh cron enabled")
	}

	retentionDays := env.GetEnvIntOrDefault("TASK_RETENTION_DAYS", 30)
	if retentionDays > 0 {
		if _, err := c.AddFunc("0 0 * * * *", func() { a.pruneTerminalTasks(retentionDays) }); err != nil {
			log.Print(nil).WithField("error", err.Error()).Error("Failed to add task prune cron job")
		} else {
			log.Print(nil).WithField("retention_days", retentionDays).Info("Task prune cron enabled")
		}
	} else {
		log.Print(nil).Info("Task prune cron disabled")
	}

	c.Start()
}

func (a *App) refreshAllChats() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	chats, err := a.store.ChatsWithActiveTasks(ctx)
	if err != nil {
		log.SysErr("refresh_cron", err)
		return
	}
	if len(chats) == 0 {
		return
	}

	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(env.GetEnvIntOrDefault("TASK_REFRESH_CRON_CONCURRENCY", 2))
	for _, chatID := range chats {
		chatID := chatID
		g.Go(func() error {
			if _, err := a.workflow.Refresh(groupCtx, chatID); err != nil {
				log.TaskOp(nil, "CronRefresh", chatID).WithError(err).Warn("Scheduled refresh failed")
			}
			return nil
		})
	}
	_ = g.Wait()

	log.Print(nil).WithField("chats", len(chats)).Info("Scheduled task refresh pass complete")
}

func (a *App) pruneTerminalTasks(retentionDays int) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	pruned, err := a.store.PruneTerminal(ctx, cutoff)
	if err != nil {
		log.SysErr("prune_cron", err)
		return
	}
	if pruned > 0 {
		log.Print(nil).WithField("pruned", pruned).Info("Old terminal tasks pruned")
	}
}
