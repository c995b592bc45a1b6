package log

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

var logger = logrus.New()

func init() {
	logger.Formatter = &logrus.TextFormatter{
		TimestampFormat: time.RFC3339,
		FullTimestamp:   true,
		DisableColors:   false,
		ForceColors:     true,
	}
}

func Print(c *fiber.Ctx) *logrus.Entry {
	if c == nil {
		return logger.WithFields(logrus.Fields{})
	}

	remoteIP := c.IP()
	if v := c.Locals("remote_ip"); v != nil {
		if ip, ok := v.(string); ok && ip != "" {
			remoteIP = ip
		}
	}
	return logger.WithFields(logrus.Fields{
		"remote_ip": remoteIP,
		"method":    c.Method(),
		"uri":       c.OriginalURL(),
	})
}

// ActionOp scopes a log entry to an action registry operation.
func ActionOp(c *fiber.Ctx, op string, actionID string) *logrus.Entry {
	return Print(c).WithFields(logrus.Fields{
		"op":        op,
		"action_id": actionID,
	})
}

// TaskOp scopes a log entry to a chat task workflow operation.
func TaskOp(c *fiber.Ctx, op string, chatID string) *logrus.Entry {
	return Print(c).WithFields(logrus.Fields{
		"op":      op,
		"chat_id": chatID,
	})
}

// RT scopes a log entry to the realtime session.
func RT(op string) *logrus.Entry {
	return logger.WithFields(logrus.Fields{
		"component": "realtime",
		"op":        op,
	})
}

// SysErr logs a background subsystem error that has no request context.
func SysErr(scope string, err error) {
	logger.WithField("scope", scope).Error(err.Error())
}
