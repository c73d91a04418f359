// Package mcp exposes the advisory engine as a Model Context Protocol tool.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/tree-care-advisory/internal/domain"
	"github.com/miyamo2/qilin"
)

// ToolName is the MCP tool that returns the current advisory.
const ToolName = "get_tree_care_alert"

// AlertSource produces the current advisory, or nil when there is none.
type AlertSource interface {
	GetAlert(ctx context.Context) *domain.WeatherAlert
}

// AlertRequest takes no arguments; the city is fixed by configuration.
type AlertRequest struct{}

// Register adds the advisory tool to q.
func Register(q *qilin.Qilin, alerts AlertSource, city string, logger *slog.Logger) {
	q.Tool(ToolName,
		(*AlertRequest)(nil),
		AlertHandler(alerts, city),
		qilin.ToolWithDescription(fmt.Sprintf(
			"Current tree-care advisory for %s: watering, maintenance, flood, or storm guidance with an urgency of high or low.", city)),
		qilin.ToolWithAnnotations(qilin.ToolAnnotations{
			Title:        "Tree-care weather advisory",
			ReadOnlyHint: true,
		}),
		qilin.ToolWithMiddleware(logCalls(logger)),
	)
}

// AlertHandler answers with the advisory as JSON, or a plain-text note when
// there is nothing to report.
func AlertHandler(alerts AlertSource, city string) qilin.ToolHandlerFunc {
	return func(c qilin.ToolContext) error {
		alert := alerts.GetAlert(c.Context())
		if alert == nil {
			return c.String(fmt.Sprintf("No tree-care advisory for %s right now.", city))
		}
		return c.JSON(alert)
	}
}

func logCalls(logger *slog.Logger) qilin.ToolMiddlewareFunc {
	return func(next qilin.ToolHandlerFunc) qilin.ToolHandlerFunc {
		return func(c qilin.ToolContext) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				logger.Warn("mcp tool call failed", "tool", c.ToolName(), "error", err)
				return err
			}
			logger.Debug("mcp tool call", "tool", c.ToolName(), "duration", time.Since(start))
			return nil
		}
	}
}
