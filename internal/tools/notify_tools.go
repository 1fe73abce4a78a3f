package tools

import (
	"context"
	"fmt"

	"github.com/openbrief/marketbrief/internal/notify"
	"github.com/openbrief/marketbrief/internal/tenant"
)

// RegisterNotifyTools adds a tool that pushes a message to the tenant
// over their configured notification channels.
func RegisterNotifyTools(r *Registry, dispatcher *notify.Dispatcher, store *tenant.Store, tenantID string) {
	if dispatcher == nil || len(dispatcher.Channels()) == 0 {
		return
	}

	r.Register(&Tool{
		Name:        "send_notification",
		Description: "Send a notification to the user over their configured channels. Use for urgent findings, not routine replies.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"title": map[string]any{
					"type":        "string",
					"description": "Short notification title",
				},
				"body": map[string]any{
					"type":        "string",
					"description": "Notification body, markdown allowed",
				},
			},
			"required": []string{"title", "body"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			title := stringArg(args, "title")
			body := stringArg(args, "body")
			if title == "" || body == "" {
				return "", fmt.Errorf("title and body are required")
			}

			cfg, err := store.Get(tenantID)
			if err != nil {
				return "", err
			}

			n := notify.Notification{
				TenantID: tenantID,
				Title:    title,
				Body:     body,
				Email:    cfg.Preferences.Email,
			}
			if err := dispatcher.Send(ctx, cfg.Preferences.NotificationChannels, n); err != nil {
				return "", err
			}
			return "Notification sent.", nil
		},
	})
}
