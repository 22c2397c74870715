package app

import (
	"context"
	"encoding/json"
	"fmt"

	"coinwatch/internal/settings"
)

// ShowSettings prints the effective settings as JSON.
func (a *App) ShowSettings(ctx context.Context) error {
	c, err := a.build(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	prefs, err := c.settings.Load(ctx)
	if err != nil {
		return err
	}
	return a.printJSON(prefs)
}

// SetSetting updates one field, e.g. "notifications.enableBadge" "false".
func (a *App) SetSetting(ctx context.Context, path, value string) (settings.Settings, error) {
	c, err := a.build(ctx)
	if err != nil {
		return settings.Settings{}, err
	}
	defer c.Close()

	prefs, err := c.settings.Set(ctx, path, value)
	if err != nil {
		return settings.Settings{}, err
	}
	if err := a.printJSON(prefs); err != nil {
		return prefs, err
	}
	return prefs, nil
}

func (a *App) printJSON(v any) error {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(a.Out, string(encoded))
	return err
}
