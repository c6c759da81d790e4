package ports

import "context"

// SettingsRepository reads the persisted dispatch overrides as key/value pairs.
type SettingsRepository interface {
	LoadDispatchSettings(ctx context.Context) (map[string]string, error)
}
