package profile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/spigell/job-autopilot/internal/storage"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tags on any profile document.
func Validate(v any) error {
	return validate.Struct(v)
}

// Load reads and validates the user's profile.
func Load(ctx context.Context, store storage.Store, userID string) (*Profile, error) {
	p, err := storage.Load[Profile](ctx, store, storage.ProfileKey(userID))
	if err != nil {
		return nil, fmt.Errorf("load profile for %s: %w", userID, err)
	}
	if p.UserID == "" {
		p.UserID = userID
	}
	if err := Validate(p); err != nil {
		return nil, fmt.Errorf("invalid profile for %s: %w", userID, err)
	}
	return &p, nil
}

// LoadSettings returns the user's settings or the defaults when none are stored.
func LoadSettings(ctx context.Context, store storage.Store, userID string) (Settings, error) {
	s, err := storage.Load[Settings](ctx, store, storage.SettingsKey(userID))
	if errors.Is(err, storage.ErrNotFound) {
		return DefaultSettings(), nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("load settings for %s: %w", userID, err)
	}
	if err := Validate(s); err != nil {
		return Settings{}, fmt.Errorf("invalid settings for %s: %w", userID, err)
	}
	return s, nil
}

// LoadSearchConfigurations returns the saved searches, empty when none exist.
func LoadSearchConfigurations(ctx context.Context, store storage.Store, userID string) ([]SearchConfiguration, error) {
	doc, err := storage.LoadOr(ctx, store, storage.SearchConfigsKey(userID), SearchConfigurations{})
	if err != nil {
		return nil, fmt.Errorf("load search configurations for %s: %w", userID, err)
	}
	if err := Validate(doc); err != nil {
		return nil, fmt.Errorf("invalid search configurations for %s: %w", userID, err)
	}
	return doc.Configurations, nil
}

// MarkSearchRun stamps LastRunAt of one configuration.
func MarkSearchRun(ctx context.Context, store storage.Store, userID, configID string, at time.Time) error {
	return storage.Update(ctx, store, storage.SearchConfigsKey(userID), func(doc *SearchConfigurations) error {
		for i := range doc.Configurations {
			if doc.Configurations[i].ID == configID {
				stamp := at
				doc.Configurations[i].LastRunAt = &stamp
				return nil
			}
		}
		return fmt.Errorf("search configuration %s not found", configID)
	})
}
