package bootstrap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	domainproperty "bookingengine/internal/domain/property"
	"bookingengine/internal/domain/shared/daterange"
)

type propertyFixture struct {
	ID             string `json:"id"`
	OwnerID        string `json:"owner_id"`
	NightlyRate    int64  `json:"nightly_rate"`
	MaxGuests      int    `json:"max_guests"`
	AvailableFrom  string `json:"available_from"`
	AvailableUntil string `json:"available_until"`
	Active         *bool  `json:"active"`
}

type seedFunc func(ctx context.Context, props ...*domainproperty.Property) error

// loadPropertyFixtures seeds the catalog from a JSON file. A missing file is not an error;
// invalid entries are logged and skipped.
func loadPropertyFixtures(ctx context.Context, path string, seed seedFunc, logger *slog.Logger) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("property fixtures file not found, skipping", "path", path)
			return nil
		}
		return fmt.Errorf("read fixtures: %w", err)
	}
	if len(data) == 0 {
		logger.Warn("property fixtures file empty", "path", path)
		return nil
	}

	var fixtures []propertyFixture
	if err := json.Unmarshal(data, &fixtures); err != nil {
		return fmt.Errorf("decode fixtures: %w", err)
	}

	now := time.Now().UTC()
	props := make([]*domainproperty.Property, 0, len(fixtures))
	for _, fx := range fixtures {
		p, err := fx.property(now)
		if err != nil {
			logger.Error("fixture invalid", "property_id", fx.ID, "error", err)
			continue
		}
		props = append(props, p)
	}
	if len(props) == 0 {
		return nil
	}
	if err := seed(ctx, props...); err != nil {
		return fmt.Errorf("store fixtures: %w", err)
	}
	logger.Info("property fixtures imported", "count", len(props), "path", path)
	return nil
}

func (fx propertyFixture) property(now time.Time) (*domainproperty.Property, error) {
	from, err := parseFixtureDate(fx.AvailableFrom)
	if err != nil {
		return nil, err
	}
	until, err := parseFixtureDate(fx.AvailableUntil)
	if err != nil {
		return nil, err
	}
	window, err := domainproperty.NewWindow(from, until)
	if err != nil {
		return nil, err
	}
	active := true
	if fx.Active != nil {
		active = *fx.Active
	}
	return domainproperty.New(domainproperty.Params{
		ID:          domainproperty.ID(fx.ID),
		OwnerID:     fx.OwnerID,
		NightlyRate: fx.NightlyRate,
		MaxGuests:   fx.MaxGuests,
		Window:      window,
		Active:      active,
		Now:         now,
	})
}

func parseFixtureDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(daterange.Layout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid fixture date %q: %w", raw, err)
	}
	return t, nil
}
