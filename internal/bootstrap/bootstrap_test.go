package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	handlers "bookingengine/internal/app/handlers/booking"
	domainbooking "bookingengine/internal/domain/booking"
	domainproperty "bookingengine/internal/domain/property"
	"bookingengine/internal/domain/shared/daterange"
	"bookingengine/internal/infra/config"
	"bookingengine/internal/infra/obs"
	"bookingengine/internal/infra/storage/memory"
)

const fixturesJSON = `[
  {"id": "prop-a", "owner_id": "owner-1", "nightly_rate": 100, "max_guests": 2},
  {"id": "prop-b", "owner_id": "owner-1", "nightly_rate": 100, "max_guests": 0},
  {"id": "prop-c", "owner_id": "owner-2", "nightly_rate": 50, "max_guests": 3, "available_from": "2030-01-01", "active": false}
]`

func writeFixtures(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "properties.json")
	require.NoError(t, os.WriteFile(path, []byte(fixturesJSON), 0o600))
	return path
}

func TestLoadPropertyFixturesSkipsInvalidEntries(t *testing.T) {
	store := memory.NewStore(0)
	seed := func(_ context.Context, props ...*domainproperty.Property) error {
		store.SeedProperties(props...)
		return nil
	}
	require.NoError(t, loadPropertyFixtures(context.Background(), writeFixtures(t), seed, obs.Discard()))

	ctx := context.Background()
	a, err := store.Property(ctx, "prop-a")
	require.NoError(t, err)
	assert.True(t, a.Active)

	_, err = store.Property(ctx, "prop-b")
	assert.ErrorIs(t, err, domainproperty.ErrNotFound)

	c, err := store.Property(ctx, "prop-c")
	require.NoError(t, err)
	assert.False(t, c.Active)
	assert.Equal(t, "2030-01-01", c.Window.From.Format(daterange.Layout))
}

func TestLoadPropertyFixturesMissingFile(t *testing.T) {
	called := false
	seed := func(context.Context, ...*domainproperty.Property) error {
		called = true
		return nil
	}
	err := loadPropertyFixtures(context.Background(), filepath.Join(t.TempDir(), "absent.json"), seed, obs.Discard())
	require.NoError(t, err)
	assert.False(t, called)
}

func memoryConfig(fixtures string) config.Config {
	return config.Config{
		Env:                  "test",
		StoreDriver:          config.StoreMemory,
		LockTimeout:          time.Second,
		StoreBackoff:         []time.Duration{time.Millisecond},
		PipelineDriver:       config.PipelineMemory,
		ConsumerBackoff:      []time.Duration{time.Millisecond},
		ConsumerMaxAttempts:  3,
		PublishBuffer:        64,
		DecisionMode:         "auto",
		CancellationLeadTime: 24 * time.Hour,
		JWTSecret:            "secret",
		IdempotencyTTL:       time.Hour,
		PropertyCacheTTL:     time.Minute,
		PropertiesFixtures:   fixtures,
	}
}

func TestBuildRunsAnInMemoryEngine(t *testing.T) {
	app, err := Build(context.Background(), memoryConfig(writeFixtures(t)), obs.Discard())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx, true) }()
	defer func() {
		cancel()
		<-done
		assert.NoError(t, app.Close(context.Background()))
	}()

	traveler := domainbooking.Actor{ID: "trav-1", Role: domainbooking.RoleTraveler}
	checkIn := time.Now().UTC().AddDate(0, 1, 0)
	created, err := app.Service.RequestBooking(ctx, handlers.RequestBookingCommand{
		PropertyID: "prop-a",
		Actor:      traveler,
		CheckIn:    checkIn.Format(daterange.Layout),
		CheckOut:   checkIn.AddDate(0, 0, 2).Format(daterange.Layout),
		Guests:     2,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 200, created.TotalPrice)

	require.Eventually(t, func() bool {
		b, err := app.Service.GetBooking(ctx, created.BookingID, traveler)
		return err == nil && b.Status == string(domainbooking.StatusAccepted)
	}, 3*time.Second, 10*time.Millisecond)
	assert.Eventually(t, app.Runner.Healthy, time.Second, 10*time.Millisecond)
}

func TestBuildRejectsUnknownDecisionMode(t *testing.T) {
	cfg := memoryConfig("")
	cfg.DecisionMode = "sometimes"
	_, err := Build(context.Background(), cfg, obs.Discard())
	assert.Error(t, err)
}
