package database_test

import (
	"testing"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/p-n-ai/pai-portal/internal/activity"
	"github.com/p-n-ai/pai-portal/internal/platform/database"
)

func TestMigrate_IdempotentAndWritable(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := t.Context()
	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("portal"),
		postgres.WithUsername("portal"),
		postgres.WithPassword("portal"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}

	url, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}
	db, err := database.New(ctx, url, 4, 1)
	if err != nil {
		t.Fatalf("database.New() error = %v", err)
	}
	defer db.Close()

	for i := range 2 {
		if err := db.Migrate(ctx); err != nil {
			t.Fatalf("Migrate() run %d error = %v", i+1, err)
		}
	}
	if err := db.HealthCheck(ctx); err != nil {
		t.Fatalf("HealthCheck() error = %v", err)
	}

	logger := activity.NewPostgresLogger(db.Pool)
	err = logger.Log(ctx, activity.Event{
		SessionID: "s-1",
		Handle:    "ada",
		Type:      activity.ProgressUpdated,
		Data:      map[string]any{"module_id": "nodejs", "completion": 80},
	})
	if err != nil {
		t.Fatalf("Log() error = %v", err)
	}
	// Anonymous events store NULL session and handle.
	if err := logger.Log(ctx, activity.Event{Type: activity.StatsRefreshed}); err != nil {
		t.Fatalf("Log() anonymous error = %v", err)
	}

	var (
		count    int
		nullRows int
		module   string
	)
	err = db.Pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE session_id IS NULL),
		       COALESCE(MAX(data->>'module_id'), '')
		FROM activity_events`).Scan(&count, &nullRows, &module)
	if err != nil {
		t.Fatalf("query events: %v", err)
	}
	if count != 2 || nullRows != 1 || module != "nodejs" {
		t.Errorf("events = %d (null %d, module %q), want 2 (null 1, module nodejs)", count, nullRows, module)
	}
}
