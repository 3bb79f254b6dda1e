package database

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelsec/graphaudit/internal/analyzer"
	"github.com/kestrelsec/graphaudit/internal/config"
	"github.com/kestrelsec/graphaudit/internal/logger"
	"github.com/kestrelsec/graphaudit/pkg/audit"
	"github.com/kestrelsec/graphaudit/pkg/fingerprint"
	"github.com/kestrelsec/graphaudit/pkg/schema"
)

func testStore(t *testing.T) Store {
	t.Helper()

	log, err := logger.New(config.LoggerConfig{Level: "error", Format: "console"})
	require.NoError(t, err)

	store, err := NewStore(config.DatabaseConfig{
		Driver:         "sqlite",
		DSN:            filepath.Join(t.TempDir(), "graphaudit_test.db"),
		MaxConnections: 1,
	}, log)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}

func sampleReport(target string) *analyzer.Report {
	return &analyzer.Report{
		ID:     uuid.New().String(),
		Target: target,
		Engine: fingerprint.Report{
			Engine:        "Apollo",
			Confidence:    5,
			SecurityNotes: []string{"Debug mode exposes stack traces.", "Introspection on by default."},
			Signals:       map[string]int{"header: x-powered-by": 2},
		},
		Audit: []audit.Finding{
			{
				Title:       "Alias Overloading",
				Description: "Alias-based queries are allowed",
				Impact:      "Denial of Service",
				Severity:    audit.SeverityHigh,
				Result:      true,
				CurlVerify:  "curl -X POST ...",
			},
			{
				Title:       "Introspection",
				Description: "Introspection query enabled",
				Impact:      "Information Leakage",
				Severity:    audit.SeverityHigh,
				Result:      false,
			},
		},
		Schema: schema.Summary{
			ObjectCount: 2,
			Objects: []schema.Object{
				{Name: "Query", Fields: []string{"user"}},
				{Name: "User", Fields: []string{"id"}},
			},
		},
		Introspection: map[string]interface{}{
			"__schema": map[string]interface{}{
				"queryType": map[string]interface{}{"name": "Query"},
			},
		},
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func TestSaveAndGetReport(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	report := sampleReport("http://api.example.com/graphql")
	require.NoError(t, store.SaveReport(ctx, report))

	loaded, err := store.GetReport(ctx, report.ID)
	require.NoError(t, err)

	assert.Equal(t, report.ID, loaded.ID)
	assert.Equal(t, report.Target, loaded.Target)
	assert.Equal(t, "Apollo", loaded.Engine.Engine)
	assert.Equal(t, 5, loaded.Engine.Confidence)
	assert.Equal(t, report.Engine.SecurityNotes, loaded.Engine.SecurityNotes)
	assert.Equal(t, 2, loaded.Schema.ObjectCount)
	assert.Len(t, loaded.Audit, 2)
	assert.Equal(t, "Alias Overloading", loaded.Audit[0].Title)
	assert.True(t, loaded.Audit[0].Result)
	assert.False(t, loaded.Audit[1].Result)
	assert.Contains(t, loaded.Introspection, "__schema")
}

func TestGetReportNotFound(t *testing.T) {
	store := testStore(t)

	_, err := store.GetReport(context.Background(), "no-such-report")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestListReportsNewestFirst(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		report := sampleReport(fmt.Sprintf("http://host%d.example.com/graphql", i))
		report.CreatedAt = time.Now().UTC().Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.SaveReport(ctx, report))
	}

	summaries, err := store.ListReports(ctx, 10)
	require.NoError(t, err)
	require.Len(t, summaries, 3)

	assert.Equal(t, "http://host2.example.com/graphql", summaries[0].Target)
	assert.Equal(t, "http://host0.example.com/graphql", summaries[2].Target)
	assert.Equal(t, 1, summaries[0].PositiveFindings)
	assert.Equal(t, 2, summaries[0].TotalFindings)
}

func TestListReportsHonorsLimit(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.SaveReport(ctx, sampleReport(fmt.Sprintf("http://h%d/graphql", i))))
	}

	summaries, err := store.ListReports(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, summaries, 2)
}

func TestFindingFingerprintStable(t *testing.T) {
	f := audit.Finding{Title: "Batch Queries"}

	a := findingFingerprint("http://one/graphql", f)
	b := findingFingerprint("http://one/graphql", f)
	c := findingFingerprint("http://two/graphql", f)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 16)
}
