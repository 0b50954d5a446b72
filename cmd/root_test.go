package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/fda-watch/internal/config"
	"github.com/sells-group/fda-watch/internal/model"
	"github.com/sells-group/fda-watch/internal/scorer"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"run", "serve", "resolve", "patterns", "export"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "fda-watch", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestExportCommand_Flags(t *testing.T) {
	flag := exportCmd.Flags().Lookup("out")
	require.NotNil(t, flag, "export command should have --out flag")
	assert.Equal(t, "digest.xlsx", flag.DefValue)
}

func TestResolveCommand_RequiresArgs(t *testing.T) {
	assert.Error(t, resolveCmd.Args(resolveCmd, nil))
	assert.NoError(t, resolveCmd.Args(resolveCmd, []string{"Pfizer"}))
}

func TestPrintResolutions(t *testing.T) {
	r, err := buildResolver(config.ResolverConfig{FuzzyThreshold: 0.85, MinFuzzyKeyLen: 4, Similarity: "levenshtein"})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, printResolutions(&buf, r, []string{"Pfizer Inc.", "Unknown"}))

	out := buf.String()
	assert.Contains(t, out, "CANONICAL")
	assert.Contains(t, out, "Pfizer Inc.")
	assert.Contains(t, out, "Pfizer")
	assert.Contains(t, out, "Unknown")
}

func TestBuildResolver_MissingKnownFile(t *testing.T) {
	_, err := buildResolver(config.ResolverConfig{KnownCompaniesPath: filepath.Join(t.TempDir(), "missing.yaml")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load known companies")
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Store: config.StoreConfig{Driver: "sqlite", DatabaseURL: filepath.Join(t.TempDir(), "fda.db")},
		Fetch: config.FetchConfig{TimeoutSecs: 5, MaxConcurrent: 2, UserAgent: "test", RequestsPerSecond: 5},
		Resolver: config.ResolverConfig{
			FuzzyThreshold: 0.85,
			MinFuzzyKeyLen: 4,
			Similarity:     "levenshtein",
		},
		Registry: config.RegistryConfig{
			MaxViolations:     100,
			HotspotWindowDays: 90,
			HotspotMin:        2,
			RepeatOffenderMin: 3,
		},
		Risk: scorer.DefaultRiskConfig(),
	}
}

func TestInitEnv_RestoresRegistry(t *testing.T) {
	ctx := context.Background()
	c := testConfig(t)

	env, err := initEnv(ctx, c)
	require.NoError(t, err)
	assert.Nil(t, env.Enricher)
	assert.Nil(t, env.Summarizer)

	env.Registry.Upsert(model.RegulatoryItem{
		Title: "Warning Letter to Northwind", Link: "https://fda.gov/wl/1",
		RawCompanyText: "Northwind", Types: []model.ActionType{model.ActionWarningLetter}, Severity: 8,
	})
	require.NoError(t, env.Store.SaveSnapshot(ctx, env.Registry.Snapshot()))
	env.Close()

	env, err = initEnv(ctx, c)
	require.NoError(t, err)
	defer env.Close()
	assert.Equal(t, 1, env.Registry.Len())

	res, err := env.Pipeline.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.TotalItems, "no sources configured")
	assert.Equal(t, 1, res.CompaniesTracked)
}

func TestInitEnv_BadDriver(t *testing.T) {
	c := testConfig(t)
	c.Store.Driver = "mongo"

	_, err := initEnv(context.Background(), c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "init store")
}

func TestExportCommand_WritesWorkbook(t *testing.T) {
	cfg = testConfig(t)
	exportOut = filepath.Join(t.TempDir(), "digest.xlsx")
	t.Cleanup(func() { cfg = nil; exportOut = "digest.xlsx" })

	exportCmd.SetContext(context.Background())
	require.NoError(t, exportCmd.RunE(exportCmd, nil))

	info, err := os.Stat(exportOut)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}
