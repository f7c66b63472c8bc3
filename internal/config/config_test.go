package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/river-flow-service/internal/domain"
)

func domainRegistry(table *RiverTable) (*domain.DamRegistry, error) {
	path, dams, err := table.Build()
	if err != nil {
		return nil, err
	}
	return domain.NewDamRegistry(dams, path)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Empty(t, cfg.RiverTablePath)
	assert.Equal(t, "https://waterservices.usgs.gov", cfg.USGSBaseURL)
	assert.Equal(t, 10*time.Second, cfg.USGSTimeout)
	assert.Equal(t, 5*time.Minute, cfg.GaugeCacheTTL)
	assert.True(t, cfg.SiteNamesEnabled)
	assert.Equal(t, 3.0, cfg.Flow.AssumedVelocityMPH)
	assert.Equal(t, 100.0, cfg.Flow.AttenuationMiles)
	assert.Equal(t, 0.4, cfg.Flow.EstimateFraction)
	assert.Equal(t, 0.5, cfg.Flow.UpstreamFactor)
	assert.Equal(t, 1.0, cfg.PathStepMiles)
	assert.False(t, cfg.KafkaEnabled)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, "river-flow-estimates", cfg.KafkaSinkTopic)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("RIVER_TABLE", "/etc/river/table.json")
	t.Setenv("USGS_BASE_URL", "http://localhost:9999")
	t.Setenv("USGS_TIMEOUT", "15s")
	t.Setenv("GAUGE_CACHE_TTL", "1m")
	t.Setenv("SITE_NAMES_ENABLED", "false")
	t.Setenv("ASSUMED_VELOCITY_MPH", "2.5")
	t.Setenv("ATTENUATION_MILES", "80")
	t.Setenv("ESTIMATE_FRACTION", "0.3")
	t.Setenv("UPSTREAM_FACTOR", "1.0")
	t.Setenv("PATH_STEP_MILES", "0.5")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_SINK_TOPIC", "custom-estimates")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "/etc/river/table.json", cfg.RiverTablePath)
	assert.Equal(t, "http://localhost:9999", cfg.USGSBaseURL)
	assert.Equal(t, 15*time.Second, cfg.USGSTimeout)
	assert.Equal(t, time.Minute, cfg.GaugeCacheTTL)
	assert.False(t, cfg.SiteNamesEnabled)
	assert.Equal(t, 2.5, cfg.Flow.AssumedVelocityMPH)
	assert.Equal(t, 80.0, cfg.Flow.AttenuationMiles)
	assert.Equal(t, 0.3, cfg.Flow.EstimateFraction)
	assert.Equal(t, 1.0, cfg.Flow.UpstreamFactor)
	assert.Equal(t, 0.5, cfg.PathStepMiles)
	assert.True(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-estimates", cfg.KafkaSinkTopic)
}

func TestLoad_InvalidShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_InvalidUSGSTimeout(t *testing.T) {
	t.Setenv("USGS_TIMEOUT", "bad")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "USGS_TIMEOUT")
}

func TestLoad_NegativeUSGSTimeout(t *testing.T) {
	t.Setenv("USGS_TIMEOUT", "-1s")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "USGS_TIMEOUT")
}

func TestLoad_SiteNamesEnabledForms(t *testing.T) {
	cases := []struct {
		value string
		want  bool
	}{
		{"true", true},
		{"TRUE", true},
		{"1", true},
		{"false", false},
		{"FALSE", false},
		{"0", false},
	}
	for _, tc := range cases {
		t.Run(tc.value, func(t *testing.T) {
			t.Setenv("SITE_NAMES_ENABLED", tc.value)
			cfg, err := Load()
			require.NoError(t, err)
			assert.Equal(t, tc.want, cfg.SiteNamesEnabled)
		})
	}
}

func TestLoad_InvalidSiteNamesEnabled(t *testing.T) {
	t.Setenv("SITE_NAMES_ENABLED", "yes")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SITE_NAMES_ENABLED")
}

func TestLoad_InvalidVelocity(t *testing.T) {
	t.Setenv("ASSUMED_VELOCITY_MPH", "0")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "velocity")
}

func TestLoad_InvalidEstimateFraction(t *testing.T) {
	t.Setenv("ESTIMATE_FRACTION", "1.5")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "estimate fraction")
}

func TestLoad_InvalidPathStep(t *testing.T) {
	t.Setenv("PATH_STEP_MILES", "-2")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PATH_STEP_MILES")
}

func TestLoadRiverTable_EmbeddedDefault(t *testing.T) {
	table, err := LoadRiverTable("")
	require.NoError(t, err)

	assert.Equal(t, "Cumberland", table.River)
	assert.GreaterOrEqual(t, len(table.Anchors), 2)
	assert.Len(t, table.Dams, 7)

	path, dams, err := table.Build()
	require.NoError(t, err)
	assert.Equal(t, 0.0, path.MinMile())
	assert.InDelta(t, 460.9, path.MaxMile(), 1e-9)
	assert.Len(t, dams, 7)

	// The built table must also survive registry validation.
	reg, err := domainRegistry(table)
	require.NoError(t, err)
	d, ok := reg.Get("old-hickory")
	require.True(t, ok)
	assert.Equal(t, "03431500", d.GaugeID)
	assert.Equal(t, 120000.0, d.CapacityCFS)
	assert.Equal(t, 445.0, d.ElevationFt)

	for _, dam := range reg.All() {
		assert.Greater(t, dam.ElevationFt, 0.0, "dam %s has no elevation", dam.ID)
	}
}

func TestLoadRiverTable_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table.json")
	data := `{"river":"Test","anchors":[{"mile":0,"lat":35,"lon":-87},{"mile":100,"lat":36,"lon":-86}],` +
		`"dams":[{"id":"d1","name":"Dam One","mile":100,"lat":36,"lon":-86,"capacity_cfs":50000,"gauge_id":"123"}]}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	table, err := LoadRiverTable(path)
	require.NoError(t, err)
	assert.Equal(t, "Test", table.River)
	assert.Len(t, table.Dams, 1)
}

func TestLoadRiverTable_MissingFile(t *testing.T) {
	_, err := LoadRiverTable("/nonexistent/table.json")
	require.Error(t, err)
}

func TestLoadRiverTable_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := LoadRiverTable(path)
	require.Error(t, err)
}
