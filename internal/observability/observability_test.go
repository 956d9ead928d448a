package observability

import (
	"bytes"
	"context"
	"errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/require"
	"testing"
)

func TestNewMetrics(t *testing.T) {
	t.Parallel()
	req := require.New(t)

	m := NewMetrics()
	m.ScanRows.WithLabelValues("emitted").Add(3)
	m.CellsWritten.Inc()

	req.Equal(float64(3), testutil.ToFloat64(m.ScanRows.WithLabelValues("emitted")))
	req.Equal(float64(1), testutil.ToFloat64(m.CellsWritten))

	families, err := m.Registry.Gather()
	req.NoError(err)
	req.NotEmpty(families)
}

func TestStartSpan(t *testing.T) {
	t.Parallel()

	ctx, span := StartSpan(context.Background(), "scan")
	require.NotNil(t, ctx)
	EndSpan(span, errors.New("boom"))
}

// Not parallel: the logger and level are global.
func TestSetupLogger(t *testing.T) {
	req := require.New(t)
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	var buf bytes.Buffer
	SetupLogger("warn", "json", &buf)

	log.Info().Msg("hidden")
	log.Warn().Str("row", "phone#1").Msg("visible")

	req.NotContains(buf.String(), "hidden")
	req.Contains(buf.String(), `"row":"phone#1"`)
	req.Equal(zerolog.WarnLevel, zerolog.GlobalLevel())

	SetupLogger("not-a-level", "console", &buf)
	req.Equal(zerolog.InfoLevel, zerolog.GlobalLevel())
}
