package metrics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterDefaultIsIdempotent(t *testing.T) {
	RegisterDefault()
	RegisterDefault()
	Solves.WithLabelValues("leg", "OPTIMAL").Inc()
	families, err := Registry.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["crewplan_solves_total"])
	assert.True(t, names["go_goroutines"])
}

func TestWriteTextfile(t *testing.T) {
	CacheLookups.WithLabelValues("hit").Inc()
	path := filepath.Join(t.TempDir(), "crewplan.prom")
	require.NoError(t, WriteTextfile(path))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "crewplan_cache_lookups_total")

	require.Error(t, WriteTextfile(filepath.Join(t.TempDir(), "missing", "x.prom")))
}

func TestPushFailsWithoutGateway(t *testing.T) {
	require.Error(t, Push("http://127.0.0.1:1", "crewsolver"))
}
