package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crewplan/internal/opt"
	"crewplan/internal/transform"
)

const legBody = `{
  "balloons": [{"id": "b1", "maxCapacity": 3, "allowedOperatorIds": ["ann"]}],
  "cars": [
    {"id": "c1", "maxCapacity": 4, "hasTrailerClutch": true, "allowedOperatorIds": ["ben"]},
    {"id": "c2", "maxCapacity": 3, "allowedOperatorIds": ["cy"]}
  ],
  "people": [
    {"id": "ann", "role": "counselor"}, {"id": "ben", "role": "counselor"}, {"id": "cy", "role": "counselor"},
    {"id": "p1"}, {"id": "p2"}, {"id": "p3"}
  ],
  "legs": 2
}`

// run executes crewsolver with stdin and returns the exit code and outputs.
func run(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	var out, errOut bytes.Buffer
	// defaults go right after the subcommand so a test's own flags win
	defaults := []string{"--log-level", "error", "--time-limit", "2", "--workers", "2"}
	args = append(append([]string{args[0]}, defaults...), args[1:]...)
	code := Execute(context.Background(), args, strings.NewReader(stdin), &out, &errOut)
	return code, out.String(), errOut.String()
}

func failure(t *testing.T, stderr string) transform.Failure {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	var f transform.Failure
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &f), stderr)
	return f
}

func TestLegCommand(t *testing.T) {
	code, stdout, stderr := run(t, legBody, "leg")
	require.Equal(t, ExitOK, code, stderr)

	var out transform.LegOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	assert.Equal(t, "OPTIMAL", out.Status)
	require.Len(t, out.VehicleGroups, 1)
	require.NotNil(t, out.VehicleGroups[0].Balloon.OperatorID)
	assert.Equal(t, "ann", *out.VehicleGroups[0].Balloon.OperatorID)
}

func TestGroupsAndCampaignCommands(t *testing.T) {
	code, stdout, stderr := run(t, legBody, "groups", "--seed", "9")
	require.Equal(t, ExitOK, code, stderr)
	var groups transform.ClusterOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &groups))
	assert.ElementsMatch(t, []string{"c1", "c2"}, groups.VehicleGroups["b1"])

	code, stdout, stderr = run(t, legBody, "campaign", "--progress")
	require.Equal(t, ExitOK, code, stderr)
	var camp transform.CampaignOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &camp))
	assert.Len(t, camp.Legs, 2)
	assert.Len(t, camp.History, 2)
}

func TestInputErrorsExitTwo(t *testing.T) {
	tests := []struct {
		name, stdin string
		args        []string
		want        string
	}{
		{"empty stdin", "", []string{"leg"}, "empty input"},
		{"invalid json", "{", []string{"leg"}, "invalid JSON"},
		{"no balloons", `{"people":[{"id":"a"}]}`, []string{"leg"}, "balloons must not be empty"},
		{"no people", `{"balloons":[{"id":"b"}]}`, []string{"campaign"}, "people must not be empty"},
		{"unknown flag", legBody, []string{"leg", "--bogus"}, "unknown flag"},
		{"unknown command", legBody, []string{"routes"}, "unknown command"},
		{"missing input file", "", []string{"leg", "--input", "/nonexistent/req.json"}, "no such file"},
		{"bad log level", legBody, []string{"leg", "--log-level", "loud"}, "unknown log level"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			code, stdout, stderr := run(t, tc.stdin, tc.args...)
			require.Equal(t, ExitInput, code, stderr)
			assert.Empty(t, stdout)
			f := failure(t, stderr)
			assert.Equal(t, opt.KindInput, f.Error.Kind)
			assert.Contains(t, f.Error.Message, tc.want)
			assert.Empty(t, f.Error.Stack)
		})
	}
}

func TestNoFeasiblePlanExitsOne(t *testing.T) {
	in := `{
	  "balloons":[{"id":"b1","maxCapacity":4,"allowedOperatorIds":["alice"]},{"id":"b2","maxCapacity":3,"allowedOperatorIds":["carol"]}],
	  "cars":[{"id":"t1","maxCapacity":6,"hasTrailerClutch":true,"allowedOperatorIds":["x"]},{"id":"t2","maxCapacity":2,"hasTrailerClutch":true,"allowedOperatorIds":["y"]}],
	  "peopleCount":0}`
	code, stdout, stderr := run(t, in, "groups")
	require.Equal(t, ExitSolve, code)
	assert.Empty(t, stdout)
	assert.Equal(t, opt.KindSolve, failure(t, stderr).Error.Kind)
}

func TestInputFileAndMetricsFile(t *testing.T) {
	dir := t.TempDir()
	req := filepath.Join(dir, "req.json")
	prom := filepath.Join(dir, "crewsolver.prom")
	require.NoError(t, os.WriteFile(req, []byte(legBody), 0o644))

	code, stdout, stderr := run(t, "", "leg", "--input", req, "--metrics-file", prom)
	require.Equal(t, ExitOK, code, stderr)
	assert.Contains(t, stdout, `"vehicleGroups"`)

	b, err := os.ReadFile(prom)
	require.NoError(t, err)
	assert.Contains(t, string(b), "crewplan_solves_total")
}

func TestConfigCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "crewplan.yaml")
	require.NoError(t, os.WriteFile(path, []byte("options:\n  wVehicleRotation: 0\n  seed: 5\n"), 0o644))
	t.Setenv("CREWPLAN_ADDR", ":9090")

	code, stdout, stderr := run(t, "", "config", "--config", path, "--seed", "11")
	require.Equal(t, ExitOK, code, stderr)
	assert.Contains(t, stdout, "seed: 11", "flag wins over file")
	assert.Contains(t, stdout, "wVehicleRotation: 0")
	assert.Contains(t, stdout, ":9090")
	assert.Contains(t, stdout, "workers: 2")
}

func TestVersionCommand(t *testing.T) {
	code, stdout, _ := run(t, "", "version")
	require.Equal(t, ExitOK, code)
	assert.True(t, strings.HasPrefix(stdout, "crewsolver dev"), stdout)
}
