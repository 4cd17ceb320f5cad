package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flowledger/internal/flowrule"
	"github.com/roach88/flowledger/internal/ir"
)

func decodeData(t *testing.T, out string, data any) {
	t.Helper()
	resp := struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}{}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	require.Equal(t, "ok", resp.Status)
	require.NoError(t, json.Unmarshal(resp.Data, data))
}

func TestAnchor_BasicMoveJSON(t *testing.T) {
	base := t.TempDir()

	out, _, err := execute(t, "--base", base, "--format", "json", "anchor", "1", "3=2")
	require.NoError(t, err)

	var res AnchorResult
	decodeData(t, out, &res)
	assert.Equal(t, uint64(1), res.Entity)
	assert.Equal(t, 1, res.Commands)
	require.Len(t, res.Events, 1)
	assert.Equal(t, []int8{1}, res.Events[0].MSDDigits)
	assert.False(t, res.Events[0].ViaCentroid)

	out, _, err = execute(t, "--base", base, "--format", "json", "exponents", "1")
	require.NoError(t, err)
	var rows []ExponentRow
	decodeData(t, out, &rows)
	require.Len(t, rows, 8)
	assert.Equal(t, ExponentRow{Prime: 3, Home: "S1", Exponent: 2, Stored: true}, rows[1])
	assert.Equal(t, ExponentRow{Prime: 2, Home: "S0", Exponent: 0, Stored: false}, rows[0])

	out, _, err = execute(t, "--base", base, "--format", "json", "postings", "3")
	require.NoError(t, err)
	var postings []ir.Posting
	decodeData(t, out, &postings)
	assert.Equal(t, []ir.Posting{{Entity: 1, Exponent: 2}}, postings)
}

func TestAnchor_TextOutput(t *testing.T) {
	out, _, err := execute(t, "--base", t.TempDir(), "anchor", "1", "2=3", "5=2")
	require.NoError(t, err)
	assert.Contains(t, out, "prime 2  msd [-1 1] via_c=true")
	assert.Contains(t, out, "1 events anchored from 2 commands")
}

func TestAnchor_FromFile(t *testing.T) {
	dir := t.TempDir()
	batch := filepath.Join(dir, "batch.yaml")
	require.NoError(t, os.WriteFile(batch, []byte("commands:\n  - {prime: 3, target: 2}\n  - {prime: 7, target: 5}\n"), 0o644))

	out, _, err := execute(t, "--base", filepath.Join(dir, "ledger"), "--format", "json", "anchor", "9", "--file", batch, "19=5")
	require.NoError(t, err)

	var res AnchorResult
	decodeData(t, out, &res)
	assert.Equal(t, 3, res.Commands)
	assert.Len(t, res.Events, 3)
}

func TestAnchor_StrictForbidden(t *testing.T) {
	base := t.TempDir()

	out, _, err := execute(t, "--base", base, "--format", "json", "anchor", "1", "5=1", "--strict")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "FORBIDDEN_TRANSITION", resp.Error.Code)

	// Default mode routes the same move via the centroid
	out, _, err = execute(t, "--base", base, "--format", "json", "anchor", "1", "5=1")
	require.NoError(t, err)
	var res AnchorResult
	decodeData(t, out, &res)
	require.Len(t, res.Events, 1)
	assert.True(t, res.Events[0].ViaCentroid)
}

func TestAnchor_StrictFromConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "flowledger.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("backend: sqlite\ncentroid_bypass: false\n"), 0o644))

	_, _, err := execute(t, "--config", cfg, "--base", dir, "anchor", "1", "5=1")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.FileExists(t, filepath.Join(dir, "db", "ledger.db"))
}

func TestAnchor_Rejections(t *testing.T) {
	tests := []struct {
		name string
		args []string
		code string
		exit int
	}{
		{"unknown prime", []string{"1", "4=0"}, "UNKNOWN_PRIME", ExitFailure},
		{"invalid node", []string{"1", "3=9"}, "INVALID_NODE", ExitFailure},
		{"odd to even", []string{"1", "3=4"}, "FORBIDDEN_TRANSITION", ExitFailure},
		{"bad entity", []string{"x", "3=2"}, CodeUsage, ExitCommandError},
		{"bad command", []string{"1", "3:2"}, CodeUsage, ExitCommandError},
		{"target overflow", []string{"1", "3=256"}, CodeUsage, ExitCommandError},
		{"no commands", []string{"1"}, CodeUsage, ExitCommandError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"--base", t.TempDir(), "--format", "json", "anchor"}, tt.args...)
			out, _, err := execute(t, args...)
			require.Error(t, err)
			assert.Equal(t, tt.exit, GetExitCode(err))

			var resp CLIResponse
			require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestAnchor_Metrics(t *testing.T) {
	_, stderr, err := execute(t, "--base", t.TempDir(), "anchor", "1", "2=3", "--metrics")
	require.NoError(t, err)
	assert.Contains(t, stderr, `flowledger_batches_total{outcome="ok"} 1`)
	assert.Contains(t, stderr, "flowledger_centroid_flips_total 1")
}

func TestEvents_IncludesFailedBatches(t *testing.T) {
	base := t.TempDir()

	_, _, err := execute(t, "--base", base, "anchor", "1", "3=2", "2=3", "11=99")
	require.Error(t, err)
	_, _, err = execute(t, "--base", base, "anchor", "2", "3=3")
	require.NoError(t, err)

	out, _, err := execute(t, "--base", base, "--format", "json", "events")
	require.NoError(t, err)
	var events []ir.LedgerEvent
	decodeData(t, out, &events)
	require.Len(t, events, 3)

	out, _, err = execute(t, "--base", base, "--format", "json", "events", "--entity", "1", "--prime", "2")
	require.NoError(t, err)
	decodeData(t, out, &events)
	require.Len(t, events, 1)
	assert.True(t, events[0].ViaCentroid)

	out, _, err = execute(t, "--base", base, "events", "--limit", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "entity=2 prime=3")
	assert.Contains(t, out, "1 events")

	// Failed batch committed nothing
	out, _, err = execute(t, "--base", base, "--format", "json", "postings", "3")
	require.NoError(t, err)
	var postings []ir.Posting
	decodeData(t, out, &postings)
	assert.Equal(t, []ir.Posting{{Entity: 2, Exponent: 3}}, postings)
}

func TestEvents_MissingLog(t *testing.T) {
	out, _, err := execute(t, "--base", t.TempDir(), "events")
	require.NoError(t, err)
	assert.Contains(t, out, "0 events")
}

func TestCheck(t *testing.T) {
	out, _, err := execute(t, "--format", "json", "check", "S2", "1")
	require.NoError(t, err)

	var res CheckResult
	decodeData(t, out, &res)
	assert.Equal(t, CheckResult{Src: "S2", Dst: "S1", Allowed: false, Whitelisted: false, ViaCentroid: true, Label: flowrule.LabelMediated}, res)

	out, _, err = execute(t, "check", "s1", "S2")
	require.NoError(t, err)
	assert.Equal(t, "S1→S2 allowed (work)\n", out)

	_, _, err = execute(t, "check", "S8", "S1")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestMSD(t *testing.T) {
	out, _, err := execute(t, "--format", "json", "msd", "--", "-6")
	require.NoError(t, err)

	var res MSDResult
	decodeData(t, out, &res)
	assert.Equal(t, int64(-6), res.Value)
	assert.Equal(t, []int8{-2, -1}, res.Digits)
	assert.Equal(t, int64(-6), res.Decoded)

	out, _, err = execute(t, "msd", "0")
	require.NoError(t, err)
	assert.Equal(t, "0 → [0]\n", out)
}

func TestTraverse_Golden(t *testing.T) {
	out, _, err := execute(t, "traverse", "S1", "--depth", "4", "--seed", "0")
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "traverse_s1", []byte(out))
}

func TestTraverse_BadDepth(t *testing.T) {
	_, _, err := execute(t, "traverse", "S1", "--depth", "11", "--seed", "0")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, _, err = execute(t, "traverse", "S1", "--seed", "2")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommand_Scenarios(t *testing.T) {
	dir := t.TempDir()
	scenario := `name: cli_basic
description: one whitelisted move
clock_millis: 4
batches:
  - entity: 1
    commands:
      - {prime: 3, target: 2}
assertions:
  - type: exponent
    entity: 1
    prime: 3
    value: 2
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cli_basic.yaml"), []byte(scenario), 0o644))

	// First run writes the golden file, second compares against it
	out, _, err := execute(t, "test", dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ cli_basic")
	assert.FileExists(t, filepath.Join(dir, "golden", "cli_basic.golden"))

	out, _, err = execute(t, "test", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")

	// Tampered golden file fails the scenario
	require.NoError(t, os.WriteFile(filepath.Join(dir, "golden", "cli_basic.golden"), []byte("{}\n"), 0o644))
	out, _, err = execute(t, "--format", "json", "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, CodeScenario, resp.Error.Code)
}

func TestTestCommand_MissingDir(t *testing.T) {
	_, _, err := execute(t, "test", filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommand_Filter(t *testing.T) {
	out, _, err := execute(t, "test", t.TempDir(), "--filter", "x*")
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}
