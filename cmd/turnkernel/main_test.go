package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/turnkernel/internal/api"
	"github.com/OCAP2/turnkernel/internal/config"
)

func TestRootCommand_HasExpectedSubcommands(t *testing.T) {
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--help"})

	require.NoError(t, cmd.Execute())

	output := buf.String()
	for _, sub := range []string{"run", "inspect", "verify", "seek", "trajectory", "upload"} {
		assert.Contains(t, output, sub, "Help missing %q command", sub)
	}
}

func TestRootCommand_Properties(t *testing.T) {
	cmd := NewRootCmd()

	assert.Equal(t, "turnkernel", cmd.Use)
	assert.True(t, cmd.SilenceUsage)
	assert.Contains(t, cmd.Long, "snapshots")
	for _, flag := range []string{"config", "log-level", "log-file", "metrics"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), "missing --%s", flag)
	}
}

func TestSubcommandArgs(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"inspect without dir", []string{"inspect"}},
		{"seek without seconds", []string{"seek", "dir"}},
		{"trajectory without entity", []string{"trajectory", "dir", "1"}},
		{"verify with extra", []string{"verify", "a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := NewRootCmd()
			cmd.SetOut(new(bytes.Buffer))
			cmd.SetErr(new(bytes.Buffer))
			cmd.SetArgs(tt.args)
			assert.Error(t, cmd.Execute())
		})
	}
}

// testConfig writes a config that keeps snapshots in memory and logs in a temp dir.
func testConfig(t *testing.T) string {
	t.Helper()
	t.Cleanup(viper.Reset)
	dir := t.TempDir()
	cfg := map[string]any{
		"logLevel": "warn",
		"logsDir":  filepath.Join(dir, "logs"),
		"snapshot": map[string]any{"interval": 1, "asyncWrites": false},
		"storage":  map[string]any{"type": "memory"},
		"monitor":  map[string]any{"enabled": true, "interval": "1h"},
	}
	data, err := json.Marshal(cfg)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.FileName), data, 0644))
	return dir
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

const script = `
# two entities, two turns
[":SPAWN:", "{\"entity\":1,\"kind\":\"frigate\",\"owner\":\"red\",\"health\":100}"]
[":SPAWN:", "{\"entity\":2,\"kind\":\"cruiser\",\"owner\":\"blue\",\"health\":100,\"position\":{\"x\":30,\"y\":0,\"z\":0}}"]
[":TURN:START:"]
[":ACTION:PLAN:", "1", "1", "[8,0,0]"]
[":ACTION:CONFIRM:", "1", "1"]
[":SIM:BEGIN:"]
[":ACTION:FIRE:", "1", "1", "2", "railgun", "2"]
[":EVENT:", "combat.damage_dealt", "2.5", "{\"target\":2,\"source\":1,\"amount\":30}"]
[":SIM:COMPLETE:"]
[":TURN:START:"]
[":ACTION:PLAN:", "2", "1", "[16,0,0]", "boost"]
[":ACTION:CONFIRM:", "2", "1"]
[":SIM:BEGIN:"]
[":SIM:COMPLETE:"]
[":STATUS:"]
[":NOPE:"]
not json
`

func TestRunInspectVerify(t *testing.T) {
	cfgDir := testConfig(t)
	saveDir := filepath.Join(t.TempDir(), "session")

	out, err := execute(t, script, "run", "--config", cfgDir, "--save", saveDir,
		"--scenario", "duel", "--player", "red", "--player", "blue")
	require.NoError(t, err)

	var replies []reply
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		var r reply
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &r))
		replies = append(replies, r)
	}
	require.Len(t, replies, 17)
	for _, r := range replies[:15] {
		assert.Empty(t, r.Error, r.Command)
	}
	status, ok := replies[14].Result.(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 2, status["turn"])
	assert.Contains(t, replies[15].Error, "unknown command")
	assert.Contains(t, replies[16].Error, "malformed")

	out, err = execute(t, "", "inspect", "--config", cfgDir, "--json", saveDir)
	require.NoError(t, err)
	var report inspectReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "duel", report.Manifest.Scenario)
	assert.Equal(t, uint32(2), report.Manifest.CurrentTurn)
	require.Len(t, report.Turns, 3)
	assert.Equal(t, 1, report.Turns[1].Types["combat.weapon_fired"])
	assert.True(t, report.Turns[2].Snapshot)

	out, err = execute(t, "", "verify", "--config", cfgDir, saveDir)
	require.NoError(t, err)
	assert.Contains(t, out, "ok")
	assert.NotContains(t, out, "MISMATCH")

	out, err = execute(t, "", "seek", "--config", cfgDir, saveDir, "10")
	require.NoError(t, err)
	assert.Contains(t, out, `"health": 70`)

	out, err = execute(t, "", "trajectory", "--config", cfgDir, "--samples", "4", saveDir, "2", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "LINESTRING Z")
	assert.Contains(t, out, "mode=boosted")

	_, err = execute(t, "", "trajectory", "--config", cfgDir, saveDir, "2", "2")
	assert.Error(t, err)

	var uploaded []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == api.UploadPath {
			assert.NoError(t, r.ParseMultipartForm(10<<20))
			uploaded = append(uploaded, r.FormValue("sessionId"))
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	out, err = execute(t, "", "upload", "--config", cfgDir, "--url", server.URL, saveDir)
	require.NoError(t, err)
	assert.Contains(t, out, "uploaded")
	require.Len(t, uploaded, 1)
	assert.Equal(t, report.Manifest.SessionID, uploaded[0])
}

func TestUploadNeedsServer(t *testing.T) {
	cfgDir := testConfig(t)
	_, err := execute(t, "", "upload", "--config", cfgDir, t.TempDir())
	assert.ErrorContains(t, err, "no archive server")
}
