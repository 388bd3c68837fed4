package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/ikigai/internal/config"
	"github.com/harun/ikigai/internal/daemon"
)

// useTempConfig points the persistent flags at a config file under a temp data dir
func useTempConfig(t *testing.T, mutate func(cfg map[string]interface{})) string {
	t.Helper()
	dir := t.TempDir()
	raw := map[string]interface{}{"data_dir": dir}
	if mutate != nil {
		mutate(raw)
	}
	data, err := json.Marshal(raw)
	require.NoError(t, err)
	path := filepath.Join(dir, "ikigai.json")
	require.NoError(t, os.WriteFile(path, data, 0644))

	prevCfg, prevEnv, prevLevel := cfgFile, envFile, logLevel
	cfgFile = path
	envFile = filepath.Join(dir, "missing.env")
	logLevel = ""
	t.Cleanup(func() { cfgFile, envFile, logLevel = prevCfg, prevEnv, prevLevel })
	return dir
}

func TestLoadConfig_FileAndOverride(t *testing.T) {
	dir := useTempConfig(t, func(cfg map[string]interface{}) {
		cfg["server"] = map[string]interface{}{"port": 9090}
	})
	logLevel = "debug"

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, filepath.Join(dir, "ikigai.db"), cfg.Store.Path)
}

func TestLoadConfig_DotEnv(t *testing.T) {
	dir := useTempConfig(t, nil)
	envPath := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envPath, []byte("IKIGAI_SERVER_HOST=127.0.0.9\n"), 0644))
	envFile = envPath
	t.Cleanup(func() { os.Unsetenv("IKIGAI_SERVER_HOST") })

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.9", cfg.Server.Host)
}

func TestLoadRuntime_RequiresProfiles(t *testing.T) {
	useTempConfig(t, nil)
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")

	_, _, err := loadRuntime()
	assert.ErrorContains(t, err, "invalid configuration")
}

func TestStatusCommand(t *testing.T) {
	dir := useTempConfig(t, nil)

	run := func() string {
		cmd := GetRootCmd()
		cmd.SetArgs([]string{"status", "--config", cfgFile})
		output := &bytes.Buffer{}
		cmd.SetOut(output)
		require.NoError(t, cmd.Execute())
		return output.String()
	}

	assert.Contains(t, run(), "Status: stopped")

	pidFile := daemon.PIDFilePath(dir)
	require.NoError(t, os.WriteFile(pidFile, []byte(strconv.Itoa(os.Getpid())), 0644))
	out := run()
	assert.Contains(t, out, "Status: running")
	assert.Contains(t, out, "PID: "+strconv.Itoa(os.Getpid()))
}

func TestStopCommand_NotRunning(t *testing.T) {
	useTempConfig(t, nil)

	cmd := GetRootCmd()
	cmd.SetArgs([]string{"stop", "--config", cfgFile})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	assert.Error(t, cmd.Execute())
}

func TestIsRunning(t *testing.T) {
	dir := t.TempDir()

	assert.False(t, isRunning(filepath.Join(dir, "nonexistent.pid")))

	invalid := filepath.Join(dir, "invalid.pid")
	require.NoError(t, os.WriteFile(invalid, []byte("invalid"), 0644))
	assert.False(t, isRunning(invalid))

	self := filepath.Join(dir, "self.pid")
	require.NoError(t, os.WriteFile(self, []byte(strconv.Itoa(os.Getpid())), 0644))
	assert.True(t, isRunning(self))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "5s", formatDuration(5*time.Second))
	assert.Equal(t, "2m3s", formatDuration(2*time.Minute+3*time.Second))
	assert.Equal(t, "1h0m7s", formatDuration(time.Hour+7*time.Second))
}

func TestMasked(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.AI.Profiles = []config.AIProfile{{ID: "p", Provider: "openai", APIKey: "sk-abcdefghijklmnop"}}
	cfg.JobSearch.AppKey = "short"

	m := masked(cfg)
	assert.Equal(t, "sk-a****mnop", m.AI.Profiles[0].APIKey)
	assert.Equal(t, "****", m.JobSearch.AppKey)
	assert.Equal(t, "sk-abcdefghijklmnop", cfg.AI.Profiles[0].APIKey, "original untouched")
}
