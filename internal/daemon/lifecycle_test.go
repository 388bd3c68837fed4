package daemon

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadPID(t *testing.T) {
	dir := t.TempDir()
	pidFile := filepath.Join(dir, PIDFileName)

	_, err := ReadPID(pidFile)
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, os.WriteFile(pidFile, []byte("4242\n"), 0644))
	pid, err := ReadPID(pidFile)
	require.NoError(t, err)
	assert.Equal(t, 4242, pid)

	require.NoError(t, os.WriteFile(pidFile, []byte("not-a-pid"), 0644))
	_, err = ReadPID(pidFile)
	assert.Error(t, err)
}

func TestProcessAlive(t *testing.T) {
	assert.True(t, ProcessAlive(os.Getpid()))
	assert.False(t, ProcessAlive(0))
	assert.False(t, ProcessAlive(-1))
}

func TestLifecycleManager_RefusesLiveForeignPID(t *testing.T) {
	cfg := testConfig(t)
	d, err := newDaemon(cfg, testLogger(t), coreDeps{providers: &stubFactory{}})
	require.NoError(t, err)
	defer d.core.Close()

	lm := NewLifecycleManager(d)
	assert.Equal(t, filepath.Join(cfg.DataDir, "ikigai.pid"), lm.PIDFile())

	// PID 1 is always alive in a Unix process tree.
	require.NoError(t, os.WriteFile(lm.PIDFile(), []byte(strconv.Itoa(1)), 0644))
	if os.Getpid() == 1 {
		t.Skip("running as PID 1")
	}
	assert.Error(t, lm.Start())

	require.NoError(t, os.Remove(lm.PIDFile()))
	require.NoError(t, lm.Start())
	require.NoError(t, lm.Stop())
}
