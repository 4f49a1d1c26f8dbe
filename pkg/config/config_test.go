package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithNoPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, uint32(1), cfg.CPUNums)
	require.Equal(t, uint32(3000), cfg.Root.HeartbeatIntervalMS)
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
addr: "node1:7000"
cpu_nums: 8
join_list: ["node2:7000", "node3:7000"]
root:
  heartbeat_interval_ms: 1000
enable_proxy_service: true
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "node1:7000", cfg.Addr)
	require.Equal(t, uint32(8), cfg.CPUNums)
	require.Equal(t, []string{"node2:7000", "node3:7000"}, cfg.JoinList)
	require.Equal(t, uint32(1000), cfg.Root.HeartbeatIntervalMS)
	require.True(t, cfg.EnableProxyService)
	require.Equal(t, uint32(15), cfg.Root.LivenessThresholdSec, "unset fields keep their default")
}

func TestApplyFlagsOnlyOverridesChangedFlags(t *testing.T) {
	cfg := defaults()
	cfg.Addr = "from-file:7000"

	cmd := &cobra.Command{Use: "start"}
	BindFlags(cmd)
	require.NoError(t, cmd.Flags().Set("data", "/var/lib/sekas"))
	require.NoError(t, cmd.Flags().Set("init", "true"))

	ApplyFlags(cmd, &cfg)

	require.Equal(t, "from-file:7000", cfg.Addr, "addr flag was not set, file value must survive")
	require.Equal(t, "/var/lib/sekas", cfg.DB.DataDir)
	require.True(t, cfg.Init)
}

func TestDurationHelpers(t *testing.T) {
	cfg := defaults()
	require.Equal(t, int64(3000), cfg.HeartbeatInterval().Milliseconds())
	require.Equal(t, float64(15), cfg.LivenessThreshold().Seconds())
	require.Equal(t, int64(200), cfg.ScheduleInterval().Milliseconds())
}
