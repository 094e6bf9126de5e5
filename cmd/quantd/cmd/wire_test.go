package cmd

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"QuantSentinel/internal/config"
	"QuantSentinel/internal/model"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("ORACLE_BASE_URL", "")
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("TELEGRAM_CHAT_ID", "")
	dir := t.TempDir()
	t.Setenv("STATE_FILE", filepath.Join(dir, "state.json"))
	t.Setenv("SQLITE_PATH", filepath.Join(dir, "history.db"))
	cfg, err := config.Load(filepath.Join(dir, "none.yaml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestWire_RunsAndResumes(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()
	owner := model.Account(cfg.Owner)

	in, err := wire(ctx, cfg, prometheus.NewRegistry())
	require.NoError(t, err)

	_, err = in.sched.Submit(model.Command{Kind: model.CmdReserveBudgetDefault, From: owner})
	require.NoError(t, err)
	_, err = in.sched.Submit(model.Command{Kind: model.CmdStart, From: owner})
	require.NoError(t, err)
	in.sched.Tick()
	in.sched.Tick()
	require.Equal(t, uint64(2), in.machine.State().RunCount)

	reply, err := in.sched.Submit(model.Command{Kind: model.CmdQueryHoldings, From: "alice"})
	require.NoError(t, err)
	require.Len(t, reply.Holdings, 3)
	in.Close()

	again, err := wire(ctx, cfg, prometheus.NewRegistry())
	require.NoError(t, err)
	defer again.Close()
	st := again.machine.State()
	assert.Equal(t, uint64(2), st.RunCount)
	assert.Equal(t, model.Tick(5), st.NextDue)

	again.sched.Tick()
	again.sched.Tick()
	assert.Equal(t, uint64(3), again.machine.State().RunCount)
}
