package main

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"VaultLedger/internal/core"
	"VaultLedger/internal/event"
	"VaultLedger/internal/observability"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func output(seq int64) core.CoreOutput {
	return core.CoreOutput{Envelope: &event.EventEnvelope{Sequence: seq}}
}

// ============================================================================
// fan-out bridge
// ============================================================================

func TestFanOut_DeliversAndClosesOutputs(t *testing.T) {
	in := make(chan core.CoreOutput, 3)
	persist := make(chan core.CoreOutput, 3)
	publish := make(chan core.CoreOutput, 3)
	for i := int64(1); i <= 3; i++ {
		in <- output(i)
	}
	close(in)

	require.NoError(t, fanOut(context.Background(), in, persist, publish, nil))

	var got []int64
	for out := range persist {
		got = append(got, out.Envelope.Sequence)
	}
	assert.Equal(t, []int64{1, 2, 3}, got)
	assert.Len(t, publish, 3)
}

func TestFanOut_DropsWhenPublishFull(t *testing.T) {
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	in := make(chan core.CoreOutput, 3)
	persist := make(chan core.CoreOutput, 3)
	publish := make(chan core.CoreOutput, 1)
	for i := int64(1); i <= 3; i++ {
		in <- output(i)
	}
	close(in)

	require.NoError(t, fanOut(context.Background(), in, persist, publish, metrics))
	assert.Len(t, persist, 3, "persistence never drops")
	assert.Len(t, publish, 1)
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.PublishDrops))
}

func TestFanOut_BlockedPersistStopsOnCancel(t *testing.T) {
	in := make(chan core.CoreOutput, 1)
	persist := make(chan core.CoreOutput) // nobody reads
	publish := make(chan core.CoreOutput, 1)
	in <- output(1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- fanOut(ctx, in, persist, publish, nil) }()
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("fanOut did not stop")
	}
}

func TestSampleChannels_ReportsFill(t *testing.T) {
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	ch := make(chan core.CoreOutput, 4)
	ch <- output(1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sampleChannels(ctx, metrics, time.Millisecond, chanGauge("persist", ch)) }()

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.ChannelSize.WithLabelValues("persist")) == 1
	}, time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, 4.0, testutil.ToFloat64(metrics.ChannelCapacity.WithLabelValues("persist")))
}

// ============================================================================
// configuration
// ============================================================================

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("VAULT_GENESIS", "testdata/genesis.yaml")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "testdata/genesis.yaml", cfg.GenesisPath)
	assert.Equal(t, 1024, cfg.PersistChanSize)
	assert.Equal(t, int64(10_000), cfg.CheckpointEvery)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("VAULT_PERSIST_BATCH_SIZE", "7")
	t.Setenv("VAULT_REQUEST_TIMEOUT", "250ms")
	t.Setenv("VAULT_METRICS_ADDR", "")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.PersistBatchSize)
	assert.Equal(t, 250*time.Millisecond, cfg.RequestTimeout)
	assert.Empty(t, cfg.MetricsAddr)
}

func TestLoadConfig_Rejects(t *testing.T) {
	cases := map[string]string{
		"VAULT_PERSIST_CHAN_SIZE": "0",
		"VAULT_COMMAND_CHAN_SIZE": "many",
		"VAULT_CHECKPOINT_EVERY":  "-1",
		"VAULT_REQUEST_TIMEOUT":   "soon",
		"VAULT_POSTGRES_DSN":      "",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, val)
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}
