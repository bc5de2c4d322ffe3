package observability_test

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/aretw0/cadence"
	"github.com/aretw0/cadence/pkg/domain"
	"github.com/aretw0/cadence/pkg/dsl"
	"github.com/aretw0/cadence/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func play(t *testing.T, hooks domain.LifecycleHooks) {
	t.Helper()
	b := dsl.New("obs")
	b.Line("l1", "Hi").At(1, "x")
	b.Choice(dsl.Opt("A", "a")).SaveTo("pick")
	b.Label("a").Line("l2", "{missing}")
	b.End()

	eng, err := cadence.New("", cadence.WithLifecycleHooks(hooks))
	require.NoError(t, err)
	sess, err := eng.Load(b.MustProgram())
	require.NoError(t, err)

	_, err = sess.Step(0)
	require.NoError(t, err)
	snap, err := sess.Step(2)
	require.NoError(t, err)
	require.Equal(t, domain.StateAwaitingChoice, snap.State)
	require.NoError(t, sess.SubmitChoice(0))
	_, err = sess.Step(0)
	require.NoError(t, err)
	snap, err = sess.Step(0)
	require.NoError(t, err)
	require.Equal(t, domain.StateFinished, snap.State)
}

func TestMetrics_Hooks(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := observability.NewMetrics(reg)
	require.NoError(t, err)

	play(t, m.Hooks())

	assert.Equal(t, 2.0, testutil.ToFloat64(m.LinesEntered.WithLabelValues("obs")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsFired.WithLabelValues("obs", "x")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Choices.WithLabelValues("obs", "0")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Diagnostics.WithLabelValues("obs", string(domain.DiagUnsetVariable))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Finished.WithLabelValues("obs")))
	assert.Equal(t, 0, testutil.CollectAndCount(m.Errors))
}

func TestMetrics_DoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := observability.NewMetrics(reg)
	require.NoError(t, err)

	_, err = observability.NewMetrics(reg)
	assert.Error(t, err)
}

func TestLogHooks(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	play(t, observability.LogHooks(logger))

	out := buf.String()
	assert.Contains(t, out, "msg=line_enter")
	assert.Contains(t, out, "msg=event_fired")
	assert.Contains(t, out, "event=x")
	assert.Contains(t, out, "msg=choice")
	assert.Contains(t, out, "level=WARN msg=diagnostic")
	assert.Contains(t, out, "msg=finish")
	assert.Contains(t, out, "program=obs")
}
