package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/docscribe/docscribe/internal/progress"
)

func event(stage progress.Stage, jobID uuid.UUID) progress.Event {
	return progress.Event{
		JobID: progress.UUIDToBytes(jobID),
		TS:    time.Now().UTC(),
		Stage: stage,
		URL:   "https://docs.example.com/guide",
	}
}

func TestPrometheusSinkJobLifecycle(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	jobID := uuid.New()
	batch := []progress.Event{
		event(progress.StageCrawlStart, jobID),
		event(progress.StagePageDone, jobID),
		event(progress.StagePageError, jobID),
		event(progress.StageMemoryWarning, jobID),
		event(progress.StageBufferFlush, jobID),
	}
	require.NoError(t, sink.Consume(context.Background(), batch))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.jobsStarted))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.jobsRunning))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.pagesTotal.WithLabelValues("success")))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.pagesTotal.WithLabelValues("error")))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.memoryWarnings))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.bufferFlushes))

	done := event(progress.StageCrawlDone, jobID)
	done.Dur = 2 * time.Second
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{done}))
	require.Equal(t, 0.0, testutil.ToFloat64(sink.jobsRunning))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.jobsCompleted.WithLabelValues("success")))
}

func TestPrometheusSinkRunningGaugeIgnoresRepeats(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	jobID := uuid.New()
	start := event(progress.StageCrawlStart, jobID)
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{start, start}))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.jobsRunning))

	fail := event(progress.StageCrawlError, jobID)
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{fail, fail}))
	require.Equal(t, 0.0, testutil.ToFloat64(sink.jobsRunning))
}

func TestPrometheusSinkRegisterTwiceFails(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewPrometheusSink(reg)
	require.NoError(t, err)
	_, err = NewPrometheusSink(reg)
	require.Error(t, err)
}
