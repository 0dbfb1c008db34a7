package adapter_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/rogeriochaves/langstream/adapter"
	"github.com/rogeriochaves/langstream/asyncseq"
	"github.com/rogeriochaves/langstream/engineconfig"
	"github.com/rogeriochaves/langstream/metrics"
	"github.com/rogeriochaves/langstream/pipelineerr"
	"github.com/rogeriochaves/langstream/stage"
)

func TestFromBlockingProducerStreamsUntilDone(t *testing.T) {
	connect := func(input string) (func() (string, bool, error), func() error, error) {
		values := []string{"a", "b", "c"}
		i := 0
		receive := func() (string, bool, error) {
			if i >= len(values) {
				return "", true, nil
			}
			v := values[i]
			i++
			return v, false, nil
		}
		return receive, nil, nil
	}
	s := adapter.FromBlockingProducer[string, string]("Producer", connect)

	out, err := asyncseq.Collect(context.Background(), s.Invoke("x"))
	require.NoError(t, err)

	var finals []string
	for _, e := range out {
		if e.Final {
			finals = append(finals, e.Data.(string))
		}
	}
	assert.Equal(t, []string{"a", "b", "c"}, finals)
}

func TestFromBlockingProducerWrapsConnectError(t *testing.T) {
	boom := errors.New("dial refused")
	connect := func(input string) (func() (string, bool, error), func() error, error) {
		return nil, nil, boom
	}
	s := adapter.FromBlockingProducer[string, string]("Producer", connect)

	_, err := asyncseq.Collect(context.Background(), s.Invoke("x"))
	require.Error(t, err)

	var adapterErr *pipelineerr.AdapterError
	assert.ErrorAs(t, err, &adapterErr)
	assert.ErrorIs(t, err, boom)
}

func TestFromBlockingProducerWrapsReceiveError(t *testing.T) {
	boom := errors.New("connection reset")
	connect := func(input string) (func() (string, bool, error), func() error, error) {
		receive := func() (string, bool, error) {
			return "", false, boom
		}
		return receive, nil, nil
	}
	s := adapter.FromBlockingProducer[string, string]("Producer", connect)

	_, err := asyncseq.Collect(context.Background(), s.Invoke("x"))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestRateLimitedThrottlesInvocations(t *testing.T) {
	leaf := stage.FromFunc[int, int]("Value", func(n int) int { return n })
	limited := adapter.RateLimited[int, int](&leaf.Stage, rate.Every(50*time.Millisecond), 1)
	assert.Equal(t, "Value", limited.Name())

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := asyncseq.Collect(context.Background(), limited.Invoke(i))
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestRateLimitedWithConfigUsesConfiguredBurst(t *testing.T) {
	leaf := stage.FromFunc[int, int]("Value", func(n int) int { return n })
	cfg := engineconfig.DefaultConfig().WithRateLimiterBurst(2)
	limited := adapter.RateLimitedWithConfig[int, int](cfg, &leaf.Stage, rate.Every(time.Hour))

	start := time.Now()
	for i := 0; i < 2; i++ {
		_, err := asyncseq.Collect(context.Background(), limited.Invoke(i))
		require.NoError(t, err)
	}
	assert.Less(t, time.Since(start), time.Second)
}

func TestFromBlockingProducerReportsMetrics(t *testing.T) {
	connect := func(input string) (func() (string, bool, error), func() error, error) {
		values := []string{"a", "b"}
		i := 0
		receive := func() (string, bool, error) {
			if i >= len(values) {
				return "", true, nil
			}
			v := values[i]
			i++
			return v, false, nil
		}
		return receive, nil, nil
	}
	s := adapter.FromBlockingProducer[string, string]("MetricsProducer", connect)

	before := testutil.ToFloat64(metrics.StageInvocationsTotal.WithLabelValues("MetricsProducer", "ok"))
	_, err := asyncseq.Collect(context.Background(), s.Invoke("x"))
	require.NoError(t, err)
	after := testutil.ToFloat64(metrics.StageInvocationsTotal.WithLabelValues("MetricsProducer", "ok"))
	assert.Equal(t, before+1, after)
}

func TestRateLimitedRespectsCancellation(t *testing.T) {
	leaf := stage.FromFunc[int, int]("Value", func(n int) int { return n })
	limited := adapter.RateLimited[int, int](&leaf.Stage, rate.Every(time.Hour), 1)

	_, err := asyncseq.Collect(context.Background(), limited.Invoke(1))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = asyncseq.Collect(ctx, limited.Invoke(2))
	assert.Error(t, err)
}
