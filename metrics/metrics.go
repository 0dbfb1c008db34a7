// Package metrics exports Prometheus instrumentation for Stage invocations.
// The package-level vectors below are registered once under the default
// namespace; Observe, ObserveSingle and ObserveGather are the decorators
// that actually drive Stage dispatch through them, honoring a caller's
// engineconfig.Config when its namespace differs from the default.
package metrics

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/rogeriochaves/langstream/asyncseq"
	"github.com/rogeriochaves/langstream/emission"
	"github.com/rogeriochaves/langstream/engineconfig"
	"github.com/rogeriochaves/langstream/stage"
)

const defaultNamespace = "langstream"

var (
	// StageInvocationsTotal counts Stage invocations by stage name and
	// outcome ("ok" or "error").
	StageInvocationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: defaultNamespace,
		Name:      "stage_invocations_total",
		Help:      "Total number of Stage invocations, labeled by stage name and outcome.",
	}, []string{"stage", "outcome"})

	// StageDurationSeconds observes wall-clock time from the start of a
	// Stage's sequence to its drain.
	StageDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: defaultNamespace,
		Name:      "stage_duration_seconds",
		Help:      "Duration of a Stage invocation from the start of its sequence to drain.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"stage"})

	// StageEmissionsTotal counts Emissions produced by a Stage, labeled by
	// whether they were final.
	StageEmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: defaultNamespace,
		Name:      "stage_emissions_total",
		Help:      "Total Emissions produced, labeled by stage name and finality.",
	}, []string{"stage", "final"})

	// GatherBranchesActive counts the ObserveGather invocations currently in
	// flight, per stage name. It moves once per invocation, not once per
	// gathered branch, and Merge does not update it.
	GatherBranchesActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: defaultNamespace,
		Name:      "gather_branches_active",
		Help:      "Number of in-flight ObserveGather invocations, labeled by stage name.",
	}, []string{"stage"})
)

// vectors groups the four instruments so ObserveInvocation/ObserveEmission
// and the decorators below can target either the package defaults or a
// namespace built fresh from a caller's Config.
type vectors struct {
	invocations    *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	emissions      *prometheus.CounterVec
	gatherBranches *prometheus.GaugeVec
}

var defaultVectors = &vectors{
	invocations:    StageInvocationsTotal,
	duration:       StageDurationSeconds,
	emissions:      StageEmissionsTotal,
	gatherBranches: GatherBranchesActive,
}

// forNamespace returns the package defaults when cfg selects the default
// namespace (or is nil), otherwise builds a fresh, unregistered vector set
// scoped to cfg.PrometheusNamespace. Vectors built here are deliberately
// not handed to promauto's global registerer: a second Config sharing a
// namespace would otherwise collide with an AlreadyRegisteredError.
func forNamespace(cfg *engineconfig.Config) *vectors {
	if cfg == nil || cfg.PrometheusNamespace == "" || cfg.PrometheusNamespace == defaultNamespace {
		return defaultVectors
	}
	ns := cfg.PrometheusNamespace
	return &vectors{
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "stage_invocations_total",
			Help:      "Total number of Stage invocations, labeled by stage name and outcome.",
		}, []string{"stage", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "stage_duration_seconds",
			Help:      "Duration of a Stage invocation from the start of its sequence to drain.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
		emissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "stage_emissions_total",
			Help:      "Total Emissions produced, labeled by stage name and finality.",
		}, []string{"stage", "final"}),
		gatherBranches: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "gather_branches_active",
			Help:      "Number of in-flight ObserveGather invocations, labeled by stage name.",
		}, []string{"stage"}),
	}
}

func (v *vectors) observeInvocation(stageName string, started time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	v.invocations.WithLabelValues(stageName, outcome).Inc()
	v.duration.WithLabelValues(stageName).Observe(time.Since(started).Seconds())
}

func (v *vectors) observeEmission(stageName string, final bool) {
	v.emissions.WithLabelValues(stageName, strconv.FormatBool(final)).Inc()
}

// ObserveInvocation records the outcome and duration of a single Stage
// invocation against the default namespace's vectors.
func ObserveInvocation(stageName string, started time.Time, err error) {
	defaultVectors.observeInvocation(stageName, started, err)
}

// ObserveEmission records one Emission produced by stageName against the
// default namespace's vectors.
func ObserveEmission(stageName string, final bool) {
	defaultVectors.observeEmission(stageName, final)
}

// Observe wraps s so every invocation reports stage_invocations_total,
// stage_duration_seconds and stage_emissions_total under cfg's namespace
// (the default "langstream" namespace if cfg is nil). It otherwise passes
// every Emission through unaltered.
func Observe[T, U any](cfg *engineconfig.Config, s *stage.Stage[T, U]) *stage.Stage[T, U] {
	v := forNamespace(cfg)
	run := func(input T) asyncseq.Seq[emission.Emission] {
		return func(ctx context.Context) <-chan asyncseq.Item[emission.Emission] {
			out := make(chan asyncseq.Item[emission.Emission])
			go func() {
				defer close(out)
				started := time.Now()
				var failure error
				for item := range s.Invoke(input)(ctx) {
					if item.Err != nil {
						failure = item.Err
					} else {
						v.observeEmission(s.Name(), item.Value.Final)
					}
					select {
					case out <- item:
					case <-ctx.Done():
						return
					}
					if item.Err != nil {
						break
					}
				}
				v.observeInvocation(s.Name(), started, failure)
			}()
			return out
		}
	}
	return stage.New[T, U](s.Name(), run)
}

// ObserveSingle is Observe specialized for SingleOutputStage, preserving
// its type rather than decaying to a plain Stage.
func ObserveSingle[T, U any](cfg *engineconfig.Config, s *stage.SingleOutputStage[T, U]) *stage.SingleOutputStage[T, U] {
	wrapped := Observe[T, U](cfg, &s.Stage)
	return &stage.SingleOutputStage[T, U]{Stage: *wrapped}
}

// ObserveGather wraps a GatherStage composition, additionally tracking
// gather_branches_active around each in-flight invocation's lifetime.
func ObserveGather[T, V any](cfg *engineconfig.Config, s *stage.Stage[T, asyncseq.Seq[V]]) *stage.SingleOutputStage[T, [][]V] {
	v := forNamespace(cfg)
	gathered := ObserveSingle(cfg, stage.GatherStage[T, V](s))
	run := func(input T) asyncseq.Seq[emission.Emission] {
		return func(ctx context.Context) <-chan asyncseq.Item[emission.Emission] {
			out := make(chan asyncseq.Item[emission.Emission])
			v.gatherBranches.WithLabelValues(gathered.Name()).Inc()
			go func() {
				defer close(out)
				defer v.gatherBranches.WithLabelValues(gathered.Name()).Dec()
				for item := range gathered.Invoke(input)(ctx) {
					select {
					case out <- item:
					case <-ctx.Done():
						return
					}
					if item.Err != nil {
						return
					}
				}
			}()
			return out
		}
	}
	return &stage.SingleOutputStage[T, [][]V]{Stage: *stage.New[T, [][]V](gathered.Name(), run)}
}
