package stage_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rogeriochaves/langstream/asyncseq"
	"github.com/rogeriochaves/langstream/emission"
	"github.com/rogeriochaves/langstream/optional"
	"github.com/rogeriochaves/langstream/pipelineerr"
	"github.com/rogeriochaves/langstream/stage"
)

func numbers(n int) asyncseq.Seq[int] {
	values := make([]int, n)
	for i := range values {
		values[i] = i
	}
	return asyncseq.FromValues(values...)
}

// raisingStage builds a Stage whose invocation fails immediately with err.
func raisingStage(name string, err error) *stage.Stage[string, string] {
	return stage.New[string, string](name, func(input string) asyncseq.Seq[emission.Emission] {
		return func(ctx context.Context) <-chan asyncseq.Item[emission.Emission] {
			out := make(chan asyncseq.Item[emission.Emission], 1)
			out <- asyncseq.Item[emission.Emission]{Err: err}
			close(out)
			return out
		}
	})
}

func TestMapNamesComposedStage(t *testing.T) {
	base := stage.FromSeq[int, int]("N", numbers)
	doubled := stage.Map[int, int, int](base, func(x int) int { return x * 2 })
	assert.Equal(t, "N@map", doubled.Name())
}

func TestFilterNamesComposedStage(t *testing.T) {
	base := stage.FromSeq[int, int]("N", numbers)
	evens := stage.Filter[int, int](base, func(x int) bool { return x%2 == 0 })
	assert.Equal(t, "N@filter", evens.Name())
}

func TestAndThenFuncAccumulatesAllFinals(t *testing.T) {
	base := stage.FromSeq[int, int]("N", numbers)
	summed := stage.AndThenFunc[int, int, int](base, func(vs []int) int {
		total := 0
		for _, v := range vs {
			total += v
		}
		return total
	})
	assert.Equal(t, "N@and_then", summed.Name())

	items, err := asyncseq.Collect(context.Background(), summed.Invoke(5))
	require.NoError(t, err)

	var finals []int
	for _, e := range items {
		if e.Final {
			finals = append(finals, e.Data.(int))
		}
	}
	assert.Equal(t, []int{10}, finals)
}

func TestAndThenStageAdoptsName(t *testing.T) {
	base := stage.FromSeq[int, int]("N", numbers)
	sumStage := stage.FromSeq[[]int, int]("Sum", func(vs []int) asyncseq.Seq[int] {
		total := 0
		for _, v := range vs {
			total += v
		}
		return asyncseq.FromValues(total)
	})
	composed := stage.AndThenStage[int, int, int](base, sumStage)
	assert.Equal(t, "Sum", composed.Name())

	out, err := asyncseq.Collect(context.Background(), composed.Invoke(4))
	require.NoError(t, err)

	var finals []int
	for _, e := range out {
		if e.Final {
			finals = append(finals, e.Data.(int))
		}
	}
	assert.Equal(t, []int{6}, finals)
}

func TestCollectThenCollectWrapsInAnotherLayer(t *testing.T) {
	base := stage.FromSeq[int, int]("N", numbers)
	collected := stage.Collect[int, int](base)
	twice := stage.Collect[int, []int](&collected.Stage)

	out, err := asyncseq.Collect(context.Background(), twice.Invoke(3))
	require.NoError(t, err)

	var finals []any
	for _, e := range out {
		if e.Final {
			finals = append(finals, e.Data)
		}
	}
	require.Len(t, finals, 1)
	assert.Equal(t, [][]int{{0, 1, 2}}, finals[0])
}

func TestJoinStageConcatenates(t *testing.T) {
	base := stage.FromSeq[int, string]("Letters", func(n int) asyncseq.Seq[string] {
		return asyncseq.FromValues("a", "b", "c")
	})
	joined := stage.JoinStage[int](base, "-")

	out, err := asyncseq.Collect(context.Background(), joined.Invoke(0))
	require.NoError(t, err)

	var finals []any
	for _, e := range out {
		if e.Final {
			finals = append(finals, e.Data)
		}
	}
	require.Len(t, finals, 1)
	assert.Equal(t, "a-b-c", finals[0])
}

func TestSingleOutputDoubleFinalViolatesInvariant(t *testing.T) {
	doubled := stage.New[int, int]("Doubled", func(input int) asyncseq.Seq[emission.Emission] {
		return asyncseq.FromValues(
			emission.Value("Doubled", 1, true),
			emission.Value("Doubled", 2, true),
		)
	})
	single := &stage.SingleOutputStage[int, int]{Stage: *doubled}
	mapped := stage.MapSingle[int, int, int](single, func(n int) int { return n })

	_, err := asyncseq.Collect(context.Background(), mapped.Invoke(0))
	require.Error(t, err)

	var iv *pipelineerr.InvariantViolation
	assert.ErrorAs(t, err, &iv)
}

func TestFilterSingleReturnsOptional(t *testing.T) {
	leaf := stage.FromFunc[int, int]("Value", func(n int) int { return n })
	filtered := stage.FilterSingle[int, int](leaf, func(n int) bool { return n > 10 })

	// The leaf's own final is re-emitted as a passthrough before the
	// filtered final.
	out, err := asyncseq.Collect(context.Background(), filtered.Invoke(5))
	require.NoError(t, err)
	require.Len(t, out, 2)
	opt := out[1].Data.(optional.Optional[int])
	assert.False(t, opt.IsPresent())

	out2, err := asyncseq.Collect(context.Background(), filtered.Invoke(20))
	require.NoError(t, err)
	opt2 := out2[1].Data.(optional.Optional[int])
	v, ok := opt2.Get()
	assert.True(t, ok)
	assert.Equal(t, 20, v)
}

func TestMapSingleAppliesToSoleFinal(t *testing.T) {
	leaf := stage.FromFunc[int, int]("Value", func(n int) int { return n })
	mapped := stage.MapSingle[int, int, string](leaf, func(n int) string {
		if n%2 == 0 {
			return "even"
		}
		return "odd"
	})

	out, err := asyncseq.Collect(context.Background(), mapped.Invoke(4))
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "even", out[1].Data)
}

func TestOnErrorStageAdoptsHandlerName(t *testing.T) {
	raising := raisingStage("Fails", errors.New("boom"))
	handler := stage.FromFunc[error, string]("Recover", func(err error) string {
		return "handled: " + err.Error()
	})

	recovered := stage.OnErrorStage[string, string](raising, &handler.Stage)
	assert.Equal(t, "Recover", recovered.Name())

	out, err := asyncseq.Collect(context.Background(), recovered.Invoke("x"))
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.False(t, out[0].Final)
	assert.True(t, out[1].Final)
	assert.Equal(t, "handled: boom", out[1].Data)
}

func TestOnErrorFuncSuffixesName(t *testing.T) {
	raising := raisingStage("Fails", errors.New("boom"))
	recovered := stage.OnErrorFunc[string, string](raising, func(err error) string {
		return "handled: " + err.Error()
	})
	assert.Equal(t, "Fails@on_error", recovered.Name())
}

func TestInvariantViolationMessage(t *testing.T) {
	err := pipelineerr.NewInvariantViolation("X", "boom")
	assert.Contains(t, err.Error(), "boom")
	assert.Contains(t, err.Error(), "X")
}
