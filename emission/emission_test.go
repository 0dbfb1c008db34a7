package emission_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rogeriochaves/langstream/emission"
)

func TestValue(t *testing.T) {
	e := emission.Value("Words", "hello", true)
	assert.Equal(t, emission.StageName("Words"), e.Stage)
	assert.Equal(t, "hello", e.Data)
	assert.True(t, e.Final)
}

func TestPassthrough(t *testing.T) {
	e := emission.Value("Words", "hello", true)
	p := emission.Passthrough(e)
	assert.Equal(t, e.Stage, p.Stage)
	assert.Equal(t, e.Data, p.Data)
	assert.False(t, p.Final)
}

func TestRenderPlainValue(t *testing.T) {
	e := emission.Value("Words", 42, true)
	assert.Equal(t, "42", emission.Render(e))
}

type renderableData struct{ label string }

func (r renderableData) Render() string { return "<" + r.label + ">" }

func TestRenderUsesRenderer(t *testing.T) {
	e := emission.Value("Words", renderableData{label: "x"}, true)
	assert.Equal(t, "<x>", emission.Render(e))
}

func TestStringFinality(t *testing.T) {
	final := emission.Value("Words", "hi", true)
	nonFinal := emission.Value("Words", "hi", false)
	assert.Contains(t, final.String(), "=")
	assert.Contains(t, nonFinal.String(), "~")
}
