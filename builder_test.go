package hsm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nanohsm/hsm"
)

// TestInitialSugar exercises Builder.Initial() as the common case: a
// statically fixed default child, with no custom Init hook, as opposed to
// graph_g_test.go's explicit-Init-everywhere construction.
func TestInitialSugar(t *testing.T) {
	def := hsm.NewDefinition[*graphCtx, int]()

	var parent, child1, child2 hsm.StateId[*graphCtx, int]

	parent = def.Top().Named("parent").
		Entry(func(c *graphCtx) { c.trace("+parent") }).
		Initial().
		Handle(func(c *graphCtx, e int) hsm.HandleOutcome[*graphCtx, int] {
			return hsm.Ignored[*graphCtx, int]()
		}).
		Build()

	child1 = parent.State("child1").
		Entry(func(c *graphCtx) { c.trace("+child1") }).
		Initial().
		Handle(func(c *graphCtx, e int) hsm.HandleOutcome[*graphCtx, int] {
			return hsm.Ignored[*graphCtx, int]()
		}).
		Build()

	child2 = parent.State("child2").
		Handle(func(c *graphCtx, e int) hsm.HandleOutcome[*graphCtx, int] {
			return hsm.Ignored[*graphCtx, int]()
		}).
		Build()

	def.Finalize()

	assert.True(t, child1.IsInitial())
	assert.False(t, child2.IsInitial())
	assert.False(t, child1.HasDynamicInit())

	ctx := &graphCtx{}
	m := hsm.NewPrecursor[*graphCtx, int](def, ctx).Init()
	require.Equal(t, child1, m.Current())
	assert.Equal(t, "+parent\n+child1\n", ctx.buf.String())
}

func TestParentAccessors(t *testing.T) {
	def := hsm.NewDefinition[*graphCtx, int]()
	parent := def.Top().Named("parent").
		Entry(func(*graphCtx) {}).
		Exit(func(*graphCtx) {}).
		Initial().
		Handle(func(c *graphCtx, e int) hsm.HandleOutcome[*graphCtx, int] { return hsm.Ignored[*graphCtx, int]() }).
		Build()
	child := parent.State("child").Initial().
		Handle(func(c *graphCtx, e int) hsm.HandleOutcome[*graphCtx, int] { return hsm.Ignored[*graphCtx, int]() }).
		Build()
	def.Finalize()

	link := child.Parent()
	assert.False(t, link.TopReached)
	assert.Equal(t, parent, link.Parent)

	topLink := parent.Parent()
	assert.True(t, topLink.TopReached)

	assert.True(t, parent.HasEntry())
	assert.True(t, parent.HasExit())
	assert.False(t, child.HasEntry())
	assert.False(t, child.HasExit())

	assert.Equal(t, []hsm.StateId[*graphCtx, int]{child}, parent.Children())
	assert.Equal(t, []hsm.StateId[*graphCtx, int]{parent}, def.Roots())
}

func TestZeroStateId(t *testing.T) {
	var z hsm.StateId[*graphCtx, int]
	assert.True(t, z.IsZero())
	assert.Equal(t, "", z.Name())
	assert.Equal(t, "", z.String())
}
