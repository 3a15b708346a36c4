package challenge

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateWellFormed(t *testing.T) {
	g := NewGenerator("Answer", rand.NewPCG(1, 2))
	for i := 0; i < 2000; i++ {
		c := g.Generate()

		require.GreaterOrEqual(t, c.Left, 2)
		require.LessOrEqual(t, c.Left, 9)
		require.GreaterOrEqual(t, c.Right, 1)
		require.LessOrEqual(t, c.Right, 8)
		require.Equal(t, c.Left+c.Right, c.Expected)
		require.Len(t, c.Options, OptionCount)

		seen := map[int]int{}
		for _, o := range c.Options {
			seen[o.Value]++
			assert.LessOrEqual(t, o.Value, c.Expected+5)
			assert.GreaterOrEqual(t, o.Value, c.Expected-5)
			assert.Equal(t, Label("Answer", o.Value), o.Label)
		}
		require.Len(t, seen, OptionCount, "options must be distinct")
		require.Equal(t, 1, seen[c.Expected])
		require.Contains(t, c.Values(), c.Expected)
	}
}

func TestGenerateShufflesCorrectPosition(t *testing.T) {
	g := NewGenerator("", rand.NewPCG(7, 7))
	positions := map[int]int{}
	for i := 0; i < 400; i++ {
		c := g.Generate()
		positions[slices.Index(c.Values(), c.Expected)]++
	}
	assert.Len(t, positions, OptionCount, "correct answer should appear in every slot")
	assert.NotContains(t, positions, -1)
}

func TestRender(t *testing.T) {
	c := Challenge{Left: 4, Right: 3, Expected: 7}
	assert.Equal(t, "4 + 3 = ?", c.Question())
	assert.Equal(t, "Solve it\n\n4 + 3 = ?", c.Text("Solve it"))
	assert.Equal(t, "4 + 3 = ?", c.Text("  "))
	assert.Equal(t, "7", Label("", 7))
	assert.Equal(t, "Pick 7", Label("Pick", 7))

	c.Options = []Option{{Value: 9}, {Value: 7}, {Value: 5}}
	assert.Equal(t, []int{9, 7, 5}, c.Values())
}
