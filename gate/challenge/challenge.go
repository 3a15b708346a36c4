// Package challenge builds the arithmetic puzzles shown to join requesters.
package challenge

import (
	"math/rand/v2"
	"sync"
)

const (
	// OptionCount is the number of answer buttons presented to the user.
	OptionCount = 4

	minLeft  = 2
	maxLeft  = 9
	minRight = 1
	maxRight = 8
	spread   = 5
)

// Option is a single selectable answer.
type Option struct {
	Value int
	Label string
}

// Challenge is a generated "left + right = ?" puzzle with shuffled options.
type Challenge struct {
	Left     int
	Right    int
	Expected int
	Options  []Option
}

// Generator produces challenges. Implementations must be safe for concurrent use.
type Generator interface {
	Generate() Challenge
}

// RandomGenerator draws operands and decoys from a pseudo-random source.
type RandomGenerator struct {
	mu     sync.Mutex
	rnd    *rand.Rand
	prefix string
}

// NewGenerator returns a generator that labels options with prefix.
// A nil src seeds from the runtime's random source.
func NewGenerator(prefix string, src rand.Source) *RandomGenerator {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &RandomGenerator{rnd: rand.New(src), prefix: prefix}
}

// Generate implements Generator.
func (g *RandomGenerator) Generate() Challenge {
	g.mu.Lock()
	defer g.mu.Unlock()

	left := minLeft + g.rnd.IntN(maxLeft-minLeft+1)
	right := minRight + g.rnd.IntN(maxRight-minRight+1)
	expected := left + right

	seen := map[int]struct{}{expected: {}}
	values := []int{expected}
	for len(values) < OptionCount {
		v := expected + g.rnd.IntN(2*spread+1) - spread
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		values = append(values, v)
	}
	g.rnd.Shuffle(len(values), func(i, j int) { values[i], values[j] = values[j], values[i] })

	options := make([]Option, len(values))
	for i, v := range values {
		options[i] = Option{Value: v, Label: Label(g.prefix, v)}
	}
	return Challenge{Left: left, Right: right, Expected: expected, Options: options}
}
