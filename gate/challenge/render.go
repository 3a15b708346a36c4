package challenge

import (
	"fmt"
	"strconv"
	"strings"
)

// Label joins the configured button prefix with an option value.
func Label(prefix string, value int) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return strconv.Itoa(value)
	}
	return prefix + " " + strconv.Itoa(value)
}

// Question renders the puzzle line, e.g. "4 + 3 = ?".
func (c Challenge) Question() string {
	return fmt.Sprintf("%d + %d = ?", c.Left, c.Right)
}

// Text combines the instruction with the rendered puzzle.
func (c Challenge) Text(instruction string) string {
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		return c.Question()
	}
	return instruction + "\n\n" + c.Question()
}

// Values returns option values in presentation order.
func (c Challenge) Values() []int {
	out := make([]int, len(c.Options))
	for i, o := range c.Options {
		out[i] = o.Value
	}
	return out
}
