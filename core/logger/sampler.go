package logger

import (
	"strconv"
	"strings"
	"sync/atomic"
)

// sampler lets num out of every den events through. A zero ratio lets
// everything through.
type sampler struct {
	ratio atomic.Uint64 // num<<32 | den
	seq   atomic.Uint64
}

func newSampler(num, den int) *sampler {
	s := &sampler{}
	s.Set(num, den)
	return s
}

func (s *sampler) Set(num, den int) {
	if num <= 0 || den <= 0 {
		num, den = 0, 0
	}
	if num > den {
		num = den
	}
	s.ratio.Store(uint64(num)<<32 | uint64(uint32(den)))
	s.seq.Store(0)
}

func (s *sampler) Allow() bool {
	r := s.ratio.Load()
	num, den := r>>32, r&0xffffffff
	if num == 0 || den == 0 {
		return true
	}
	return (s.seq.Add(1)-1)%den < num
}

// parseRatio accepts "n/d" or "d" (meaning 1/d). Anything unparsable,
// and "0", disables sampling.
func parseRatio(raw string) (int, int) {
	raw = strings.TrimSpace(raw)
	if n, d, ok := strings.Cut(raw, "/"); ok {
		num, err1 := strconv.Atoi(strings.TrimSpace(n))
		den, err2 := strconv.Atoi(strings.TrimSpace(d))
		if err1 == nil && err2 == nil {
			return num, den
		}
		return 0, 0
	}
	if d, err := strconv.Atoi(raw); err == nil && d > 0 {
		return 1, d
	}
	return 0, 0
}
