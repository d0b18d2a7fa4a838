package sampler

import "hash/fnv"

// splitMix64 is a small, fully deterministic generator. Its output depends
// only on the seed, so permutations are stable across Go releases, which
// math/rand does not promise.
type splitMix64 struct{ state uint64 }

func newRand(seed, stream string) *splitMix64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(seed + ":" + stream))
	return &splitMix64{state: h.Sum64()}
}

func (r *splitMix64) next() uint64 {
	r.state += 0x9e3779b97f4a7c15
	z := r.state
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// intn returns a value in [0, n) using rejection to avoid modulo bias.
func (r *splitMix64) intn(n int) int {
	if n <= 1 {
		return 0
	}
	bound := uint64(n)
	limit := ^uint64(0) - (^uint64(0) % bound)
	for {
		v := r.next()
		if v < limit {
			return int(v % bound)
		}
	}
}

// shuffle returns a Fisher-Yates permutation of ids; the input is not modified.
func shuffle(ids []string, seed, stream string) []string {
	out := make([]string, len(ids))
	copy(out, ids)
	r := newRand(seed, stream)
	for i := len(out) - 1; i > 0; i-- {
		j := r.intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}
