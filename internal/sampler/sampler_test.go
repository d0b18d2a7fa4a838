package sampler

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s-%02d", prefix, i)
	}
	return out
}

func countPrefix(sel []string, prefix string) int {
	n := 0
	for _, id := range sel {
		if len(id) > len(prefix) && id[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

func assertUnique(t *testing.T, sel []string) {
	t.Helper()
	seen := map[string]bool{}
	for _, id := range sel {
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestQuotas(t *testing.T) {
	cases := []struct {
		n    int
		w    Weights
		want Quota
	}{
		{10, Weights{30, 50, 20}, Quota{3, 5, 2}},
		{10, Weights{1, 1, 1}, Quota{3, 3, 4}},
		{7, Weights{0, 0, 1}, Quota{0, 0, 7}},
		{1, Weights{1, 1, 0}, Quota{0, 0, 1}},
		{0, Weights{1, 1, 1}, Quota{}},
	}
	for _, c := range cases {
		got, err := Quotas(c.n, c.w)
		require.NoError(t, err)
		assert.Equal(t, c.want, got, "n=%d w=%+v", c.n, c.w)
		assert.Equal(t, c.want.Easy+c.want.Medium+c.want.Hard, c.n)
	}

	_, err := Quotas(10, Weights{})
	assert.ErrorIs(t, err, ErrZeroWeights)
	_, err = Quotas(10, Weights{-1, 2, 2})
	assert.ErrorIs(t, err, ErrNegativeWeight)
}

func TestSampleEndToEndTopicBlueprint(t *testing.T) {
	pools := Pools{Easy: ids("e", 5), Medium: ids("m", 8), Hard: ids("h", 2)}

	sel, err := Sample(10, Weights{30, 50, 20}, pools, "seed-1")
	require.NoError(t, err)

	assert.Equal(t, Quota{3, 5, 2}, sel.Quota)
	assert.Equal(t, Quota{3, 5, 2}, sel.Drawn)
	assert.Zero(t, sel.Filled)
	assert.Len(t, sel.IDs, 10)
	assertUnique(t, sel.IDs)
	assert.Equal(t, 3, countPrefix(sel.IDs, "e-"))
	assert.Equal(t, 5, countPrefix(sel.IDs, "m-"))
	assert.Equal(t, 2, countPrefix(sel.IDs, "h-"))
}

func TestSampleIsDeterministic(t *testing.T) {
	pools := Pools{Easy: ids("e", 20), Medium: ids("m", 20), Hard: ids("h", 20)}
	w := Weights{1, 2, 1}

	a, err := Sample(15, w, pools, "abc")
	require.NoError(t, err)
	b, err := Sample(15, w, pools, "abc")
	require.NoError(t, err)
	assert.Equal(t, a.IDs, b.IDs)

	reordered := Pools{Easy: reverse(pools.Easy), Medium: reverse(pools.Medium), Hard: reverse(pools.Hard)}
	c, err := Sample(15, w, reordered, "abc")
	require.NoError(t, err)
	assert.Equal(t, a.IDs, c.IDs, "pool input order must not matter")

	d, err := Sample(15, w, pools, "xyz")
	require.NoError(t, err)
	assert.NotEqual(t, a.IDs, d.IDs)
}

func TestSampleCarriesShortfallForward(t *testing.T) {
	pools := Pools{Easy: ids("e", 1), Medium: ids("m", 10), Hard: ids("h", 10)}

	sel, err := Sample(10, Weights{30, 50, 20}, pools, "carry")
	require.NoError(t, err)

	assert.Len(t, sel.IDs, 10)
	assert.Equal(t, Quota{1, 7, 2}, sel.Drawn)
	assert.Zero(t, sel.Filled)
	assertUnique(t, sel.IDs)
}

func TestSampleCarriesIntoHard(t *testing.T) {
	pools := Pools{Easy: ids("e", 1), Medium: ids("m", 2), Hard: ids("h", 10)}

	sel, err := Sample(10, Weights{30, 50, 20}, pools, "carry")
	require.NoError(t, err)
	assert.Equal(t, Quota{1, 2, 7}, sel.Drawn)
	assert.Len(t, sel.IDs, 10)
}

func TestSampleFallsBackToUnion(t *testing.T) {
	pools := Pools{Easy: ids("e", 5), Medium: ids("m", 1)}

	sel, err := Sample(5, Weights{0, 0, 1}, pools, "fb")
	require.NoError(t, err)

	assert.Equal(t, Quota{0, 0, 5}, sel.Quota)
	assert.Equal(t, Quota{}, sel.Drawn)
	assert.Equal(t, 5, sel.Filled)
	assert.Len(t, sel.IDs, 5)
	assertUnique(t, sel.IDs)
}

func TestSampleShortPoolsReturnEverything(t *testing.T) {
	pools := Pools{Easy: ids("e", 2), Medium: ids("m", 1), Hard: ids("h", 1)}

	sel, err := Sample(10, Weights{1, 1, 1}, pools, "short")
	require.NoError(t, err)
	assert.Len(t, sel.IDs, 4)
	assertUnique(t, sel.IDs)
}

func TestSampleEmptyPools(t *testing.T) {
	sel, err := Sample(10, Weights{1, 1, 1}, Pools{}, "empty")
	require.NoError(t, err)
	assert.Empty(t, sel.IDs)
}

func TestShuffleIsPermutation(t *testing.T) {
	in := ids("q", 30)
	out := shuffle(in, "s", "easy")
	assert.ElementsMatch(t, in, out)
	assert.NotEqual(t, in, out)
	assert.Equal(t, "q-00", in[0], "input must not be modified")
	assert.NotEqual(t, out, shuffle(in, "s", "medium"))
}

func reverse(in []string) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[len(in)-1-i] = v
	}
	return out
}
