package types

import (
	"math"
	"math/rand/v2"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaV1IsPrefixOfV2(t *testing.T) {
	v1, err := SchemaForVersion(1)
	require.NoError(t, err)
	v2 := DefaultGeneSchema()

	require.Equal(t, 7, v1.Len())
	require.Equal(t, 13, v2.Len())
	assert.Equal(t, v2.Names()[:7], v1.Names())

	_, err = SchemaForVersion(3)
	assert.Error(t, err)
}

func TestGeneSchema_Midpoints(t *testing.T) {
	schema := DefaultGeneSchema()
	mid := schema.Midpoints()
	assert.InDelta(t, 0.075, mid[IdxMinEdge], 1e-12)
	assert.InDelta(t, 0.275, mid[IdxKellyFraction], 1e-12)
	assert.InDelta(t, 0.0525, mid[IdxMaxStake], 1e-12)
	assert.InDelta(t, 1.0, mid[IdxHomeVenueBias], 1e-12)
	assert.InDelta(t, 0.6, mid[IdxDrawThreshold], 1e-12)
	assert.True(t, schema.InBounds(mid))
}

func TestGeneSchema_Pad(t *testing.T) {
	schema := DefaultGeneSchema()
	old := []float64{0.01, 0.4, 0.2, 0.3, 0.4, 0.1, 0.02}

	padded, err := schema.Pad(old)
	require.NoError(t, err)
	require.Len(t, padded, 13)
	assert.Equal(t, old, padded[:7])
	for i := 7; i < 13; i++ {
		assert.Equal(t, schema.Genes[i].Midpoint(), padded[i])
	}

	_, err = schema.Pad(make([]float64, 14))
	assert.Error(t, err)
}

func TestGeneSchema_ClipAndRandom(t *testing.T) {
	schema := DefaultGeneSchema()
	dna := make([]float64, 13)
	for i := range dna {
		dna[i] = 5
	}
	schema.Clip(dna)
	assert.True(t, schema.InBounds(dna))
	assert.Equal(t, 0.15, dna[IdxMinEdge])

	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 100; i++ {
		assert.True(t, schema.InBounds(schema.RandomDNA(rng)))
	}
	assert.False(t, schema.InBounds(dna[:7]))
}

func TestGeneSchema_MapRoundTrip(t *testing.T) {
	schema := DefaultGeneSchema()
	dna := schema.Midpoints()
	dna[IdxKellyFraction] = 0.1

	m := schema.ToMap(dna)
	assert.Equal(t, 0.1, m[GeneKellyFraction])
	assert.Equal(t, dna, schema.FromMap(m))

	// absent genes fall back to midpoints, out-of-range values are clipped
	got := schema.FromMap(map[string]float64{GeneMaxStake: 2})
	assert.Equal(t, 0.10, got[IdxMaxStake])
	assert.Equal(t, schema.Genes[IdxBayesTrust].Midpoint(), got[IdxBayesTrust])
	assert.Equal(t, -1, schema.Index("nope"))
}

func TestParseSide(t *testing.T) {
	cases := map[string]Side{
		"home": SideHome, " H ": SideHome, "1": SideHome,
		"draw": SideDraw, "X": SideDraw,
		"away": SideAway, "2": SideAway,
		"": SideUnknown, "void": SideUnknown,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseSide(in), in)
	}
	assert.Equal(t, "draw", SideDraw.String())
}

func TestEvent_Admissibility(t *testing.T) {
	ev := Event{PickSide: SideHome, Outcome: SideHome, ImpliedProb: 0.5, Odds: 2}
	assert.True(t, ev.Admissible())
	assert.True(t, ev.Won())

	pending := ev
	pending.Outcome = SideUnknown
	assert.False(t, pending.Admissible())
	assert.True(t, pending.Priceable())
	assert.False(t, pending.Won())

	noOdds := ev
	noOdds.Odds = 0
	assert.InDelta(t, 2.0, noOdds.DecimalOdds(), 1e-12)
	assert.True(t, noOdds.Admissible())

	zeroImplied := ev
	zeroImplied.ImpliedProb = 0
	assert.False(t, zeroImplied.Priceable())

	evenMoney := ev
	evenMoney.Odds = 1
	assert.False(t, evenMoney.Admissible())

	nanModel := ev
	nanModel.ModelProb = math.NaN()
	assert.False(t, nanModel.Finite())
	assert.False(t, nanModel.Admissible())
	assert.False(t, nanModel.Priceable())

	infOdds := ev
	infOdds.Odds = math.Inf(1)
	assert.False(t, infOdds.Admissible())

	nanSignal := ev
	nanSignal.H2HWeight = math.NaN()
	assert.False(t, nanSignal.Admissible())
	assert.True(t, ev.Finite())
}

func TestSafeName(t *testing.T) {
	assert.Equal(t, "_global", SafeName(GlobalPartition))
	assert.Equal(t, "ENG", SafeName("ENG"))
	assert.Equal(t, "A_B", SafeName("A_B"))

	spaced := SafeName("Serie A")
	assert.True(t, strings.HasPrefix(spaced, "Serie_A~"), spaced)
	assert.Len(t, spaced, len("Serie_A~")+8)
	assert.Equal(t, spaced, SafeName("Serie A"))

	// keys that sanitize to the same token still get distinct names
	assert.NotEqual(t, SafeName("A B"), SafeName("A_B"))
	assert.NotEqual(t, SafeName("A B"), SafeName("A/B"))

	for _, key := range []string{"", ".", "..", "../x", "a/b\\c"} {
		name := SafeName(key)
		assert.NotContains(t, name, "/", key)
		assert.NotContains(t, name, "\\", key)
		assert.NotEqual(t, ".", name)
		assert.NotEqual(t, "..", name)
		assert.Equal(t, name, filepath.Base(filepath.Join("/dir", name)), key)
	}
}
