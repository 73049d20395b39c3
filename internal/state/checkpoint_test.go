package state

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	engineerrors "github.com/ducminhle1904/dna-evolution/internal/errors"
	"github.com/ducminhle1904/dna-evolution/internal/logger"
	"github.com/ducminhle1904/dna-evolution/pkg/optimization"
	"github.com/ducminhle1904/dna-evolution/pkg/types"
)

func sampleState(schema *types.GeneSchema, partition string, rows int) *optimization.SearchState {
	pop := mat.NewDense(rows, schema.Len(), nil)
	for i := 0; i < rows; i++ {
		dna := schema.Midpoints()
		dna[0] = schema.Genes[0].Min + float64(i)*0.01
		pop.SetRow(i, dna)
	}
	return &optimization.SearchState{
		Partition:     partition,
		SchemaVersion: schema.Version,
		GeneNames:     schema.Names(),
		Generation:    12,
		Budget:        30,
		Population:    pop,
		History: []optimization.GenerationStats{
			{Generation: 10, Best: 0.1, Mean: -0.3, MutationRate: 0.1},
			{Generation: 11, Best: 0.12345678901234567, Mean: -0.2, MutationRate: 0.4, Radiation: true},
		},
		BestFitness: 0.12345678901234567,
		BestDNA:     pop.RawRowView(1),
		Stagnation:  2,
		Seed:        42,
		RNGState:    []byte{1, 2, 3, 250},
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	schema := types.DefaultGeneSchema()
	store := NewStore(t.TempDir(), schema, nil)

	saved := sampleState(schema, "ENG", 4)
	require.NoError(t, store.Save(saved))
	assert.True(t, store.Exists("ENG"))

	loaded, err := store.Load("ENG")
	require.NoError(t, err)
	assert.True(t, mat.Equal(saved.Population, loaded.Population))
	assert.Equal(t, saved.History, loaded.History)
	assert.Equal(t, saved.BestFitness, loaded.BestFitness)
	assert.Equal(t, saved.BestDNA, loaded.BestDNA)
	assert.Equal(t, saved.RNGState, loaded.RNGState)
	assert.Equal(t, 12, loaded.Generation)
	assert.Equal(t, 30, loaded.Budget)
	assert.Equal(t, 2, loaded.Stagnation)
	assert.Equal(t, uint64(42), loaded.Seed)
	assert.Equal(t, schema.Names(), loaded.GeneNames)

	// no temp files left behind
	entries, err := os.ReadDir(store.dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), ".tmp"), e.Name())
	}
	assert.Len(t, entries, 2)
}

func TestSaveLoad_NoBestYet(t *testing.T) {
	schema := types.DefaultGeneSchema()
	store := NewStore(t.TempDir(), schema, nil)

	st := sampleState(schema, "ENG", 2)
	st.BestFitness = math.Inf(-1)
	st.BestDNA = nil
	require.NoError(t, store.Save(st))

	loaded, err := store.Load("ENG")
	require.NoError(t, err)
	assert.True(t, math.IsInf(loaded.BestFitness, -1))
	assert.Empty(t, loaded.BestDNA)
}

func TestLoad_PadsNarrowCheckpoint(t *testing.T) {
	dir := t.TempDir()
	v1, err := types.SchemaForVersion(1)
	require.NoError(t, err)
	v2 := types.DefaultGeneSchema()

	old := sampleState(v1, "ITA", 3)
	require.NoError(t, NewStore(dir, v1, nil).Save(old))

	var audit bytes.Buffer
	store := NewStore(dir, v2, logger.NewWriterLogger(&audit, "ITA"))
	loaded, err := store.Load("ITA")
	require.NoError(t, err)

	rows, cols := loaded.Population.Dims()
	require.Equal(t, 3, rows)
	require.Equal(t, 13, cols)
	for i := 0; i < rows; i++ {
		row := loaded.Population.RawRowView(i)
		assert.Equal(t, old.Population.RawRowView(i), row[:7])
		for g := 7; g < 13; g++ {
			assert.Equal(t, v2.Genes[g].Midpoint(), row[g], "gene %s", v2.Genes[g].Name)
		}
	}
	assert.Nil(t, loaded.BestDNA)
	assert.True(t, math.IsInf(loaded.BestFitness, -1))
	assert.Equal(t, 0, loaded.Stagnation)
	assert.Equal(t, 12, loaded.Generation)
	assert.Equal(t, v2.Version, loaded.SchemaVersion)
	assert.Equal(t, v2.Names(), loaded.GeneNames)

	assert.Contains(t, audit.String(), `"event":"padding"`)
	assert.Contains(t, audit.String(), `"from_genes":7`)
}

func TestLoad_WiderCheckpointIsSchemaMismatch(t *testing.T) {
	dir := t.TempDir()
	v1, err := types.SchemaForVersion(1)
	require.NoError(t, err)
	v2 := types.DefaultGeneSchema()

	require.NoError(t, NewStore(dir, v2, nil).Save(sampleState(v2, "ESP", 2)))

	_, err = NewStore(dir, v1, nil).Load("ESP")
	require.Error(t, err)
	assert.True(t, engineerrors.HasCategory(err, engineerrors.ErrorCategorySchemaMismatch))
}

func TestLoad_Missing(t *testing.T) {
	store := NewStore(t.TempDir(), types.DefaultGeneSchema(), nil)
	_, err := store.Load("NOPE")
	assert.True(t, errors.Is(err, ErrNoCheckpoint))
	assert.False(t, store.Exists("NOPE"))
}

func TestLoad_PartitionMismatch(t *testing.T) {
	schema := types.DefaultGeneSchema()
	store := NewStore(t.TempDir(), schema, nil)
	require.NoError(t, store.Save(sampleState(schema, "A", 2)))

	popA, metaA := store.Paths("A")
	popB, metaB := store.Paths("B")
	require.NoError(t, os.Rename(popA, popB))
	require.NoError(t, os.Rename(metaA, metaB))

	_, err := store.Load("B")
	require.Error(t, err)
	assert.True(t, engineerrors.HasCategory(err, engineerrors.ErrorCategoryValidation))
}

func TestLoad_RejectsPopulationFromAnotherSave(t *testing.T) {
	schema := types.DefaultGeneSchema()
	store := NewStore(t.TempDir(), schema, nil)
	other := NewStore(t.TempDir(), schema, nil)

	require.NoError(t, store.Save(sampleState(schema, "ENG", 3)))
	newer := sampleState(schema, "ENG", 3)
	newer.Population.Set(2, 0, schema.Genes[0].Max)
	newer.Generation = 13
	require.NoError(t, other.Save(newer))

	// a crash between the two renames leaves the newer population beside the older metadata
	newPop, _ := other.Paths("ENG")
	oldPop, _ := store.Paths("ENG")
	data, err := os.ReadFile(newPop)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(oldPop, data, 0644))

	_, err = store.Load("ENG")
	require.Error(t, err)
	assert.True(t, engineerrors.HasCategory(err, engineerrors.ErrorCategoryStorage))
	assert.Contains(t, err.Error(), "checksum")

	loaded, err := other.Load("ENG")
	require.NoError(t, err)
	assert.Equal(t, 13, loaded.Generation)
}

func TestPaths_SanitizesPartition(t *testing.T) {
	store := NewStore("/ckpt", types.DefaultGeneSchema(), nil)
	pop, meta := store.Paths("England/Premier League")
	base := types.SafeName("England/Premier League")
	assert.True(t, strings.HasPrefix(base, "England_Premier_League~"))
	assert.Equal(t, filepath.Join("/ckpt", base+".population.bin"), pop)
	assert.Equal(t, filepath.Join("/ckpt", base+".meta.json"), meta)

	// colliding spellings keep separate checkpoints
	other, _ := store.Paths("England_Premier League")
	assert.NotEqual(t, pop, other)
}

type bowlEvaluator struct{ schema *types.GeneSchema }

func (e bowlEvaluator) EvaluatePopulation(pop *mat.Dense) ([]float64, error) {
	p, _ := pop.Dims()
	out := make([]float64, p)
	for i := 0; i < p; i++ {
		for g, gene := range e.schema.Genes {
			d := (pop.At(i, g) - gene.Min) / gene.Width()
			out[i] -= (d - 0.25) * (d - 0.25)
		}
	}
	return out, nil
}

func TestCheckpoint_ResumeFromDiskIsDeterministic(t *testing.T) {
	schema := types.DefaultGeneSchema()
	eval := bowlEvaluator{schema: schema}
	cfg := optimization.GetDefaultOptimizationConfig()
	cfg.PopulationSize = 16
	cfg.CheckpointInterval = 0
	cfg.Generations = 8

	straight, err := optimization.NewGeneticOptimizer("ENG", cfg, schema, eval).Optimize(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewStore(t.TempDir(), schema, nil)
	first := optimization.NewGeneticOptimizer("ENG", cfg, schema, eval)
	first.SetCheckpointer(store)
	first.SetObserver(cancelAfter{generation: 2, cancel: cancel})
	interrupted, err := first.Optimize(ctx)
	require.NoError(t, err)
	require.True(t, interrupted.Interrupted)

	loaded, err := store.Load("ENG")
	require.NoError(t, err)
	assert.False(t, loaded.Completed)
	assert.Equal(t, 3, loaded.Generation)

	resumed, err := optimization.NewGeneticOptimizer("ENG", cfg, schema, eval).Resume(context.Background(), loaded)
	require.NoError(t, err)
	assert.Equal(t, straight.History, resumed.History)
	assert.Equal(t, straight.BestDNA, resumed.BestDNA)
}

// cancelAfter cancels the run once the given generation has been evaluated
type cancelAfter struct {
	generation int
	cancel     context.CancelFunc
}

func (c cancelAfter) OnGeneration(s optimization.GenerationStats) {
	if s.Generation == c.generation {
		c.cancel()
	}
}

func (c cancelAfter) OnRadiation(int, float64) {}
func (c cancelAfter) OnCheckpoint(int, string) {}
