package state

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/cespare/xxhash/v2"
	"gonum.org/v1/gonum/mat"

	engineerrors "github.com/ducminhle1904/dna-evolution/internal/errors"
	"github.com/ducminhle1904/dna-evolution/internal/logger"
	"github.com/ducminhle1904/dna-evolution/pkg/optimization"
	"github.com/ducminhle1904/dna-evolution/pkg/types"
)

// FormatVersion is bumped whenever the metadata layout changes incompatibly
const FormatVersion = 2

const component = "checkpoint"

// ErrNoCheckpoint is returned by Load when a partition has never been checkpointed
var ErrNoCheckpoint = stderrors.New("no checkpoint")

// Metadata is the structured half of a checkpoint. The population lives next to it as a raw
// gonum matrix buffer.
type Metadata struct {
	FormatVersion int                            `json:"format_version"`
	Partition     string                         `json:"partition"`
	SchemaVersion int                            `json:"schema_version"`
	GeneNames     []string                       `json:"gene_names"`
	Rows          int                            `json:"rows"`
	Cols          int                            `json:"cols"`
	Checksum      string                         `json:"population_checksum"`
	Generation    int                            `json:"generation"`
	Budget        int                            `json:"budget"`
	Completed     bool                           `json:"completed"`
	BestFitness   *float64                       `json:"best_fitness,omitempty"`
	BestDNA       []float64                      `json:"best_dna,omitempty"`
	Stagnation    int                            `json:"stagnation"`
	MutationRate  float64                        `json:"mutation_rate"`
	History       []optimization.GenerationStats `json:"history"`
	Seed          uint64                         `json:"seed"`
	RNGState      []byte                         `json:"rng_state"`
	SavedAt       time.Time                      `json:"saved_at"`
}

// Store keeps one checkpoint per partition in a directory. Event data is never stored.
type Store struct {
	dir    string
	schema *types.GeneSchema
	logger *logger.Logger
}

// NewStore creates a checkpoint store for the current gene schema
func NewStore(dir string, schema *types.GeneSchema, lg *logger.Logger) *Store {
	if lg == nil {
		lg = logger.NewNopLogger()
	}
	return &Store{dir: dir, schema: schema, logger: lg}
}

// WithLogger returns a store sharing the directory that audits into lg
func (s *Store) WithLogger(lg *logger.Logger) *Store {
	return NewStore(s.dir, s.schema, lg)
}

// Paths returns the population and metadata file paths for a partition
func (s *Store) Paths(partition string) (population, metadata string) {
	base := filepath.Join(s.dir, types.SafeName(partition))
	return base + ".population.bin", base + ".meta.json"
}

// Exists reports whether a checkpoint is present for the partition
func (s *Store) Exists(partition string) bool {
	_, meta := s.Paths(partition)
	_, err := os.Stat(meta)
	return err == nil
}

// Save implements optimization.Checkpointer. Both files go through a temp file and rename so a
// crash never leaves a half-written file behind. The two renames are not atomic as a pair, so
// the metadata carries a checksum of the population it was written with.
func (s *Store) Save(st *optimization.SearchState) error {
	if st == nil || st.Population == nil {
		return engineerrors.NewStorageError(component, "save", fmt.Errorf("empty search state"))
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return engineerrors.NewStorageError(component, "save", fmt.Errorf("failed to create checkpoint directory: %w", err))
	}

	rows, cols := st.Population.Dims()
	meta := Metadata{
		FormatVersion: FormatVersion,
		Partition:     st.Partition,
		SchemaVersion: st.SchemaVersion,
		GeneNames:     st.GeneNames,
		Rows:          rows,
		Cols:          cols,
		Generation:    st.Generation,
		Budget:        st.Budget,
		Completed:     st.Completed,
		BestDNA:       st.BestDNA,
		Stagnation:    st.Stagnation,
		History:       st.History,
		Seed:          st.Seed,
		RNGState:      st.RNGState,
		SavedAt:       time.Now().UTC(),
	}
	if !math.IsInf(st.BestFitness, 0) && !math.IsNaN(st.BestFitness) {
		best := st.BestFitness
		meta.BestFitness = &best
	}
	if n := len(st.History); n > 0 {
		meta.MutationRate = st.History[n-1].MutationRate
	}

	popData, err := st.Population.MarshalBinary()
	if err != nil {
		return engineerrors.NewStorageError(component, "save", fmt.Errorf("failed to marshal population: %w", err))
	}
	meta.Checksum = checksum(popData)
	metaData, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return engineerrors.NewStorageError(component, "save", fmt.Errorf("failed to marshal metadata: %w", err))
	}

	popPath, metaPath := s.Paths(st.Partition)
	if err := writeAtomic(popPath, popData); err != nil {
		return engineerrors.NewStorageError(component, "save", err)
	}
	if err := writeAtomic(metaPath, metaData); err != nil {
		return engineerrors.NewStorageError(component, "save", err)
	}
	return nil
}

// Load reads a partition's checkpoint and adapts it to the current schema. A narrower
// population is padded with midpoint genes; a wider one is a schema mismatch.
func (s *Store) Load(partition string) (*optimization.SearchState, error) {
	popPath, metaPath := s.Paths(partition)

	metaData, err := os.ReadFile(metaPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", partition, ErrNoCheckpoint)
		}
		return nil, engineerrors.NewStorageError(component, "load", err)
	}
	var meta Metadata
	if err := json.Unmarshal(metaData, &meta); err != nil {
		return nil, engineerrors.NewStorageError(component, "load", fmt.Errorf("failed to parse metadata: %w", err))
	}
	if err := s.validate(partition, &meta); err != nil {
		return nil, err
	}

	popData, err := os.ReadFile(popPath)
	if err != nil {
		return nil, engineerrors.NewStorageError(component, "load", err)
	}
	if got := checksum(popData); got != meta.Checksum {
		return nil, engineerrors.NewStorageError(component, "load",
			fmt.Errorf("population checksum %s does not match metadata %s", got, meta.Checksum)).
			WithContext("partition", partition)
	}
	var pop mat.Dense
	if err := pop.UnmarshalBinary(popData); err != nil {
		return nil, engineerrors.NewStorageError(component, "load", fmt.Errorf("failed to decode population: %w", err))
	}
	if r, c := pop.Dims(); r != meta.Rows || c != meta.Cols {
		return nil, engineerrors.NewStorageError(component, "load",
			fmt.Errorf("population is %dx%d, metadata says %dx%d", r, c, meta.Rows, meta.Cols))
	}

	st := &optimization.SearchState{
		Partition:     meta.Partition,
		SchemaVersion: meta.SchemaVersion,
		GeneNames:     meta.GeneNames,
		Generation:    meta.Generation,
		Budget:        meta.Budget,
		Completed:     meta.Completed,
		Population:    &pop,
		History:       meta.History,
		BestFitness:   math.Inf(-1),
		BestDNA:       meta.BestDNA,
		Stagnation:    meta.Stagnation,
		Seed:          meta.Seed,
		RNGState:      meta.RNGState,
	}
	if meta.BestFitness != nil {
		st.BestFitness = *meta.BestFitness
	}

	if meta.Cols < s.schema.Len() {
		if err := s.pad(st, &meta); err != nil {
			return nil, err
		}
	}
	return st, nil
}

func (s *Store) validate(partition string, meta *Metadata) error {
	if meta.FormatVersion != FormatVersion {
		return engineerrors.NewSchemaMismatchError(component, "load",
			fmt.Sprintf("checkpoint format %d, this build reads %d", meta.FormatVersion, FormatVersion))
	}
	if meta.Partition != partition {
		return engineerrors.NewValidationError(component, "load",
			fmt.Sprintf("checkpoint belongs to partition %s, not %s", meta.Partition, partition))
	}
	if meta.Cols > s.schema.Len() {
		return engineerrors.NewSchemaMismatchError(component, "load",
			fmt.Sprintf("checkpoint has %d genes, schema v%d has only %d", meta.Cols, s.schema.Version, s.schema.Len())).
			WithContext("partition", partition)
	}
	names := s.schema.Names()
	for i, name := range meta.GeneNames {
		if i >= len(names) || names[i] != name {
			return engineerrors.NewSchemaMismatchError(component, "load",
				fmt.Sprintf("checkpoint gene %d is %q, schema expects %q", i, name, nameAt(names, i))).
				WithContext("partition", partition)
		}
	}
	return nil
}

// pad widens every row with midpoints of the missing genes and drops the best-so-far record
func (s *Store) pad(st *optimization.SearchState, meta *Metadata) error {
	rows, cols := st.Population.Dims()
	wide := mat.NewDense(rows, s.schema.Len(), nil)
	for i := 0; i < rows; i++ {
		row, err := s.schema.Pad(st.Population.RawRowView(i))
		if err != nil {
			return engineerrors.NewSchemaMismatchError(component, "pad", err.Error())
		}
		wide.SetRow(i, row)
	}
	st.Population = wide

	// scores from the narrower schema do not compare with scores under the new genes
	st.BestFitness = math.Inf(-1)
	st.BestDNA = nil
	st.Stagnation = 0

	padded := s.schema.Names()[cols:]
	log.Printf("🧩 %s checkpoint padded from %d to %d genes (schema v%d → v%d): %v",
		st.Partition, cols, s.schema.Len(), meta.SchemaVersion, s.schema.Version, padded)
	s.logger.Padding(cols, s.schema.Len(), meta.SchemaVersion, s.schema.Version, padded)

	st.SchemaVersion = s.schema.Version
	st.GeneNames = s.schema.Names()
	return nil
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", path, err)
	}
	return nil
}

func checksum(data []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(data))
}

func nameAt(names []string, i int) string {
	if i < len(names) {
		return names[i]
	}
	return ""
}
