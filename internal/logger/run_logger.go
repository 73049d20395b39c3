package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/ducminhle1904/dna-evolution/pkg/types"
)

// Audit event names
const (
	EventSessionStart = "session_start"
	EventSessionEnd   = "session_end"
	EventGeneration   = "generation"
	EventRadiation    = "radiation"
	EventCheckpoint   = "checkpoint"
	EventPadding      = "padding"
	EventSkip         = "skip"
	EventGateFailure  = "gate_failure"
	EventRescue       = "rescue"
	EventDocument     = "document"
)

// Logger writes the per-partition audit trail as JSON lines
type Logger struct {
	partition string
	logDir    string
	logFile   *os.File
	zl        zerolog.Logger
}

// NewLogger opens <logDir>/<partition>_<date>.log for appending
func NewLogger(logDir, partition string) (*Logger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	logPath := filepath.Join(logDir, fileName(partition, time.Now()))
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	l := NewWriterLogger(file, partition)
	l.logFile = file
	l.logDir = logDir
	l.zl.Info().Str("event", EventSessionStart).Str("log_file", logPath).Msg("evolution session started")
	return l, nil
}

// NewWriterLogger writes audit events to w
func NewWriterLogger(w io.Writer, partition string) *Logger {
	return &Logger{
		partition: partition,
		zl:        zerolog.New(w).With().Timestamp().Str("partition", partition).Logger(),
	}
}

// NewNopLogger discards everything
func NewNopLogger() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// Partition returns the partition this logger audits
func (l *Logger) Partition() string {
	return l.partition
}

// Info logs an info message
func (l *Logger) Info(format string, args ...interface{}) {
	l.zl.Info().Msgf(format, args...)
}

// Warning logs a warning message
func (l *Logger) Warning(format string, args ...interface{}) {
	l.zl.Warn().Msgf(format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.zl.Error().Msgf(format, args...)
}

// LogError logs error with context
func (l *Logger) LogError(context string, err error) {
	l.zl.Error().Err(err).Msg(context)
}

func (l *Logger) Generation(generation int, best, mean, mutationRate float64, radiation bool) {
	l.zl.Info().Str("event", EventGeneration).
		Int("generation", generation).
		Float64("best", best).
		Float64("mean", mean).
		Float64("mutation_rate", mutationRate).
		Bool("radiation", radiation).
		Send()
}

func (l *Logger) Radiation(generation int, mutationRate float64) {
	l.zl.Warn().Str("event", EventRadiation).
		Int("generation", generation).
		Float64("mutation_rate", mutationRate).
		Msg("stagnation limit reached, raising mutation rate")
}

func (l *Logger) Checkpoint(generation int, reason string) {
	l.zl.Info().Str("event", EventCheckpoint).Int("generation", generation).Str("reason", reason).Send()
}

// Padding records a checkpoint widened to a newer gene schema
func (l *Logger) Padding(fromGenes, toGenes, fromVersion, toVersion int, padded []string) {
	l.zl.Warn().Str("event", EventPadding).
		Int("from_genes", fromGenes).
		Int("to_genes", toGenes).
		Int("from_schema", fromVersion).
		Int("to_schema", toVersion).
		Strs("padded_genes", padded).
		Msg("checkpoint padded with midpoint genes")
}

func (l *Logger) Skip(partition string, have, need int) {
	l.zl.Warn().Str("event", EventSkip).
		Str("skipped", partition).
		Int("admissible_events", have).
		Int("required", need).
		Msg("partition below minimum event count, covered by global run")
}

func (l *Logger) GateFailure(rank int, pPositive, ruin float64, reason string) {
	l.zl.Warn().Str("event", EventGateFailure).
		Int("rank", rank).
		Float64("p_positive", pPositive).
		Float64("ruin_probability", ruin).
		Msg(reason)
}

func (l *Logger) Rescue(rank, attempts int, scale float64, succeeded bool) {
	l.zl.Info().Str("event", EventRescue).
		Int("rank", rank).
		Int("attempts", attempts).
		Float64("scale", scale).
		Bool("succeeded", succeeded).
		Send()
}

// Document records the persisted strategy document
func (l *Logger) Document(runID string, active bool, method, failureReason string) {
	ev := l.zl.Info()
	if !active {
		ev = l.zl.Warn().Str("failure_reason", failureReason)
	}
	ev.Str("event", EventDocument).Str("run_id", runID).Bool("active", active).Str("method", method).Send()
}

// Close writes the session end event and closes the log file
func (l *Logger) Close() error {
	if l.logFile == nil {
		return nil
	}
	l.zl.Info().Str("event", EventSessionEnd).Msg("evolution session ended")
	err := l.logFile.Close()
	l.logFile = nil
	return err
}

// GetLogPath returns the current log file path
func (l *Logger) GetLogPath() string {
	return filepath.Join(l.logDir, fileName(l.partition, time.Now()))
}

func fileName(partition string, t time.Time) string {
	return fmt.Sprintf("%s_%s.log", types.SafeName(partition), t.Format("2006-01-02"))
}
