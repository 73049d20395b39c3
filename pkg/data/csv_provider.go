package data

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ducminhle1904/dna-evolution/pkg/types"
)

// CSVSource implements EventSource over a single ledger file
type CSVSource struct {
	path   string
	format CSVColumnMapping
}

// NewCSVSource creates a CSV event source with the default column layout
func NewCSVSource(path string) *CSVSource {
	return &CSVSource{path: path, format: DefaultCSVFormat}
}

// NewCSVSourceWithFormat creates a CSV event source with a custom column layout
func NewCSVSourceWithFormat(path string, format CSVColumnMapping) *CSVSource {
	return &CSVSource{path: path, format: format}
}

// GetName returns the name of the event source
func (s *CSVSource) GetName() string {
	return "CSV ledger " + s.path
}

// LoadEvents loads one partition (or all, for the global key) in stable chronological order
func (s *CSVSource) LoadEvents(ctx context.Context, partition string) ([]types.Event, error) {
	events, err := s.readAll(ctx)
	if err != nil {
		return nil, err
	}
	return SortEvents(FilterByPartition(events, partition)), nil
}

// Partitions lists every partition key found in the ledger
func (s *CSVSource) Partitions(ctx context.Context) ([]types.PartitionInfo, error) {
	events, err := s.readAll(ctx)
	if err != nil {
		return nil, err
	}
	return SummarizePartitions(events), nil
}

func (s *CSVSource) readAll(ctx context.Context) ([]types.Event, error) {
	file, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", s.path, err)
	}
	defer file.Close()
	return ParseEventsCSV(ctx, file, s.format)
}

// ParseEventsCSV reads a ledger with a header row. Rows that fail to parse are logged and skipped.
func ParseEventsCSV(ctx context.Context, r io.Reader, format CSVColumnMapping) ([]types.Event, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read ledger header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{format.Timestamp, format.PickSide, format.Outcome, format.ImpliedProb} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("ledger is missing required column %q", required)
		}
	}

	var events []types.Event
	lineNum := 1
	for {
		if lineNum%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		record, err := reader.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("error reading CSV at line %d: %v", lineNum, err)
		}
		lineNum++

		ev, err := parseRecord(record, cols, format)
		if err != nil {
			log.Printf("⚠️ Skipping ledger line %d: %v", lineNum, err)
			continue
		}
		if ev.ID == "" {
			ev.ID = fmt.Sprintf("line-%08d", lineNum)
		}
		events = append(events, ev)
	}
	return events, nil
}

func parseRecord(record []string, cols map[string]int, format CSVColumnMapping) (types.Event, error) {
	field := func(name string) string {
		idx, ok := cols[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}
	number := func(name string) (float64, error) {
		raw := field(name)
		if raw == "" {
			return 0, nil
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid %s %q", name, raw)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("non-finite %s %q", name, raw)
		}
		return v, nil
	}

	ts, err := parseTimestamp(field(format.Timestamp), format.DateFormats)
	if err != nil {
		return types.Event{}, err
	}

	ev := types.Event{
		ID:        field(format.ID),
		Partition: field(format.Partition),
		Timestamp: ts,
		PickSide:  types.ParseSide(field(format.PickSide)),
		Outcome:   types.ParseSide(field(format.Outcome)),
	}
	if ev.PickSide == types.SideUnknown {
		return types.Event{}, fmt.Errorf("invalid pick side %q", field(format.PickSide))
	}

	targets := []struct {
		name string
		dst  *float64
	}{
		{format.ModelProb, &ev.ModelProb},
		{format.ImpliedProb, &ev.ImpliedProb},
		{format.Odds, &ev.Odds},
		{format.MomentumGap, &ev.MomentumGap},
		{format.SharpMagnitude, &ev.SharpMagnitude},
		{format.RestAdvantage, &ev.RestAdvantage},
		{format.H2HWeight, &ev.H2HWeight},
		{format.ClusterWinRate, &ev.ClusterWinRate},
		{format.ClusterConfidence, &ev.ClusterConfidence},
	}
	for _, t := range targets {
		v, err := number(t.name)
		if err != nil {
			return types.Event{}, err
		}
		*t.dst = v
	}

	switch strings.ToLower(field(format.SharpFlag)) {
	case "1", "true", "yes", "y":
		ev.SharpFlag = true
	}
	return ev, nil
}

func parseTimestamp(raw string, layouts []string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("missing timestamp")
	}
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC(), nil
		}
	}
	if unix, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", raw)
}

// WriteEventsCSV writes events in the default ledger layout
func WriteEventsCSV(w io.Writer, events []types.Event) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(DefaultCSVFormat.header()); err != nil {
		return err
	}

	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	for _, ev := range events {
		record := []string{
			ev.ID,
			ev.Partition,
			ev.Timestamp.UTC().Format(time.RFC3339),
			ev.PickSide.String(),
			ev.Outcome.String(),
			f(ev.ModelProb),
			f(ev.ImpliedProb),
			f(ev.Odds),
			f(ev.MomentumGap),
			strconv.FormatBool(ev.SharpFlag),
			f(ev.SharpMagnitude),
			f(ev.RestAdvantage),
			f(ev.H2HWeight),
			f(ev.ClusterWinRate),
			f(ev.ClusterConfidence),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteEventsCSVFile writes events to path, creating or truncating it
func WriteEventsCSVFile(path string, events []types.Event) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteEventsCSV(file, events); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
