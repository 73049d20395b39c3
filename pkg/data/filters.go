package data

import (
	"fmt"
	"sort"
	"time"

	"github.com/ducminhle1904/dna-evolution/pkg/types"
)

// DefaultEventFilter implements EventFilter for common filtering operations
type DefaultEventFilter struct{}

// NewDefaultEventFilter creates a new default event filter
func NewDefaultEventFilter() *DefaultEventFilter {
	return &DefaultEventFilter{}
}

// FilterByPeriod keeps the trailing period ending at the newest event
func (f *DefaultEventFilter) FilterByPeriod(events []types.Event, period time.Duration) []types.Event {
	if period <= 0 || len(events) == 0 {
		return events
	}

	cutoff := events[len(events)-1].Timestamp.Add(-period)
	startIdx := sort.Search(len(events), func(i int) bool {
		return !events[i].Timestamp.Before(cutoff)
	})
	return events[startIdx:]
}

// FilterByDateRange keeps events inside [start, end]
func (f *DefaultEventFilter) FilterByDateRange(events []types.Event, start, end time.Time) []types.Event {
	var filtered []types.Event
	for _, ev := range events {
		if !ev.Timestamp.Before(start) && !ev.Timestamp.After(end) {
			filtered = append(filtered, ev)
		}
	}
	return filtered
}

// ValidateTimeSequence ensures events are in non-decreasing time order. Equal timestamps
// are legal; ties are ordered by ID.
func (f *DefaultEventFilter) ValidateTimeSequence(events []types.Event) error {
	for i := 1; i < len(events); i++ {
		prev, cur := events[i-1], events[i]
		if cur.Timestamp.Before(prev.Timestamp) {
			return fmt.Errorf("events not in chronological order at index %d: %s comes after %s",
				i, cur.Timestamp.Format(time.RFC3339), prev.Timestamp.Format(time.RFC3339))
		}
		if cur.Timestamp.Equal(prev.Timestamp) && cur.ID < prev.ID {
			return fmt.Errorf("tied events out of id order at index %d: %s after %s", i, cur.ID, prev.ID)
		}
	}
	return nil
}

// SortEvents returns a copy sorted by (timestamp, id). The sort is stable so rows with the
// same key keep their ledger order, which makes splits reproducible across resumes.
func SortEvents(events []types.Event) []types.Event {
	sorted := make([]types.Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Timestamp.Equal(sorted[j].Timestamp) {
			return sorted[i].Timestamp.Before(sorted[j].Timestamp)
		}
		return sorted[i].ID < sorted[j].ID
	})
	return sorted
}

// FilterAdmissible drops events that can never take part in evaluation
func FilterAdmissible(events []types.Event) []types.Event {
	filtered := make([]types.Event, 0, len(events))
	for _, ev := range events {
		if ev.Admissible() {
			filtered = append(filtered, ev)
		}
	}
	return filtered
}

// FilterByPartition keeps one partition; the global key keeps everything
func FilterByPartition(events []types.Event, partition string) []types.Event {
	if partition == "" || partition == types.GlobalPartition {
		return events
	}
	var filtered []types.Event
	for _, ev := range events {
		if ev.Partition == partition {
			filtered = append(filtered, ev)
		}
	}
	return filtered
}

// SummarizePartitions counts events per partition key, sorted by key
func SummarizePartitions(events []types.Event) []types.PartitionInfo {
	byKey := make(map[string]*types.PartitionInfo)
	for _, ev := range events {
		info, ok := byKey[ev.Partition]
		if !ok {
			info = &types.PartitionInfo{Key: ev.Partition, FirstEvent: ev.Timestamp, LastEvent: ev.Timestamp}
			byKey[ev.Partition] = info
		}
		info.TotalEvents++
		if ev.Admissible() {
			info.AdmissibleEvents++
		}
		if ev.Timestamp.Before(info.FirstEvent) {
			info.FirstEvent = ev.Timestamp
		}
		if ev.Timestamp.After(info.LastEvent) {
			info.LastEvent = ev.Timestamp
		}
	}

	infos := make([]types.PartitionInfo, 0, len(byKey))
	for _, info := range byKey {
		infos = append(infos, *info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos
}
