package transfer

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/garagereg/dataport/internal/registry"
	"github.com/garagereg/dataport/internal/types"
)

// mergeTimestampFields are the last-modified style columns the MERGE
// strategy uses to decide whether the incoming record is newer. The
// first field present on both records wins.
var mergeTimestampFields = []string{"updated_at", "last_modified", "modified_at", "last_login"}

// timestampLayouts are the wire formats timestamps arrive in.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Resolve applies the conflict policy to one (existing, incoming) pair
// and returns the record to persist plus the conflict report, if any.
// A nil existing record means the primary key is new: the incoming
// record wins and no conflict is recorded, regardless of strategy. A
// nil final record (ERROR strategy) means nothing should be written.
func Resolve(existing, incoming types.Row, table *registry.Table, strategy Strategy) (types.Row, *ImportConflict) {
	if existing == nil {
		return incoming, nil
	}
	if RowsEqual(existing, incoming) {
		// Idempotent re-import.
		return incoming, nil
	}

	fields := mismatchedFields(existing, incoming)
	id := types.PKString(incoming[table.PrimaryKey])

	conflict := &ImportConflict{
		Table:    table.Name,
		RecordID: id,
		Type:     ConflictFieldMismatch,
		Fields:   fields,
	}

	switch strategy {
	case StrategySkip:
		conflict.Resolution = ResolutionSkip
		conflict.Message = fmt.Sprintf("record %s exists with different values, incoming discarded", id)
		return existing, conflict

	case StrategyOverwrite:
		conflict.Resolution = ResolutionOverwrite
		conflict.Message = fmt.Sprintf("record %s exists with different values, overwritten", id)
		return incoming, conflict

	case StrategyMerge:
		conflict.Resolution = ResolutionMerge
		if stale, existingTS, incomingTS := incomingIsStale(existing, incoming); stale {
			conflict.Message = fmt.Sprintf("record %s not merged: incoming timestamp %s is not newer than %s",
				id, incomingTS, existingTS)
			return existing, conflict
		}
		conflict.Message = fmt.Sprintf("record %s merged, incoming non-empty fields applied", id)
		return mergeRows(existing, incoming), conflict

	default: // StrategyError
		conflict.Resolution = ResolutionError
		conflict.Message = fmt.Sprintf("record %s exists with different values in fields: %s",
			id, strings.Join(fields, ", "))
		return nil, conflict
	}
}

// incomingIsStale applies the MERGE timestamp gate: when both records
// carry a recognized last-modified field, the merge only proceeds if
// the incoming timestamp is strictly newer. Records without such a
// field merge unconditionally.
func incomingIsStale(existing, incoming types.Row) (bool, string, string) {
	for _, field := range mergeTimestampFields {
		existingRaw, okA := existing[field].(string)
		incomingRaw, okB := incoming[field].(string)
		if !okA || !okB {
			continue
		}
		existingTS, errA := parseTimestamp(existingRaw)
		incomingTS, errB := parseTimestamp(incomingRaw)
		if errA != nil || errB != nil {
			continue
		}
		return !incomingTS.After(existingTS), existingRaw, incomingRaw
	}
	return false, "", ""
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// mergeRows starts from the existing record and applies every non-null,
// non-empty incoming field on top of it.
func mergeRows(existing, incoming types.Row) types.Row {
	merged := existing.Clone()
	for field, value := range incoming {
		if value == nil {
			continue
		}
		if s, ok := value.(string); ok && s == "" {
			continue
		}
		merged[field] = value
	}
	return merged
}

// mismatchedFields returns the sorted names of fields whose canonical
// values differ between the two records. A nil value and an absent
// field compare equal.
func mismatchedFields(a, b types.Row) []string {
	names := make(map[string]bool, len(a)+len(b))
	for k := range a {
		names[k] = true
	}
	for k := range b {
		names[k] = true
	}

	var fields []string
	for name := range names {
		if !valuesEqual(a[name], b[name]) {
			fields = append(fields, name)
		}
	}
	sort.Strings(fields)
	return fields
}

func valuesEqual(a, b any) bool {
	if a == nil && b == nil {
		return true
	}
	aj, _ := json.Marshal(a)
	bj, _ := json.Marshal(b)
	return string(aj) == string(bj)
}
