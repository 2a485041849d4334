package transfer

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/garagereg/dataport/internal/registry"
	"github.com/garagereg/dataport/internal/types"
)

// tableTagKey annotates every JSONL data line with its source table.
// Registry column names never start with an underscore, so the tag
// cannot collide with a real field.
const tableTagKey = "_table"

// metadataKey wraps the metadata envelope in JSONL's first line and the
// JSON format's top-level object.
const metadataKey = "_metadata"

// jsonlSerializer implements newline-delimited JSON: one metadata line
// followed by one _table-tagged object per row.
type jsonlSerializer struct {
	reg *registry.Registry
}

func (s *jsonlSerializer) Format() Format { return FormatJSONL }

func (s *jsonlSerializer) Marshal(meta *Metadata, ds types.Dataset) ([]byte, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)

	if err := encoder.Encode(map[string]*Metadata{metadataKey: meta}); err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}

	for _, table := range marshalOrder(ds, s.reg) {
		for _, row := range ds[table] {
			line := make(map[string]any, len(row)+1)
			for k, v := range row {
				line[k] = v
			}
			line[tableTagKey] = table
			if err := encoder.Encode(line); err != nil {
				return nil, fmt.Errorf("encode row for table %s: %w", table, err)
			}
		}
	}

	return buf.Bytes(), nil
}

func (s *jsonlSerializer) Unmarshal(payload []byte) (*Metadata, types.Dataset, error) {
	scanner := bufio.NewScanner(bytes.NewReader(payload))
	// Allow for rows with large JSON columns.
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var meta *Metadata
	ds := make(types.Dataset)
	lineNum := 0

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		lineNum++

		if lineNum == 1 {
			var envelope struct {
				Metadata *Metadata `json:"_metadata"`
			}
			if err := json.Unmarshal(line, &envelope); err == nil && envelope.Metadata != nil {
				meta = envelope.Metadata
				continue
			}
			// First line is not a metadata envelope; fall through and
			// treat it as data so the validator can flag the omission.
		}

		row, err := decodeRowObject(line)
		if err != nil {
			return meta, ds, fmt.Errorf("line %d: %w", lineNum, err)
		}

		table := ""
		if tag, ok := row[tableTagKey]; ok {
			table, _ = tag.(string)
			delete(row, tableTagKey)
		}
		ds[table] = append(ds[table], row)
	}

	if err := scanner.Err(); err != nil {
		return meta, ds, fmt.Errorf("scan payload: %w", err)
	}

	return meta, ds, nil
}

// decodeRowObject parses one JSON object preserving numeric literals as
// json.Number so checksums survive the round trip.
func decodeRowObject(data []byte) (types.Row, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	var row types.Row
	if err := decoder.Decode(&row); err != nil {
		return nil, fmt.Errorf("malformed record: %w", err)
	}
	return row, nil
}
