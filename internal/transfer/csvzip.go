package transfer

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/garagereg/dataport/internal/registry"
	"github.com/garagereg/dataport/internal/types"
)

// metadataFileName is the first entry in every CSV archive.
const metadataFileName = "_metadata.json"

// csvNull marks NULL cells, following the MySQL dump convention. A
// plain empty cell is an empty string, not a NULL.
const csvNull = `\N`

// csvZipSerializer implements the CSV format: a ZIP archive holding the
// metadata envelope plus one RFC4180 .csv file per table. Because CSV
// carries no type information, decoding coerces cells back to typed
// values using the registry's field kinds.
type csvZipSerializer struct {
	reg *registry.Registry
}

func (s *csvZipSerializer) Format() Format { return FormatCSV }

func (s *csvZipSerializer) Marshal(meta *Metadata, ds types.Dataset) ([]byte, error) {
	var buf bytes.Buffer
	archive := zip.NewWriter(&buf)

	metaFile, err := archive.Create(metadataFileName)
	if err != nil {
		return nil, fmt.Errorf("create metadata entry: %w", err)
	}
	metaJSON, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	if _, err := metaFile.Write(metaJSON); err != nil {
		return nil, fmt.Errorf("write metadata entry: %w", err)
	}

	for _, table := range marshalOrder(ds, s.reg) {
		rows := ds[table]
		if len(rows) == 0 {
			continue
		}

		entry, err := archive.Create(table + ".csv")
		if err != nil {
			return nil, fmt.Errorf("create entry for table %s: %w", table, err)
		}

		writer := csv.NewWriter(entry)
		header := s.headerFor(table, rows[0])
		if err := writer.Write(header); err != nil {
			return nil, fmt.Errorf("write header for table %s: %w", table, err)
		}

		record := make([]string, len(header))
		for _, row := range rows {
			for i, column := range header {
				value, ok := row[column]
				if !ok {
					value = nil
				}
				cell, err := formatCSVValue(value)
				if err != nil {
					return nil, fmt.Errorf("table %s column %s: %w", table, column, err)
				}
				record[i] = cell
			}
			if err := writer.Write(record); err != nil {
				return nil, fmt.Errorf("write row for table %s: %w", table, err)
			}
		}

		writer.Flush()
		if err := writer.Error(); err != nil {
			return nil, fmt.Errorf("flush table %s: %w", table, err)
		}
	}

	if err := archive.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}
	return buf.Bytes(), nil
}

// headerFor returns the column order for a table: the registry's
// declared field order filtered to columns the first row actually
// carries, with any undeclared columns appended in sorted order.
func (s *csvZipSerializer) headerFor(table string, first types.Row) []string {
	var header []string
	declared := make(map[string]bool)

	if t, ok := s.reg.Lookup(table); ok {
		for _, name := range t.FieldNames() {
			declared[name] = true
			if _, present := first[name]; present {
				header = append(header, name)
			}
		}
	}

	var extra []string
	for name := range first {
		if !declared[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	return append(header, extra...)
}

func (s *csvZipSerializer) Unmarshal(payload []byte) (*Metadata, types.Dataset, error) {
	archive, err := zip.NewReader(bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		return nil, nil, fmt.Errorf("open archive: %w", err)
	}

	var meta *Metadata
	ds := make(types.Dataset)

	for _, file := range archive.File {
		switch {
		case file.Name == metadataFileName:
			m, err := readZipMetadata(file)
			if err != nil {
				return nil, nil, err
			}
			meta = m
		case strings.HasSuffix(file.Name, ".csv"):
			table := strings.TrimSuffix(file.Name, ".csv")
			rows, err := s.readZipTable(file, table)
			if err != nil {
				return meta, ds, err
			}
			ds[table] = rows
		}
	}

	return meta, ds, nil
}

func readZipMetadata(file *zip.File) (*Metadata, error) {
	reader, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", file.Name, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", file.Name, err)
	}

	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("malformed metadata: %w", err)
	}
	return &meta, nil
}

func (s *csvZipSerializer) readZipTable(file *zip.File, table string) ([]types.Row, error) {
	reader, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", file.Name, err)
	}
	defer reader.Close()

	csvReader := csv.NewReader(reader)
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("malformed CSV in %s: %w", file.Name, err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	header := records[0]
	rows := make([]types.Row, 0, len(records)-1)

	for _, record := range records[1:] {
		row := make(types.Row, len(header))
		for i, column := range header {
			if i >= len(record) {
				break
			}
			value, err := s.coerceCell(table, column, record[i])
			if err != nil {
				return nil, fmt.Errorf("table %s column %s: %w", table, column, err)
			}
			if value != nil {
				row[column] = value
			}
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// coerceCell converts a CSV cell back into a typed value using the
// registry's field kind. Cells of unregistered tables or columns stay
// strings.
func (s *csvZipSerializer) coerceCell(table, column, cell string) (any, error) {
	if cell == csvNull {
		return nil, nil
	}

	t, ok := s.reg.Lookup(table)
	if !ok {
		return cell, nil
	}
	field, ok := t.Field(column)
	if !ok {
		return cell, nil
	}

	switch field.Kind {
	case registry.KindInt:
		n, err := strconv.ParseInt(cell, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not an integer", cell)
		}
		return n, nil
	case registry.KindFloat:
		f, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", cell)
		}
		return f, nil
	case registry.KindBool:
		b, err := strconv.ParseBool(cell)
		if err != nil {
			return nil, fmt.Errorf("%q is not a boolean", cell)
		}
		return b, nil
	case registry.KindJSON:
		return decodeRowValue([]byte(cell))
	default:
		// Strings and timestamps travel verbatim.
		return cell, nil
	}
}

// decodeRowValue parses an embedded JSON document preserving numeric
// literals.
func decodeRowValue(data []byte) (any, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, fmt.Errorf("malformed JSON document: %w", err)
	}
	return value, nil
}

// formatCSVValue renders a typed value as a CSV cell.
func formatCSVValue(value any) (string, error) {
	switch v := value.(type) {
	case nil:
		return csvNull, nil
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case bool:
		return strconv.FormatBool(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case int:
		return strconv.Itoa(v), nil
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	case json.Number:
		return v.String(), nil
	default:
		// JSON columns hold decoded maps and slices.
		b, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("unsupported value %T: %w", value, err)
		}
		return string(b), nil
	}
}
