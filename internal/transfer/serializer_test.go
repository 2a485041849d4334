package transfer

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garagereg/dataport/internal/registry"
	"github.com/garagereg/dataport/internal/types"
)

func testMetadata(format Format) *Metadata {
	org := int64(1)
	return &Metadata{
		ExportID:    "11111111-2222-3333-4444-555555555555",
		ExportedAt:  time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
		Format:      format,
		RecordCount: 2,
		TableCount:  1,
		OrgID:       &org,
		ExportedBy:  "tester",
		ToolVersion: "0.1.0-test",
		Checksum:    "abc",
	}
}

// ============================================================================
// Dispatch
// ============================================================================

func TestNewSerializerDispatch(t *testing.T) {
	reg := registry.Default()

	for _, format := range []Format{FormatJSONL, FormatJSON, FormatCSV} {
		s, err := NewSerializer(format, reg)
		require.NoError(t, err)
		assert.Equal(t, format, s.Format())
	}

	_, err := NewSerializer("xml", reg)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = NewSerializer(FormatJSONL, nil)
	assert.Error(t, err)
}

// ============================================================================
// JSONL
// ============================================================================

func TestJSONLRoundTrip(t *testing.T) {
	reg := registry.Default()
	s, err := NewSerializer(FormatJSONL, reg)
	require.NoError(t, err)

	ds := types.Dataset{
		"organizations": {
			{"id": int64(1), "name": "Acme"},
		},
		"users": {
			{"id": int64(10), "organization_id": int64(1), "username": "anna", "email": "anna@acme.test", "active": true},
		},
	}

	payload, err := s.Marshal(testMetadata(FormatJSONL), ds)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(payload)), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], `"_metadata"`)
	// Parents marshal before children
	assert.Contains(t, lines[1], `"_table":"organizations"`)
	assert.Contains(t, lines[2], `"_table":"users"`)

	meta, parsed, err := s.Unmarshal(payload)
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, "11111111-2222-3333-4444-555555555555", meta.ExportID)

	require.Len(t, parsed["organizations"], 1)
	require.Len(t, parsed["users"], 1)

	// Numeric literals come back as json.Number, not float64
	assert.Equal(t, json.Number("1"), parsed["organizations"][0]["id"])
	assert.Equal(t, true, parsed["users"][0]["active"])
	// The table tag never leaks into the row
	assert.NotContains(t, parsed["users"][0], "_table")
}

func TestJSONLMissingMetadataParsesLeniently(t *testing.T) {
	reg := registry.Default()
	s, err := NewSerializer(FormatJSONL, reg)
	require.NoError(t, err)

	payload := []byte(`{"_table":"organizations","id":1,"name":"Acme"}` + "\n")
	meta, ds, err := s.Unmarshal(payload)
	require.NoError(t, err)
	assert.Nil(t, meta, "missing envelope is the validator's problem, not a parse failure")
	assert.Len(t, ds["organizations"], 1)
}

func TestJSONLUntaggedRowsCollectUnderEmptyTable(t *testing.T) {
	reg := registry.Default()
	s, err := NewSerializer(FormatJSONL, reg)
	require.NoError(t, err)

	payload := []byte(`{"_metadata":{"export_id":"x"}}` + "\n" + `{"id":1,"name":"Acme"}` + "\n")
	_, ds, err := s.Unmarshal(payload)
	require.NoError(t, err)
	assert.Len(t, ds[""], 1)
}

func TestJSONLMalformedLineFails(t *testing.T) {
	reg := registry.Default()
	s, err := NewSerializer(FormatJSONL, reg)
	require.NoError(t, err)

	payload := []byte(`{"_metadata":{"export_id":"x"}}` + "\n" + `{not json` + "\n")
	_, _, err = s.Unmarshal(payload)
	assert.Error(t, err)
}

// ============================================================================
// JSON
// ============================================================================

func TestJSONRoundTrip(t *testing.T) {
	reg := registry.Default()
	s, err := NewSerializer(FormatJSON, reg)
	require.NoError(t, err)

	ds := types.Dataset{
		"gates": {
			{"id": int64(5), "organization_id": int64(1), "building_id": int64(2), "name": "North Gate",
				"settings": map[string]any{"auto_close": true, "delay": json.Number("30")}},
		},
	}

	payload, err := s.Marshal(testMetadata(FormatJSON), ds)
	require.NoError(t, err)

	meta, parsed, err := s.Unmarshal(payload)
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, FormatJSON, meta.Format)

	require.Len(t, parsed["gates"], 1)
	gate := parsed["gates"][0]
	assert.Equal(t, json.Number("5"), gate["id"])

	settings, ok := gate["settings"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, settings["auto_close"])
	assert.Equal(t, json.Number("30"), settings["delay"])
}

func TestJSONMalformedPayloadFails(t *testing.T) {
	reg := registry.Default()
	s, err := NewSerializer(FormatJSON, reg)
	require.NoError(t, err)

	_, _, err = s.Unmarshal([]byte(`{"data": [broken`))
	assert.Error(t, err)
}

// ============================================================================
// CSV (zipped)
// ============================================================================

func TestCSVRoundTrip(t *testing.T) {
	reg := registry.Default()
	s, err := NewSerializer(FormatCSV, reg)
	require.NoError(t, err)

	ds := types.Dataset{
		"inventory_items": {
			{"id": int64(1), "organization_id": int64(1), "sku": "SKU-1", "name": "Hinge",
				"quantity": int64(40), "unit_cost": 12.5, "warehouse": nil},
		},
	}

	payload, err := s.Marshal(testMetadata(FormatCSV), ds)
	require.NoError(t, err)

	meta, parsed, err := s.Unmarshal(payload)
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, "11111111-2222-3333-4444-555555555555", meta.ExportID)

	require.Len(t, parsed["inventory_items"], 1)
	item := parsed["inventory_items"][0]

	// Registry kinds drive the coercion back to typed values
	assert.Equal(t, int64(1), item["id"])
	assert.Equal(t, int64(40), item["quantity"])
	assert.Equal(t, 12.5, item["unit_cost"])
	assert.Equal(t, "SKU-1", item["sku"])
	// NULL cells do not resurface as fields
	assert.NotContains(t, item, "warehouse")
}

// Commas and quotes inside values must survive via RFC4180 quoting.
func TestCSVEscapesEmbeddedCommas(t *testing.T) {
	reg := registry.Default()
	s, err := NewSerializer(FormatCSV, reg)
	require.NoError(t, err)

	ds := types.Dataset{
		"clients": {
			{"id": int64(1), "name": "Acme, Inc.", "contact_email": "a@b.com"},
		},
	}

	payload, err := s.Marshal(testMetadata(FormatCSV), ds)
	require.NoError(t, err)

	content := readZipEntry(t, payload, "clients.csv")
	lines := strings.Split(strings.TrimSpace(content), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "id,name,contact_email", lines[0])
	assert.Equal(t, `1,"Acme, Inc.",a@b.com`, lines[1])

	_, parsed, err := s.Unmarshal(payload)
	require.NoError(t, err)
	require.Len(t, parsed["clients"], 1)
	assert.Equal(t, "Acme, Inc.", parsed["clients"][0]["name"])
}

func TestCSVBoolAndJSONColumns(t *testing.T) {
	reg := registry.Default()
	s, err := NewSerializer(FormatCSV, reg)
	require.NoError(t, err)

	ds := types.Dataset{
		"checklist_items": {
			{"id": int64(1), "organization_id": int64(1), "template_id": int64(1),
				"title": "Check motor", "mandatory": true},
		},
		"gates": {
			{"id": int64(2), "organization_id": int64(1), "building_id": int64(1),
				"name": "South Gate", "settings": map[string]any{"mode": "auto"}},
		},
	}

	payload, err := s.Marshal(testMetadata(FormatCSV), ds)
	require.NoError(t, err)

	_, parsed, err := s.Unmarshal(payload)
	require.NoError(t, err)

	assert.Equal(t, true, parsed["checklist_items"][0]["mandatory"])

	settings, ok := parsed["gates"][0]["settings"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "auto", settings["mode"])
}

func TestCSVMetadataIsFirstArchiveEntry(t *testing.T) {
	reg := registry.Default()
	s, err := NewSerializer(FormatCSV, reg)
	require.NoError(t, err)

	payload, err := s.Marshal(testMetadata(FormatCSV), types.Dataset{
		"organizations": {{"id": int64(1), "name": "Acme"}},
	})
	require.NoError(t, err)

	archive, err := zip.NewReader(bytes.NewReader(payload), int64(len(payload)))
	require.NoError(t, err)
	require.NotEmpty(t, archive.File)
	assert.Equal(t, "_metadata.json", archive.File[0].Name)
}

func TestCSVEmptyTablesAreOmitted(t *testing.T) {
	reg := registry.Default()
	s, err := NewSerializer(FormatCSV, reg)
	require.NoError(t, err)

	payload, err := s.Marshal(testMetadata(FormatCSV), types.Dataset{
		"organizations": {{"id": int64(1), "name": "Acme"}},
		"users":         {},
	})
	require.NoError(t, err)

	archive, err := zip.NewReader(bytes.NewReader(payload), int64(len(payload)))
	require.NoError(t, err)
	for _, f := range archive.File {
		assert.NotEqual(t, "users.csv", f.Name)
	}
}

func TestCSVNotAZipFails(t *testing.T) {
	reg := registry.Default()
	s, err := NewSerializer(FormatCSV, reg)
	require.NoError(t, err)

	_, _, err = s.Unmarshal([]byte("this is not a zip archive"))
	assert.Error(t, err)
}

func readZipEntry(t *testing.T, payload []byte, name string) string {
	t.Helper()
	archive, err := zip.NewReader(bytes.NewReader(payload), int64(len(payload)))
	require.NoError(t, err)
	for _, f := range archive.File {
		if f.Name != name {
			continue
		}
		r, err := f.Open()
		require.NoError(t, err)
		defer r.Close()
		data, err := io.ReadAll(r)
		require.NoError(t, err)
		return string(data)
	}
	t.Fatalf("entry %s not found in archive", name)
	return ""
}
