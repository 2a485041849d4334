package transfer

import (
	"fmt"

	"github.com/garagereg/dataport/internal/registry"
	"github.com/garagereg/dataport/internal/types"
)

// Validator parses a raw payload and checks its structure against the
// registry without touching the database.
type Validator struct {
	reg *registry.Registry
}

// NewValidator creates a validator.
func NewValidator(reg *registry.Registry) (*Validator, error) {
	if reg == nil {
		return nil, fmt.Errorf("registry is nil")
	}
	return &Validator{reg: reg}, nil
}

// Validate parses the payload in the declared format and returns every
// structural issue found. An empty slice means the payload is
// well-formed. Parse failures become issues, not errors; only an
// unsupported format is a hard error.
func (v *Validator) Validate(payload []byte, format Format) ([]ValidationIssue, error) {
	_, _, issues, err := v.Parse(payload, format)
	return issues, err
}

// Parse is Validate plus the parsed metadata and dataset, so the
// importer does not pay for a second parse. The returned dataset is
// only safe to import when issues is empty.
func (v *Validator) Parse(payload []byte, format Format) (*Metadata, types.Dataset, []ValidationIssue, error) {
	serializer, err := NewSerializer(format, v.reg)
	if err != nil {
		return nil, nil, nil, err
	}

	meta, ds, parseErr := serializer.Unmarshal(payload)
	if parseErr != nil {
		return meta, ds, []ValidationIssue{{
			Code:    IssueParseError,
			Message: fmt.Sprintf("payload is not valid %s: %v", format, parseErr),
		}}, nil
	}

	var issues []ValidationIssue
	if meta == nil {
		issues = append(issues, ValidationIssue{
			Code:    IssueMissingMetadata,
			Message: "payload has no metadata envelope",
		})
	}

	for _, table := range ds.TableNames() {
		issues = append(issues, v.checkTable(table, ds[table])...)
	}

	return meta, ds, issues, nil
}

func (v *Validator) checkTable(table string, rows []types.Row) []ValidationIssue {
	var issues []ValidationIssue

	if table == "" {
		issues = append(issues, ValidationIssue{
			Code:    IssueMissingTableTag,
			Message: fmt.Sprintf("%d records carry no table tag", len(rows)),
		})
		return issues
	}

	descriptor, known := v.reg.Lookup(table)
	if !known {
		issues = append(issues, ValidationIssue{
			Code:    IssueUnknownTable,
			Table:   table,
			Message: fmt.Sprintf("table %q is not in the model registry", table),
		})
		return issues
	}

	seen := make(map[string]bool, len(rows))
	for _, row := range rows {
		pk, hasPK := row[descriptor.PrimaryKey]
		if !hasPK || pk == nil {
			issues = append(issues, ValidationIssue{
				Code:    IssueMissingKey,
				Table:   table,
				Field:   descriptor.PrimaryKey,
				Message: fmt.Sprintf("record has no %s value", descriptor.PrimaryKey),
			})
			continue
		}

		id := types.PKString(pk)
		if seen[id] {
			issues = append(issues, ValidationIssue{
				Code:     IssueDuplicateKey,
				Table:    table,
				RecordID: id,
				Message:  fmt.Sprintf("duplicate primary key %s", id),
			})
		}
		seen[id] = true

		for _, field := range descriptor.RequiredFields() {
			if value, ok := row[field]; !ok || value == nil {
				issues = append(issues, ValidationIssue{
					Code:     IssueMissingField,
					Table:    table,
					RecordID: id,
					Field:    field,
					Message:  fmt.Sprintf("required field %s is missing or null", field),
				})
			}
		}
	}

	return issues
}
