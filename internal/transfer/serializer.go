package transfer

import (
	"fmt"

	"github.com/garagereg/dataport/internal/registry"
	"github.com/garagereg/dataport/internal/types"
)

// Serializer converts between a dataset-plus-metadata pair and a byte
// payload in one concrete format. Unmarshal is lenient: a payload with
// no metadata envelope parses to a nil Metadata so the validator can
// report the problem as an issue instead of a hard failure.
type Serializer interface {
	Format() Format
	Marshal(meta *Metadata, ds types.Dataset) ([]byte, error)
	Unmarshal(payload []byte) (*Metadata, types.Dataset, error)
}

// NewSerializer returns the serializer for the given format.
func NewSerializer(format Format, reg *registry.Registry) (Serializer, error) {
	if reg == nil {
		return nil, fmt.Errorf("registry is nil")
	}
	switch format {
	case FormatJSONL:
		return &jsonlSerializer{reg: reg}, nil
	case FormatJSON:
		return &jsonSerializer{reg: reg}, nil
	case FormatCSV:
		return &csvZipSerializer{reg: reg}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// marshalOrder returns dataset table names in registry registration
// order, with any unregistered tables appended in sorted order.
func marshalOrder(ds types.Dataset, reg *registry.Registry) []string {
	seen := make(map[string]bool, len(ds))
	var order []string
	for _, name := range reg.TableNames() {
		if _, ok := ds[name]; ok {
			order = append(order, name)
			seen[name] = true
		}
	}
	for _, name := range ds.TableNames() {
		if !seen[name] {
			order = append(order, name)
		}
	}
	return order
}
