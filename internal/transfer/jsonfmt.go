package transfer

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/garagereg/dataport/internal/registry"
	"github.com/garagereg/dataport/internal/types"
)

// jsonSerializer implements the single-object format:
// {"_metadata": {...}, "data": {"<table>": [rows...]}}.
type jsonSerializer struct {
	reg *registry.Registry
}

func (s *jsonSerializer) Format() Format { return FormatJSON }

type jsonEnvelope struct {
	Metadata *Metadata              `json:"_metadata"`
	Data     map[string][]types.Row `json:"data"`
}

func (s *jsonSerializer) Marshal(meta *Metadata, ds types.Dataset) ([]byte, error) {
	envelope := jsonEnvelope{
		Metadata: meta,
		Data:     make(map[string][]types.Row, len(ds)),
	}
	for table, rows := range ds {
		if rows == nil {
			rows = []types.Row{}
		}
		envelope.Data[table] = rows
	}

	payload, err := json.MarshalIndent(envelope, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return payload, nil
}

func (s *jsonSerializer) Unmarshal(payload []byte) (*Metadata, types.Dataset, error) {
	decoder := json.NewDecoder(bytes.NewReader(payload))
	decoder.UseNumber()

	var envelope jsonEnvelope
	if err := decoder.Decode(&envelope); err != nil {
		return nil, nil, fmt.Errorf("malformed payload: %w", err)
	}

	ds := make(types.Dataset, len(envelope.Data))
	for table, rows := range envelope.Data {
		ds[table] = rows
	}

	return envelope.Metadata, ds, nil
}
