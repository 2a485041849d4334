package transfer

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strconv"

	"github.com/garagereg/dataport/internal/registry"
	"github.com/garagereg/dataport/internal/types"
)

// DatasetChecksum computes a SHA-256 hash over the canonical serialized
// form of a dataset: tables in sorted name order, rows sorted by primary
// key, each row rendered as JSON with sorted keys and nil fields
// dropped. The same dataset always hashes to the same value regardless
// of which format it traveled through.
func DatasetChecksum(ds types.Dataset, reg *registry.Registry) string {
	hasher := sha256.New()

	for _, table := range ds.TableNames() {
		pk := primaryKeyColumn(reg, table)
		rows := append([]types.Row(nil), ds[table]...)
		sortRowsByPK(rows, pk)

		for _, row := range rows {
			hasher.Write([]byte(table))
			hasher.Write([]byte{0})
			hasher.Write(canonicalRow(row))
			hasher.Write([]byte("\n"))
		}
	}

	return hex.EncodeToString(hasher.Sum(nil))
}

// canonicalRow renders a row as deterministic JSON. encoding/json sorts
// map keys; nil-valued fields are dropped first so an explicit null and
// an absent column canonicalize identically.
func canonicalRow(row types.Row) []byte {
	trimmed := make(types.Row, len(row))
	for k, v := range row {
		if v == nil {
			continue
		}
		trimmed[k] = v
	}
	// Rows only hold JSON-representable values, so this cannot fail.
	b, _ := json.Marshal(trimmed)
	return b
}

// RowsEqual reports whether two rows are identical field-for-field
// under canonical rendering. Numeric values compare equal across the
// int64 / float64 / json.Number representations the database and the
// parsers produce.
func RowsEqual(a, b types.Row) bool {
	return string(canonicalRow(a)) == string(canonicalRow(b))
}

// primaryKeyColumn returns the registered primary key for a table,
// falling back to "id" for tables outside the registry.
func primaryKeyColumn(reg *registry.Registry, table string) string {
	if reg != nil {
		if t, ok := reg.Lookup(table); ok {
			return t.PrimaryKey
		}
	}
	return "id"
}

// sortRowsByPK orders rows by primary key, numerically when every key
// parses as an integer, lexically otherwise.
func sortRowsByPK(rows []types.Row, pk string) {
	sort.SliceStable(rows, func(i, j int) bool {
		return pkLess(types.PKString(rows[i][pk]), types.PKString(rows[j][pk]))
	})
}

func pkLess(a, b string) bool {
	ai, aerr := strconv.ParseInt(a, 10, 64)
	bi, berr := strconv.ParseInt(b, 10, 64)
	if aerr == nil && berr == nil {
		return ai < bi
	}
	return a < b
}

// sortPKStrings orders rendered primary keys for stable reporting.
func sortPKStrings(keys []string) {
	sort.SliceStable(keys, func(i, j int) bool {
		return pkLess(keys[i], keys[j])
	})
}
