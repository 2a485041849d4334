// Package registry defines the static table model registry for GarageReg data transfers.
package registry

import (
	"fmt"

	"github.com/elliotchance/orderedmap/v2"
)

// FieldKind identifies the logical type of a table column. It drives
// value coercion when parsing formats that do not carry type
// information (CSV).
type FieldKind string

const (
	KindInt    FieldKind = "int"
	KindFloat  FieldKind = "float"
	KindBool   FieldKind = "bool"
	KindString FieldKind = "string"
	KindTime   FieldKind = "time"
	KindJSON   FieldKind = "json"
)

// Field describes one column of a registered table.
type Field struct {
	Name     string
	Kind     FieldKind
	Required bool
}

// Table describes one logical table: identity, tenant scoping, primary
// key, column layout, and the parent tables it references. References
// determine import order (parent-first) and delete order (child-first).
type Table struct {
	Name         string
	PrimaryKey   string
	TenantAware  bool
	TenantColumn string
	References   []string
	Fields       []Field
}

// Field returns the field descriptor for the given column name.
func (t *Table) Field(name string) (Field, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// FieldNames returns the declared column order.
func (t *Table) FieldNames() []string {
	names := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		names[i] = f.Name
	}
	return names
}

// RequiredFields returns the names of all required columns.
func (t *Table) RequiredFields() []string {
	var names []string
	for _, f := range t.Fields {
		if f.Required {
			names = append(names, f.Name)
		}
	}
	return names
}

// Registry holds table descriptors in registration order. Registration
// order is the foreign-key-safe insertion order: parents are registered
// before the tables that reference them.
type Registry struct {
	tables *orderedmap.OrderedMap[string, *Table]
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		tables: orderedmap.NewOrderedMap[string, *Table](),
	}
}

// Register adds a table descriptor to the registry. The table name must
// be unique, the primary key must be a declared field, and every
// referenced parent table must already be registered.
func (r *Registry) Register(t *Table) error {
	if t == nil {
		return fmt.Errorf("table is nil")
	}
	if t.Name == "" {
		return fmt.Errorf("table name is empty")
	}
	if _, exists := r.tables.Get(t.Name); exists {
		return fmt.Errorf("table %q is already registered", t.Name)
	}
	if t.PrimaryKey == "" {
		return fmt.Errorf("table %q has no primary key", t.Name)
	}
	if _, ok := t.Field(t.PrimaryKey); !ok {
		return fmt.Errorf("table %q primary key %q is not a declared field", t.Name, t.PrimaryKey)
	}
	if t.TenantAware {
		if t.TenantColumn == "" {
			return fmt.Errorf("table %q is tenant-aware but has no tenant column", t.Name)
		}
		if _, ok := t.Field(t.TenantColumn); !ok {
			return fmt.Errorf("table %q tenant column %q is not a declared field", t.Name, t.TenantColumn)
		}
	}
	for _, ref := range t.References {
		if _, exists := r.tables.Get(ref); !exists {
			return fmt.Errorf("table %q references unknown table %q (parents must be registered first)", t.Name, ref)
		}
	}
	r.tables.Set(t.Name, t)
	return nil
}

// Lookup returns the descriptor for a table name.
func (r *Registry) Lookup(name string) (*Table, bool) {
	return r.tables.Get(name)
}

// Has reports whether the table name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.tables.Get(name)
	return ok
}

// TableNames returns all table names in registration order.
func (r *Registry) TableNames() []string {
	names := make([]string, 0, r.tables.Len())
	for el := r.tables.Front(); el != nil; el = el.Next() {
		names = append(names, el.Key)
	}
	return names
}

// Tables returns all descriptors in registration order.
func (r *Registry) Tables() []*Table {
	tables := make([]*Table, 0, r.tables.Len())
	for el := r.tables.Front(); el != nil; el = el.Next() {
		tables = append(tables, el.Value)
	}
	return tables
}

// Len returns the number of registered tables.
func (r *Registry) Len() int {
	return r.tables.Len()
}
