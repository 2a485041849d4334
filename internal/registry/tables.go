package registry

// Default builds the registry for the GarageReg schema. Tables are
// registered parent-first so registration order is a valid import
// order for foreign-key-linked data.
func Default() *Registry {
	r := New()

	mustRegister(r, &Table{
		Name:         "organizations",
		PrimaryKey:   "id",
		TenantAware:  true,
		TenantColumn: "id",
		Fields: []Field{
			{Name: "id", Kind: KindInt, Required: true},
			{Name: "name", Kind: KindString, Required: true},
			{Name: "display_name", Kind: KindString},
			{Name: "address", Kind: KindString},
			{Name: "created_at", Kind: KindTime},
			{Name: "updated_at", Kind: KindTime},
		},
	})

	mustRegister(r, &Table{
		Name:         "users",
		PrimaryKey:   "id",
		TenantAware:  true,
		TenantColumn: "organization_id",
		References:   []string{"organizations"},
		Fields: []Field{
			{Name: "id", Kind: KindInt, Required: true},
			{Name: "organization_id", Kind: KindInt, Required: true},
			{Name: "username", Kind: KindString, Required: true},
			{Name: "email", Kind: KindString, Required: true},
			{Name: "role", Kind: KindString},
			{Name: "active", Kind: KindBool},
			{Name: "last_login", Kind: KindTime},
			{Name: "created_at", Kind: KindTime},
			{Name: "updated_at", Kind: KindTime},
		},
	})

	mustRegister(r, &Table{
		Name:         "clients",
		PrimaryKey:   "id",
		TenantAware:  true,
		TenantColumn: "organization_id",
		References:   []string{"organizations"},
		Fields: []Field{
			{Name: "id", Kind: KindInt, Required: true},
			{Name: "organization_id", Kind: KindInt, Required: true},
			{Name: "name", Kind: KindString, Required: true},
			{Name: "contact_name", Kind: KindString},
			{Name: "contact_email", Kind: KindString},
			{Name: "contact_phone", Kind: KindString},
			{Name: "created_at", Kind: KindTime},
			{Name: "updated_at", Kind: KindTime},
		},
	})

	mustRegister(r, &Table{
		Name:         "sites",
		PrimaryKey:   "id",
		TenantAware:  true,
		TenantColumn: "organization_id",
		References:   []string{"clients"},
		Fields: []Field{
			{Name: "id", Kind: KindInt, Required: true},
			{Name: "organization_id", Kind: KindInt, Required: true},
			{Name: "client_id", Kind: KindInt, Required: true},
			{Name: "name", Kind: KindString, Required: true},
			{Name: "address", Kind: KindString},
			{Name: "city", Kind: KindString},
			{Name: "postal_code", Kind: KindString},
			{Name: "created_at", Kind: KindTime},
			{Name: "updated_at", Kind: KindTime},
		},
	})

	mustRegister(r, &Table{
		Name:         "buildings",
		PrimaryKey:   "id",
		TenantAware:  true,
		TenantColumn: "organization_id",
		References:   []string{"sites"},
		Fields: []Field{
			{Name: "id", Kind: KindInt, Required: true},
			{Name: "organization_id", Kind: KindInt, Required: true},
			{Name: "site_id", Kind: KindInt, Required: true},
			{Name: "name", Kind: KindString, Required: true},
			{Name: "floors", Kind: KindInt},
			{Name: "created_at", Kind: KindTime},
			{Name: "updated_at", Kind: KindTime},
		},
	})

	mustRegister(r, &Table{
		Name:         "gates",
		PrimaryKey:   "id",
		TenantAware:  true,
		TenantColumn: "organization_id",
		References:   []string{"buildings"},
		Fields: []Field{
			{Name: "id", Kind: KindInt, Required: true},
			{Name: "organization_id", Kind: KindInt, Required: true},
			{Name: "building_id", Kind: KindInt, Required: true},
			{Name: "name", Kind: KindString, Required: true},
			{Name: "gate_type", Kind: KindString},
			{Name: "manufacturer", Kind: KindString},
			{Name: "serial_number", Kind: KindString},
			{Name: "status", Kind: KindString},
			{Name: "settings", Kind: KindJSON},
			{Name: "installed_at", Kind: KindTime},
			{Name: "created_at", Kind: KindTime},
			{Name: "updated_at", Kind: KindTime},
		},
	})

	mustRegister(r, &Table{
		Name:         "checklist_templates",
		PrimaryKey:   "id",
		TenantAware:  true,
		TenantColumn: "organization_id",
		References:   []string{"organizations"},
		Fields: []Field{
			{Name: "id", Kind: KindInt, Required: true},
			{Name: "organization_id", Kind: KindInt, Required: true},
			{Name: "name", Kind: KindString, Required: true},
			{Name: "description", Kind: KindString},
			{Name: "version", Kind: KindInt},
			{Name: "created_at", Kind: KindTime},
			{Name: "updated_at", Kind: KindTime},
		},
	})

	mustRegister(r, &Table{
		Name:         "checklist_items",
		PrimaryKey:   "id",
		TenantAware:  true,
		TenantColumn: "organization_id",
		References:   []string{"checklist_templates"},
		Fields: []Field{
			{Name: "id", Kind: KindInt, Required: true},
			{Name: "organization_id", Kind: KindInt, Required: true},
			{Name: "template_id", Kind: KindInt, Required: true},
			{Name: "title", Kind: KindString, Required: true},
			{Name: "position", Kind: KindInt},
			{Name: "mandatory", Kind: KindBool},
			{Name: "created_at", Kind: KindTime},
			{Name: "updated_at", Kind: KindTime},
		},
	})

	mustRegister(r, &Table{
		Name:         "tickets",
		PrimaryKey:   "id",
		TenantAware:  true,
		TenantColumn: "organization_id",
		References:   []string{"gates"},
		Fields: []Field{
			{Name: "id", Kind: KindInt, Required: true},
			{Name: "organization_id", Kind: KindInt, Required: true},
			{Name: "gate_id", Kind: KindInt, Required: true},
			{Name: "title", Kind: KindString, Required: true},
			{Name: "description", Kind: KindString},
			{Name: "status", Kind: KindString},
			{Name: "priority", Kind: KindString},
			{Name: "reported_by", Kind: KindString},
			{Name: "created_at", Kind: KindTime},
			{Name: "updated_at", Kind: KindTime},
		},
	})

	mustRegister(r, &Table{
		Name:         "work_orders",
		PrimaryKey:   "id",
		TenantAware:  true,
		TenantColumn: "organization_id",
		References:   []string{"tickets"},
		Fields: []Field{
			{Name: "id", Kind: KindInt, Required: true},
			{Name: "organization_id", Kind: KindInt, Required: true},
			{Name: "ticket_id", Kind: KindInt, Required: true},
			{Name: "assignee", Kind: KindString},
			{Name: "status", Kind: KindString},
			{Name: "scheduled_for", Kind: KindTime},
			{Name: "completed_at", Kind: KindTime},
			{Name: "notes", Kind: KindString},
			{Name: "created_at", Kind: KindTime},
			{Name: "updated_at", Kind: KindTime},
		},
	})

	mustRegister(r, &Table{
		Name:         "inventory_items",
		PrimaryKey:   "id",
		TenantAware:  true,
		TenantColumn: "organization_id",
		References:   []string{"organizations"},
		Fields: []Field{
			{Name: "id", Kind: KindInt, Required: true},
			{Name: "organization_id", Kind: KindInt, Required: true},
			{Name: "sku", Kind: KindString, Required: true},
			{Name: "name", Kind: KindString, Required: true},
			{Name: "quantity", Kind: KindInt},
			{Name: "unit_cost", Kind: KindFloat},
			{Name: "warehouse", Kind: KindString},
			{Name: "created_at", Kind: KindTime},
			{Name: "updated_at", Kind: KindTime},
		},
	})

	mustRegister(r, &Table{
		Name:         "stock_movements",
		PrimaryKey:   "id",
		TenantAware:  true,
		TenantColumn: "organization_id",
		References:   []string{"inventory_items", "work_orders"},
		Fields: []Field{
			{Name: "id", Kind: KindInt, Required: true},
			{Name: "organization_id", Kind: KindInt, Required: true},
			{Name: "item_id", Kind: KindInt, Required: true},
			{Name: "work_order_id", Kind: KindInt},
			{Name: "movement_type", Kind: KindString, Required: true},
			{Name: "quantity", Kind: KindInt, Required: true},
			{Name: "moved_at", Kind: KindTime},
			{Name: "note", Kind: KindString},
			{Name: "created_at", Kind: KindTime},
			{Name: "updated_at", Kind: KindTime},
		},
	})

	return r
}

// mustRegister panics on registration failure. The default registry is
// static, so a failure here is a programming error caught at startup.
func mustRegister(r *Registry, t *Table) {
	if err := r.Register(t); err != nil {
		panic(err)
	}
}
