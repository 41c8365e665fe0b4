package models

// All lists every persisted model in dependency order. Tests and the local
// SQLite mode auto-migrate these; Postgres deployments use goose migrations.
func All() []any {
	return []any{
		&Warehouse{},
		&Material{},
		&Product{},
		&Order{},
		&OrderDetail{},
		&StockRecord{},
		&StockMovement{},
		&OutboxEvent{},
	}
}
