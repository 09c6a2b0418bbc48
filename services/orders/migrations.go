package main

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS products_inventory (
		id            TEXT PRIMARY KEY,
		product_name  TEXT NOT NULL DEFAULT '',
		current_stock INTEGER NOT NULL CHECK (current_stock >= 0),
		version       INTEGER NOT NULL DEFAULT 1,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id                   TEXT PRIMARY KEY,
		status               TEXT NOT NULL,
		delivery_street      TEXT NOT NULL DEFAULT '',
		delivery_city        TEXT NOT NULL DEFAULT '',
		delivery_postal_code TEXT NOT NULL DEFAULT '',
		delivery_country     TEXT NOT NULL DEFAULT '',
		created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		order_id   TEXT NOT NULL REFERENCES orders(id),
		product_id TEXT NOT NULL,
		quantity   INTEGER NOT NULL CHECK (quantity > 0),
		PRIMARY KEY (order_id, product_id)
	)`,
	`CREATE TABLE IF NOT EXISTS inventory_movements (
		id              TEXT PRIMARY KEY,
		inventory_id    TEXT NOT NULL,
		order_id        TEXT,
		change_quantity INTEGER NOT NULL,
		movement_type   TEXT NOT NULL,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_movements_order
		ON inventory_movements (order_id, inventory_id, movement_type)`,
}

// defaultProducts são os produtos de demonstração usados pelo gerador de
// carga. Restock só repõe produtos existentes, então a subida garante as
// linhas iniciais.
func defaultProducts() []*ProductInventory {
	return []*ProductInventory{
		NewProductInventory("product-1", "mechanical keyboard", 1000),
		NewProductInventory("product-2", "wireless mouse", 1000),
		NewProductInventory("product-3", "usb-c dock", 1000),
	}
}

// runMigrations garante o schema e os produtos iniciais na subida do
// serviço. Idempotente.
func runMigrations(dsn string) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}

	// ON CONFLICT preserva o estoque corrente entre subidas
	for _, product := range defaultProducts() {
		_, err := db.Exec(`
			INSERT INTO products_inventory (id, product_name, current_stock, version, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO NOTHING
		`, product.ID, product.ProductName, product.CurrentStock, product.Version,
			product.CreatedAt, product.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to seed product %s: %w", product.ID, err)
		}
	}
	return nil
}
