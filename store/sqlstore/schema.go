package sqlstore

// Money is TEXT on SQLite (exact decimal strings) and DECIMAL on MySQL.
// Sums are computed in Go with shopspring/decimal on both.

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		shop_id TEXT NOT NULL,
		name TEXT NOT NULL,
		barcode TEXT,
		category TEXT,
		size TEXT,
		weight TEXT,
		purchase_price TEXT NOT NULL DEFAULT '0',
		quantity INTEGER NOT NULL DEFAULT 0 CHECK (quantity >= 0),
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		deleted_at DATETIME
	)`,
	`CREATE INDEX IF NOT EXISTS idx_products_shop ON products(shop_id)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_products_barcode_active
		ON products(shop_id, barcode, COALESCE(size, ''))
		WHERE deleted_at IS NULL AND barcode IS NOT NULL`,

	`CREATE TABLE IF NOT EXISTS sales (
		id TEXT PRIMARY KEY,
		shop_id TEXT NOT NULL,
		seller_id TEXT NOT NULL,
		total_amount TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		deleted_at DATETIME
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sales_shop_created ON sales(shop_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS sale_items (
		id TEXT PRIMARY KEY,
		sale_id TEXT NOT NULL REFERENCES sales(id),
		product_id TEXT NOT NULL REFERENCES products(id),
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		unit_price TEXT NOT NULL,
		total_price TEXT NOT NULL,
		position INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sale_items_sale ON sale_items(sale_id)`,

	debtTableSQLite("customer_debts"),
	`CREATE INDEX IF NOT EXISTS idx_customer_debts_shop ON customer_debts(shop_id)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_customer_debts_name_active
		ON customer_debts(shop_id, counterparty_key) WHERE deleted_at IS NULL`,
	debtTableSQLite("supplier_debts"),
	`CREATE INDEX IF NOT EXISTS idx_supplier_debts_shop ON supplier_debts(shop_id)`,
	`CREATE TABLE IF NOT EXISTS debt_payments (
		id TEXT PRIMARY KEY,
		debt_id TEXT NOT NULL,
		debt_kind TEXT NOT NULL,
		amount TEXT NOT NULL,
		paid_before TEXT NOT NULL,
		paid_after TEXT NOT NULL,
		created_by TEXT NOT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_debt_payments_debt ON debt_payments(debt_kind, debt_id)`,

	`CREATE TABLE IF NOT EXISTS inventories (
		id TEXT PRIMARY KEY,
		shop_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		notes TEXT,
		status TEXT NOT NULL DEFAULT 'draft' CHECK (status IN ('draft', 'completed')),
		completed_at DATETIME,
		created_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_inventories_shop ON inventories(shop_id)`,
	`CREATE TABLE IF NOT EXISTS inventory_items (
		id TEXT PRIMARY KEY,
		inventory_id TEXT NOT NULL REFERENCES inventories(id) ON DELETE CASCADE,
		product_id TEXT NOT NULL REFERENCES products(id),
		expected_quantity INTEGER NOT NULL CHECK (expected_quantity >= 0),
		actual_quantity INTEGER NOT NULL CHECK (actual_quantity >= 0),
		difference INTEGER NOT NULL,
		position INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_inventory_items_inventory ON inventory_items(inventory_id)`,

	`CREATE VIEW IF NOT EXISTS active_products AS SELECT * FROM products WHERE deleted_at IS NULL`,
	`CREATE VIEW IF NOT EXISTS active_sales AS SELECT * FROM sales WHERE deleted_at IS NULL`,
	`CREATE VIEW IF NOT EXISTS active_customer_debts AS SELECT * FROM customer_debts WHERE deleted_at IS NULL`,
	`CREATE VIEW IF NOT EXISTS active_supplier_debts AS SELECT * FROM supplier_debts WHERE deleted_at IS NULL`,
}

func debtTableSQLite(name string) string {
	return `CREATE TABLE IF NOT EXISTS ` + name + ` (
		id TEXT PRIMARY KEY,
		shop_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		counterparty TEXT NOT NULL,
		counterparty_key TEXT NOT NULL,
		phone TEXT,
		description TEXT,
		debt_date DATETIME,
		total TEXT NOT NULL,
		paid TEXT NOT NULL,
		remaining TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		deleted_at DATETIME
	)`
}

// MySQL has no partial indexes. Uniqueness among active rows uses a virtual
// column that is NULL once a row is tombstoned; unique indexes ignore NULLs.
var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id VARCHAR(36) PRIMARY KEY,
		shop_id VARCHAR(36) NOT NULL,
		name VARCHAR(255) NOT NULL,
		barcode VARCHAR(64),
		category VARCHAR(128),
		size VARCHAR(64),
		weight DECIMAL(14,3),
		purchase_price DECIMAL(14,2) NOT NULL DEFAULT 0,
		quantity BIGINT NOT NULL DEFAULT 0,
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL,
		deleted_at DATETIME(6),
		active_barcode_key VARCHAR(130) GENERATED ALWAYS AS
			(IF(deleted_at IS NULL AND barcode IS NOT NULL, CONCAT(barcode, '|', COALESCE(size, '')), NULL)) VIRTUAL,
		CONSTRAINT chk_products_quantity CHECK (quantity >= 0),
		INDEX idx_products_shop (shop_id),
		INDEX idx_products_barcode (shop_id, barcode),
		UNIQUE INDEX uq_products_barcode_active (shop_id, active_barcode_key)
	) ENGINE=InnoDB`,

	`CREATE TABLE IF NOT EXISTS sales (
		id VARCHAR(36) PRIMARY KEY,
		shop_id VARCHAR(36) NOT NULL,
		seller_id VARCHAR(36) NOT NULL,
		total_amount DECIMAL(14,2) NOT NULL,
		created_at DATETIME(6) NOT NULL,
		deleted_at DATETIME(6),
		INDEX idx_sales_shop_created (shop_id, created_at)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS sale_items (
		id VARCHAR(36) PRIMARY KEY,
		sale_id VARCHAR(36) NOT NULL,
		product_id VARCHAR(36) NOT NULL,
		quantity BIGINT NOT NULL,
		unit_price DECIMAL(14,2) NOT NULL,
		total_price DECIMAL(14,2) NOT NULL,
		position INT NOT NULL,
		CONSTRAINT chk_sale_items_quantity CHECK (quantity > 0),
		CONSTRAINT fk_sale_items_sale FOREIGN KEY (sale_id) REFERENCES sales(id),
		CONSTRAINT fk_sale_items_product FOREIGN KEY (product_id) REFERENCES products(id)
	) ENGINE=InnoDB`,

	debtTableMySQL("customer_debts", true),
	debtTableMySQL("supplier_debts", false),
	`CREATE TABLE IF NOT EXISTS debt_payments (
		id VARCHAR(36) PRIMARY KEY,
		debt_id VARCHAR(36) NOT NULL,
		debt_kind VARCHAR(16) NOT NULL,
		amount DECIMAL(14,2) NOT NULL,
		paid_before DECIMAL(14,2) NOT NULL,
		paid_after DECIMAL(14,2) NOT NULL,
		created_by VARCHAR(36) NOT NULL,
		created_at DATETIME(6) NOT NULL,
		INDEX idx_debt_payments_debt (debt_kind, debt_id)
	) ENGINE=InnoDB`,

	`CREATE TABLE IF NOT EXISTS inventories (
		id VARCHAR(36) PRIMARY KEY,
		shop_id VARCHAR(36) NOT NULL,
		user_id VARCHAR(36) NOT NULL,
		notes TEXT,
		status VARCHAR(16) NOT NULL DEFAULT 'draft',
		completed_at DATETIME(6),
		created_at DATETIME(6) NOT NULL,
		INDEX idx_inventories_shop (shop_id)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS inventory_items (
		id VARCHAR(36) PRIMARY KEY,
		inventory_id VARCHAR(36) NOT NULL,
		product_id VARCHAR(36) NOT NULL,
		expected_quantity BIGINT NOT NULL,
		actual_quantity BIGINT NOT NULL,
		difference BIGINT NOT NULL,
		position INT NOT NULL DEFAULT 0,
		CONSTRAINT fk_inventory_items_inventory FOREIGN KEY (inventory_id) REFERENCES inventories(id) ON DELETE CASCADE,
		CONSTRAINT fk_inventory_items_product FOREIGN KEY (product_id) REFERENCES products(id)
	) ENGINE=InnoDB`,

	`CREATE OR REPLACE VIEW active_products AS SELECT * FROM products WHERE deleted_at IS NULL`,
	`CREATE OR REPLACE VIEW active_sales AS SELECT * FROM sales WHERE deleted_at IS NULL`,
	`CREATE OR REPLACE VIEW active_customer_debts AS SELECT * FROM customer_debts WHERE deleted_at IS NULL`,
	`CREATE OR REPLACE VIEW active_supplier_debts AS SELECT * FROM supplier_debts WHERE deleted_at IS NULL`,
}

// debtTableMySQL builds a debt table. uniqueNames adds the active-name
// unique index customer debts need.
func debtTableMySQL(name string, uniqueNames bool) string {
	unique := ""
	if uniqueNames {
		unique = `,
		active_counterparty_key VARCHAR(255) GENERATED ALWAYS AS
			(IF(deleted_at IS NULL, counterparty_key, NULL)) VIRTUAL,
		UNIQUE INDEX uq_` + name + `_name_active (shop_id, active_counterparty_key)`
	}
	return `CREATE TABLE IF NOT EXISTS ` + name + ` (
		id VARCHAR(36) PRIMARY KEY,
		shop_id VARCHAR(36) NOT NULL,
		user_id VARCHAR(36) NOT NULL,
		counterparty VARCHAR(255) NOT NULL,
		counterparty_key VARCHAR(255) NOT NULL,
		phone VARCHAR(32),
		description TEXT,
		debt_date DATETIME(6),
		total DECIMAL(14,2) NOT NULL,
		paid DECIMAL(14,2) NOT NULL,
		remaining DECIMAL(14,2) NOT NULL,
		version BIGINT NOT NULL DEFAULT 1,
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL,
		deleted_at DATETIME(6),
		CONSTRAINT chk_` + name + `_paid CHECK (paid >= 0 AND paid <= total),
		INDEX idx_` + name + `_shop (shop_id, counterparty_key)` + unique + `
	) ENGINE=InnoDB`
}
