package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is applied statement by statement on startup.  Every statement is
// idempotent so restarts against an existing database are safe.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id             BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		name           VARCHAR(255)    NOT NULL,
		description    VARCHAR(1024)   NOT NULL,
		original_price DECIMAL(10,2)   NOT NULL,
		discount_rate  INT             NOT NULL DEFAULT 0,
		stock          INT             NOT NULL,
		image_url      VARCHAR(512)    NULL,
		category       VARCHAR(64)     NOT NULL,
		created_at     DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at     DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		CONSTRAINT chk_products_stock CHECK (stock >= 0)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS purchase_orders (
		id          BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		session_id  VARCHAR(128)    NOT NULL,
		product_id  BIGINT UNSIGNED NOT NULL,
		quantity    INT             NOT NULL,
		total_price DECIMAL(12,2)   NOT NULL,
		status      ENUM('PENDING','COMPLETED','CANCELLED') NOT NULL,
		ordered_at  DATETIME        NOT NULL,
		KEY idx_purchase_orders_session (session_id),
		CONSTRAINT fk_purchase_orders_product FOREIGN KEY (product_id) REFERENCES products (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates the tables used by the purchase path.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate statement %d: %w", i, err)
		}
	}
	return nil
}
