package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaSQL is the subset of the catalog schema the job touches. It is safe
// to apply repeatedly.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS resource_class (
    id   BIGSERIAL PRIMARY KEY,
    term TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS resource (
    id                   BIGSERIAL PRIMARY KEY,
    resource_type        TEXT NOT NULL,
    owner_id             BIGINT,
    resource_class_id    BIGINT REFERENCES resource_class (id) ON DELETE SET NULL,
    resource_template_id BIGINT,
    is_public            BOOLEAN NOT NULL DEFAULT TRUE,
    title                TEXT,
    created              TIMESTAMPTZ NOT NULL DEFAULT now(),
    modified             TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS resource_type_idx ON resource (resource_type);

CREATE TABLE IF NOT EXISTS item_item_set (
    item_id     BIGINT NOT NULL REFERENCES resource (id) ON DELETE CASCADE,
    item_set_id BIGINT NOT NULL REFERENCES resource (id) ON DELETE CASCADE,
    PRIMARY KEY (item_id, item_set_id)
);

CREATE INDEX IF NOT EXISTS item_item_set_item_set_idx ON item_item_set (item_set_id);

CREATE TABLE IF NOT EXISTS value (
    id            BIGSERIAL PRIMARY KEY,
    resource_id   BIGINT NOT NULL REFERENCES resource (id) ON DELETE CASCADE,
    property_term TEXT NOT NULL,
    value_text    TEXT
);

CREATE INDEX IF NOT EXISTS value_resource_idx ON value (resource_id, property_term);

CREATE TABLE IF NOT EXISTS dynamic_item_set_query (
    item_set_id BIGINT PRIMARY KEY,
    query       JSONB NOT NULL
);
`

// Migrate creates the tables used by the store.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
