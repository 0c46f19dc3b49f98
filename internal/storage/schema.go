package storage

import (
	"context"
	"fmt"
)

// Schema statements are idempotent so startup can run them unconditionally.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS companies (
        ticker          VARCHAR(10) PRIMARY KEY,
        name            VARCHAR(255) NOT NULL,
        name_normalized VARCHAR(255),
        market_cap      NUMERIC(20,2),
        avg_volume      BIGINT,
        sector          VARCHAR(50),
        updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
    );`,

	`CREATE INDEX IF NOT EXISTS idx_companies_name_normalized
        ON companies (name_normalized);`,

	`CREATE TABLE IF NOT EXISTS signals (
        id                   BIGSERIAL PRIMARY KEY,
        contract_id          VARCHAR(100) NOT NULL UNIQUE,
        ticker               VARCHAR(10) NOT NULL REFERENCES companies (ticker),
        agency_name          VARCHAR(255),
        contract_description TEXT,
        award_amount         NUMERIC(20,2) NOT NULL,
        potential_ceiling    NUMERIC(20,2),
        market_cap_at_time   NUMERIC(20,2),
        impact_ratio         NUMERIC(12,2) NOT NULL,
        contract_date        TIMESTAMPTZ,
        source_url           TEXT,
        detected_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
        price_at_contract    NUMERIC(12,4),
        price_before_1h      NUMERIC(8,2),
        price_before_6h      NUMERIC(8,2),
        price_before_24h     NUMERIC(8,2),
        price_after_1m       NUMERIC(8,2),
        price_after_1h       NUMERIC(8,2),
        price_after_6h       NUMERIC(8,2),
        price_after_24h      NUMERIC(8,2)
    );`,

	`CREATE INDEX IF NOT EXISTS idx_signals_detected_at
        ON signals (detected_at DESC);`,

	`CREATE INDEX IF NOT EXISTS idx_signals_contract_date
        ON signals (contract_date DESC);`,

	`CREATE INDEX IF NOT EXISTS idx_signals_impact_ratio
        ON signals (impact_ratio DESC);`,
}

// EnsureSchema creates missing tables and indexes.
func (s *Store) EnsureSchema(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	for _, stmt := range schemaStatements {
		if _, execErr := pool.Exec(ctx, stmt); execErr != nil {
			return fmt.Errorf("ensure schema: %w", execErr)
		}
	}
	return nil
}
