package postgres

// Schema statements applied by Migrate, in order. Amounts use NUMERIC so
// the top-balance query can sum server side without precision loss.
var migrations = []string{
	`
CREATE TABLE IF NOT EXISTS econ_accounts (
    id         UUID PRIMARY KEY,
    name       TEXT NOT NULL,
    name_lower TEXT NOT NULL,
    kind       TEXT NOT NULL DEFAULT 'player',
    owner      UUID,
    members    JSONB NOT NULL DEFAULT '[]',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_econ_accounts_name_lower ON econ_accounts (name_lower);
`,
	`
CREATE TABLE IF NOT EXISTS econ_holdings (
    account  UUID NOT NULL REFERENCES econ_accounts (id) ON DELETE CASCADE,
    region   TEXT NOT NULL,
    currency BIGINT NOT NULL,
    type     TEXT NOT NULL,
    amount   NUMERIC NOT NULL DEFAULT 0,
    PRIMARY KEY (account, region, currency, type)
);

CREATE INDEX IF NOT EXISTS idx_econ_holdings_pair ON econ_holdings (region, currency);
`,
}
