package settings

const schemaSQL = `
CREATE TABLE IF NOT EXISTS settings (
    key                  TEXT PRIMARY KEY,
    value                TEXT NOT NULL,
    updated_at           TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS tokens (
    provider             TEXT PRIMARY KEY,
    token                TEXT NOT NULL,
    saved_at             TEXT NOT NULL
);
`

// Keys for well-known settings entries.
const (
	keyCachedRates        = "exchange.cached_rates"
	keyLastFetchTimestamp = "exchange.last_fetch_at"
)
