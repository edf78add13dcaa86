package postgres

// resolve applies opts to the defaults without validating them.
func resolve(opts []Option) *options {
	o := newOptions()
	for _, opt := range opts {
		opt(o)
	}

	return o
}

var (
	ExportValidateTableName = validateTableName

	ExportValidate = func(opts ...Option) error { return resolve(opts).validate() }

	ExportConnectionString = func(opts ...Option) string { return resolve(opts).connectionString() }

	ExportCreateStatements = func(opts ...Option) []string { return resolve(opts).createStatements() }

	ExportVerifyDatabaseSchema = func(opts ...Option) func(map[string]*dbRow) error {
		return resolve(opts).verifyCurrentDatabaseVersion
	}
)

type (
	DBRow = dbRow
	Pool  = pool
)

// SetPool replaces the connection pool, typically with a pgxmock pool.
func (c *Client) SetPool(p Pool) {
	c.conn = p
}

// HasActiveTTLCleanup reports whether Init started the cleanup goroutine.
func (c *Client) HasActiveTTLCleanup() bool {
	return c.cancelTTL != nil
}
