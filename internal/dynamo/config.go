package dynamo

// Config holds configuration for the Store.
type Config struct {
	// ItemsTable holds list items and the id counter.
	// Default: "treelist_items"
	ItemsTable string

	// OwnersTable holds registered owners.
	// Default: "treelist_owners"
	OwnersTable string
}

// DefaultConfig returns the default table names.
func DefaultConfig() Config {
	return Config{
		ItemsTable:  "treelist_items",
		OwnersTable: "treelist_owners",
	}
}

// validate fills in missing table names.
func (c *Config) validate() {
	def := DefaultConfig()
	if c.ItemsTable == "" {
		c.ItemsTable = def.ItemsTable
	}
	if c.OwnersTable == "" {
		c.OwnersTable = def.OwnersTable
	}
}
