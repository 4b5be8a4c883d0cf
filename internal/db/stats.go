package db

import "fmt"

// TableStats is the row count of one table.
type TableStats struct {
	Name string `json:"name"`
	Rows int64  `json:"rows"`
}

// DatabaseStats summarises the recording database.
type DatabaseStats struct {
	Tables []TableStats `json:"tables"`
}

// recordedTables are reported by GetDatabaseStats in this order.
var recordedTables = []string{"sessions", "samples", "commands"}

// GetDatabaseStats counts the rows of every recording table.
func (db *DB) GetDatabaseStats() (DatabaseStats, error) {
	stats := DatabaseStats{Tables: make([]TableStats, 0, len(recordedTables))}
	for _, table := range recordedTables {
		var n int64
		if err := db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&n); err != nil {
			return DatabaseStats{}, fmt.Errorf("count %s: %w", table, err)
		}
		stats.Tables = append(stats.Tables, TableStats{Name: table, Rows: n})
	}
	return stats, nil
}
