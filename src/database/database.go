package database

import (
	"database/sql"
	stdlog "log"

	"github.com/username/coinfolio/backend/src/logger"
	_ "modernc.org/sqlite"
)

var DB *sql.DB

func InitDB(databasePath string) {
	db, err := sql.Open("sqlite", databasePath)
	if err != nil {
		stdlog.Fatalf("failed to open database at %s: %v", databasePath, err)
	}

	DB = db

	if logger.L != nil {
		logger.L.Info("Checking database migrations", "databasePath", databasePath)
	} else {
		stdlog.Println("Checking database migrations for:", databasePath)
	}
	migrateTransactionsTable()

	// Quantities and USD values are stored as TEXT to keep the decimal
	// representation exact across round trips.
	createTableStatement := `
	CREATE TABLE IF NOT EXISTS transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		date TEXT NOT NULL,
		kind TEXT NOT NULL,
		symbol TEXT NOT NULL,
		token_id TEXT,
		quantity TEXT NOT NULL,
		usd_value TEXT,
		counter_symbol TEXT,
		counter_quantity TEXT,
		chain TEXT,
		project TEXT,
		tx_name TEXT,
		wallet TEXT,
		source_id TEXT,
		hash_id TEXT,
		UNIQUE(hash_id)
	);

	CREATE TABLE IF NOT EXISTS sale_pairings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		matched_quantity TEXT NOT NULL,
		buy_date TEXT NOT NULL,
		sell_date TEXT NOT NULL,
		cost_basis TEXT NOT NULL,
		proceeds TEXT NOT NULL,
		gain_loss TEXT NOT NULL,
		holding_days INTEGER NOT NULL,
		buy_chain TEXT,
		buy_ref TEXT,
		sell_chain TEXT,
		sell_ref TEXT
	);

	CREATE TABLE IF NOT EXISTS unmatched_sales (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		sell_date TEXT NOT NULL,
		unmatched_quantity TEXT NOT NULL,
		sell_ref TEXT
	);
	`

	_, err = DB.Exec(createTableStatement)
	if err != nil {
		if logger.L != nil {
			logger.L.Error("failed to create tables", "error", err)
		}
		stdlog.Fatalf("failed to create tables: %v", err)
	}
	if logger.L != nil {
		logger.L.Info("Database tables ensured/created.")
	} else {
		stdlog.Println("Database tables ensured/created.")
	}
}

func migrateTransactionsTable() {
	var tableName string
	err := DB.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='transactions'").Scan(&tableName)
	if err != nil {
		if err == sql.ErrNoRows {
			if logger.L != nil {
				logger.L.Info("'transactions' table does not exist, no migration needed as table will be created.")
			} else {
				stdlog.Println("'transactions' table does not exist, no migration needed as table will be created.")
			}
			return
		}
		if logger.L != nil {
			logger.L.Error("Error checking for 'transactions' table", "error", err)
		} else {
			stdlog.Printf("Error checking for 'transactions' table: %v", err)
		}
		return
	}

	rows, err := DB.Query("PRAGMA table_info(transactions)")
	if err != nil {
		if logger.L != nil {
			logger.L.Error("Error querying table schema for 'transactions'", "error", err)
		} else {
			stdlog.Printf("Error querying table schema for 'transactions': %v", err)
		}
		return
	}
	defer rows.Close()

	columnExists := make(map[string]bool)
	for rows.Next() {
		var cid, pk int
		var name, dataType string
		var notnullVal int
		var dfltValue interface{}

		if err := rows.Scan(&cid, &name, &dataType, &notnullVal, &dfltValue, &pk); err != nil {
			if logger.L != nil {
				logger.L.Error("Error scanning column info for 'transactions'", "error", err)
			} else {
				stdlog.Printf("Error scanning column info for 'transactions': %v", err)
			}
			return
		}
		columnExists[name] = true
	}
	if err = rows.Err(); err != nil {
		if logger.L != nil {
			logger.L.Error("Error iterating over column info for 'transactions'", "error", err)
		} else {
			stdlog.Printf("Error iterating over column info for 'transactions': %v", err)
		}
		return
	}

	if _, ok := columnExists["token_id"]; !ok {
		_, err := DB.Exec("ALTER TABLE transactions ADD COLUMN token_id TEXT")
		if err != nil {
			logger.L.Error("Error adding 'token_id' column to 'transactions' table", "error", err)
		} else {
			logger.L.Info("Added 'token_id' column to 'transactions' table")
		}
	}
	if _, ok := columnExists["wallet"]; !ok {
		_, err := DB.Exec("ALTER TABLE transactions ADD COLUMN wallet TEXT")
		if err != nil {
			logger.L.Error("Error adding 'wallet' column to 'transactions' table", "error", err)
		} else {
			logger.L.Info("Added 'wallet' column to 'transactions' table")
		}
	}
}
