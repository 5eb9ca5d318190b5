package persistence

import (
	"database/sql"
	"fmt"
	"sync"

	"docassist/pkg/logx"
)

//nolint:gochecknoglobals // process-wide database handle
var (
	globalDB     *sql.DB
	globalDBOnce sync.Once
	globalDBMu   sync.RWMutex
	dbLogger     = logx.NewLogger("persistence")
)

// Initialize opens the process database. Later calls are no-ops.
func Initialize(dbPath string) error {
	var initErr error
	globalDBOnce.Do(func() {
		db, err := InitializeDatabase(dbPath)
		if err != nil {
			initErr = err
			return
		}
		globalDBMu.Lock()
		globalDB = db
		globalDBMu.Unlock()
		dbLogger.Info("Database initialized: %s", dbPath)
	})
	return initErr
}

// GetDB returns the process database. Panics before Initialize.
func GetDB() *sql.DB {
	globalDBMu.RLock()
	defer globalDBMu.RUnlock()
	if globalDB == nil {
		panic("persistence.Initialize must be called before GetDB")
	}
	return globalDB
}

func IsInitialized() bool {
	globalDBMu.RLock()
	defer globalDBMu.RUnlock()
	return globalDB != nil
}

// Ops returns operations bound to the process database.
func Ops() *DatabaseOperations {
	return NewDatabaseOperations(GetDB())
}

// Close closes the process database.
func Close() error {
	globalDBMu.Lock()
	defer globalDBMu.Unlock()
	if globalDB == nil {
		return nil
	}
	err := globalDB.Close()
	globalDB = nil
	if err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// Reset closes the database and allows Initialize again. Tests only.
func Reset() error {
	if err := Close(); err != nil {
		return err
	}
	globalDBOnce = sync.Once{}
	return nil
}
