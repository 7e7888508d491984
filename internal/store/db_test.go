package store

import "testing"

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenTest()
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
