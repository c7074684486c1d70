package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_MigratesAndRecordsHistory(t *testing.T) {
	dir := t.TempDir()
	db, err := New(Config{Path: filepath.Join(dir, "jobs.sqlite")})
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Migrate())
	require.NoError(t, db.Migrate()) // idempotent

	_, err = db.Conn().Exec(
		"INSERT INTO job_history (job_type, last_run_at, last_status) VALUES (?, ?, ?)",
		"sync_prices", 0, "success",
	)
	require.NoError(t, err)

	var status string
	require.NoError(t, db.Conn().QueryRow(
		"SELECT last_status FROM job_history WHERE job_type = ?", "sync_prices",
	).Scan(&status))
	require.Equal(t, "success", status)
}

func TestNew_HealthCheck(t *testing.T) {
	dir := t.TempDir()
	db, err := New(Config{Path: filepath.Join(dir, "jobs.sqlite")})
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.HealthCheck(context.Background()))
}
