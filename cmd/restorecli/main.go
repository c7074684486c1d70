// Command restorecli pulls the newest token-store/accounts-config
// snapshots down from the C11 backup bucket and overwrites the local
// copies. Meant to be run against a stopped server after a host loss.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aristath/questrade-sentinel/internal/backup"
	"github.com/aristath/questrade-sentinel/internal/config"
	"github.com/aristath/questrade-sentinel/internal/logger"
)

func main() {
	os.Exit(run())
}

func run() int {
	var dataDirFlag string
	flag.StringVar(&dataDirFlag, "data-dir", "", "data directory (overrides TRADER_DATA_DIR)")
	flag.Parse()

	cfg, err := config.Load(dataDirFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, "restorecli:", err)
		return 1
	}
	log := logger.New(logger.Config{Level: cfg.LogLevel})

	svc, enabled, err := backup.New(backup.Config{
		ObjectStore: backup.ObjectStoreConfig{
			AccountID:       os.Getenv("R2_ACCOUNT_ID"),
			AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("R2_SECRET_ACCESS_KEY"),
			Bucket:          os.Getenv("R2_BACKUP_BUCKET"),
		},
		TokenStorePath:     filepath.Join(cfg.DataDir, "tokens.json"),
		AccountsConfigPath: filepath.Join(cfg.DataDir, "accounts.json"),
	}, log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "restorecli:", err)
		return 1
	}
	if !enabled {
		fmt.Fprintln(os.Stderr, "restorecli: no R2 credentials configured (R2_ACCOUNT_ID/R2_ACCESS_KEY_ID/R2_SECRET_ACCESS_KEY/R2_BACKUP_BUCKET)")
		return 1
	}

	if err := svc.Restore(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "restorecli:", err)
		return 1
	}
	fmt.Println("restorecli: restore complete")
	return 0
}
