package backup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/rs/zerolog"
)

// minSnapshotsToKeep is never pruned below, even when retention has
// elapsed for every snapshot — losing the only remaining copy of a
// refresh token because a clock drifted would be worse than an
// oversized bucket. Mirrors the teacher's rotation floor.
const minSnapshotsToKeep = 3

// Config controls what gets snapshotted and how long it's kept.
type Config struct {
	ObjectStore ObjectStoreConfig
	// TokenStorePath and AccountsConfigPath are the two files spec §C11
	// snapshots; either may be empty to skip it.
	TokenStorePath     string
	AccountsConfigPath string
	// RetentionDays is how long a snapshot is kept once at least
	// minSnapshotsToKeep newer ones exist. 0 disables age-based pruning
	// (snapshots still accumulate, they're just never deleted for age).
	RetentionDays int
}

// Service uploads timestamped snapshots and prunes old ones.
type Service struct {
	store *objectStore
	cfg   Config
	log   zerolog.Logger
}

// New builds a Service, or returns (nil, false) when the object store
// isn't configured — callers should treat that as "backup disabled",
// not an error, per spec §C11.
func New(cfg Config, log zerolog.Logger) (*Service, bool, error) {
	if !cfg.ObjectStore.Enabled() {
		return nil, false, nil
	}
	store, err := newObjectStore(cfg.ObjectStore, log)
	if err != nil {
		return nil, false, err
	}
	return &Service{store: store, cfg: cfg, log: log.With().Str("component", "backup_service").Logger()}, true, nil
}

// Snapshot uploads the configured files under a timestamped key and
// prunes snapshots older than RetentionDays (subject to the
// minSnapshotsToKeep floor). A failure on one file doesn't prevent the
// other from being attempted; every error is joined and returned.
func (s *Service) Snapshot(ctx context.Context) error {
	now := time.Now().UTC()
	stamp := now.Format("2006-01-02T15-04-05Z")

	var errs []error
	if s.cfg.TokenStorePath != "" {
		if err := s.snapshotFile(ctx, "token-store", s.cfg.TokenStorePath, stamp); err != nil {
			errs = append(errs, err)
		}
	}
	if s.cfg.AccountsConfigPath != "" {
		if err := s.snapshotFile(ctx, "accounts-config", s.cfg.AccountsConfigPath, stamp); err != nil {
			errs = append(errs, err)
		}
	}

	for _, prefix := range []string{"token-store/", "accounts-config/"} {
		if err := s.rotate(ctx, prefix); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("backup: %d error(s) during snapshot: %w", len(errs), errors.Join(errs...))
	}
	return nil
}

func (s *Service) snapshotFile(ctx context.Context, prefix, filePath, stamp string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("backup: read %s: %w", filePath, err)
	}

	key := path.Join(prefix, stamp+".json")
	if err := s.store.upload(ctx, key, bytes.NewReader(data), int64(len(data))); err != nil {
		return err
	}

	s.log.Info().Str("key", key).Int("bytes", len(data)).Msg("uploaded backup snapshot")
	return nil
}

// Restore downloads the newest snapshot under each configured prefix and
// writes it back over TokenStorePath/AccountsConfigPath, overwriting
// whatever is there. Grounded on the teacher's
// internal/reliability.RestoreService, trimmed down: that service staged
// and untarred whole sqlite databases across a two-phase flag-file
// handoff, because the teacher's deployment backed up live databases; C11
// only ever snapshots two JSON files, so there's nothing to stage or
// unpack, and a direct one-shot overwrite is enough. Intended to be run
// from a stopped process (see cmd/restorecli), not while the server holds
// either file open.
func (s *Service) Restore(ctx context.Context) error {
	var errs []error
	if s.cfg.TokenStorePath != "" {
		if err := s.restoreFile(ctx, "token-store/", s.cfg.TokenStorePath); err != nil {
			errs = append(errs, err)
		}
	}
	if s.cfg.AccountsConfigPath != "" {
		if err := s.restoreFile(ctx, "accounts-config/", s.cfg.AccountsConfigPath); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("backup: %d error(s) during restore: %w", len(errs), errs[0])
	}
	return nil
}

func (s *Service) restoreFile(ctx context.Context, prefix, filePath string) error {
	objects, err := s.store.list(ctx, prefix)
	if err != nil {
		return err
	}
	if len(objects) == 0 {
		return fmt.Errorf("backup: no snapshots found under %s", prefix)
	}
	// list() sorts newest-first.
	latest := objects[0]

	data, err := s.store.download(ctx, latest.Key)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filePath, data, 0o600); err != nil {
		return fmt.Errorf("backup: write %s: %w", filePath, err)
	}

	s.log.Info().Str("key", latest.Key).Str("path", filePath).Msg("restored file from backup snapshot")
	return nil
}

// rotate deletes snapshots under prefix older than RetentionDays, always
// keeping at least the minSnapshotsToKeep most recent regardless of age.
func (s *Service) rotate(ctx context.Context, prefix string) error {
	objects, err := s.store.list(ctx, prefix)
	if err != nil {
		return err
	}
	if len(objects) <= minSnapshotsToKeep {
		return nil
	}
	if s.cfg.RetentionDays <= 0 {
		return nil
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -s.cfg.RetentionDays)

	var errs []error
	for _, obj := range objects[minSnapshotsToKeep:] {
		if obj.LastModified.After(cutoff) {
			continue
		}
		if err := s.store.delete(ctx, obj.Key); err != nil {
			errs = append(errs, err)
			continue
		}
		s.log.Info().Str("key", obj.Key).Msg("pruned expired backup snapshot")
	}

	if len(errs) > 0 {
		return fmt.Errorf("backup: %d error(s) pruning %s: %w", len(errs), prefix, errs[0])
	}
	return nil
}
