package database

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"labsched/internal/config"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

const defaultBackupInterval = 24 * time.Hour

// BackupService snapshots the sqlite file on a schedule and prunes snapshots
// past the retention window.
type BackupService struct {
	dbPath string
	config config.BackupConfig
	logger *zerolog.Logger
}

func NewBackupService(dbPath string, cfg config.BackupConfig, logger *zerolog.Logger) *BackupService {
	return &BackupService{
		dbPath: dbPath,
		config: cfg,
		logger: logger,
	}
}

// Start takes an initial snapshot, then runs on the configured interval until
// the context is cancelled. It blocks, so callers run it in a goroutine.
func (s *BackupService) Start(ctx context.Context) {
	if !s.config.Enabled {
		s.logger.Info().Msg("database backups disabled")
		return
	}

	interval := s.interval()
	s.logger.Info().Dur("interval", interval).Str("storage", s.config.StoragePath).Msg("backup loop started")

	if err := s.PerformBackup(); err != nil {
		s.logger.Error().Err(err).Msg("startup backup failed")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.PerformBackup(); err != nil {
				s.logger.Error().Err(err).Msg("scheduled backup failed")
			}
			s.CleanupOldBackups()
		}
	}
}

func (s *BackupService) interval() time.Duration {
	if s.config.Schedule == "" {
		return defaultBackupInterval
	}
	d, err := time.ParseDuration(s.config.Schedule)
	if err != nil {
		s.logger.Warn().Err(err).Str("schedule", s.config.Schedule).Msg("bad backup schedule, using 24h")
		return defaultBackupInterval
	}
	return d
}

// PerformBackup writes a timestamped snapshot into the storage directory.
// VACUUM INTO gives a consistent copy even with concurrent writers; a plain
// file copy is the fallback when it fails.
func (s *BackupService) PerformBackup() error {
	if err := os.MkdirAll(s.config.StoragePath, 0o755); err != nil {
		return fmt.Errorf("create backup directory: %w", err)
	}

	name := fmt.Sprintf("backup_%s.db", time.Now().Format("20060102_150405"))
	dest := filepath.Join(s.config.StoragePath, name)

	s.logger.Info().Str("path", dest).Msg("writing database snapshot")

	src, err := sql.Open("sqlite3", s.dbPath)
	if err != nil {
		return fmt.Errorf("open source database: %w", err)
	}
	defer src.Close()

	if _, err := src.Exec(fmt.Sprintf("VACUUM INTO '%s'", dest)); err != nil {
		s.logger.Warn().Err(err).Msg("VACUUM INTO failed, copying file instead")
		return s.copyDatabaseFile(dest)
	}

	s.logger.Info().Str("path", dest).Msg("snapshot written")
	return nil
}

// copyDatabaseFile is not crash-consistent under concurrent writes; it is
// only used when VACUUM INTO is unavailable.
func (s *BackupService) copyDatabaseFile(dest string) error {
	in, err := os.Open(s.dbPath)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}

	s.logger.Info().Str("path", dest).Msg("snapshot written via file copy")
	return nil
}

// CleanupOldBackups removes snapshots whose modification time falls outside
// the retention window. A non-positive RetentionDays keeps everything.
func (s *BackupService) CleanupOldBackups() {
	if s.config.RetentionDays <= 0 {
		return
	}

	entries, err := os.ReadDir(s.config.StoragePath)
	if err != nil {
		s.logger.Error().Err(err).Msg("cannot list backup directory")
		return
	}

	cutoff := time.Now().AddDate(0, 0, -s.config.RetentionDays)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			s.logger.Info().Str("file", entry.Name()).Msg("removing expired snapshot")
			os.Remove(filepath.Join(s.config.StoragePath, entry.Name()))
		}
	}
}
