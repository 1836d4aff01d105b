// Package updater provides self-update from GitHub releases.
package updater

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/creativeprojects/go-selfupdate"

	"github.com/smazurov/screenrec/internal/logging"
	"github.com/smazurov/screenrec/internal/version"
)

// UpdateInfo describes the latest release relative to the running binary.
type UpdateInfo struct {
	CurrentVersion  string
	LatestVersion   string
	ReleaseNotes    string
	ReleaseURL      string
	PublishedAt     time.Time
	AssetSize       int
	UpdateAvailable bool
}

// Options configures the updater.
type Options struct {
	Repository string // GitHub repo slug, e.g. "smazurov/screenrec"
	Prerelease bool
}

// Updater checks for and applies releases of the running binary. A backup
// of the current executable is kept so a bad update can be rolled back.
type Updater struct {
	repository selfupdate.Repository
	updater    *selfupdate.Updater
	backup     *backupManager

	latest *selfupdate.Release

	logger *slog.Logger
}

// New builds an updater for the given repository. It fails when the
// executable's directory is not writable, since an update could never be
// applied there.
func New(opts Options) (*Updater, error) {
	logger := logging.GetLogger("updater")

	if err := checkWritePermission(); err != nil {
		return nil, err
	}

	source, err := selfupdate.NewGitHubSource(selfupdate.GitHubConfig{})
	if err != nil {
		return nil, fmt.Errorf("failed to create GitHub source: %w", err)
	}

	up, err := selfupdate.NewUpdater(selfupdate.Config{
		Source:     source,
		Prerelease: opts.Prerelease,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create updater: %w", err)
	}

	backup, err := newBackupManager(logger)
	if err != nil {
		logger.Warn("Failed to create backup manager", "error", err)
	}

	return &Updater{
		repository: selfupdate.ParseSlug(opts.Repository),
		updater:    up,
		backup:     backup,
		logger:     logger,
	}, nil
}

func checkWritePermission() error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return fmt.Errorf("failed to resolve symlinks: %w", err)
	}

	dir := filepath.Dir(exe)
	tmp := filepath.Join(dir, ".screenrec.update.test")
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("no write permission to %s: %w", dir, err)
	}
	f.Close()
	os.Remove(tmp)
	return nil
}

// Check queries GitHub for the latest release and compares it against the
// running version. Nothing is downloaded.
func (u *Updater) Check(ctx context.Context) (*UpdateInfo, error) {
	currentVersion := version.Version

	release, found, err := u.updater.DetectLatest(ctx, u.repository)
	if err != nil {
		return nil, newError(ErrCodeCheckFailed, "failed to check for updates", err)
	}
	if !found {
		return nil, newError(ErrCodeNotFound, "repository not found or has no releases", nil)
	}

	// A dev build is always considered outdated
	isNewer := currentVersion == "dev" || release.GreaterThan(currentVersion)
	if !isNewer {
		return &UpdateInfo{
			CurrentVersion:  currentVersion,
			LatestVersion:   release.Version(),
			UpdateAvailable: false,
		}, nil
	}

	u.latest = release

	return &UpdateInfo{
		CurrentVersion:  currentVersion,
		LatestVersion:   release.Version(),
		ReleaseNotes:    release.ReleaseNotes,
		ReleaseURL:      release.URL,
		PublishedAt:     release.PublishedAt,
		AssetSize:       release.AssetByteSize,
		UpdateAvailable: true,
	}, nil
}

// Apply downloads the latest release and replaces the running binary,
// backing up the current one first. On failure the backup is restored.
func (u *Updater) Apply(ctx context.Context) error {
	if u.latest == nil {
		info, err := u.Check(ctx)
		if err != nil {
			return err
		}
		if !info.UpdateAvailable {
			return newError(ErrCodeNoUpdate, "no update available", nil)
		}
	}

	if u.backup != nil {
		if err := u.backup.createBackup(); err != nil {
			return newError(ErrCodeBackupFailed, "failed to create backup", err)
		}
	}

	exe, err := selfupdate.ExecutablePath()
	if err != nil {
		return newError(ErrCodeApplyFailed, "failed to get executable path", err)
	}

	if err := u.updater.UpdateTo(ctx, u.latest, exe); err != nil {
		u.attemptRollback()
		return newError(ErrCodeApplyFailed, "failed to apply update", err)
	}

	u.logger.Info("Update applied", "version", u.latest.Version())
	return nil
}

// attemptRollback restores the backup after a failed update, logging
// rather than returning any error since the update failure is what the
// caller reports.
func (u *Updater) attemptRollback() {
	if u.backup == nil || !u.backup.hasBackup() {
		return
	}
	if err := u.backup.restore(); err != nil {
		u.logger.Error("Rollback after failed update failed", "error", err)
		return
	}
	u.logger.Info("Rolled back after failed update", "version", u.backup.backupVersion())
}

// Rollback restores the previously backed up binary.
func (u *Updater) Rollback(_ context.Context) error {
	if u.backup == nil || !u.backup.hasBackup() {
		return newError(ErrCodeNoBackup, "no backup available for rollback", nil)
	}

	if err := u.backup.restore(); err != nil {
		return newError(ErrCodeRollbackFailed, "failed to restore backup", err)
	}

	u.logger.Info("Rollback completed", "version", u.backup.backupVersion())
	return nil
}

// BackupVersion returns the version held in the backup, or "" when none
// exists.
func (u *Updater) BackupVersion() string {
	if u.backup == nil {
		return ""
	}
	return u.backup.backupVersion()
}
