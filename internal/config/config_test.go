package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.DBPath != "subledger.db" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.BackupEnabled() {
		t.Error("backups should be disabled by default")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SUBLEDGER_PORT", "9999")
	t.Setenv("SUBLEDGER_LOG_LEVEL", "debug")
	t.Setenv("SUBLEDGER_BACKUP_BUCKET", "bk")
	t.Setenv("SUBLEDGER_BACKUP_KEY", "secret")
	t.Setenv("SUBLEDGER_BACKUP_INTERVAL", "2h")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "9999" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
	if !cfg.BackupEnabled() {
		t.Error("backups should be enabled")
	}
	if cfg.BackupInterval != 2*time.Hour {
		t.Errorf("BackupInterval = %v", cfg.BackupInterval)
	}
}

func TestValidateBackupNeedsKey(t *testing.T) {
	t.Setenv("SUBLEDGER_BACKUP_BUCKET", "bk")
	t.Setenv("SUBLEDGER_BACKUP_KEY", "")

	if _, err := Load(); err == nil {
		t.Error("backup bucket without key should fail validation")
	}
}

func TestLoadBadInterval(t *testing.T) {
	t.Setenv("SUBLEDGER_BACKUP_INTERVAL", "soon")

	if _, err := Load(); err == nil {
		t.Error("unparseable interval should fail")
	}
}
