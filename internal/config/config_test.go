package config

import (
	"strings"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Feed.DashboardPerProject != 5 {
		t.Errorf("expected dashboard cap 5, got %d", cfg.Feed.DashboardPerProject)
	}
	if cfg.Feed.ProjectCap != 5 || cfg.Feed.TaskCap != 5 {
		t.Errorf("expected project/task caps of 5, got %d/%d", cfg.Feed.ProjectCap, cfg.Feed.TaskCap)
	}
	if !cfg.IsDevelopment() {
		t.Error("expected development environment by default")
	}
}

func TestLoad_RejectsNonPositiveCap(t *testing.T) {
	t.Setenv("FEED_TASK_CAP", "0")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for zero task cap")
	}
}

func TestLoad_RejectsDefaultLimitAboveMax(t *testing.T) {
	t.Setenv("FEED_DEFAULT_LIMIT", "50")
	t.Setenv("FEED_MAX_LIMIT", "20")
	if _, err := Load(); err == nil {
		t.Fatal("expected error when default limit exceeds max")
	}
}

func TestLoad_ProductionRequiresPassword(t *testing.T) {
	t.Setenv("ENV", "Production")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for default DB password in production")
	}

	t.Setenv("DB_PASSWORD", "s3cret")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.IsProduction() {
		t.Error("expected production environment")
	}
}

func TestDSN_AppendsDefaultPort(t *testing.T) {
	d := DatabaseConfig{Host: "mariadb", User: "novo", Password: "p@ss", Name: "novo"}
	dsn := d.DSN()
	if !strings.Contains(dsn, "tcp(mariadb:3306)") {
		t.Errorf("expected default port in DSN, got %s", dsn)
	}
	if !strings.Contains(dsn, "parseTime=true") {
		t.Errorf("expected parseTime in DSN, got %s", dsn)
	}
}

func TestDSN_Override(t *testing.T) {
	d := DatabaseConfig{dsnOverride: "u:p@tcp(db:3307)/x"}
	if got := d.DSN(); got != "u:p@tcp(db:3307)/x" {
		t.Errorf("expected override DSN, got %s", got)
	}
}
