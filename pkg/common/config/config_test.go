package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PSEUDONYM_POOL_SIZE", "")
	cfg := Load()
	if cfg.PoolSize != 999 {
		t.Fatalf("expected default pool size 999, got %d", cfg.PoolSize)
	}
	if cfg.Prefix != "PP" {
		t.Fatalf("expected default prefix PP, got %s", cfg.Prefix)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092")
	t.Setenv("PSEUDONYM_POOL_SIZE", "5000")
	t.Setenv("PSEUDONYM_TRUNCATE_TO", "not-a-number")
	t.Setenv("LABEL_POOL_TTL", "1h")
	t.Setenv("DLP_STRICT", "true")

	cfg := Load()
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "b:9092" {
		t.Fatalf("unexpected brokers %v", cfg.KafkaBrokers)
	}
	if cfg.PoolSize != 5000 {
		t.Fatalf("expected pool size 5000, got %d", cfg.PoolSize)
	}
	if cfg.TruncateTo != 0 {
		t.Fatalf("expected invalid int to fall back to 0, got %d", cfg.TruncateTo)
	}
	if cfg.LabelPoolTTL != time.Hour {
		t.Fatalf("expected 1h TTL, got %s", cfg.LabelPoolTTL)
	}
	if !cfg.DLPStrict {
		t.Fatal("expected strict DLP")
	}
}
