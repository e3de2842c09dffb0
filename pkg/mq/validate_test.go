package mq

import "testing"

func TestRequireNonEmpty(t *testing.T) {
	if err := RequireNonEmpty("broker", ""); err == nil {
		t.Fatal("expected error for empty value")
	}
	if err := RequireNonEmpty("broker", "localhost:9092"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRequirePositive(t *testing.T) {
	if err := RequirePositive("retries", 0); err == nil {
		t.Fatal("expected error for zero value")
	}
	if err := RequirePositive("retries", 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
