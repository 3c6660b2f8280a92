package otel

import (
	"context"
	"testing"
)

func TestInitDisabledIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{})
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestInitRequiresServiceName(t *testing.T) {
	if _, err := Init(context.Background(), Config{Traces: true}); err == nil {
		t.Fatalf("expected error without service name")
	}
}

func TestParseHeaders(t *testing.T) {
	got := ParseHeaders(" authorization = Bearer x ,broken, =nokey,team=pcn")
	if len(got) != 2 {
		t.Fatalf("unexpected headers: %v", got)
	}
	if got["authorization"] != "Bearer x" || got["team"] != "pcn" {
		t.Fatalf("unexpected headers: %v", got)
	}
}
