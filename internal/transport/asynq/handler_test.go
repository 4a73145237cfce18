package asynq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	hibiken "github.com/hibiken/asynq"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type mockSyncer struct {
	calls    []string
	err      error
	deadline bool
}

func (m *mockSyncer) SyncProduct(ctx context.Context, productID string) error {
	m.calls = append(m.calls, productID)
	_, m.deadline = ctx.Deadline()
	return m.err
}

func TestNewProductChangedTask(t *testing.T) {
	task, err := NewProductChangedTask("p1")
	if err != nil {
		t.Fatal(err)
	}
	if task.Type() != TypeProductChanged {
		t.Errorf("Type() = %q", task.Type())
	}
	var p ProductChangedPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		t.Fatal(err)
	}
	if p.ProductID != "p1" {
		t.Errorf("payload = %s", task.Payload())
	}
	if string(task.Payload()) != `{"productId":"p1"}` {
		t.Errorf("wire payload = %s", task.Payload())
	}

	if _, err := NewProductChangedTask(""); err == nil {
		t.Error("expected error for empty product ID")
	}
}

func TestProcessTask_Syncs(t *testing.T) {
	syncer := &mockSyncer{}
	h := NewHandler(syncer, time.Second, zap.NewNop())

	task, _ := NewProductChangedTask("p1")
	if err := h.ProcessTask(context.Background(), task); err != nil {
		t.Fatalf("ProcessTask() = %v", err)
	}
	if len(syncer.calls) != 1 || syncer.calls[0] != "p1" {
		t.Errorf("calls = %v", syncer.calls)
	}
	if !syncer.deadline {
		t.Error("sync should run under a deadline")
	}
}

func TestProcessTask_AlwaysAcknowledges(t *testing.T) {
	tests := []struct {
		name      string
		payload   string
		syncErr   error
		wantCalls int
		wantLevel string
	}{
		{"malformed payload", "{not json", nil, 0, "warn"},
		{"missing product id", `{"productId":""}`, nil, 0, "warn"},
		{"sync failure", `{"productId":"p1"}`, errors.New("index down"), 1, "error"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			core, logs := observer.New(zap.DebugLevel)
			syncer := &mockSyncer{err: tc.syncErr}
			h := NewHandler(syncer, 0, zap.New(core))

			task := hibiken.NewTask(TypeProductChanged, []byte(tc.payload))
			if err := h.ProcessTask(context.Background(), task); err != nil {
				t.Fatalf("ProcessTask() = %v, want nil", err)
			}
			if len(syncer.calls) != tc.wantCalls {
				t.Errorf("calls = %v", syncer.calls)
			}
			entries := logs.All()
			if len(entries) != 1 || entries[0].Level.String() != tc.wantLevel {
				t.Errorf("logs = %+v", entries)
			}
		})
	}
}
