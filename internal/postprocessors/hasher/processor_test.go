package hasher

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

func TestProcessor_Name(t *testing.T) {
	if New().Name() != "hasher" {
		t.Errorf("expected name 'hasher', got %q", New().Name())
	}
}

func TestTextHash(t *testing.T) {
	const want = "b825b29207c377ead0f88470589adb4053c215f6006acb609db3b82e28fc9fc5"
	got := TextHash("doc", 0, "hello")
	if got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
	if TextHash("doc", 1, "hello") == got {
		t.Error("hash must depend on the chunk index")
	}
	if TextHash("other", 0, "hello") == got {
		t.Error("hash must depend on the document id")
	}
}

func TestPointID(t *testing.T) {
	id := PointID(TextHash("doc", 0, "hello"))
	if id != "e418385f-54af-55ca-a93c-5be262adabfa" {
		t.Errorf("unexpected point id %s", id)
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		t.Fatalf("point id is not a uuid: %v", err)
	}
	if parsed.Version() != 5 {
		t.Errorf("expected uuid version 5, got %d", parsed.Version())
	}
	if PointID(TextHash("doc", 0, "hello")) != id {
		t.Error("point id is not deterministic")
	}
}

func TestProcessor_Process(t *testing.T) {
	doc := &domain.Document{ID: "contract-7"}
	chunks := []domain.Chunk{
		{Index: 0, Text: "alpha", NormalizedText: "alpha"},
		{Index: 1, Text: "beta", NormalizedText: "beta"},
	}

	out, err := New().Process(context.Background(), doc, chunks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(out))
	}
	for i, c := range out {
		if c.DocumentID != "contract-7" {
			t.Errorf("chunk %d: expected document id, got %q", i, c.DocumentID)
		}
		if c.TextHash != TextHash("contract-7", i, chunks[i].NormalizedText) {
			t.Errorf("chunk %d: unexpected hash", i)
		}
		if c.ID != PointID(c.TextHash) {
			t.Errorf("chunk %d: unexpected id", i)
		}
	}
	if chunks[0].ID != "" {
		t.Error("input chunks must not be modified")
	}
	if out[0].ID == out[1].ID {
		t.Error("distinct chunks must get distinct ids")
	}
}
