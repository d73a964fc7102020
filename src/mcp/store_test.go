package mcp

import (
	"testing"

	"copilot-dash/src/logpager"
)

func TestInMemoryStore(t *testing.T) {
	store := NewInMemoryStore()
	p := logpager.New(nil, "demo-1")

	id := store.Put(p)
	if id == "" {
		t.Fatal("Put() returned an empty id")
	}

	got, found := store.Get(id)
	if !found || got != p {
		t.Error("Get() expected to return the stored pager")
	}

	if _, found := store.Get("missing"); found {
		t.Error("Get() expected not to find an unknown session")
	}

	other := store.Put(logpager.New(nil, "demo-2"))
	if other == id {
		t.Error("Put() should return distinct ids")
	}

	store.Delete(id)
	if _, found := store.Get(id); found {
		t.Error("Get() expected not to find a deleted session")
	}
	store.Delete(id)
	if store.Len() != 1 {
		t.Errorf("Len() = %d, want 1", store.Len())
	}
}

func TestInMemoryStore_EvictsOldest(t *testing.T) {
	store := NewInMemoryStore()
	first := store.Put(logpager.New(nil, "demo-0"))
	for i := 0; i < maxSessions; i++ {
		store.Put(logpager.New(nil, "demo-n"))
	}

	if _, found := store.Get(first); found {
		t.Error("oldest session should have been evicted")
	}
	if store.Len() != maxSessions {
		t.Errorf("Len() = %d, want %d", store.Len(), maxSessions)
	}
}
