package cache

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestNullCache(t *testing.T) {
	ctx := context.Background()
	c := NewNullCache()
	defer c.Close()

	data, hit, err := c.Get(ctx, "key")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if hit || data != nil {
		t.Error("NullCache.Get should always return a nil miss")
	}

	if err := c.Set(ctx, "key", []byte("value"), time.Hour); err != nil {
		t.Errorf("Set error: %v", err)
	}
	if _, hit, _ = c.Get(ctx, "key"); hit {
		t.Error("NullCache should not store data")
	}
	if err := c.Delete(ctx, "key"); err != nil {
		t.Errorf("Delete error: %v", err)
	}
}

func TestLRUCache_GetSet(t *testing.T) {
	ctx := context.Background()
	c, err := NewLRUCache(4)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if _, hit, _ := c.Get(ctx, "a"); hit {
		t.Error("empty cache should miss")
	}
	value := []byte("closure")
	if err := c.Set(ctx, "a", value, 0); err != nil {
		t.Fatal(err)
	}
	value[0] = 'X'

	got, hit, err := c.Get(ctx, "a")
	if err != nil || !hit {
		t.Fatalf("Get = %v, %v; want hit", hit, err)
	}
	if string(got) != "closure" {
		t.Errorf("Get = %q, stored value must be copied", got)
	}
	got[0] = 'Y'
	again, _, _ := c.Get(ctx, "a")
	if string(again) != "closure" {
		t.Errorf("Get = %q, returned value must be copied", again)
	}

	if err := c.Delete(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	if _, hit, _ := c.Get(ctx, "a"); hit {
		t.Error("deleted key should miss")
	}
}

func TestLRUCache_Evicts(t *testing.T) {
	ctx := context.Background()
	c, _ := NewLRUCache(2)

	c.Set(ctx, "a", []byte("1"), 0)
	c.Set(ctx, "b", []byte("2"), 0)
	c.Get(ctx, "a") // a is now most recent
	c.Set(ctx, "c", []byte("3"), 0)

	if _, hit, _ := c.Get(ctx, "b"); hit {
		t.Error("least recently used entry should be evicted")
	}
	if _, hit, _ := c.Get(ctx, "a"); !hit {
		t.Error("recently used entry should survive")
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2", c.Len())
	}
}

func TestLRUCache_TTL(t *testing.T) {
	ctx := context.Background()
	c, _ := NewLRUCache(0)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set(ctx, "short", []byte("x"), time.Minute)
	c.Set(ctx, "forever", []byte("y"), 0)

	now = now.Add(59 * time.Second)
	if _, hit, _ := c.Get(ctx, "short"); !hit {
		t.Error("entry should live until its TTL")
	}

	now = now.Add(time.Second)
	if _, hit, _ := c.Get(ctx, "short"); hit {
		t.Error("expired entry should miss")
	}
	if _, hit, _ := c.Get(ctx, "forever"); !hit {
		t.Error("entry without TTL should not expire")
	}
	if c.Len() != 1 {
		t.Errorf("expired entry should be dropped on lookup, Len = %d", c.Len())
	}
}

func TestHash(t *testing.T) {
	h1 := Hash([]byte("hello"))
	if h1 != Hash([]byte("hello")) {
		t.Error("Hash should be deterministic")
	}
	if h1 == Hash([]byte("world")) {
		t.Error("Different inputs should produce different hashes")
	}
	if len(h1) != 64 {
		t.Errorf("Hash length should be 64, got %d", len(h1))
	}
}

func TestHashJSON_MapOrder(t *testing.T) {
	a := map[string][]string{"x": {"1"}, "y": {"2"}}
	b := map[string][]string{"y": {"2"}, "x": {"1"}}
	ha, err := HashJSON(a)
	if err != nil {
		t.Fatal(err)
	}
	hb, _ := HashJSON(b)
	if ha != hb {
		t.Error("HashJSON should not depend on map insertion order")
	}
	if _, err := HashJSON(make(chan int)); err == nil {
		t.Error("HashJSON should fail for unencodable values")
	}
}

func TestDefaultKeyer(t *testing.T) {
	k := NewDefaultKeyer()

	all := k.ClosureKey("hash123", ClosureKeyOpts{Filter: "all"})
	compile := k.ClosureKey("hash123", ClosureKeyOpts{Filter: "compile"})
	other := k.ClosureKey("hash456", ClosureKeyOpts{Filter: "all"})

	if all == compile {
		t.Error("Different filters should produce different keys")
	}
	if all == other {
		t.Error("Different graphs should produce different keys")
	}
	if !strings.HasPrefix(all, "closure:") {
		t.Errorf("ClosureKey should have closure: prefix, got %s", all)
	}
	if all != k.ClosureKey("hash123", ClosureKeyOpts{Filter: "all"}) {
		t.Error("ClosureKey should be deterministic")
	}
}

func TestScopedKeyer(t *testing.T) {
	inner := NewDefaultKeyer()
	scoped := NewScopedKeyer(inner, "deps.json:")

	opts := ClosureKeyOpts{Filter: "all"}
	got := scoped.ClosureKey("h", opts)
	if got != "deps.json:"+inner.ClosureKey("h", opts) {
		t.Errorf("ScopedKeyer should prefix keys, got %s", got)
	}

	if NewScopedKeyer(nil, "p:").ClosureKey("h", opts) != "p:"+inner.ClosureKey("h", opts) {
		t.Error("nil inner keyer should fall back to the default keyer")
	}
}
