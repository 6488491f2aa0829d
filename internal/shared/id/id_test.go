package id

import (
	"strings"
	"sync"
	"testing"

	"github.com/oklog/ulid/v2"
)

func TestGenerate(t *testing.T) {
	gen := NewGenerator()

	id1 := gen.Generate()
	id2 := gen.Generate()

	if id1.String() == id2.String() {
		t.Error("Generated IDs should be unique")
	}
}

func TestGenerateString(t *testing.T) {
	gen := NewGenerator()

	id := gen.GenerateString()

	if len(id) != 26 {
		t.Errorf("ULID should be 26 characters, got %d", len(id))
	}
}

func TestGenerateWithPrefix(t *testing.T) {
	gen := NewGenerator()

	tests := []struct {
		prefix string
	}{
		{"sess"},
		{"bld"},
	}

	for _, tt := range tests {
		id := gen.GenerateWithPrefix(tt.prefix)

		if !strings.HasPrefix(id, tt.prefix+"_") {
			t.Errorf("ID should start with '%s_', got: %s", tt.prefix, id)
		}

		parts := strings.Split(id, "_")
		if len(parts) != 2 {
			t.Errorf("Prefixed ID should have format 'prefix_ulid', got: %s", id)
		}

		if _, err := ulid.Parse(parts[1]); err != nil {
			t.Errorf("ULID part should be valid: %s", parts[1])
		}
	}
}

func TestTypedIDGeneration(t *testing.T) {
	sessID := NewSessionID()
	buildID := NewBuildID()

	if !strings.HasPrefix(string(sessID), "sess_") {
		t.Errorf("SessionID should start with 'sess_', got: %s", sessID)
	}

	if !strings.HasPrefix(string(buildID), "bld_") {
		t.Errorf("BuildID should start with 'bld_', got: %s", buildID)
	}
}

func TestConcurrentGeneration(t *testing.T) {
	gen := NewGenerator()

	const workers = 8
	const perWorker = 200

	var mu sync.Mutex
	seen := make(map[string]bool, workers*perWorker)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				id := gen.GenerateString()
				mu.Lock()
				if seen[id] {
					t.Errorf("duplicate ID generated: %s", id)
				}
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
}

