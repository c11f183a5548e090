package unifiedllm

import "testing"

func TestGetModelInfo(t *testing.T) {
	info := GetModelInfo("Phi-3")
	if info == nil {
		t.Fatal("expected to find Phi-3")
	}
	if info.ID != "phi3" || info.Provider != ProviderLocal {
		t.Errorf("unexpected entry %+v", info)
	}

	// By provider id.
	info = GetModelInfo("llama-3.1-8b-instant")
	if info == nil || info.Name != "Groq Llama 3.1 8B" {
		t.Fatalf("expected lookup by id, got %v", info)
	}

	// By alias.
	info = GetModelInfo("gpt-oss")
	if info == nil || info.ID != "openai/gpt-oss-120b" {
		t.Fatalf("expected lookup by alias, got %v", info)
	}

	if info := GetModelInfo("nonexistent-model"); info != nil {
		t.Errorf("expected nil for unknown model, got %v", info)
	}
}

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog()
	if c.Default() != "Phi-3" {
		t.Errorf("expected default Phi-3, got %q", c.Default())
	}
	names := c.Names()
	if len(names) != len(Models) {
		t.Fatalf("expected %d names, got %d", len(Models), len(names))
	}
	if names[0] != "Phi-3" || names[len(names)-1] != "Groq Mixtral 8x7B" {
		t.Errorf("catalog order not preserved: %v", names)
	}
}

func TestCatalogLookup(t *testing.T) {
	c := DefaultCatalog()

	m, ok := c.Lookup("Gemma 2B")
	if !ok || m.ID != "gemma:2b" {
		t.Errorf("unexpected lookup result %+v, %v", m, ok)
	}
	if _, ok := c.Lookup("gemma:2b"); ok {
		t.Error("catalog lookups go by display name, not provider id")
	}
	if _, ok := c.Lookup("GPT-5"); ok {
		t.Error("expected unknown name to miss")
	}
}

func TestNewCatalogValidation(t *testing.T) {
	tests := []struct {
		name    string
		def     string
		models  []ModelInfo
		wantErr bool
	}{
		{"empty", "a", nil, true},
		{"missing default", "b", []ModelInfo{{Name: "a", ID: "a", Provider: "local"}}, true},
		{"duplicate", "a", []ModelInfo{
			{Name: "a", ID: "a", Provider: "local"},
			{Name: "a", ID: "b", Provider: "local"},
		}, true},
		{"incomplete", "a", []ModelInfo{{Name: "a", Provider: "local"}}, true},
		{"ok", "a", []ModelInfo{{Name: "a", ID: "a", Provider: "local"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCatalog(tt.def, tt.models)
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCatalogIsFrozen(t *testing.T) {
	models := []ModelInfo{{Name: "a", ID: "a", Provider: "local"}}
	c, err := NewCatalog("a", models)
	if err != nil {
		t.Fatal(err)
	}
	models[0].ID = "changed"
	got := c.Models()
	got[0].ID = "also-changed"
	if m, _ := c.Lookup("a"); m.ID != "a" {
		t.Errorf("catalog mutated through caller slices: %+v", m)
	}
}
