package llm

import "testing"

type mapSecrets map[string]string

func (m mapSecrets) Get(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

func TestDirectoryPreferredLLM(t *testing.T) {
	d := NewDirectory(nil, nil, FactoryOptions{},
		BackendConfig{ID: "a-search", Type: TypeGoogleSearch},
		BackendConfig{ID: "b-local", Type: TypeOllama},
		BackendConfig{ID: "c-claude", Type: TypeClaude},
		BackendConfig{ID: "d-gpt", Type: TypeChatGPT},
	)
	cfg, ok := d.PreferredLLM()
	if !ok || cfg.ID != "d-gpt" {
		t.Fatalf("PreferredLLM = %+v, %v; want d-gpt", cfg, ok)
	}

	search, ok := d.SearchConfig()
	if !ok || search.ID != "a-search" {
		t.Fatalf("SearchConfig = %+v, %v", search, ok)
	}
	if d.IsLLM("a-search") || !d.IsLLM("b-local") || d.IsLLM("missing") {
		t.Fatal("IsLLM misclassified a backend")
	}
}

func TestDirectoryFallsBackToOtherLLMTypes(t *testing.T) {
	d := NewDirectory(nil, nil, FactoryOptions{},
		BackendConfig{ID: "z", Type: TypeOllama},
		BackendConfig{ID: "y", Type: TypeDeepSeek},
	)
	cfg, ok := d.PreferredLLM()
	if !ok || cfg.ID != "y" {
		t.Fatalf("PreferredLLM = %+v, want y (ties broken by id)", cfg)
	}
}

func TestDirectoryBackendBuildsAndCaches(t *testing.T) {
	var gotSecret string
	reg := NewRegistry()
	reg.Register("fake", func(cfg BackendConfig, secret string, _ FactoryOptions) (Backend, error) {
		gotSecret = secret
		return NewMockBackend(cfg.ID), nil
	})
	d := NewDirectory(reg, mapSecrets{"shared": "s3cret"}, FactoryOptions{},
		BackendConfig{ID: "one", Type: "fake", SecretRef: "shared"},
		BackendConfig{ID: "two", Type: "unknown"},
	)

	b1, _, err := d.Backend("one", "")
	if err != nil {
		t.Fatalf("Backend: %v", err)
	}
	if gotSecret != "s3cret" {
		t.Fatalf("secret = %q", gotSecret)
	}
	b2, _, _ := d.Backend("one", "")
	if b1 != b2 {
		t.Fatal("backend was not cached")
	}
	b3, cfg, _ := d.Backend("one", "other-model")
	if b3 == b1 || cfg.Model != "other-model" {
		t.Fatal("model override should build a separate backend")
	}

	if _, _, err := d.Backend("two", ""); !IsKind(err, KindUnsupported) {
		t.Fatalf("unknown type err = %v", err)
	}
	if _, _, err := d.Backend("missing", ""); !IsKind(err, KindNoBackendConfigured) {
		t.Fatalf("missing backend err = %v", err)
	}
}

func TestDefaultRegistryTypes(t *testing.T) {
	types := DefaultRegistry().Types()
	want := map[string]bool{TypeChatGPT: true, TypeClaude: true, TypeGemini: true, TypeOllama: true, TypeGoogleSearch: true}
	for _, typ := range types {
		delete(want, typ)
	}
	if len(want) != 0 {
		t.Fatalf("missing types: %v", want)
	}
}
