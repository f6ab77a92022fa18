package prompts

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	"github.com/dwizi/project-assistant/internal/actions"
)

//go:embed default_catalog.yaml
var defaultCatalog []byte

type ActionHint struct {
	Description string `yaml:"description"`
	Params      string `yaml:"params"`
}

// Catalog is the operator-editable text that teaches the model the directive convention.
type Catalog struct {
	Instructions string                `yaml:"instructions"`
	Actions      map[string]ActionHint `yaml:"actions"`
}

func Parse(raw []byte) (Catalog, error) {
	var catalog Catalog
	if err := yaml.Unmarshal(raw, &catalog); err != nil {
		return Catalog{}, fmt.Errorf("parse prompt catalog: %w", err)
	}
	if strings.TrimSpace(catalog.Instructions) == "" {
		return Catalog{}, fmt.Errorf("prompt catalog has no instructions")
	}
	normalized := make(map[string]ActionHint, len(catalog.Actions))
	for name, hint := range catalog.Actions {
		normalized[string(actions.Normalize(name))] = hint
	}
	catalog.Actions = normalized
	return catalog, nil
}

func Default() Catalog {
	catalog, err := Parse(defaultCatalog)
	if err != nil {
		panic(err)
	}
	return catalog
}

// Store holds the active catalog. Reads are lock-free; Reload swaps the whole catalog.
type Store struct {
	path    string
	current atomic.Pointer[Catalog]
	logger  *slog.Logger
}

// NewStore loads path when set and falls back to the embedded catalog otherwise.
func NewStore(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	store := &Store{path: strings.TrimSpace(path), logger: logger.With("component", "prompt_catalog")}
	catalog := Default()
	store.current.Store(&catalog)
	if store.path == "" {
		return store, nil
	}
	if err := store.Reload(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Current() Catalog {
	return *s.current.Load()
}

// Reload re-reads the catalog file. A broken file keeps the previous catalog active.
func (s *Store) Reload() error {
	if s.path == "" {
		return nil
	}
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read prompt catalog: %w", err)
	}
	catalog, err := Parse(raw)
	if err != nil {
		return err
	}
	s.current.Store(&catalog)
	s.logger.Info("prompt catalog loaded", "path", s.path, "actions", len(catalog.Actions))
	return nil
}

// Render appends the action instructions to the assistant's system prompt. Only
// actions present in definitions are listed.
func (s *Store) Render(systemPrompt string, definitions []actions.Definition) string {
	catalog := s.Current()
	var builder strings.Builder
	if base := strings.TrimSpace(systemPrompt); base != "" {
		builder.WriteString(base)
		builder.WriteString("\n\n")
	}
	builder.WriteString(strings.TrimSpace(catalog.Instructions))
	builder.WriteString("\n\nAcciones disponibles:")
	for _, definition := range definitions {
		hint := catalog.Actions[string(definition.Name)]
		description := strings.TrimSpace(hint.Description)
		if description == "" {
			description = definition.Description
		}
		builder.WriteString("\n- ")
		builder.WriteString(string(definition.Name))
		builder.WriteString(": ")
		builder.WriteString(description)
		if params := strings.TrimSpace(hint.Params); params != "" {
			builder.WriteString(" Parámetros: ")
			builder.WriteString(params)
		}
	}
	return builder.String()
}
