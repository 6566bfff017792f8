package config

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/macho715/wh3/pkg/domain/entities"
	"github.com/macho715/wh3/pkg/domain/services"
)

// Ontology is the persisted form of the canonical vocabulary and its rule table
type Ontology struct {
	Version    string                    `yaml:"version"`
	Warehouses []string                  `yaml:"warehouses"`
	Sites      []string                  `yaml:"sites"`
	Rules      []entities.ResolutionRule `yaml:"rules"`
}

// DefaultOntology returns the built-in vocabulary and rules
func DefaultOntology() *Ontology {
	return &Ontology{
		Version:    services.DefaultVocabularyVersion,
		Warehouses: services.DefaultWarehouses(),
		Sites:      services.DefaultSites(),
		Rules:      services.DefaultRules(),
	}
}

// LoadOntology reads an ontology YAML file. Unknown fields are rejected.
func LoadOntology(path string) (*Ontology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read ontology file: %w", err)
	}
	return ParseOntology(bytes.NewReader(data))
}

// ParseOntology decodes and validates an ontology document
func ParseOntology(r io.Reader) (*Ontology, error) {
	var o Ontology
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&o); err != nil {
		return nil, fmt.Errorf("failed to parse ontology YAML: %w", err)
	}

	if o.Version == "" {
		return nil, fmt.Errorf("invalid ontology: version is required")
	}
	if len(o.Warehouses) == 0 {
		return nil, fmt.Errorf("invalid ontology: at least one warehouse is required")
	}
	for i, rule := range o.Rules {
		if rule.Pattern == "" || rule.Target == "" {
			return nil, fmt.Errorf("invalid ontology: rule %d needs both pattern and target", i)
		}
	}
	return &o, nil
}

// Vocabulary builds the closed vocabulary of o
func (o *Ontology) Vocabulary() (*services.Vocabulary, error) {
	return services.NewVocabulary(o.Version, o.Warehouses, o.Sites)
}

// Resolver builds a resolver over o's vocabulary and rules
func (o *Ontology) Resolver() (*services.Resolver, error) {
	vocab, err := o.Vocabulary()
	if err != nil {
		return nil, fmt.Errorf("invalid ontology vocabulary: %w", err)
	}
	resolver, err := services.NewResolver(vocab, o.Rules)
	if err != nil {
		return nil, fmt.Errorf("invalid ontology rules: %w", err)
	}
	return resolver, nil
}

// WriteYAML encodes o as YAML
func (o *Ontology) WriteYAML(w io.Writer) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(o); err != nil {
		return fmt.Errorf("failed to encode ontology: %w", err)
	}
	return encoder.Close()
}
