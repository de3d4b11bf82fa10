package etl

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

type SourceType string

const (
	SourceCSV      SourceType = "csv"
	SourceJSON     SourceType = "json"
	SourcePostgres SourceType = "postgres"
	SourceAPI      SourceType = "api"
)

type UpsertStrategy string

const (
	UpsertMerge  UpsertStrategy = "merge"
	UpsertCreate UpsertStrategy = "create"
)

const (
	DefaultBatchSize = 1000
	// Hard cap on concurrent batch writes, regardless of config, so a job
	// cannot exhaust the store's connection pool.
	MaxParallelWorkers = 32
)

type SourceConfig struct {
	Type       SourceType        `yaml:"type"`
	Connection map[string]string `yaml:"connection"`
	Query      string            `yaml:"query,omitempty"`
}

type PropertyMapping struct {
	SourceField    string `yaml:"source_field"`
	TargetProperty string `yaml:"target_property"`
	Transform      string `yaml:"transform,omitempty"`
	Default        any    `yaml:"default,omitempty"`

	// Resolved at load time by Validate.
	transform Transform
}

type EntityMapping struct {
	Label      string            `yaml:"label"`
	IDField    string            `yaml:"id_field"`
	Properties []PropertyMapping `yaml:"properties"`
	TagsField  string            `yaml:"tags_field,omitempty"`
	MetaFields map[string]string `yaml:"meta_fields,omitempty"`
}

type RelationshipMapping struct {
	Type       string            `yaml:"type"`
	FromField  string            `yaml:"from_field"`
	ToField    string            `yaml:"to_field"`
	Properties []PropertyMapping `yaml:"properties,omitempty"`
}

type JobConfig struct {
	Name                 string                `yaml:"name"`
	Description          string                `yaml:"description,omitempty"`
	Source               SourceConfig          `yaml:"source"`
	EntityMappings       []EntityMapping       `yaml:"entity_mappings"`
	RelationshipMappings []RelationshipMapping `yaml:"relationship_mappings,omitempty"`
	BatchSize            int                   `yaml:"batch_size,omitempty"`
	ParallelWorkers      int                   `yaml:"parallel_workers,omitempty"`
	UpsertStrategy       UpsertStrategy        `yaml:"upsert_strategy,omitempty"`
}

// Labels, relationship types and property names are interpolated into
// Cypher (they cannot be parameterized), so they must be plain identifiers.
var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func validIdent(s string) bool { return identPattern.MatchString(s) }

// LoadJobConfig reads and validates a YAML job config. Validation happens
// here, before any source I/O or graph write.
func LoadJobConfig(path string) (*JobConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigurationError{Field: "file", Reason: err.Error()}
	}
	var cfg JobConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, &ConfigurationError{Field: "file", Reason: fmt.Sprintf("parse yaml: %v", err)}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate applies defaults and resolves transform names. It mutates the
// receiver (resolved transforms are cached on the property mappings).
func (c *JobConfig) Validate() error {
	if c.Name == "" {
		return &ConfigurationError{Field: "name", Reason: "required"}
	}
	switch c.Source.Type {
	case SourceCSV, SourceJSON, SourcePostgres, SourceAPI:
	default:
		return &ConfigurationError{
			Field:  "source.type",
			Reason: fmt.Sprintf("unsupported source type %q", c.Source.Type),
		}
	}
	if len(c.EntityMappings) == 0 {
		return &ConfigurationError{Field: "entity_mappings", Reason: "at least one required"}
	}
	if c.BatchSize == 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.BatchSize < 1 {
		return &ConfigurationError{Field: "batch_size", Reason: "must be >= 1"}
	}
	if c.ParallelWorkers == 0 {
		c.ParallelWorkers = 4
	}
	if c.ParallelWorkers < 1 {
		return &ConfigurationError{Field: "parallel_workers", Reason: "must be >= 1"}
	}
	if c.UpsertStrategy == "" {
		c.UpsertStrategy = UpsertMerge
	}
	if c.UpsertStrategy != UpsertMerge && c.UpsertStrategy != UpsertCreate {
		return &ConfigurationError{
			Field:  "upsert_strategy",
			Reason: fmt.Sprintf("must be %q or %q", UpsertMerge, UpsertCreate),
		}
	}

	for i := range c.EntityMappings {
		m := &c.EntityMappings[i]
		if !validIdent(m.Label) {
			return &ConfigurationError{
				Field:  fmt.Sprintf("entity_mappings[%d].label", i),
				Reason: fmt.Sprintf("invalid label %q", m.Label),
			}
		}
		if m.IDField == "" {
			return &ConfigurationError{
				Field:  fmt.Sprintf("entity_mappings[%d].id_field", i),
				Reason: "required",
			}
		}
		if err := resolveProperties(m.Properties, fmt.Sprintf("entity_mappings[%d]", i)); err != nil {
			return err
		}
		for key := range m.MetaFields {
			if !validIdent(key) {
				return &ConfigurationError{
					Field:  fmt.Sprintf("entity_mappings[%d].meta_fields", i),
					Reason: fmt.Sprintf("invalid property name %q", key),
				}
			}
		}
	}

	for i := range c.RelationshipMappings {
		m := &c.RelationshipMappings[i]
		if !validIdent(m.Type) {
			return &ConfigurationError{
				Field:  fmt.Sprintf("relationship_mappings[%d].type", i),
				Reason: fmt.Sprintf("invalid relationship type %q", m.Type),
			}
		}
		if m.FromField == "" || m.ToField == "" {
			return &ConfigurationError{
				Field:  fmt.Sprintf("relationship_mappings[%d]", i),
				Reason: "from_field and to_field required",
			}
		}
		if err := resolveProperties(m.Properties, fmt.Sprintf("relationship_mappings[%d]", i)); err != nil {
			return err
		}
	}
	return nil
}

func resolveProperties(props []PropertyMapping, where string) error {
	for j := range props {
		p := &props[j]
		if p.SourceField == "" || p.TargetProperty == "" {
			return &ConfigurationError{
				Field:  fmt.Sprintf("%s.properties[%d]", where, j),
				Reason: "source_field and target_property required",
			}
		}
		if !validIdent(p.TargetProperty) {
			return &ConfigurationError{
				Field:  fmt.Sprintf("%s.properties[%d].target_property", where, j),
				Reason: fmt.Sprintf("invalid property name %q", p.TargetProperty),
			}
		}
		t, err := ParseTransform(p.Transform)
		if err != nil {
			return err
		}
		p.transform = t
	}
	return nil
}
