package etl

import (
	"errors"
	"sort"
	"strings"
)

// Record is one flat row read from a source. Values keep whatever type the
// source decoder produced; transforms coerce them during mapping.
type Record map[string]any

const (
	// Sentinel value in meta_fields meaning "server time at write", resolved
	// store-side so concurrent batches stamp commit time, not mapping time.
	MetaNow = "now()"

	tagDelimiter = ","
)

// BuildEntityRows maps raw records through an entity mapping into the rows
// handed to the UNWIND upsert. Any coercion failure fails the whole batch.
func BuildEntityRows(m EntityMapping, records []Record) ([]map[string]any, error) {
	rows := make([]map[string]any, 0, len(records))
	for idx, record := range records {
		props, err := buildProps(m.Properties, record, idx)
		if err != nil {
			return nil, err
		}
		if m.TagsField != "" {
			if raw, ok := record[m.TagsField]; ok && raw != nil {
				props["tags"] = splitTags(asString(raw))
			}
		}
		for key, value := range m.MetaFields {
			if value == MetaNow {
				continue
			}
			props[key] = value
		}

		id, ok := record[m.IDField]
		if !ok || id == nil {
			return nil, &TransformError{
				Transform:   "required",
				Field:       m.IDField,
				RecordIndex: idx,
				Err:         errors.New("missing id value"),
			}
		}
		rows = append(rows, map[string]any{"id": id, "props": props})
	}
	return rows, nil
}

// BuildRelationshipRows maps raw records through a relationship mapping.
// Records missing either endpoint fail the batch, same as entity ids.
func BuildRelationshipRows(m RelationshipMapping, records []Record) ([]map[string]any, error) {
	rows := make([]map[string]any, 0, len(records))
	for idx, record := range records {
		props, err := buildProps(m.Properties, record, idx)
		if err != nil {
			return nil, err
		}
		from, okFrom := record[m.FromField]
		to, okTo := record[m.ToField]
		if !okFrom || from == nil || !okTo || to == nil {
			return nil, &TransformError{
				Transform:   "required",
				Field:       m.FromField + "/" + m.ToField,
				RecordIndex: idx,
				Err:         errors.New("missing relationship endpoint"),
			}
		}
		rows = append(rows, map[string]any{"from": from, "to": to, "props": props})
	}
	return rows, nil
}

func buildProps(mappings []PropertyMapping, record Record, idx int) (map[string]any, error) {
	props := make(map[string]any, len(mappings))
	for _, pm := range mappings {
		value, ok := record[pm.SourceField]
		if !ok || value == nil {
			value = pm.Default
		}
		out, err := pm.transform.Apply(value)
		if err != nil {
			return nil, &TransformError{
				Transform:   string(pm.transform),
				Field:       pm.SourceField,
				RecordIndex: idx,
				Err:         err,
			}
		}
		props[pm.TargetProperty] = out
	}
	return props, nil
}

func splitTags(raw string) []string {
	parts := strings.Split(raw, tagDelimiter)
	seen := make(map[string]struct{}, len(parts))
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		tags = append(tags, p)
	}
	return tags
}

// nowMetaKeys returns the meta_fields keys carrying the MetaNow sentinel,
// sorted so generated Cypher is deterministic.
func (m EntityMapping) nowMetaKeys() []string {
	keys := make([]string, 0, len(m.MetaFields))
	for key, value := range m.MetaFields {
		if value == MetaNow {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}
