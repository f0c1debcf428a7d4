package ragchat

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"
)

// SchemaKind distinguishes the data structures a Schema can describe.
type SchemaKind string

// SchemaKind constants.
const (
	KnowledgeGraph SchemaKind = "knowledge_graph"
	Relational     SchemaKind = "relational"
)

// Entity is a node type (knowledge graph) or an entity table (relational).
type Entity struct {
	Name       string   `json:"name"`
	Properties []string `json:"properties,omitempty"`
}

// Relationship is an edge type or a join table.
type Relationship struct {
	Name string `json:"name"`

	// Label is the edge label used in queries. Empty means Name.
	Label string `json:"label,omitempty"`

	Sources    []string `json:"sources,omitempty"`
	Targets    []string `json:"targets,omitempty"`
	Properties []string `json:"properties,omitempty"`
}

// EdgeLabel returns the label to use for the relationship in a query.
func (r *Relationship) EdgeLabel() string {
	if r.Label != "" {
		return r.Label
	}
	return r.Name
}

// HasEndpoints reports whether both source and target types are known.
func (r *Relationship) HasEndpoints() bool {
	return len(r.Sources) > 0 && len(r.Targets) > 0
}

// Pair is a valid source/target combination of a relationship.
type Pair struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Pairs expands sources and targets into every combination.
func (r *Relationship) Pairs() []Pair {
	var pairs []Pair
	for _, s := range r.Sources {
		for _, t := range r.Targets {
			pairs = append(pairs, Pair{Source: s, Target: t})
		}
	}
	return pairs
}

// Schema describes the constituents of a database that queries can be
// generated for. Entities and relationships keep their declaration order.
type Schema struct {
	Kind          SchemaKind      `json:"kind"`
	Entities      []*Entity       `json:"entities"`
	Relationships []*Relationship `json:"relationships"`
}

// Entity returns the entity with the given name, or nil.
func (s *Schema) Entity(name string) *Entity {
	for _, e := range s.Entities {
		if e.Name == name {
			return e
		}
	}
	return nil
}

// Relationship returns the relationship with the given name, or nil.
func (s *Schema) Relationship(name string) *Relationship {
	for _, r := range s.Relationships {
		if r.Name == name {
			return r
		}
	}
	return nil
}

// EntityNames returns entity names in declaration order.
func (s *Schema) EntityNames() []string {
	names := make([]string, len(s.Entities))
	for i, e := range s.Entities {
		names[i] = e.Name
	}
	return names
}

// Validate returns an error if the schema cannot be used for queries.
func (s *Schema) Validate() error {
	if s.Kind != KnowledgeGraph && s.Kind != Relational {
		return Errorf(EINVALID, "unknown schema kind %q", s.Kind)
	}
	if len(s.Entities) == 0 {
		return Errorf(EINVALID, "schema has no entities")
	}
	return nil
}

// putEntity adds e, replacing an entity of the same name in place.
func (s *Schema) putEntity(e *Entity) {
	for i, existing := range s.Entities {
		if existing.Name == e.Name {
			s.Entities[i] = e
			return
		}
	}
	s.Entities = append(s.Entities, e)
}

func (s *Schema) putRelationship(r *Relationship) {
	for i, existing := range s.Relationships {
		if existing.Name == r.Name {
			s.Relationships[i] = r
			return
		}
	}
	s.Relationships = append(s.Relationships, r)
}

var sentenceWordStart = regexp.MustCompile(`(?:^|\s)[a-zA-Z]`)

// SentenceToPascal converts a sentence-case name to PascalCase,
// e.g. "protein protein interaction" to "ProteinProteinInteraction".
// Only letters at the start or after whitespace are affected.
func SentenceToPascal(s string) string {
	return sentenceWordStart.ReplaceAllStringFunc(s, func(m string) string {
		return strings.ToUpper(m[len(m)-1:])
	})
}

// SchemaEntry is a named top-level item of a BioCypher schema configuration
// or schema info document.
type SchemaEntry struct {
	Name  string
	Value map[string]any
}

// SchemaFromBioCypher builds a knowledge graph schema from BioCypher schema
// entries.
//
// For a schema configuration, entries represented as nodes become entities
// unless their name mentions an interaction or association; those and
// entries represented as edges become relationships. For schema info
// (isSchemaInfo), is_relationship decides and entries not present in the
// knowledge graph are skipped. Names, sources, and targets are converted to
// PascalCase.
func SchemaFromBioCypher(entries []SchemaEntry, isSchemaInfo bool) (*Schema, error) {
	schema := &Schema{Kind: KnowledgeGraph}
	for _, entry := range entries {
		if entry.Value == nil {
			continue
		}
		name := SentenceToPascal(entry.Name)

		var isRelationship bool
		if isSchemaInfo {
			if present, ok := entry.Value["present_in_knowledge_graph"].(bool); ok && !present {
				continue
			}
			rel, ok := entry.Value["is_relationship"].(bool)
			if !ok {
				continue
			}
			isRelationship = rel
		} else {
			representedAs, ok := entry.Value["represented_as"].(string)
			if !ok {
				continue
			}
			lower := strings.ToLower(entry.Name)
			mentionsRelationship := strings.Contains(lower, "interaction") || strings.Contains(lower, "association")
			switch representedAs {
			case "node":
				isRelationship = mentionsRelationship
			case "edge":
				isRelationship = true
			default:
				continue
			}
		}

		props := propertyNames(entry.Value["properties"])
		if !isRelationship {
			schema.putEntity(&Entity{Name: name, Properties: props})
			continue
		}
		label, _ := entry.Value["label_as_edge"].(string)
		schema.putRelationship(&Relationship{
			Name:       name,
			Label:      label,
			Sources:    pascalList(entry.Value["source"]),
			Targets:    pascalList(entry.Value["target"]),
			Properties: props,
		})
	}
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	return schema, nil
}

// propertyNames accepts a property map (names to types) or a list of names.
// Map keys are sorted.
func propertyNames(v any) []string {
	switch v := v.(type) {
	case map[string]any:
		names := make([]string, 0, len(v))
		for k := range v {
			names = append(names, k)
		}
		sort.Strings(names)
		return names
	default:
		return stringList(v)
	}
}

func pascalList(v any) []string {
	list := stringList(v)
	for i, s := range list {
		list[i] = SentenceToPascal(s)
	}
	return list
}

// stringList accepts a string or a list of strings.
func stringList(v any) []string {
	switch v := v.(type) {
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	case []string:
		return append([]string(nil), v...)
	case []any:
		var out []string
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Table is a relational table definition.
type Table struct {
	Name    string   `json:"table_name"`
	Columns []Column `json:"columns"`
}

// Column is a table column.
type Column struct {
	Name string `json:"name"`
}

// SchemaFromTables builds a relational schema. Tables whose name contains
// a "to" word (e.g. gene_to_disease) or "interaction" are relationships,
// all others are entities. Table and column names are lowercased.
func SchemaFromTables(tables []Table) (*Schema, error) {
	schema := &Schema{Kind: Relational}
	for _, t := range tables {
		if t.Name == "" {
			return nil, Errorf(EINVALID, "table name required")
		}
		name := strings.ToLower(t.Name)
		props := make([]string, 0, len(t.Columns))
		for _, c := range t.Columns {
			props = append(props, strings.ToLower(c.Name))
		}
		if isJoinTable(t.Name) {
			schema.putRelationship(&Relationship{Name: name, Properties: props})
		} else {
			schema.putEntity(&Entity{Name: name, Properties: props})
		}
	}
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	return schema, nil
}

func isJoinTable(name string) bool {
	for _, word := range strings.Split(name, "_") {
		if word == "to" {
			return true
		}
	}
	return strings.Contains(name, "interaction")
}

// ParseTables decodes table definitions of the form
// {"tables": [{"table_name": "...", "columns": [{"name": "..."}]}]}.
func ParseTables(data []byte) ([]Table, error) {
	var doc struct {
		Tables []Table `json:"tables"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, Errorf(EINVALID, "invalid table definitions: %s", err)
	}
	if doc.Tables == nil {
		return nil, Errorf(EINVALID, "table definitions missing %q key", "tables")
	}
	return doc.Tables, nil
}

