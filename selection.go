package ragchat

import (
	"context"
	"encoding/json"
	"sort"
)

// StringList is a list of strings that also decodes from a single JSON
// string or null.
type StringList []string

// UnmarshalJSON implements json.Unmarshaler.
func (l *StringList) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*l = stringList(v)
	return nil
}

// Endpoints are the source and target entities of a selected relationship.
type Endpoints struct {
	Source StringList `json:"source"`
	Target StringList `json:"target"`
}

// KGSelection is the subset of a schema relevant to a question: entities,
// relationships keyed by edge label, and properties keyed by entity or
// relationship name.
type KGSelection struct {
	Entities      []string              `json:"entities"`
	Relationships map[string]Endpoints  `json:"relationships"`
	Properties    map[string]StringList `json:"properties"`
}

// RelationshipLabels returns the relationship labels in sorted order.
func (s *KGSelection) RelationshipLabels() []string {
	labels := make([]string, 0, len(s.Relationships))
	for k := range s.Relationships {
		labels = append(labels, k)
	}
	sort.Strings(labels)
	return labels
}

// UnmarshalJSON implements json.Unmarshaler. The keys entities,
// properties, and relationships are required.
func (s *KGSelection) UnmarshalJSON(data []byte) error {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return Errorf(EINVALID, "invalid selection: %s", err)
	}
	if err := requireSelectionKeys(keys); err != nil {
		return err
	}
	type plain KGSelection
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		return Errorf(EINVALID, "invalid selection: %s", err)
	}
	*s = KGSelection(v)
	return nil
}

func (s *KGSelection) validate(name string) error {
	switch {
	case s.Entities == nil:
		return Errorf(EINVALID, "%s is missing required key %q", name, "entities")
	case s.Properties == nil:
		return Errorf(EINVALID, "%s is missing required key %q", name, "properties")
	case s.Relationships == nil:
		return Errorf(EINVALID, "%s is missing required key %q", name, "relationships")
	}
	return nil
}

// ParseKGSelection decodes a selection. The keys entities, properties, and
// relationships are required.
func ParseKGSelection(data []byte) (*KGSelection, error) {
	var sel KGSelection
	if err := json.Unmarshal(data, &sel); err != nil {
		if ErrorCode(err) == EINVALID {
			return nil, err
		}
		return nil, Errorf(EINVALID, "invalid selection: %s", err)
	}
	return &sel, nil
}

func requireSelectionKeys(keys map[string]json.RawMessage) error {
	for _, k := range []string{"entities", "properties", "relationships"} {
		if _, ok := keys[k]; !ok {
			return Errorf(EINVALID, "selection is missing required key %q", k)
		}
	}
	return nil
}

// QueryContext describes a generated query for follow-up interaction.
type QueryContext struct {
	Query    string `json:"query"`
	Language string `json:"language"`
	Question string `json:"question"`

	// Selected is the part of the schema the query was generated from.
	Selected *KGSelection `json:"selected"`

	// KG optionally describes the whole schema. Defaults to Selected.
	KG *KGSelection `json:"kg,omitempty"`
}

// Validate returns an error if the query context is incomplete.
func (q *QueryContext) Validate() error {
	if q.Query == "" {
		return Errorf(EINVALID, "query required")
	}
	if q.Language == "" {
		return Errorf(EINVALID, "query language required")
	}
	if q.Selected == nil {
		return Errorf(EINVALID, "selected schema subset required")
	}
	if err := q.Selected.validate("selection"); err != nil {
		return err
	}
	if q.KG != nil {
		return q.KG.validate("knowledge graph")
	}
	return nil
}

// GeneratedQuery is a query produced for a question.
type GeneratedQuery struct {
	Query     string       `json:"query"`
	Language  string       `json:"language"`
	Question  string       `json:"question"`
	Selection *KGSelection `json:"selected"`
}

// Context returns the query context for explaining or updating the query.
func (g *GeneratedQuery) Context() *QueryContext {
	return &QueryContext{
		Query:    g.Query,
		Language: g.Language,
		Question: g.Question,
		Selected: g.Selection,
	}
}

// QueryGenerator turns natural language questions into database queries.
type QueryGenerator interface {
	GenerateQuery(ctx context.Context, question, language string) (*GeneratedQuery, error)
}

// QueryInteractor explains and revises generated queries.
type QueryInteractor interface {
	ExplainQuery(ctx context.Context, q *QueryContext) (string, error)
	UpdateQuery(ctx context.Context, q *QueryContext, request string) (string, error)
}
