// Package prompt generates database queries from natural language questions
// by walking a chat model through the constituents of a schema.
package prompt

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/fwojciec/ragchat"
	"go.uber.org/zap"
)

// User labels sent with each step for provider-side accounting.
const (
	UserEntitySelector   = "entity_selector"
	UserPropertySelector = "property_selector"
	UserQueryGenerator   = "query_generator"
)

// Ensure Engine implements ragchat.QueryGenerator at compile time.
var _ ragchat.QueryGenerator = (*Engine)(nil)

// Engine selects the entities, relationships, and properties of Schema that
// are relevant to a question and asks Chat for a query over them.
type Engine struct {
	Schema *ragchat.Schema
	Chat   ragchat.ChatService

	// Model overrides the chat service's default model when set.
	Model string

	// Logger defaults to a no-op logger.
	Logger *zap.Logger
}

// Selection accumulates the result of the selection steps for a question.
type Selection struct {
	Question string
	Entities []string

	// Relationships are names of selected schema relationships.
	Relationships []string

	// Labels maps the edge label of each selected relationship to its
	// endpoints.
	Labels map[string]ragchat.Endpoints

	Properties map[string]ragchat.StringList
}

// KG returns the selection in the form used for query interaction.
func (s *Selection) KG() *ragchat.KGSelection {
	labels := s.Labels
	if labels == nil {
		labels = map[string]ragchat.Endpoints{}
	}
	props := s.Properties
	if props == nil {
		props = map[string]ragchat.StringList{}
	}
	return &ragchat.KGSelection{
		Entities:      append([]string{}, s.Entities...),
		Relationships: labels,
		Properties:    props,
	}
}

func (s *Selection) hasEntity(name string) bool {
	for _, e := range s.Entities {
		if e == name {
			return true
		}
	}
	return false
}

// GenerateQuery selects entities, relationships, and properties for the
// question and returns a query in the given language.
func (e *Engine) GenerateQuery(ctx context.Context, question, language string) (*ragchat.GeneratedQuery, error) {
	if strings.TrimSpace(language) == "" {
		return nil, ragchat.Errorf(ragchat.EINVALID, "query language required")
	}

	sel, err := e.SelectEntities(ctx, question)
	if err != nil {
		return nil, err
	}
	if err := e.SelectRelationships(ctx, sel); err != nil {
		return nil, err
	}
	if err := e.SelectProperties(ctx, sel); err != nil {
		return nil, err
	}

	query, err := e.generate(ctx, sel, language)
	if err != nil {
		return nil, err
	}
	return &ragchat.GeneratedQuery{
		Query:     query,
		Language:  language,
		Question:  question,
		Selection: sel.KG(),
	}, nil
}

// SelectEntities asks which schema entities are relevant to the question.
// Returns EINVALID if the reply names none of them.
func (e *Engine) SelectEntities(ctx context.Context, question string) (*Selection, error) {
	if strings.TrimSpace(question) == "" {
		return nil, ragchat.Errorf(ragchat.EINVALID, "question required")
	}
	if err := e.validate(); err != nil {
		return nil, err
	}

	store := "a knowledge graph that contains these entities"
	if e.Schema.Kind == ragchat.Relational {
		store = "a relational database that contains these tables representing entities"
	}
	system := fmt.Sprintf("You have access to %s: %s. "+
		"Your task is to select the ones that are relevant to the user's question for subsequent use in a query. "+
		"Only return the entities, comma-separated, without any additional text.",
		store, strings.Join(e.Schema.EntityNames(), ", "))

	reply, err := e.chat(ctx, UserEntitySelector, system, question)
	if err != nil {
		return nil, fmt.Errorf("select entities: %w", err)
	}

	sel := &Selection{Question: question}
	for _, name := range splitList(reply) {
		if e.Schema.Entity(name) != nil && !sel.hasEntity(name) {
			sel.Entities = append(sel.Entities, name)
		}
	}
	if len(sel.Entities) == 0 {
		return nil, ragchat.Errorf(ragchat.EINVALID, "entity selection failed, please try again with a different question")
	}
	e.logger().Debug("selected entities", zap.Strings("entities", sel.Entities))
	return sel, nil
}

// SelectRelationships asks which relationships between the selected
// entities are relevant. Relational schemas need no relationship selection.
//
// When some relationships declare both source and target, only those are
// offered: the ones connecting two selected entities if there are any,
// otherwise the ones touching a selected entity. Endpoints of selected
// relationships join the selected entities.
func (e *Engine) SelectRelationships(ctx context.Context, sel *Selection) error {
	if sel == nil || sel.Question == "" {
		return ragchat.Errorf(ragchat.EINVALID, "no question found, run entity selection first")
	}
	if len(sel.Entities) == 0 {
		return ragchat.Errorf(ragchat.EINVALID, "no entities found, run entity selection first")
	}
	if err := e.validate(); err != nil {
		return err
	}
	if e.Schema.Kind == ragchat.Relational {
		return nil
	}

	system := fmt.Sprintf("You have access to a knowledge graph that contains these entities: %s. "+
		"Your task is to select the relationships that are relevant to the user's question for subsequent use in a query. "+
		"Only return the relationships without their sources or targets, comma-separated, and without any additional text. "+
		"Here are the possible relationships and their source and target entities: %s.",
		strings.Join(sel.Entities, ", "), e.offeredRelationships(sel))

	reply, err := e.chat(ctx, UserEntitySelector, system, sel.Question)
	if err != nil {
		return fmt.Errorf("select relationships: %w", err)
	}

	if sel.Labels == nil {
		sel.Labels = make(map[string]ragchat.Endpoints)
	}
	for _, name := range splitList(reply) {
		rel := e.Schema.Relationship(name)
		if rel == nil {
			continue
		}
		sel.Relationships = append(sel.Relationships, rel.Name)
		var ends ragchat.Endpoints
		if rel.HasEndpoints() {
			ends = ragchat.Endpoints{Source: rel.Sources, Target: rel.Targets}
		}
		sel.Labels[rel.EdgeLabel()] = ends
	}

	for _, label := range sortedLabels(sel.Labels) {
		ends := sel.Labels[label]
		for _, name := range append(append([]string(nil), ends.Source...), ends.Target...) {
			if !sel.hasEntity(name) {
				sel.Entities = append(sel.Entities, name)
			}
		}
	}
	e.logger().Debug("selected relationships", zap.Strings("relationships", sel.Relationships))
	return nil
}

// offeredRelationships describes the relationships a model may choose from
// as JSON.
func (e *Engine) offeredRelationships(sel *Selection) string {
	var withEndpoints []*ragchat.Relationship
	for _, r := range e.Schema.Relationships {
		if r.HasEndpoints() {
			withEndpoints = append(withEndpoints, r)
		}
	}
	if len(withEndpoints) == 0 {
		return jsonText(e.Schema.Relationships)
	}

	var both, either []*ragchat.Relationship
	for _, r := range withEndpoints {
		var touchesBoth, touchesOne bool
		for _, p := range r.Pairs() {
			s, t := sel.hasEntity(p.Source), sel.hasEntity(p.Target)
			touchesBoth = touchesBoth || (s && t)
			touchesOne = touchesOne || s || t
		}
		switch {
		case touchesBoth:
			both = append(both, r)
		case touchesOne:
			either = append(either, r)
		}
	}
	candidates := both
	if len(candidates) == 0 {
		candidates = either
	}

	offered := [][2]any{}
	for _, r := range candidates {
		for _, p := range r.Pairs() {
			if sel.hasEntity(p.Source) || sel.hasEntity(p.Target) {
				offered = append(offered, [2]any{r.Name, [2]string{p.Source, p.Target}})
			}
		}
	}
	return jsonText(offered)
}

// SelectProperties asks which properties of the selected entities and
// relationships are relevant. The reply must be a JSON object mapping
// entity or relationship names to property names; an empty selection is
// EINVALID.
func (e *Engine) SelectProperties(ctx context.Context, sel *Selection) error {
	if sel == nil || sel.Question == "" {
		return ragchat.Errorf(ragchat.EINVALID, "no question found, run entity and relationship selection first")
	}
	if len(sel.Entities) == 0 && len(sel.Relationships) == 0 {
		return ragchat.Errorf(ragchat.EINVALID, "no entities or relationships selected, run entity selection first")
	}
	if err := e.validate(); err != nil {
		return err
	}

	entityProps := make(map[string][]string)
	for _, name := range sel.Entities {
		// Relationship endpoints may name types the schema does not declare.
		if ent := e.Schema.Entity(name); ent != nil && len(ent.Properties) > 0 {
			entityProps[name] = ent.Properties
		}
	}
	relProps := make(map[string][]string)
	for _, name := range sel.Relationships {
		if rel := e.Schema.Relationship(name); rel != nil && len(rel.Properties) > 0 {
			relProps[name] = rel.Properties
		}
	}

	system := fmt.Sprintf("You have access to a %s that contains entities and relationships. "+
		"They have the following properties. Entities: %s, Relationships: %s. "+
		"Your task is to select the properties that are relevant to the user's question for subsequent use in a query. "+
		"Only return the entities and relationships with their relevant properties in JSON format, without any additional text. "+
		"Return the entities/relationships as top-level dictionary keys, and their properties as dictionary values. "+
		"Do not return properties that are not relevant to the question.",
		e.storeName(), jsonText(entityProps), jsonText(relProps))

	reply, err := e.chat(ctx, UserPropertySelector, system, sel.Question)
	if err != nil {
		return fmt.Errorf("select properties: %w", err)
	}

	var props map[string]ragchat.StringList
	if text := stripFence(reply); text != "" {
		if err := json.Unmarshal([]byte(text), &props); err != nil {
			return ragchat.Errorf(ragchat.EINVALID, "invalid property selection: %s", err)
		}
	}
	if len(props) == 0 {
		return ragchat.Errorf(ragchat.EINVALID, "property selection failed, please try again with a different question")
	}
	sel.Properties = props
	return nil
}

// generate asks for the query itself, listing the valid source,
// relationship, and target combinations of the selected relationships.
func (e *Engine) generate(ctx context.Context, sel *Selection, language string) (string, error) {
	labels := sortedLabels(sel.Labels)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Generate a database query in %s that answers the user's question. "+
		"You can use the following entities: %s, relationships: %s, and properties: %s. ",
		language, jsonText(sel.Entities), jsonText(labels), jsonText(sel.Properties))

	if combos := combinations(sel.Labels, labels); len(combos) > 0 {
		sb.WriteString("Given the following valid combinations of source, relationship, and target: ")
		for _, c := range combos {
			fmt.Fprintf(&sb, "%s, ", c)
		}
		fmt.Fprintf(&sb, "generate a %s query using one of these combinations. ", language)
	}
	sb.WriteString("Only return the query, without any additional text.")

	reply, err := e.chat(ctx, UserQueryGenerator, sb.String(), sel.Question)
	if err != nil {
		return "", fmt.Errorf("generate query: %w", err)
	}
	query := stripFence(reply)
	if query == "" {
		return "", ragchat.Errorf(ragchat.EINTERNAL, "model returned an empty query")
	}
	return query, nil
}

// combinations renders every source/target pair of the labelled
// relationships as '(:Source)-(:LABEL)->(:Target)'. Labels without
// endpoints have none.
func combinations(ends map[string]ragchat.Endpoints, labels []string) []string {
	var out []string
	for _, label := range labels {
		e := ends[label]
		for _, s := range e.Source {
			for _, t := range e.Target {
				out = append(out, fmt.Sprintf("'(:%s)-(:%s)->(:%s)'", s, label, t))
			}
		}
	}
	return out
}

func (e *Engine) chat(ctx context.Context, user, system, message string) (string, error) {
	resp, err := e.Chat.Chat(ctx, &ragchat.ChatRequest{
		User:    user,
		Model:   e.Model,
		System:  []string{system},
		Message: message,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func (e *Engine) validate() error {
	if e.Schema == nil {
		return ragchat.Errorf(ragchat.EINVALID, "schema required")
	}
	return e.Schema.Validate()
}

func (e *Engine) storeName() string {
	if e.Schema.Kind == ragchat.Relational {
		return "relational database"
	}
	return "knowledge graph"
}

func (e *Engine) logger() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

// splitList splits a comma-separated reply into trimmed, non-empty names.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// stripFence removes a surrounding markdown code fence, with or without a
// language tag.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") || !strings.HasSuffix(s, "```") || len(s) < 6 {
		return s
	}
	s = strings.TrimSuffix(strings.TrimPrefix(s, "```"), "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 && !strings.ContainsAny(s[:i], " {[") {
		s = s[i+1:]
	}
	return strings.TrimSpace(s)
}

func sortedLabels(m map[string]ragchat.Endpoints) []string {
	labels := make([]string, 0, len(m))
	for k := range m {
		labels = append(labels, k)
	}
	sort.Strings(labels)
	return labels
}

// jsonText renders v for inclusion in a prompt.
func jsonText(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
