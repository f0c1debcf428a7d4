package yaml_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fwojciec/ragchat"
	"github.com/fwojciec/ragchat/yaml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const schemaConfig = `
# BioCypher schema configuration
protein:
  represented_as: node
  preferred_id: uniprot
  input_label: uniprot_protein
  properties:
    name: str
    sequence: str
disease:
  represented_as: node
  preferred_id: doid
gene:
  represented_as: node
protein protein interaction:
  is_a: pairwise molecular interaction
  represented_as: edge
  input_label: interacts_with
gene to disease association:
  represented_as: edge
  label_as_edge: PERTURBED_IN_DISEASE
  source: gene
  target: disease
`

const schemaInfo = `
is_schema_info: true
gene:
  present_in_knowledge_graph: true
  is_relationship: false
  properties:
    id: str
pathway:
  present_in_knowledge_graph: false
  is_relationship: false
biological process:
  present_in_knowledge_graph: true
  is_relationship: false
gene in pathway:
  present_in_knowledge_graph: true
  is_relationship: true
  source: gene
  target: [biological process]
`

func TestLoadSchema(t *testing.T) {
	t.Parallel()

	t.Run("reads schema configuration in document order", func(t *testing.T) {
		t.Parallel()

		schema, err := yaml.LoadSchema(strings.NewReader(schemaConfig))

		require.NoError(t, err)
		assert.Equal(t, ragchat.KnowledgeGraph, schema.Kind)
		assert.Equal(t, []string{"Protein", "Disease", "Gene"}, schema.EntityNames())
		assert.Equal(t, []string{"name", "sequence"}, schema.Entity("Protein").Properties)
		require.Len(t, schema.Relationships, 2)
		assert.Equal(t, "ProteinProteinInteraction", schema.Relationships[0].Name)

		rel := schema.Relationship("GeneToDiseaseAssociation")
		require.NotNil(t, rel)
		assert.Equal(t, "PERTURBED_IN_DISEASE", rel.EdgeLabel())
		assert.Equal(t, []ragchat.Pair{{Source: "Gene", Target: "Disease"}}, rel.Pairs())
	})

	t.Run("reads schema info", func(t *testing.T) {
		t.Parallel()

		schema, err := yaml.LoadSchemaBytes([]byte(schemaInfo))

		require.NoError(t, err)
		assert.Equal(t, []string{"Gene", "BiologicalProcess"}, schema.EntityNames())
		assert.Equal(t, []string{"id"}, schema.Entity("Gene").Properties)
		rel := schema.Relationship("GeneInPathway")
		require.NotNil(t, rel)
		assert.Equal(t, []ragchat.Pair{{Source: "Gene", Target: "BiologicalProcess"}}, rel.Pairs())
	})

	t.Run("rejects malformed documents", func(t *testing.T) {
		t.Parallel()

		for name, input := range map[string]string{
			"empty":           "",
			"sequence":        "- gene\n- disease\n",
			"syntax error":    "gene: [unclosed\n",
			"no entities":     "binds:\n  represented_as: edge\n",
			"bad schema info": "is_schema_info: maybe\n",
		} {
			_, err := yaml.LoadSchema(strings.NewReader(input))
			assert.Equal(t, ragchat.EINVALID, ragchat.ErrorCode(err), name)
		}
	})
}

func TestLoadSchemaFile(t *testing.T) {
	t.Parallel()

	t.Run("reads file", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "schema_config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(schemaConfig), 0o644))

		schema, err := yaml.LoadSchemaFile(path)

		require.NoError(t, err)
		assert.Len(t, schema.Entities, 3)
	})

	t.Run("returns ENOTFOUND for missing file", func(t *testing.T) {
		t.Parallel()

		_, err := yaml.LoadSchemaFile(filepath.Join(t.TempDir(), "missing.yaml"))

		assert.Equal(t, ragchat.ENOTFOUND, ragchat.ErrorCode(err))
	})
}
