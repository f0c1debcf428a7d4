// Package yaml loads BioCypher knowledge graph schemas from YAML.
package yaml

import (
	"bytes"
	"errors"
	"io"
	"os"

	"github.com/fwojciec/ragchat"
	"gopkg.in/yaml.v3"
)

// LoadSchema decodes a BioCypher schema configuration, or the schema info
// document BioCypher writes when it contains "is_schema_info: true".
// Entries keep their order in the document.
func LoadSchema(r io.Reader) (*ragchat.Schema, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ragchat.Errorf(ragchat.EINVALID, "empty schema document")
		}
		return nil, ragchat.Errorf(ragchat.EINVALID, "invalid schema YAML: %s", err)
	}
	if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, ragchat.Errorf(ragchat.EINVALID, "schema must be a mapping")
	}

	root := doc.Content[0]
	var (
		entries      []ragchat.SchemaEntry
		isSchemaInfo bool
	)
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i], root.Content[i+1]
		switch value.Kind {
		case yaml.ScalarNode:
			if key.Value == "is_schema_info" {
				if err := value.Decode(&isSchemaInfo); err != nil {
					return nil, ragchat.Errorf(ragchat.EINVALID, "is_schema_info must be a boolean")
				}
			}
		case yaml.MappingNode:
			var m map[string]any
			if err := value.Decode(&m); err != nil {
				return nil, ragchat.Errorf(ragchat.EINVALID, "invalid schema entry %q: %s", key.Value, err)
			}
			entries = append(entries, ragchat.SchemaEntry{Name: key.Value, Value: m})
		}
	}

	return ragchat.SchemaFromBioCypher(entries, isSchemaInfo)
}

// LoadSchemaBytes decodes a schema held in memory.
func LoadSchemaBytes(data []byte) (*ragchat.Schema, error) {
	return LoadSchema(bytes.NewReader(data))
}

// LoadSchemaFile reads a schema from path.
func LoadSchemaFile(path string) (*ragchat.Schema, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ragchat.Errorf(ragchat.ENOTFOUND, "schema file not found: %s", path)
		}
		return nil, err
	}
	defer f.Close()
	return LoadSchema(f)
}
