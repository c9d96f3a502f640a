package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Persist writes value under the dotted key (for example "primary.token")
// into the YAML document at path. Comments and key order of the document
// are kept; missing mappings along the key are appended.
func Persist(path, key, value string) error {
	if path == "" {
		return &ConfigurationError{Field: "config", Reason: "no configuration file to persist to"}
	}
	if key == "" {
		return fmt.Errorf("persist: empty key")
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("persist: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("persist: %w", err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("persist: parsing %s: %w", path, err)
	}
	if doc.Kind == 0 {
		doc = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}}
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return fmt.Errorf("persist: %s is not a YAML mapping", path)
	}

	if err := setPath(doc.Content[0], strings.Split(key, "."), value); err != nil {
		return fmt.Errorf("persist %s: %w", key, err)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return fmt.Errorf("persist: encoding: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("persist: encoding: %w", err)
	}

	return os.WriteFile(path, buf.Bytes(), info.Mode().Perm())
}

func setPath(node *yaml.Node, parts []string, value string) error {
	for i := 0; i < len(node.Content)-1; i += 2 {
		k, v := node.Content[i], node.Content[i+1]
		if k.Value != parts[0] {
			continue
		}
		if len(parts) == 1 {
			*v = yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value, LineComment: v.LineComment}
			return nil
		}
		if v.Kind != yaml.MappingNode {
			if v.Kind == yaml.ScalarNode && (v.Tag == "!!null" || v.Value == "") {
				*v = yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
			} else {
				return fmt.Errorf("%s is not a mapping", parts[0])
			}
		}
		return setPath(v, parts[1:], value)
	}

	keyNode := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: parts[0]}
	if len(parts) == 1 {
		node.Content = append(node.Content, keyNode, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value})
		return nil
	}
	child := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	node.Content = append(node.Content, keyNode, child)
	return setPath(child, parts[1:], value)
}
