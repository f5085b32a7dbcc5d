package conf

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/ocrwatch/frigate-ocr/internal/logger"
)

const redacted = "[REDACTED]"

// RedactedYAML renders the effective settings as YAML with secrets masked.
func RedactedYAML(settings *Settings) ([]byte, error) {
	var doc yaml.Node
	if err := doc.Encode(settings); err != nil {
		return nil, fmt.Errorf("error encoding settings: %w", err)
	}

	redactNode(&doc)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return nil, fmt.Errorf("error rendering settings: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// redactNode masks non-empty scalar values stored under sensitive keys
func redactNode(n *yaml.Node) {
	if n.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(n.Content); i += 2 {
			key, value := n.Content[i], n.Content[i+1]
			if value.Kind == yaml.ScalarNode && value.Value != "" && logger.IsSensitiveKey(key.Value) {
				value.Value = redacted
				value.Tag = "!!str"
				value.Style = 0
				continue
			}
			redactNode(value)
		}
		return
	}
	for _, child := range n.Content {
		redactNode(child)
	}
}
