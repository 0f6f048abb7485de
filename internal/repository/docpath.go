package repository

import (
	"encoding/json"
	"fmt"
	"strings"
)

// applyFields sets fields under a dotted path of a JSON document and returns the new document.
// Missing intermediate objects are created.
func applyFields(doc []byte, path string, fields map[string]any) ([]byte, error) {
	root := map[string]any{}
	if len(doc) > 0 {
		if err := json.Unmarshal(doc, &root); err != nil {
			return nil, fmt.Errorf("failed to decode document: %w", err)
		}
	}

	node := root
	if path != "" {
		for _, seg := range strings.Split(path, ".") {
			next, ok := node[seg].(map[string]any)
			if !ok {
				next = map[string]any{}
				node[seg] = next
			}
			node = next
		}
	}

	for k, v := range fields {
		node[k] = v
	}

	out, err := json.Marshal(root)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return out, nil
}
