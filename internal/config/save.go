package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// SavePoolSettings updates the pool section in the config file so the
// last-used count, speed, and priority survive restarts. Comments and
// formatting in other sections are preserved by editing the yaml.Node
// tree instead of re-marshaling the whole config.
func SavePoolSettings(configPath string, settings PoolConfig) error {
	data, err := os.ReadFile(configPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading config: %w", err)
	}

	var doc yaml.Node
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("parsing config: %w", err)
		}
	}

	poolNode, err := buildPoolNode(settings)
	if err != nil {
		return fmt.Errorf("building pool node: %w", err)
	}

	if doc.Kind == 0 {
		// Empty or new file.
		doc = yaml.Node{
			Kind: yaml.DocumentNode,
			Content: []*yaml.Node{
				{
					Kind: yaml.MappingNode,
					Content: []*yaml.Node{
						{Kind: yaml.ScalarNode, Value: "pool"},
						poolNode,
					},
				},
			},
		}
	} else if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		root := doc.Content[0]
		if root.Kind == yaml.MappingNode {
			found := false
			for i := 0; i < len(root.Content)-1; i += 2 {
				if root.Content[i].Value == "pool" {
					mergePoolNode(root.Content[i+1], poolNode)
					found = true
					break
				}
			}
			if !found {
				root.Content = append(root.Content,
					&yaml.Node{Kind: yaml.ScalarNode, Value: "pool"},
					poolNode,
				)
			}
		}
	}

	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(&doc); err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	_ = encoder.Close()

	return writeAtomic(configPath, buf.Bytes())
}

// buildPoolNode builds a mapping node holding only the user-tunable
// pool keys. Cadence settings stay untouched in the file.
func buildPoolNode(settings PoolConfig) (*yaml.Node, error) {
	values := map[string]any{
		"count":    settings.Count,
		"speed":    settings.Speed,
		"priority": settings.Priority,
	}
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, key := range []string{"count", "speed", "priority"} {
		var valueNode yaml.Node
		if err := valueNode.Encode(values[key]); err != nil {
			return nil, fmt.Errorf("encoding %s: %w", key, err)
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: key},
			&valueNode,
		)
	}
	return node, nil
}

// mergePoolNode overwrites keys present in src into dst, appending
// keys dst does not have. Extra keys in dst (cadence settings,
// comments) are left alone.
func mergePoolNode(dst, src *yaml.Node) {
	if dst.Kind != yaml.MappingNode {
		*dst = *src
		return
	}
	for i := 0; i < len(src.Content)-1; i += 2 {
		key, value := src.Content[i], src.Content[i+1]
		replaced := false
		for j := 0; j < len(dst.Content)-1; j += 2 {
			if dst.Content[j].Value == key.Value {
				// Keep any comment attached to the existing value.
				value.LineComment = dst.Content[j+1].LineComment
				dst.Content[j+1] = value
				replaced = true
				break
			}
		}
		if !replaced {
			dst.Content = append(dst.Content, key, value)
		}
	}
}

// writeAtomic writes to a temp file in the target directory, then
// renames over the destination.
func writeAtomic(configPath string, data []byte) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	temp, err := os.CreateTemp(dir, ".procsync.yaml.tmp.*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tempPath := temp.Name()

	if _, err := temp.Write(data); err != nil {
		_ = temp.Close()
		_ = os.Remove(tempPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := temp.Close(); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tempPath, configPath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
