package deploy

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// AppSpec is an externally authored CodeDeploy appspec document. It is
// handled as a yaml.Node tree so key order and casing survive the round trip;
// lookups ignore case because the format accepts either.
type AppSpec struct {
	root yaml.Node
}

// LoadAppSpec reads and parses an appspec file, resolving relative paths
// against workspace.
func LoadAppSpec(path, workspace string) (*AppSpec, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(workspace, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read appspec file: %w", err)
	}
	return ParseAppSpec(data)
}

func ParseAppSpec(data []byte) (*AppSpec, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("invalid appspec file: %w", err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 || root.Content[0].Kind != yaml.MappingNode {
		return nil, fmt.Errorf("invalid appspec file: expected a mapping at the document root")
	}
	return &AppSpec{root: root}, nil
}

// SetTaskDefinition rewrites every resource's properties.taskDefinition with
// the given ARN. A spec may carry several resources; all of them are patched.
func (s *AppSpec) SetTaskDefinition(arn string) error {
	resources, err := findKey(s.root.Content[0], "resources")
	if err != nil {
		return err
	}
	if resources.Kind != yaml.SequenceNode {
		return &MalformedSpecError{Property: "resources"}
	}
	for _, resource := range resources.Content {
		if resource.Kind != yaml.MappingNode {
			return &MalformedSpecError{Property: "resources"}
		}
		// Each list entry maps a resource name to its definition.
		for i := 1; i < len(resource.Content); i += 2 {
			properties, err := findKey(resource.Content[i], "properties")
			if err != nil {
				return err
			}
			taskDef, err := findKey(properties, "taskDefinition")
			if err != nil {
				return err
			}
			taskDef.SetString(arn)
		}
	}
	return nil
}

// Render serializes the (possibly patched) spec and returns the canonical
// text together with its hex-encoded SHA-256 digest.
func (s *AppSpec) Render() (content, sha string, err error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&s.root); err != nil {
		return "", "", fmt.Errorf("failed to serialize appspec: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", "", fmt.Errorf("failed to serialize appspec: %w", err)
	}
	content = buf.String()
	sum := sha256.Sum256([]byte(content))
	return content, hex.EncodeToString(sum[:]), nil
}

// findKey returns the value node for key in a mapping, ignoring case.
func findKey(mapping *yaml.Node, key string) (*yaml.Node, error) {
	if mapping == nil || mapping.Kind != yaml.MappingNode {
		return nil, &MalformedSpecError{Property: key}
	}
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if strings.EqualFold(mapping.Content[i].Value, key) {
			return mapping.Content[i+1], nil
		}
	}
	return nil, &MalformedSpecError{Property: key}
}
