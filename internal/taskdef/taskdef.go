// Package taskdef loads a task definition document and normalizes it into a
// form RegisterTaskDefinition accepts.
package taskdef

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Attributes that DescribeTaskDefinition returns but RegisterTaskDefinition
// rejects. They are stripped before submission, with a warning each.
var readOnlyAttributes = []string{
	"compatibilities",
	"taskDefinitionArn",
	"requiresAttributes",
	"revision",
	"status",
	"registeredAt",
	"deregisteredAt",
	"registeredBy",
}

// Load reads a task definition document from path, resolving relative paths
// against workspace. YAML is a superset of JSON, so both formats parse.
func Load(path, workspace string) (map[string]any, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(workspace, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read task definition: %w", err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid task definition %s: %w", path, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("task definition %s is empty", path)
	}
	return doc, nil
}

// Normalize prepares a raw document for submission: prune empty values,
// strip read-only attributes, then backfill the name/value sub-fields the
// control plane requires to be present. Pruning must run first: the backfill
// reintroduces empty strings that have to survive.
func Normalize(doc map[string]any) (map[string]any, []string) {
	cleaned, ok := prune(doc).(map[string]any)
	if !ok {
		cleaned = map[string]any{}
	}

	var warnings []string
	for _, attr := range readOnlyAttributes {
		if _, present := cleaned[attr]; present {
			delete(cleaned, attr)
			warnings = append(warnings, fmt.Sprintf("ignoring read-only property %q in the task definition", attr))
		}
	}

	backfillProxyProperties(cleaned)
	backfillContainerEnvironment(cleaned)
	return cleaned, warnings
}

// isEmpty reports whether a value carries no information: nil, an empty
// string, or a container whose every element is itself empty. Numbers and
// booleans are never empty.
func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []any:
		for _, e := range t {
			if !isEmpty(e) {
				return false
			}
		}
		return true
	case map[string]any:
		for _, e := range t {
			if !isEmpty(e) {
				return false
			}
		}
		return true
	}
	return false
}

// prune drops empty values recursively. Empty elements of a kept sequence
// are filtered out, not replaced, and kept elements are pruned in place.
func prune(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			if isEmpty(e) {
				continue
			}
			out[k] = prune(e)
		}
		return out
	case []any:
		out := make([]any, 0, len(t))
		for _, e := range t {
			if isEmpty(e) {
				continue
			}
			out = append(out, prune(e))
		}
		return out
	}
	return v
}

// backfillProxyProperties restores name/value keys on App Mesh proxy
// properties; the API rejects entries where either is missing.
func backfillProxyProperties(doc map[string]any) {
	proxy, ok := doc["proxyConfiguration"].(map[string]any)
	if !ok {
		return
	}
	if typ, _ := proxy["type"].(string); typ != "APPMESH" {
		return
	}
	props, ok := proxy["properties"].([]any)
	if !ok || len(props) == 0 {
		return
	}
	for _, p := range props {
		prop, ok := p.(map[string]any)
		if !ok {
			continue
		}
		if _, present := prop["name"]; !present {
			prop["name"] = ""
		}
		if _, present := prop["value"]; !present {
			prop["value"] = ""
		}
	}
}

// backfillContainerEnvironment restores the value key on container
// environment entries.
func backfillContainerEnvironment(doc map[string]any) {
	containers, ok := doc["containerDefinitions"].([]any)
	if !ok {
		return
	}
	for _, c := range containers {
		container, ok := c.(map[string]any)
		if !ok {
			continue
		}
		env, ok := container["environment"].([]any)
		if !ok {
			continue
		}
		for _, e := range env {
			entry, ok := e.(map[string]any)
			if !ok {
				continue
			}
			if _, present := entry["value"]; !present {
				entry["value"] = ""
			}
		}
	}
}
