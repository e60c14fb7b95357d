package build

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Cloud Foundry manifests are edited as yaml.v3 nodes so keys keep their
// order and comments survive.

func loadManifest(path string) (*yaml.Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("build: reading manifest: %w", err)
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("build: parsing manifest %s: %w", path, err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, fmt.Errorf("build: manifest %s is empty", path)
	}
	return &doc, nil
}

// firstApplication returns the mapping of applications[0].
func firstApplication(doc *yaml.Node, path string) (*yaml.Node, error) {
	apps := mapValue(doc.Content[0], "applications")
	if apps == nil || apps.Kind != yaml.SequenceNode || len(apps.Content) == 0 {
		return nil, fmt.Errorf("build: manifest %s has no applications", path)
	}
	app := apps.Content[0]
	if app.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("build: manifest %s: applications[0] is not a mapping", path)
	}
	return app, nil
}

// ManifestEnv returns applications[0].env.<key> of the manifest at path.
func ManifestEnv(path, key string) (string, error) {
	doc, err := loadManifest(path)
	if err != nil {
		return "", err
	}
	app, err := firstApplication(doc, path)
	if err != nil {
		return "", err
	}
	v := mapValue(mapValue(app, "env"), key)
	if v == nil || v.Kind != yaml.ScalarNode || v.Value == "" {
		return "", fmt.Errorf("build: manifest %s: env.%s not set", path, key)
	}
	return v.Value, nil
}

// StampManifest sets applications[0].env.<key> to value, creating the env
// mapping when missing.
func StampManifest(path, key, value string) error {
	doc, err := loadManifest(path)
	if err != nil {
		return err
	}
	app, err := firstApplication(doc, path)
	if err != nil {
		return err
	}

	env := mapValue(app, "env")
	if env == nil {
		env = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		app.Content = append(app.Content, scalar("env"), env)
	}
	if v := mapValue(env, key); v != nil {
		*v = *scalar(value)
	} else {
		env.Content = append(env.Content, scalar(key), scalar(value))
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("build: encoding manifest %s: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

func mapValue(m *yaml.Node, key string) *yaml.Node {
	if m == nil || m.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

func scalar(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
}
