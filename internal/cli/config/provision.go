package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/salesload/internal/cipher"
	"gopkg.in/yaml.v3"
)

// ProvisionKey generates an encryption key and writes it to encryption.key
// in the YAML document at path. The rest of the document, including
// comments and key order, is preserved. An existing key is only replaced
// when force is set.
func ProvisionKey(path string, force bool) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", &Error{Path: path, Msg: "config file not found", Err: err}
	}
	data, err := os.ReadFile(path) //nolint:gosec // path is the operator's config file
	if err != nil {
		return "", &Error{Path: path, Msg: "error reading config file", Err: err}
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return "", &Error{Path: path, Msg: "error parsing config file", Err: err}
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return "", &Error{Path: path, Msg: "config file must be a YAML mapping"}
	}
	root := doc.Content[0]

	encryption := mappingValue(root, "encryption")
	if encryption == nil {
		encryption = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		setMappingValue(root, "encryption", encryption)
	} else if encryption.Kind != yaml.MappingNode {
		// "encryption:" with no body parses as a null scalar
		*encryption = yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	}

	if existing := mappingValue(encryption, "key"); existing != nil && existing.Value != "" && !force {
		return "", &Error{Path: path, Field: "encryption.key", Msg: "already set\nHint: pass --force to replace it"}
	}

	key, err := cipher.GenerateKey()
	if err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}
	setMappingValue(encryption, "key", &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key})

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return "", fmt.Errorf("failed to encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("failed to encode config: %w", err)
	}

	if err := writeFileAtomic(path, buf.Bytes(), info.Mode().Perm()); err != nil {
		return "", &Error{Path: path, Msg: "error writing config file", Err: err}
	}
	return key, nil
}

// mappingValue returns the value node for key in a mapping node, or nil.
func mappingValue(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

// setMappingValue replaces the value for key, appending the pair if missing.
func setMappingValue(m *yaml.Node, key string, value *yaml.Node) {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			m.Content[i+1] = value
			return
		}
	}
	m.Content = append(m.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
		value,
	)
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".salesload-*.yaml")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), perm); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
