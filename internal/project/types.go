// Package project loads project files: the declared targets, the resources
// they exchange and named jobs selecting groups of targets.
package project

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/flowbuild/internal/resource"
)

// DefaultFile is the project file looked up when none is given.
const DefaultFile = "project.yaml"

// TargetSpec is the declaration of one target.
type TargetSpec struct {
	Name        string        `yaml:"-"`
	Kind        string        `yaml:"kind"`
	Description string        `yaml:"description,omitempty"`
	Phases      []string      `yaml:"phases,omitempty"`
	Requires    []ResourceRef `yaml:"requires,omitempty"`
	Provides    []ResourceRef `yaml:"provides,omitempty"`

	// node is the full mapping, handed to the kind for its own properties.
	node *yaml.Node
}

// Job names a group of targets.
type Job struct {
	Description string   `yaml:"description,omitempty"`
	Targets     []string `yaml:"targets"`
}

// document mirrors the file layout. Targets stays a node to keep
// declaration order.
type document struct {
	Name    string         `yaml:"name"`
	Version string         `yaml:"version"`
	Targets yaml.Node      `yaml:"targets"`
	Jobs    map[string]Job `yaml:"jobs"`
}

// ResourceRef is a resource as written in a project file, either the
// canonical string "category:name[k=v]" or a mapping
//
//	hiveTablePartition: sales.orders
//	partition: {year: "2024"}
type ResourceRef struct {
	ID resource.Identifier
}

func (r *ResourceRef) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		id, err := resource.Parse(node.Value)
		if err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		r.ID = id
		return nil

	case yaml.MappingNode:
		var category, name string
		var partition map[string]string
		for i := 0; i+1 < len(node.Content); i += 2 {
			key, value := node.Content[i], node.Content[i+1]
			if key.Value == "partition" {
				if err := value.Decode(&partition); err != nil {
					return fmt.Errorf("line %d: partition: %w", value.Line, err)
				}
				continue
			}
			if category != "" {
				return fmt.Errorf("line %d: resource declares both %q and %q", key.Line, category, key.Value)
			}
			if value.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: resource name of %q must be a string", value.Line, key.Value)
			}
			category, name = key.Value, value.Value
		}
		if category == "" {
			return fmt.Errorf("line %d: resource has no category", node.Line)
		}
		r.ID = resource.New(category, name, partition)
		return r.ID.Validate()

	default:
		return fmt.Errorf("line %d: resource must be a string or a mapping", node.Line)
	}
}

func (r ResourceRef) MarshalYAML() (any, error) {
	return r.ID.Key(), nil
}

func identifiers(refs []ResourceRef) []resource.Identifier {
	out := make([]resource.Identifier, len(refs))
	for i, r := range refs {
		out[i] = r.ID
	}
	return out
}
