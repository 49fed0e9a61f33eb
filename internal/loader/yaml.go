package loader

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/IniZio/reim/internal/value"
)

// parseYAML decodes a single YAML document. An empty document is Null.
func parseYAML(data []byte) (value.Value, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return value.Null{}, nil
	}
	return newConverter().fromNode(doc.Content[0])
}

// FromYAML converts an already decoded YAML node, such as a yaml.Node
// field of a config struct. A nil node is Null.
func FromYAML(n *yaml.Node) (value.Value, error) {
	if n == nil {
		return value.Null{}, nil
	}
	if n.Kind == yaml.DocumentNode {
		if len(n.Content) == 0 {
			return value.Null{}, nil
		}
		n = n.Content[0]
	}
	return newConverter().fromNode(n)
}

// maxNodes bounds the nodes one document may expand to through aliases.
const maxNodes = 1 << 20

// converter walks one YAML document. expanding holds the anchors whose
// alias is being expanded; meeting one again means the alias contains
// itself.
type converter struct {
	expanding map[*yaml.Node]bool
	visited   int
}

func newConverter() *converter {
	return &converter{expanding: make(map[*yaml.Node]bool)}
}

// fromNode converts a YAML node. Timestamps and binary scalars are kept
// as their literal strings.
func (c *converter) fromNode(n *yaml.Node) (value.Value, error) {
	c.visited++
	if c.visited > maxNodes {
		return nil, fmt.Errorf("line %d: document expands to more than %d nodes", n.Line, maxNodes)
	}

	switch n.Kind {
	case yaml.AliasNode:
		if n.Alias == nil {
			return nil, fmt.Errorf("line %d: unknown alias %q", n.Line, n.Value)
		}
		if c.expanding[n.Alias] {
			return nil, fmt.Errorf("line %d: recursive alias %q", n.Line, n.Value)
		}
		c.expanding[n.Alias] = true
		defer delete(c.expanding, n.Alias)
		return c.fromNode(n.Alias)

	case yaml.ScalarNode:
		return fromScalar(n)

	case yaml.SequenceNode:
		arr := make(value.Array, len(n.Content))
		for i, child := range n.Content {
			v, err := c.fromNode(child)
			if err != nil {
				return nil, err
			}
			arr[i] = v
		}
		return arr, nil

	case yaml.MappingNode:
		obj := make(value.Object, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			key, val := n.Content[i], n.Content[i+1]

			if isMerge(key) {
				if err := c.mergeInto(obj, val); err != nil {
					return nil, err
				}
				continue
			}
			if key.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("line %d: mapping keys must be scalars", key.Line)
			}

			v, err := c.fromNode(val)
			if err != nil {
				return nil, err
			}
			obj[key.Value] = v
		}
		return obj, nil

	default:
		return nil, fmt.Errorf("line %d: unsupported YAML node kind %d", n.Line, n.Kind)
	}
}

func fromScalar(n *yaml.Node) (value.Value, error) {
	switch n.ShortTag() {
	case "!!null":
		return value.Null{}, nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return nil, err
		}
		return value.Bool(b), nil
	case "!!int":
		var i int64
		if err := n.Decode(&i); err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return value.Int(i), nil
	case "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return value.Float(f), nil
	default:
		return value.String(n.Value), nil
	}
}

// mergeInto applies a "<<" merge key. Keys already present win.
func (c *converter) mergeInto(obj value.Object, src *yaml.Node) error {
	sources := []*yaml.Node{src}
	if src.Kind == yaml.SequenceNode {
		sources = src.Content
	}

	for _, s := range sources {
		v, err := c.fromNode(s)
		if err != nil {
			return err
		}
		m, ok := v.(value.Object)
		if !ok {
			return fmt.Errorf("line %d: merge value must be a mapping", s.Line)
		}
		for k, mv := range m {
			if _, exists := obj[k]; !exists {
				obj[k] = mv
			}
		}
	}
	return nil
}

func isMerge(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.Value == "<<" &&
		(n.Tag == "" || n.Tag == "!" || n.ShortTag() == "!!merge")
}
