package harness

import (
	"fmt"
	"maps"
	"slices"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/IniZio/reim/internal/loader"
	"github.com/IniZio/reim/internal/store"
	"github.com/IniZio/reim/internal/value"
)

// operand is a literal value or a reference to a dispatch argument.
type operand struct {
	lit value.Value
	arg int // -1 for a literal
}

func (o operand) resolve(args []any) value.Value {
	if o.arg < 0 {
		return o.lit
	}
	if o.arg >= len(args) {
		return nil
	}
	v, err := value.From(args[o.arg])
	if err != nil {
		return nil
	}
	return v
}

// compiledAction is an ActionDef with its YAML converted to values.
type compiledAction struct {
	merge   map[string]operand
	replace *operand
	set     map[string]operand
	add     map[string]operand
	del     []string
	thunk   *compiledAction

	usesArgs bool
}

func compileAction(def ActionDef) (*compiledAction, error) {
	c := &compiledAction{del: def.Delete}

	if def.Merge != nil {
		m, err := compileMapping(def.Merge)
		if err != nil {
			return nil, fmt.Errorf("merge: %w", err)
		}
		c.merge = m
	}
	if def.Replace != nil {
		op, err := compileOperand(def.Replace)
		if err != nil {
			return nil, fmt.Errorf("replace: %w", err)
		}
		c.replace = &op
	}

	var err error
	if c.set, err = compileOperands(def.Set); err != nil {
		return nil, fmt.Errorf("set: %w", err)
	}
	if c.add, err = compileOperands(def.Add); err != nil {
		return nil, fmt.Errorf("add: %w", err)
	}

	if def.Thunk != nil {
		if c.thunk, err = compileAction(*def.Thunk); err != nil {
			return nil, fmt.Errorf("thunk: %w", err)
		}
	}

	c.usesArgs = c.referencesArgs()
	return c, nil
}

func compileMapping(n *yaml.Node) (map[string]operand, error) {
	ops := make(map[string]operand, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		op, err := compileOperand(n.Content[i+1])
		if err != nil {
			return nil, err
		}
		ops[n.Content[i].Value] = op
	}
	return ops, nil
}

func compileOperands(nodes map[string]yaml.Node) (map[string]operand, error) {
	if len(nodes) == 0 {
		return nil, nil
	}
	ops := make(map[string]operand, len(nodes))
	for key, n := range nodes {
		op, err := compileOperand(&n)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		ops[key] = op
	}
	return ops, nil
}

func compileOperand(n *yaml.Node) (operand, error) {
	if n.Kind == yaml.ScalarNode && n.ShortTag() == "!!str" {
		if m := argRef.FindStringSubmatch(n.Value); m != nil {
			idx, err := strconv.Atoi(m[1])
			if err != nil {
				return operand{}, err
			}
			return operand{arg: idx}, nil
		}
	}
	v, err := loader.FromYAML(n)
	if err != nil {
		return operand{}, err
	}
	return operand{lit: v, arg: -1}, nil
}

func (c *compiledAction) referencesArgs() bool {
	for _, group := range []map[string]operand{c.merge, c.set, c.add} {
		for _, op := range group {
			if op.arg >= 0 {
				return true
			}
		}
	}
	if c.replace != nil && c.replace.arg >= 0 {
		return true
	}
	return c.thunk != nil && c.thunk.referencesArgs()
}

func (c *compiledAction) draftOps() bool {
	return len(c.set)+len(c.add)+len(c.del) > 0 || c.thunk != nil
}

// mutation builds the store mutation for one dispatch.
func (c *compiledAction) mutation(args []any, fail func(error)) store.Mutation {
	if !c.draftOps() {
		if c.replace != nil {
			return store.Replace{Value: c.replace.resolve(args)}
		}
		return store.Patch(resolveMapping(c.merge, args))
	}

	return store.DraftMutator(func(d *value.Draft) store.Mutation {
		if c.replace != nil {
			d.Replace(c.replace.resolve(args))
		}
		if c.merge != nil {
			d.Merge(resolveMapping(c.merge, args))
		}
		for _, key := range sortedKeys(c.set) {
			setMember(d, key, c.set[key].resolve(args))
		}
		for _, key := range sortedKeys(c.add) {
			var cur value.Value
			if key == wholeValue {
				cur = d.Value()
			} else {
				cur, _ = d.Get(key)
			}
			sum, err := addNumbers(cur, c.add[key].resolve(args))
			if err != nil {
				fail(fmt.Errorf("add %s: %w", key, err))
				continue
			}
			setMember(d, key, sum)
		}
		for _, key := range c.del {
			d.Delete(key)
		}

		if c.thunk != nil {
			return c.thunk.mutation(args, fail)
		}
		return nil
	})
}

// bind returns the mutation to register under the action's name.
func (c *compiledAction) bind(fail func(error)) store.Mutation {
	if !c.usesArgs {
		return c.mutation(nil, fail)
	}
	return store.ActionThunk(func(args ...any) store.Mutation {
		return c.mutation(args, fail)
	})
}

// wholeValue addresses the whole state in set and add, which is how
// scalar stores are updated.
const wholeValue = "."

func setMember(d *value.Draft, key string, v value.Value) {
	if key == wholeValue {
		d.Replace(v)
		return
	}
	d.Set(key, v)
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}

func resolveMapping(ops map[string]operand, args []any) value.Object {
	obj := make(value.Object, len(ops))
	for k, op := range ops {
		obj[k] = op.resolve(args)
	}
	return obj
}

// addNumbers adds two numbers; a missing member counts as zero. The sum
// stays an Int when both operands are Ints and it fits in int64, and
// becomes a Float otherwise.
func addNumbers(a, b value.Value) (value.Value, error) {
	if a == nil {
		a = value.Int(0)
	}
	switch x := a.(type) {
	case value.Int:
		switch y := b.(type) {
		case value.Int:
			sum := x + y
			if (sum > x) != (y > 0) {
				return value.Float(x) + value.Float(y), nil
			}
			return sum, nil
		case value.Float:
			return value.Float(x) + y, nil
		}
	case value.Float:
		switch y := b.(type) {
		case value.Int:
			return x + value.Float(y), nil
		case value.Float:
			return x + y, nil
		}
	default:
		return nil, fmt.Errorf("current value is %s, not a number", value.Kind(a))
	}
	return nil, fmt.Errorf("increment is %s, not a number", value.Kind(b))
}
