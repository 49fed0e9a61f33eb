package value

// Draft is a mutable working copy of a state value.
//
// Over an Object base the draft is copy-on-write: writes are recorded
// beside the base, never applied to it, and Value() builds a new Object
// that reuses every untouched member (including whole nested Objects)
// from the base. An untouched draft finalizes to its base unchanged.
//
// Over a scalar base (anything but Object) keyed operations are no-ops;
// only Replace changes the draft.
//
// A Draft is not safe for concurrent use and must not be retained after
// the mutator it was handed to returns.
type Draft struct {
	base     Object
	scalar   Value
	isObject bool
	replaced bool

	writes   Object
	deleted  map[string]struct{}
	children map[string]*Draft
}

// NewDraft creates a draft over v. v itself is never modified.
func NewDraft(v Value) *Draft {
	d := &Draft{}
	d.reset(v)
	return d
}

func (d *Draft) reset(v Value) {
	d.writes = nil
	d.deleted = nil
	d.children = nil
	if obj, ok := v.(Object); ok {
		d.base, d.scalar, d.isObject = obj, nil, true
		return
	}
	d.base, d.scalar, d.isObject = nil, v, false
}

// IsObject reports whether the draft currently holds structured state.
func (d *Draft) IsObject() bool {
	return d.isObject
}

// raw returns the member for key ignoring child drafts.
func (d *Draft) raw(key string) (Value, bool) {
	if _, gone := d.deleted[key]; gone {
		return nil, false
	}
	if v, ok := d.writes[key]; ok {
		return v, true
	}
	v, ok := d.base[key]
	return v, ok
}

// Get returns the current member for key, reflecting pending writes and
// nested draft changes.
func (d *Draft) Get(key string) (Value, bool) {
	if !d.isObject {
		return nil, false
	}
	if child, ok := d.children[key]; ok {
		return child.Value(), true
	}
	return d.raw(key)
}

// Has reports whether key is currently present.
func (d *Draft) Has(key string) bool {
	_, ok := d.Get(key)
	return ok
}

// Set assigns key. Assigning a value Identical to the current member
// leaves the draft clean.
func (d *Draft) Set(key string, v Value) {
	if !d.isObject {
		return
	}
	if cur, ok := d.Get(key); ok && Identical(cur, v) {
		return
	}
	delete(d.children, key)
	delete(d.deleted, key)
	if d.writes == nil {
		d.writes = make(Object)
	}
	d.writes[key] = v
}

// Delete removes key if present.
func (d *Draft) Delete(key string) {
	if !d.isObject || !d.Has(key) {
		return
	}
	delete(d.children, key)
	delete(d.writes, key)
	if _, inBase := d.base[key]; inBase {
		if d.deleted == nil {
			d.deleted = make(map[string]struct{})
		}
		d.deleted[key] = struct{}{}
	}
}

// Merge shallow-assigns every member of patch, like Object.assign.
func (d *Draft) Merge(patch Object) {
	for _, k := range patch.SortedKeys() {
		d.Set(k, patch[k])
	}
}

// Object returns a nested draft for key when its current member is an
// Object, or nil otherwise. Changes made through the nested draft are
// folded into this draft's result.
func (d *Draft) Object(key string) *Draft {
	if !d.isObject {
		return nil
	}
	if child, ok := d.children[key]; ok {
		return child
	}
	cur, ok := d.raw(key)
	if !ok {
		return nil
	}
	obj, isObj := cur.(Object)
	if !isObj {
		return nil
	}
	child := NewDraft(obj)
	if d.children == nil {
		d.children = make(map[string]*Draft)
	}
	d.children[key] = child
	return child
}

// Replace discards pending changes and makes v the draft's new base.
func (d *Draft) Replace(v Value) {
	d.reset(v)
	d.replaced = true
}

// Keys returns the current member keys in canonical order.
func (d *Draft) Keys() []string {
	if !d.isObject {
		return nil
	}
	keys := make(Object, len(d.base)+len(d.writes))
	for k := range d.base {
		keys[k] = nil
	}
	for k := range d.writes {
		keys[k] = nil
	}
	for k := range d.deleted {
		delete(keys, k)
	}
	return keys.SortedKeys()
}

// Int returns the member for key as an int64. Floats are truncated;
// missing or non-numeric members yield 0.
func (d *Draft) Int(key string) int64 {
	v, _ := d.Get(key)
	switch n := v.(type) {
	case Int:
		return int64(n)
	case Float:
		return int64(n)
	}
	return 0
}

// Float returns the member for key as a float64, or 0.
func (d *Draft) Float(key string) float64 {
	v, _ := d.Get(key)
	switch n := v.(type) {
	case Int:
		return float64(n)
	case Float:
		return float64(n)
	}
	return 0
}

// String returns the member for key if it is a String, or "".
func (d *Draft) String(key string) string {
	v, _ := d.Get(key)
	s, _ := v.(String)
	return string(s)
}

// Bool returns the member for key if it is a Bool, or false.
func (d *Draft) Bool(key string) bool {
	v, _ := d.Get(key)
	b, _ := v.(Bool)
	return bool(b)
}

func (d *Draft) modified() bool {
	if len(d.writes) > 0 || len(d.deleted) > 0 {
		return true
	}
	for _, child := range d.children {
		if child.dirty() {
			return true
		}
	}
	return false
}

func (d *Draft) dirty() bool {
	return d.replaced || d.modified()
}

// Value finalizes the draft. Untouched members keep their identity; only
// the Objects on the path to a change are freshly allocated.
func (d *Draft) Value() Value {
	if !d.isObject {
		return d.scalar
	}
	if !d.modified() {
		return d.base
	}

	out := make(Object, len(d.base)+len(d.writes))
	for k, v := range d.base {
		if _, gone := d.deleted[k]; !gone {
			out[k] = v
		}
	}
	for k, v := range d.writes {
		out[k] = v
	}
	for k, child := range d.children {
		if child.dirty() {
			out[k] = child.Value()
		}
	}
	return out
}
