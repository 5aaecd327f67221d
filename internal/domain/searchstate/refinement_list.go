package searchstate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"sort"
)

// refinementList maps attributes to their selected values.
// Attributes keep insertion order. Every operation returns a new list;
// the backing slices and map are never written after construction.
type refinementList struct {
	attrs  []string
	values map[string][]string
}

// refinementListFromMap copies m into a list ordered by attribute name.
func refinementListFromMap(m map[string][]string) refinementList {
	attrs := make([]string, 0, len(m))
	for attr := range m {
		attrs = append(attrs, attr)
	}
	sort.Strings(attrs)

	values := make(map[string][]string, len(m))
	for _, attr := range attrs {
		values[attr] = cloneStrings(m[attr])
	}
	return refinementList{attrs: attrs, values: values}
}

func (l refinementList) keys() []string { return cloneStrings(l.attrs) }

func (l refinementList) get(attr string) []string { return cloneStrings(l.values[attr]) }

func (l refinementList) has(attr string) bool {
	_, ok := l.values[attr]
	return ok
}

// isRefined reports whether attr has any value, or the given value when one is passed.
func (l refinementList) isRefined(attr string, value ...string) bool {
	vals := l.values[attr]
	if len(value) == 0 {
		return len(vals) > 0
	}
	return slices.Contains(vals, value[0])
}

// with returns a copy where attr holds exactly vals.
func (l refinementList) with(attr string, vals []string) refinementList {
	out := refinementList{
		attrs:  l.attrs,
		values: make(map[string][]string, len(l.values)+1),
	}
	for k, v := range l.values {
		out.values[k] = v
	}
	if !l.has(attr) {
		out.attrs = append(cloneStrings(l.attrs), attr)
	}
	out.values[attr] = cloneStrings(vals)
	return out
}

func (l refinementList) add(attr, value string) refinementList {
	if l.isRefined(attr, value) {
		return l
	}
	return l.with(attr, append(cloneStrings(l.values[attr]), value))
}

func (l refinementList) remove(attr, value string) refinementList {
	return l.clear(func(a, v string) bool { return a == attr && v == value })
}

func (l refinementList) toggle(attr, value string) refinementList {
	if l.isRefined(attr, value) {
		return l.remove(attr, value)
	}
	return l.add(attr, value)
}

// clear drops every value matching fn and prunes attributes left empty.
// An attribute that already holds no value (a hierarchical facet at its root)
// is offered to fn as the value "".
func (l refinementList) clear(fn func(attr, value string) bool) refinementList {
	out := refinementList{values: make(map[string][]string, len(l.values))}
	for _, attr := range l.attrs {
		if len(l.values[attr]) == 0 {
			if !fn(attr, "") {
				out.attrs = append(out.attrs, attr)
				out.values[attr] = []string{}
			}
			continue
		}
		var kept []string
		for _, v := range l.values[attr] {
			if !fn(attr, v) {
				kept = append(kept, v)
			}
		}
		if len(kept) == 0 {
			continue
		}
		out.attrs = append(out.attrs, attr)
		out.values[attr] = kept
	}
	return out
}

func (l refinementList) toMap() map[string][]string {
	m := make(map[string][]string, len(l.values))
	for attr, vals := range l.values {
		m[attr] = cloneStrings(vals)
	}
	return m
}

// MarshalJSON writes the list as an object whose keys follow insertion order.
func (l refinementList) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, attr := range l.attrs {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeJSONMember(&buf, attr, cloneStrings(l.values[attr])); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object and keeps its key order.
func (l *refinementList) UnmarshalJSON(data []byte) error {
	out := refinementList{values: map[string][]string{}}
	err := decodeOrderedObject(data, func(key string, dec *json.Decoder) error {
		var vals []string
		if err := dec.Decode(&vals); err != nil {
			return fmt.Errorf("values of %s: %w", key, err)
		}
		if !out.has(key) {
			out.attrs = append(out.attrs, key)
		}
		out.values[key] = cloneStrings(vals)
		return nil
	})
	if err != nil {
		return err
	}
	*l = out
	return nil
}

// numericList maps attributes to operator -> value. Attributes keep insertion order.
type numericList struct {
	attrs []string
	ops   map[string]map[Operator]float64
}

func numericListFromMap(m map[string]map[Operator]float64) (numericList, error) {
	attrs := make([]string, 0, len(m))
	for attr := range m {
		attrs = append(attrs, attr)
	}
	sort.Strings(attrs)

	out := numericList{attrs: attrs, ops: make(map[string]map[Operator]float64, len(m))}
	for _, attr := range attrs {
		ops := make(map[Operator]float64, len(m[attr]))
		for op, v := range m[attr] {
			if !op.IsValid() {
				return numericList{}, fmt.Errorf("%w: %q on %s", ErrInvalidOperator, op, attr)
			}
			ops[op] = v
		}
		out.ops[attr] = ops
	}
	return out, nil
}

func (l numericList) keys() []string { return cloneStrings(l.attrs) }

// finite reports whether every stored value is a finite number.
func (l numericList) finite() bool {
	for _, ops := range l.ops {
		for _, v := range ops {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}

func (l numericList) get(attr string) map[Operator]float64 {
	out := make(map[Operator]float64, len(l.ops[attr]))
	for op, v := range l.ops[attr] {
		out[op] = v
	}
	return out
}

func (l numericList) lookup(attr string, op Operator) (float64, bool) {
	v, ok := l.ops[attr][op]
	return v, ok
}

// with returns a copy where (attr, op) holds value, replacing any previous value.
func (l numericList) with(attr string, op Operator, value float64) numericList {
	out := numericList{attrs: l.attrs, ops: make(map[string]map[Operator]float64, len(l.ops)+1)}
	for k, v := range l.ops {
		out.ops[k] = v
	}
	if _, ok := l.ops[attr]; !ok {
		out.attrs = append(cloneStrings(l.attrs), attr)
	}
	out.ops[attr] = l.get(attr)
	out.ops[attr][op] = value
	return out
}

// clear drops every (attr, op, value) matching fn and prunes attributes left empty.
func (l numericList) clear(fn func(attr string, op Operator, value float64) bool) numericList {
	out := numericList{ops: make(map[string]map[Operator]float64, len(l.ops))}
	for _, attr := range l.attrs {
		kept := map[Operator]float64{}
		for op, v := range l.ops[attr] {
			if !fn(attr, op, v) {
				kept[op] = v
			}
		}
		if len(kept) == 0 {
			continue
		}
		out.attrs = append(out.attrs, attr)
		out.ops[attr] = kept
	}
	return out
}

func (l numericList) toMap() map[string]map[Operator]float64 {
	m := make(map[string]map[Operator]float64, len(l.ops))
	for attr := range l.ops {
		m[attr] = l.get(attr)
	}
	return m
}

// MarshalJSON writes the list as an object whose keys follow insertion order.
func (l numericList) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, attr := range l.attrs {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeJSONMember(&buf, attr, l.ops[attr]); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object and keeps its key order.
func (l *numericList) UnmarshalJSON(data []byte) error {
	out := numericList{ops: map[string]map[Operator]float64{}}
	err := decodeOrderedObject(data, func(key string, dec *json.Decoder) error {
		var ops map[Operator]float64
		if err := dec.Decode(&ops); err != nil {
			return fmt.Errorf("operators of %s: %w", key, err)
		}
		for op := range ops {
			if !op.IsValid() {
				return fmt.Errorf("%w: %q on %s", ErrInvalidOperator, op, key)
			}
		}
		if _, ok := out.ops[key]; !ok {
			out.attrs = append(out.attrs, key)
		}
		if ops == nil {
			ops = map[Operator]float64{}
		}
		out.ops[key] = ops
		return nil
	})
	if err != nil {
		return err
	}
	*l = out
	return nil
}

func writeJSONMember(buf *bytes.Buffer, key string, value any) error {
	k, err := json.Marshal(key)
	if err != nil {
		return fmt.Errorf("marshal key %s: %w", key, err)
	}
	v, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	buf.Write(k)
	buf.WriteByte(':')
	buf.Write(v)
	return nil
}

// decodeOrderedObject walks a JSON object member by member. null decodes as empty.
func decodeOrderedObject(data []byte, member func(key string, dec *json.Decoder) error) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("read object: %w", err)
	}
	if tok == nil {
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("expected object, got %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("read key: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected string key, got %v", tok)
		}
		if err := member(key, dec); err != nil {
			return err
		}
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("close object: %w", err)
	}
	return nil
}

func cloneStrings(s []string) []string {
	out := make([]string, len(s))
	copy(out, s)
	return out
}
