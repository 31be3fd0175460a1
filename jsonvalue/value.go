// Package jsonvalue provides a tagged-sum JSON value type with a
// borrowing builder, replacing the "ad-hoc JSON value tree constructed
// and mutated in place" pattern spec.md §9 flags. Request params are
// built by composing Values; each Value owns (or borrows, for the
// lifetime of one Marshal call) its constituent strings, and the whole
// tree serializes in one pass via encoding/json.Marshaler. There is no
// in-place mutation of a shared map anywhere in this package.
package jsonvalue

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Kind tags which JSON shape a Value holds.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
	KindRaw // a pre-encoded json.RawMessage, used for decoded-then-reencoded payloads
)

// Value is an immutable tagged-sum JSON value. Construct one with the
// Null/Bool/Number/String/Array/Object/Raw constructors; compose
// objects and arrays with Object.Set / Array.Append, both of which
// return a new Value rather than mutating a shared one in place.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
	arr  []Value
	obj  []member // preserves insertion order, unlike map[string]Value
	raw  json.RawMessage
}

type member struct {
	key string
	val Value
}

func Null() Value               { return Value{kind: KindNull} }
func Bool(b bool) Value         { return Value{kind: KindBool, b: b} }
func Number(n float64) Value    { return Value{kind: KindNumber, n: n} }
func Int(n int) Value           { return Value{kind: KindNumber, n: float64(n)} }
func String(s string) Value     { return Value{kind: KindString, s: s} }
func Raw(r json.RawMessage) Value { return Value{kind: KindRaw, raw: r} }

// Array builds an array value from the given elements.
func Array(elems ...Value) Value {
	cp := make([]Value, len(elems))
	copy(cp, elems)
	return Value{kind: KindArray, arr: cp}
}

// Object builds an object value with no members; chain Set calls to
// populate it.
func Object() Value { return Value{kind: KindObject} }

// Set returns a new object Value with key bound to val, replacing any
// existing binding for key. The receiver is left unmodified (the
// builder borrows v's fields but never writes through a shared
// pointer), matching spec.md §9's ownership requirement.
func (v Value) Set(key string, val Value) Value {
	next := make([]member, 0, len(v.obj)+1)
	replaced := false
	for _, m := range v.obj {
		if m.key == key {
			next = append(next, member{key: key, val: val})
			replaced = true
			continue
		}
		next = append(next, m)
	}
	if !replaced {
		next = append(next, member{key: key, val: val})
	}
	v.kind = KindObject
	v.obj = next
	return v
}

// SetIf calls Set only when cond is true, so optional fields can be
// built without a branch at every call site.
func (v Value) SetIf(cond bool, key string, val Value) Value {
	if !cond {
		return v
	}
	return v.Set(key, val)
}

// Append returns a new array Value with val appended.
func (v Value) Append(val Value) Value {
	next := make([]Value, len(v.arr)+1)
	copy(next, v.arr)
	next[len(v.arr)] = val
	v.kind = KindArray
	v.arr = next
	return v
}

func (v Value) Kind() Kind { return v.kind }

// Lookup returns the value bound to key in an object Value, or
// (Null(), false) if absent or v is not an object.
func (v Value) Lookup(key string) (Value, bool) {
	for _, m := range v.obj {
		if m.key == key {
			return m.val, true
		}
	}
	return Value{}, false
}

// Elements returns the elements of an array Value (nil if v is not an array).
func (v Value) Elements() []Value { return v.arr }

// Str returns the string payload of a string Value.
func (v Value) Str() string { return v.s }

// MarshalJSON implements json.Marshaler, the single serialization pass.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) encode(buf *bytes.Buffer) error {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		if v.b {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case KindNumber:
		data, err := json.Marshal(v.n)
		if err != nil {
			return err
		}
		buf.Write(data)
	case KindString:
		data, err := json.Marshal(v.s)
		if err != nil {
			return err
		}
		buf.Write(data)
	case KindRaw:
		if len(v.raw) == 0 {
			buf.WriteString("null")
		} else {
			buf.Write(v.raw)
		}
	case KindArray:
		buf.WriteByte('[')
		for i, e := range v.arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := e.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindObject:
		buf.WriteByte('{')
		for i, m := range v.obj {
			if i > 0 {
				buf.WriteByte(',')
			}
			keyData, err := json.Marshal(m.key)
			if err != nil {
				return err
			}
			buf.Write(keyData)
			buf.WriteByte(':')
			if err := m.val.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("jsonvalue: unknown kind %d", v.kind)
	}
	return nil
}

// Parse decodes raw JSON bytes into a Value tree.
func Parse(data []byte) (Value, error) {
	var decoded interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&decoded); err != nil {
		return Value{}, err
	}
	return fromGo(decoded), nil
}

func fromGo(x interface{}) Value {
	switch t := x.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(t)
	case json.Number:
		f, _ := t.Float64()
		return Number(f)
	case float64:
		return Number(t)
	case string:
		return String(t)
	case []interface{}:
		elems := make([]Value, len(t))
		for i, e := range t {
			elems[i] = fromGo(e)
		}
		return Array(elems...)
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		obj := Object()
		for _, k := range keys {
			obj = obj.Set(k, fromGo(t[k]))
		}
		return obj
	default:
		return Null()
	}
}
