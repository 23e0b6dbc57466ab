// Package codec implements the wire codec (C2): a MessagePack-based binary
// format that additionally round-trips the handful of Go/Python value kinds
// MessagePack has no native representation for (sets, n-d arrays, complex
// numbers, dtype descriptors, slice ranges, dtype-carrying scalars) using the
// reserved-key tag protocol described in SPEC_FULL.md §4.1, plus typed
// records constructed through an internal/registry.Registry.
//
// The codec does not implement msgpack.CustomEncoder/CustomDecoder on each
// wrapped type. Instead Encode first lowers a Go value tree into a plain
// MessagePack-marshalable tree (nil/bool/int64/uint64/float64/string/[]byte/
// []any/map[string]any), tagging non-native kinds along the way, and hands
// that tree to msgpack.Marshal. Decode runs the inverse: unmarshal into a
// generic tree, then lift tagged maps back into the wrapped Go types.
package codec

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/docxology/pyonstore/internal/registry"
)

// Codec encodes and decodes values per the wire protocol, resolving typed
// records through reg.
type Codec struct {
	reg *registry.Registry
}

// New returns a Codec that constructs typed records through reg.
func New(reg *registry.Registry) *Codec {
	return &Codec{reg: reg}
}

// Encode serializes v to the wire format.
func (c *Codec) Encode(v any) ([]byte, error) {
	wire, err := c.encodeValue(v)
	if err != nil {
		return nil, err
	}
	return msgpack.Marshal(wire)
}

// Decode deserializes the wire format back into Go values: primitives,
// []any, map[string]any, or one of the wrapped types in tags.go, or a
// registry.Record for a typed record.
func (c *Codec) Decode(data []byte) (any, error) {
	var raw any
	if err := msgpack.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return c.decodeValue(raw)
}

// --- encode ---

func (c *Codec) encodeValue(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case bool, string, []byte:
		return x, nil
	case int:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case uint:
		return uint64(x), nil
	case uint8:
		return uint64(x), nil
	case uint16:
		return uint64(x), nil
	case uint32:
		return uint64(x), nil
	case uint64:
		return x, nil
	case float32:
		return float64(x), nil
	case float64:
		return x, nil
	case complex64:
		return c.encodeComplex(complex128(x)), nil
	case complex128:
		return c.encodeComplex(x), nil
	case Set:
		items := make([]any, x.Len())
		for i, it := range x.Items() {
			ev, err := c.encodeValue(it)
			if err != nil {
				return nil, err
			}
			items[i] = ev
		}
		return map[string]any{tagKey: tagSet, payloadKey: items}, nil
	case List:
		items := make([]any, len(x))
		for i, it := range x {
			ev, err := c.encodeValue(it)
			if err != nil {
				return nil, err
			}
			items[i] = ev
		}
		return map[string]any{tagKey: tagList, payloadKey: items}, nil
	case SliceRange:
		return map[string]any{
			tagKey: tagSlice,
			payloadKey: []any{
				optionalInt64(x.Start),
				optionalInt64(x.Stop),
				optionalInt64(x.Step),
			},
		}, nil
	case NDArray:
		data, err := c.encodeValue(x.Data)
		if err != nil {
			return nil, err
		}
		return map[string]any{tagKey: tagArray, payloadKey: data, dtypeKey: x.Dtype}, nil
	case Dtype:
		return map[string]any{tagKey: tagDtype, payloadKey: string(x)}, nil
	case Scalar:
		return map[string]any{tagKey: tagScalar, payloadKey: x.Value, dtypeKey: x.Dtype}, nil
	case registry.Record:
		return c.encodeRecord(x)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		n := rv.Len()
		out := make([]any, n)
		for i := 0; i < n; i++ {
			ev, err := c.encodeValue(rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			out[i] = ev
		}
		return out, nil
	case reflect.Map:
		out := make(map[string]any, rv.Len())
		keys := rv.MapKeys()
		for _, k := range keys {
			ks := fmt.Sprintf("%v", k.Interface())
			ev, err := c.encodeValue(rv.MapIndex(k).Interface())
			if err != nil {
				return nil, err
			}
			out[ks] = ev
		}
		return out, nil
	case reflect.Ptr:
		if rv.IsNil() {
			return nil, nil
		}
		return c.encodeValue(rv.Elem().Interface())
	}

	return nil, &UnknownTypeError{Value: v}
}

func (c *Codec) encodeComplex(x complex128) any {
	return map[string]any{tagKey: tagComplex, payloadKey: []any{real(x), imag(x)}}
}

func optionalInt64(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

// EncodeRecord flattens rec into the same plain map Encode would wrap for
// the wire, without going through msgpack.Marshal/Decode. Callers that need
// a document body (e.g. internal/facade, writing a record to the
// datastore) must use this rather than Encode+Decode: Decode treats any
// map carrying "type_" as a typed record and reconstructs it through the
// registry, so round-tripping through it never yields a plain map.
func (c *Codec) EncodeRecord(rec registry.Record) (map[string]any, error) {
	wire, err := c.encodeRecord(rec)
	if err != nil {
		return nil, err
	}
	m, ok := wire.(map[string]any)
	if !ok {
		return nil, &BadPayloadError{Tag: "type_", Reason: "record did not flatten to an object"}
	}
	return m, nil
}

// encodeRecord flattens a registry.Record into a plain map carrying
// "type_" plus every exported field (by json tag, falling back to field
// name), with an Extensions field (if present) merged in at the top level.
func (c *Codec) encodeRecord(rec registry.Record) (any, error) {
	out := map[string]any{"type_": rec.TypeTag()}
	rv := reflect.ValueOf(rec)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return out, nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return out, nil
	}
	if err := c.flattenStruct(rv, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Codec) flattenStruct(rv reflect.Value, out map[string]any) error {
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		fv := rv.Field(i)
		if sf.Anonymous && fv.Kind() == reflect.Struct {
			if err := c.flattenStruct(fv, out); err != nil {
				return err
			}
			continue
		}
		if !sf.IsExported() {
			continue
		}
		name, skip := jsonFieldName(sf)
		if skip {
			continue
		}
		if name == "Extensions" || jsonTagName(sf) == "-" {
			if m, ok := fv.Interface().(map[string]any); ok {
				for k, v := range m {
					ev, err := c.encodeValue(v)
					if err != nil {
						return err
					}
					out[k] = ev
				}
			}
			continue
		}
		if name == "type_" || name == "Type_" {
			continue
		}
		ev, err := c.encodeValue(fv.Interface())
		if err != nil {
			return err
		}
		out[name] = ev
	}
	return nil
}

// --- decode ---

func (c *Codec) decodeValue(raw any) (any, error) {
	switch x := raw.(type) {
	case nil, bool, string, []byte, int64, uint64, float64:
		return x, nil
	case int8, int16, int32, int:
		return x, nil
	case []any:
		out := make([]any, len(x))
		for i, v := range x {
			dv, err := c.decodeValue(v)
			if err != nil {
				return nil, err
			}
			out[i] = dv
		}
		return out, nil
	case map[string]any:
		return c.decodeMap(x)
	default:
		return raw, nil
	}
}

func (c *Codec) decodeMap(m map[string]any) (any, error) {
	if tag, ok := m["type_"]; ok {
		tagStr, ok := tag.(string)
		if !ok {
			return nil, &BadPayloadError{Tag: "type_", Reason: "type_ is not a string"}
		}
		return c.decodeRecord(tagStr, m)
	}
	if tagv, ok := m[tagKey]; ok {
		tagStr, ok := tagv.(string)
		if !ok {
			return nil, &BadPayloadError{Tag: tagKey, Reason: "tag is not a string"}
		}
		return c.decodeTagged(tagStr, m)
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		dv, err := c.decodeValue(v)
		if err != nil {
			return nil, err
		}
		out[k] = dv
	}
	return out, nil
}

func (c *Codec) decodeRecord(tag string, m map[string]any) (any, error) {
	rec, err := c.reg.Construct(tag)
	if err != nil {
		return nil, err
	}
	rv := reflect.ValueOf(rec)
	for rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return rec, nil
	}
	remaining := make(map[string]any, len(m))
	for k, v := range m {
		if k == "type_" {
			continue
		}
		remaining[k] = v
	}
	if err := c.fillStruct(rv, remaining); err != nil {
		return nil, err
	}
	return rec, nil
}

// fillStruct assigns remaining into rv's fields by json tag/name, routing
// anything unmatched into an "Extensions" field if one exists.
func (c *Codec) fillStruct(rv reflect.Value, remaining map[string]any) error {
	rt := rv.Type()
	var extField reflect.Value
	matched := map[string]bool{}

	var visitErr error
	var visit func(v reflect.Value)
	visit = func(v reflect.Value) {
		if visitErr != nil {
			return
		}
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			sf := t.Field(i)
			fv := v.Field(i)
			if sf.Anonymous && fv.Kind() == reflect.Struct {
				visit(fv)
				continue
			}
			if !sf.IsExported() {
				continue
			}
			if sf.Name == "Extensions" && fv.Kind() == reflect.Map {
				extField = fv
				continue
			}
			name, skip := jsonFieldName(sf)
			if skip {
				continue
			}
			raw, ok := remaining[name]
			if !ok {
				continue
			}
			matched[name] = true
			dv, err := c.decodeValue(raw)
			if err != nil {
				visitErr = err
				return
			}
			if err := assignValue(fv, dv); err != nil {
				visitErr = err
				return
			}
		}
	}
	visit(rv)
	_ = rt
	if visitErr != nil {
		return visitErr
	}

	if extField.IsValid() {
		ext := map[string]any{}
		for k, v := range remaining {
			if matched[k] {
				continue
			}
			dv, err := c.decodeValue(v)
			if err != nil {
				return err
			}
			ext[k] = dv
		}
		if len(ext) > 0 {
			if extField.IsNil() {
				extField.Set(reflect.MakeMap(extField.Type()))
			}
			keys := make([]string, 0, len(ext))
			for k := range ext {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				extField.SetMapIndex(reflect.ValueOf(k), reflect.ValueOf(ext[k]))
			}
		}
	}
	return nil
}

func assignValue(fv reflect.Value, raw any) error {
	if !fv.CanSet() {
		return fmt.Errorf("codec: field not settable")
	}
	rv := reflect.ValueOf(raw)
	if !rv.IsValid() {
		return nil
	}
	if rv.Type().AssignableTo(fv.Type()) {
		fv.Set(rv)
		return nil
	}
	if rv.Type().ConvertibleTo(fv.Type()) {
		fv.Set(rv.Convert(fv.Type()))
		return nil
	}
	return fmt.Errorf("codec: cannot assign %s to field of type %s", rv.Type(), fv.Type())
}

func (c *Codec) decodeTagged(tag string, m map[string]any) (any, error) {
	payload := m[payloadKey]
	switch tag {
	case tagList:
		items, ok := payload.([]any)
		if !ok {
			return nil, &BadPayloadError{Tag: tag, Reason: "payload is not a list"}
		}
		out := make(List, len(items))
		for i, it := range items {
			dv, err := c.decodeValue(it)
			if err != nil {
				return nil, err
			}
			out[i] = dv
		}
		return out, nil
	case tagSet:
		items, ok := payload.([]any)
		if !ok {
			return nil, &BadPayloadError{Tag: tag, Reason: "payload is not a list"}
		}
		decoded := make([]any, len(items))
		for i, it := range items {
			dv, err := c.decodeValue(it)
			if err != nil {
				return nil, err
			}
			decoded[i] = dv
		}
		return NewSet(decoded...), nil
	case tagSlice:
		items, ok := payload.([]any)
		if !ok || len(items) != 3 {
			return nil, &BadPayloadError{Tag: tag, Reason: "payload is not a 3-tuple"}
		}
		start, err := toOptionalInt64(items[0])
		if err != nil {
			return nil, &BadPayloadError{Tag: tag, Reason: err.Error()}
		}
		stop, err := toOptionalInt64(items[1])
		if err != nil {
			return nil, &BadPayloadError{Tag: tag, Reason: err.Error()}
		}
		step, err := toOptionalInt64(items[2])
		if err != nil {
			return nil, &BadPayloadError{Tag: tag, Reason: err.Error()}
		}
		return SliceRange{Start: start, Stop: stop, Step: step}, nil
	case tagArray:
		dv, err := c.decodeValue(payload)
		if err != nil {
			return nil, err
		}
		dtype, _ := m[dtypeKey].(string)
		return NDArray{Dtype: dtype, Data: dv}, nil
	case tagDtype:
		s, ok := payload.(string)
		if !ok {
			return nil, &BadPayloadError{Tag: tag, Reason: "payload is not a string"}
		}
		return Dtype(s), nil
	case tagScalar:
		dv, err := c.decodeValue(payload)
		if err != nil {
			return nil, err
		}
		dtype, _ := m[dtypeKey].(string)
		return Scalar{Value: dv, Dtype: dtype}, nil
	case tagComplex:
		items, ok := payload.([]any)
		if !ok || len(items) != 2 {
			return nil, &BadPayloadError{Tag: tag, Reason: "payload is not a 2-tuple"}
		}
		re, err := toFloat64(items[0])
		if err != nil {
			return nil, &BadPayloadError{Tag: tag, Reason: err.Error()}
		}
		im, err := toFloat64(items[1])
		if err != nil {
			return nil, &BadPayloadError{Tag: tag, Reason: err.Error()}
		}
		return complex(re, im), nil
	default:
		return nil, &BadPayloadError{Tag: tag, Reason: "unrecognized tag"}
	}
}

func toOptionalInt64(v any) (*int64, error) {
	if v == nil {
		return nil, nil
	}
	n, err := toInt64(v)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case uint64:
		return int64(n), nil
	case float64:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", v)
	}
}

func toFloat64(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("expected number, got %T", v)
	}
}

// jsonFieldName returns the wire name for sf per its json tag, or its Go
// name if untagged. skip is true for "-"-tagged fields (handled by caller
// for Extensions, otherwise genuinely omitted).
func jsonFieldName(sf reflect.StructField) (name string, skip bool) {
	tag := sf.Tag.Get("json")
	if tag == "" {
		return sf.Name, false
	}
	if tag == "-" {
		return sf.Name, sf.Name != "Extensions"
	}
	for i := 0; i < len(tag); i++ {
		if tag[i] == ',' {
			return tag[:i], false
		}
	}
	return tag, false
}

func jsonTagName(sf reflect.StructField) string {
	return sf.Tag.Get("json")
}
