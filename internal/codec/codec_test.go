package codec

import (
	"reflect"
	"testing"

	"github.com/docxology/pyonstore/internal/registry"
)

type testResource struct {
	Type_      string         `json:"type_"`
	Name       string         `json:"name"`
	Count      int64          `json:"count"`
	Extensions map[string]any `json:"-"`
}

func (r *testResource) TypeTag() string { return "TestResource" }

func newRegistry() *registry.Registry {
	reg := registry.New()
	reg.Register("TestResource", func() registry.Record {
		return &testResource{Type_: "TestResource"}
	})
	return reg
}

func TestCodecRoundTripPrimitives(t *testing.T) {
	c := New(newRegistry())
	cases := []any{
		nil,
		true,
		int64(42),
		3.5,
		"hello",
		[]byte("bytes"),
	}
	for _, in := range cases {
		b, err := c.Encode(in)
		if err != nil {
			t.Fatalf("Encode(%v): %v", in, err)
		}
		out, err := c.Decode(b)
		if err != nil {
			t.Fatalf("Decode(%v): %v", in, err)
		}
		if !reflect.DeepEqual(in, out) {
			t.Fatalf("round trip mismatch: got %#v, want %#v", out, in)
		}
	}
}

func TestCodecOrderedListPreservesOrder(t *testing.T) {
	c := New(newRegistry())
	in := []any{int64(1), int64(2), int64(3)}
	b, err := c.Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	out, err := c.Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	got, ok := out.([]any)
	if !ok {
		t.Fatalf("decoded value is %T, want []any", out)
	}
	if !reflect.DeepEqual(got, in) {
		t.Fatalf("order not preserved: got %#v, want %#v", got, in)
	}
}

func TestCodecSetRoundTripIgnoresOrder(t *testing.T) {
	c := New(newRegistry())
	in := NewSet(int64(1), int64(2))
	b, err := c.Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	out, err := c.Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	got, ok := out.(Set)
	if !ok {
		t.Fatalf("decoded value is %T, want Set", out)
	}
	if !got.Equal(in) {
		t.Fatalf("set mismatch: got %v, want %v", got.Items(), in.Items())
	}
}

func TestCodecComplexRoundTrip(t *testing.T) {
	c := New(newRegistry())
	in := complex(2.0, -3.5)
	b, err := c.Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	out, err := c.Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	got, ok := out.(complex128)
	if !ok {
		t.Fatalf("decoded value is %T, want complex128", out)
	}
	if got != in {
		t.Fatalf("got %v, want %v", got, in)
	}
}

func TestCodecSliceRangeRoundTrip(t *testing.T) {
	c := New(newRegistry())
	one := int64(1)
	ten := int64(10)
	in := SliceRange{Start: &one, Stop: &ten, Step: nil}
	b, err := c.Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	out, err := c.Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	got, ok := out.(SliceRange)
	if !ok {
		t.Fatalf("decoded value is %T, want SliceRange", out)
	}
	if *got.Start != *in.Start || *got.Stop != *in.Stop || got.Step != nil {
		t.Fatalf("got %+v, want %+v", got, in)
	}
}

func TestCodecNDArrayRoundTrip(t *testing.T) {
	c := New(newRegistry())
	in := NDArray{Dtype: "float64", Data: []any{[]any{1.0, 2.0}, []any{3.0, 4.0}}}
	b, err := c.Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	out, err := c.Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	got, ok := out.(NDArray)
	if !ok {
		t.Fatalf("decoded value is %T, want NDArray", out)
	}
	if got.Dtype != in.Dtype {
		t.Fatalf("dtype mismatch: got %q, want %q", got.Dtype, in.Dtype)
	}
	if !reflect.DeepEqual(got.Data, in.Data) {
		t.Fatalf("data mismatch: got %#v, want %#v", got.Data, in.Data)
	}
}

func TestCodecScalarRoundTrip(t *testing.T) {
	c := New(newRegistry())
	in := Scalar{Value: int64(7), Dtype: "int32"}
	b, err := c.Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	out, err := c.Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	got, ok := out.(Scalar)
	if !ok {
		t.Fatalf("decoded value is %T, want Scalar", out)
	}
	if got.Dtype != in.Dtype {
		t.Fatalf("dtype mismatch: got %q, want %q", got.Dtype, in.Dtype)
	}
}

func TestCodecTypedRecordRoundTrip(t *testing.T) {
	c := New(newRegistry())
	in := &testResource{
		Type_:      "TestResource",
		Name:       "widget",
		Count:      3,
		Extensions: map[string]any{"custom_field": "value"},
	}
	b, err := c.Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	out, err := c.Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	got, ok := out.(*testResource)
	if !ok {
		t.Fatalf("decoded value is %T, want *testResource", out)
	}
	if got.Name != in.Name || got.Count != in.Count {
		t.Fatalf("field mismatch: got %+v, want %+v", got, in)
	}
	if got.Extensions["custom_field"] != "value" {
		t.Fatalf("extensions not preserved: got %+v", got.Extensions)
	}
}

type testSample struct {
	Type_      string         `json:"type_"`
	XS         []any          `json:"xs"`
	A          Set            `json:"a"`
	Extensions map[string]any `json:"-"`
}

func (r *testSample) TypeTag() string { return "Sample" }

func TestCodecTypedRecordRoundTripsTaggedFields(t *testing.T) {
	reg := registry.New()
	reg.Register("Sample", func() registry.Record { return &testSample{Type_: "Sample"} })
	c := New(reg)

	in := &testSample{
		Type_: "Sample",
		XS:    []any{int64(1), int64(2), int64(3)},
		A:     NewSet(int64(1), int64(2)),
	}
	b, err := c.Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	out, err := c.Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	got, ok := out.(*testSample)
	if !ok {
		t.Fatalf("decoded value is %T, want *testSample", out)
	}
	if !reflect.DeepEqual(got.XS, in.XS) {
		t.Fatalf("xs mismatch: got %#v, want %#v", got.XS, in.XS)
	}
	if !got.A.Equal(in.A) {
		t.Fatalf("set field mismatch: got %v, want %v", got.A.Items(), in.A.Items())
	}
}

func TestCodecUnknownTypeTag(t *testing.T) {
	c := New(newRegistry())
	b, err := c.Encode(map[string]any{"type_": "NoSuchType", "x": int64(1)})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if _, err := c.Decode(b); err == nil {
		t.Fatalf("expected error decoding unknown type tag")
	}
}

func TestInterceptorRejectsOversizedMessage(t *testing.T) {
	c := New(newRegistry())
	ic := NewInterceptor(c, 8)
	_, err := ic.Encode("this string is definitely longer than eight bytes")
	if err == nil {
		t.Fatalf("expected MessageTooLargeError")
	}
	if _, ok := err.(*MessageTooLargeError); !ok {
		t.Fatalf("got %T, want *MessageTooLargeError", err)
	}
}

func TestInterceptorRejectsNullHeaderValue(t *testing.T) {
	c := New(newRegistry())
	ic := NewInterceptor(c, 0)
	err := ic.ValidateHeader(map[string]any{"trace_id": nil})
	if err == nil {
		t.Fatalf("expected BadHeaderError")
	}
	if _, ok := err.(*BadHeaderError); !ok {
		t.Fatalf("got %T, want *BadHeaderError", err)
	}
}

func TestInterceptorAcceptsNonNullHeaderValues(t *testing.T) {
	c := New(newRegistry())
	ic := NewInterceptor(c, 0)
	if err := ic.ValidateHeader(map[string]any{"trace_id": "abc", "retries": int64(2)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
