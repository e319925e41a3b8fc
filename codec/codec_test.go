package codec

import (
	"bytes"
	"testing"

	"google.golang.org/protobuf/types/known/wrapperspb"
)

type item struct {
	ID   string `json:"id" msgpack:"id" cbor:"id"`
	Tags []string
}

func TestByNameRoundTrip(t *testing.T) {
	in := item{ID: "x", Tags: []string{"a", "b"}}
	for _, name := range []string{"", "json", "msgpack", "cbor", "cbor-deterministic"} {
		t.Run(name, func(t *testing.T) {
			c, err := ByName[item](name)
			if err != nil {
				t.Fatalf("ByName(%q): %v", name, err)
			}
			b, err := c.Encode(in)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			out, err := c.Decode(b)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if out.ID != in.ID || len(out.Tags) != 2 || out.Tags[1] != "b" {
				t.Fatalf("round trip mismatch: %+v", out)
			}
		})
	}
}

func TestByNameTypedCodecs(t *testing.T) {
	if _, err := ByName[string]("string"); err != nil {
		t.Fatalf("string codec for string values: %v", err)
	}
	if _, err := ByName[[]byte]("bytes"); err != nil {
		t.Fatalf("bytes codec for []byte values: %v", err)
	}
	if _, err := ByName[int]("string"); err == nil {
		t.Fatalf("string codec must reject non-string values")
	}
	if _, err := ByName[item]("gob"); err == nil {
		t.Fatalf("unknown codec must error")
	}
}

func TestLimitRejectsOversized(t *testing.T) {
	c := Limit[string]{Inner: String{}, MaxDecode: 3}
	if _, err := c.Decode([]byte("abcd")); err == nil {
		t.Fatalf("expected size error")
	}
	if v, err := c.Decode([]byte("abc")); err != nil || v != "abc" {
		t.Fatalf("Decode at limit: v=%q err=%v", v, err)
	}
}

func TestBytesDecodeCopies(t *testing.T) {
	src := []byte("hello")
	out, _ := Bytes{}.Decode(src)
	src[0] = 'j'
	if !bytes.Equal(out, []byte("hello")) {
		t.Fatalf("Decode must not alias its input, got %q", out)
	}
}

func TestProtobufRoundTrip(t *testing.T) {
	c := NewProtobuf(func() *wrapperspb.StringValue { return &wrapperspb.StringValue{} })
	b, err := c.Encode(wrapperspb.String("v1"))
	if err != nil {
		t.Fatal(err)
	}
	m, err := c.Decode(b)
	if err != nil {
		t.Fatal(err)
	}
	if m.GetValue() != "v1" {
		t.Fatalf("got %q", m.GetValue())
	}
}
