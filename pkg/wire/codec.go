// Package wire holds the transport and storage document forms of the
// domain types and the codecs that carry them: JSON and CBOR.
package wire

import (
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"reflect"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

// Content types.
const (
	ContentTypeJSON = "application/json"
	ContentTypeCBOR = "application/cbor"
)

// Codec marshals documents in one wire format.
type Codec interface {
	ContentType() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	NewEncoder(w io.Writer) Encoder
}

// Encoder streams documents to a writer.
type Encoder interface {
	Encode(v any) error
}

// JSON is the JSON codec. Numbers decode as json.Number so that integers
// beyond 2^53 survive.
type JSON struct{}

func (JSON) ContentType() string { return ContentTypeJSON }

func (JSON) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (JSON) Unmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

func (JSON) NewEncoder(w io.Writer) Encoder { return json.NewEncoder(w) }

// CBOR is the CBOR codec. Times are carried as tagged RFC 3339 strings,
// maps decode with string keys and integers decode as int64.
type CBOR struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

// NewCBOR builds the CBOR codec.
func NewCBOR() (*CBOR, error) {
	em, err := cbor.EncOptions{
		Time:    cbor.TimeRFC3339Nano,
		TimeTag: cbor.EncTagRequired,
		Sort:    cbor.SortCanonical,
	}.EncMode()
	if err != nil {
		return nil, err
	}
	dm, err := cbor.DecOptions{
		TimeTagToAny:   cbor.TimeTagToTime,
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
		IntDec:         cbor.IntDecConvertSigned,
	}.DecMode()
	if err != nil {
		return nil, err
	}
	return &CBOR{enc: em, dec: dm}, nil
}

func (c *CBOR) ContentType() string { return ContentTypeCBOR }

func (c *CBOR) Marshal(v any) ([]byte, error) { return c.enc.Marshal(v) }

func (c *CBOR) Unmarshal(data []byte, v any) error { return c.dec.Unmarshal(data, v) }

func (c *CBOR) NewEncoder(w io.Writer) Encoder { return c.enc.NewEncoder(w) }

// Registry picks codecs by content type.
type Registry struct {
	codecs   map[string]Codec
	fallback Codec
}

// NewRegistry builds a registry of the JSON and CBOR codecs. defaultType
// names the codec used when a request does not ask for one.
func NewRegistry(defaultType string) (*Registry, error) {
	cb, err := NewCBOR()
	if err != nil {
		return nil, err
	}
	r := &Registry{codecs: map[string]Codec{
		ContentTypeJSON: JSON{},
		ContentTypeCBOR: cb,
	}}
	r.fallback = r.codecs[ContentTypeJSON]
	if c, ok := r.codecs[defaultType]; ok {
		r.fallback = c
	}
	return r, nil
}

// ForContentType returns the codec for a Content-Type header value.
// ok is false for unsupported types; an empty header selects the default.
func (r *Registry) ForContentType(header string) (Codec, bool) {
	if strings.TrimSpace(header) == "" {
		return r.fallback, true
	}
	mt, _, err := mime.ParseMediaType(header)
	if err != nil {
		return nil, false
	}
	c, ok := r.codecs[mt]
	return c, ok
}

// Negotiate returns the first supported codec named by an Accept header,
// or the default.
func (r *Registry) Negotiate(accept string) Codec {
	for _, part := range strings.Split(accept, ",") {
		mt, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		if c, ok := r.codecs[mt]; ok {
			return c
		}
	}
	return r.fallback
}

// Default returns the default codec.
func (r *Registry) Default() Codec {
	return r.fallback
}
