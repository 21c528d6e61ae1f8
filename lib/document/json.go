package document

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/cockroachdb/errors"
)

// ErrNotAnObject is returned when a document was expected but the JSON
// input holds another kind of value
var ErrNotAnObject = errors.New("json value is not an object")

// --------------------------------------------------------------------------
// Encoding
// --------------------------------------------------------------------------

func (v Value) MarshalJSON() ([]byte, error) {
	return v.appendJSON(nil)
}

func (d Document) MarshalJSON() ([]byte, error) {
	return d.appendJSON(nil)
}

func (v Value) appendJSON(buf []byte) ([]byte, error) {
	switch v.kind {
	case KindNull:
		return append(buf, "null"...), nil
	case KindText:
		return appendString(buf, v.text)
	case KindNumber:
		if !validNumber(v.num) {
			return nil, errors.Newf("number %v has no json representation", v.num)
		}
		return append(buf, FormatNumber(v.num)...), nil
	case KindBool:
		if v.flag {
			return append(buf, "true"...), nil
		}
		return append(buf, "false"...), nil
	case KindMapping:
		return v.doc.appendJSON(buf)
	case KindSequence:
		var err error
		buf = append(buf, '[')
		for i, e := range v.seq {
			if i > 0 {
				buf = append(buf, ',')
			}
			if buf, err = e.appendJSON(buf); err != nil {
				return nil, err
			}
		}
		return append(buf, ']'), nil
	}
	return nil, errors.Newf("unknown kind %d", v.kind)
}

func (d Document) appendJSON(buf []byte) ([]byte, error) {
	var err error
	buf = append(buf, '{')
	for i, f := range d.fields {
		if i > 0 {
			buf = append(buf, ',')
		}
		if buf, err = appendString(buf, f.Name); err != nil {
			return nil, err
		}
		buf = append(buf, ':')
		if buf, err = f.Value.appendJSON(buf); err != nil {
			return nil, errors.Wrapf(err, "field %q", f.Name)
		}
	}
	return append(buf, '}'), nil
}

func appendString(buf []byte, s string) ([]byte, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return append(buf, b...), nil
}

// --------------------------------------------------------------------------
// Decoding
// --------------------------------------------------------------------------

func (v *Value) UnmarshalJSON(data []byte) error {
	dec := newDecoder(bytes.NewReader(data))
	val, err := decodeValue(dec)
	if err != nil {
		return err
	}
	if err := expectEOF(dec); err != nil {
		return err
	}
	*v = val
	return nil
}

func (d *Document) UnmarshalJSON(data []byte) error {
	doc, err := Parse(data)
	if err != nil {
		return err
	}
	*d = doc
	return nil
}

// Parse decodes a single JSON object, keeping the field order of the input
func Parse(data []byte) (Document, error) {
	dec := newDecoder(bytes.NewReader(data))
	doc, err := decodeDocument(dec)
	if err != nil {
		return Document{}, err
	}
	if err := expectEOF(dec); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// ParseMany decodes either a JSON array of objects or a stream of objects
// (newline delimited or simply concatenated)
func ParseMany(data []byte) ([]Document, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	dec := newDecoder(bytes.NewReader(trimmed))
	if trimmed[0] == '[' {
		val, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		if err := expectEOF(dec); err != nil {
			return nil, err
		}
		docs := make([]Document, 0, len(val.seq))
		for i, e := range val.seq {
			d, ok := e.AsMapping()
			if !ok {
				return nil, errors.Wrapf(ErrNotAnObject, "element %d is %s", i, e.kind)
			}
			docs = append(docs, d)
		}
		return docs, nil
	}

	var docs []Document
	for {
		d, err := decodeDocument(dec)
		if errors.Is(err, io.EOF) {
			return docs, nil
		}
		if err != nil {
			return nil, errors.Wrapf(err, "document %d", len(docs))
		}
		docs = append(docs, d)
	}
}

func newDecoder(r io.Reader) *json.Decoder {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	return dec
}

func expectEOF(dec *json.Decoder) error {
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("unexpected data after json value")
	}
	return nil
}

func decodeDocument(dec *json.Decoder) (Document, error) {
	val, err := decodeValue(dec)
	if err != nil {
		return Document{}, err
	}
	d, ok := val.AsMapping()
	if !ok {
		return Document{}, errors.Wrapf(ErrNotAnObject, "got %s", val.kind)
	}
	return d, nil
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}
	switch t := tok.(type) {
	case nil:
		return Null(), nil
	case string:
		return Text(t), nil
	case bool:
		return Bool(t), nil
	case json.Number:
		return From(t)
	case json.Delim:
		switch t {
		case '{':
			d := Document{}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Value{}, err
				}
				key, _ := keyTok.(string)
				fv, err := decodeValue(dec)
				if err != nil {
					return Value{}, errors.Wrapf(err, "field %q", key)
				}
				if i := d.indexOf(key); i >= 0 {
					d.fields[i].Value = fv
				} else {
					d.fields = append(d.fields, Field{Name: key, Value: fv})
				}
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return Mapping(d), nil
		case '[':
			seq := make([]Value, 0)
			for dec.More() {
				ev, err := decodeValue(dec)
				if err != nil {
					return Value{}, errors.Wrapf(err, "index %d", len(seq))
				}
				seq = append(seq, ev)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return Value{kind: KindSequence, seq: seq}, nil
		}
	}
	return Value{}, errors.Newf("unexpected json token %v", tok)
}
