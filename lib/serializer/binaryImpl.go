package serializer

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/ValentinKolb/memdoc/lib/db"
	"github.com/ValentinKolb/memdoc/lib/document"
	"github.com/cockroachdb/errors"
)

// NewBinarySerializer creates a serializer using a compact tagged binary
// format
func NewBinarySerializer() ISerializer {
	return &binarySerializerImpl{}
}

type binarySerializerImpl struct {
}

// Bit flags to indicate which optional parts of an entry are present
const (
	hasKey      byte = 1 << 0
	hasExpireAt byte = 1 << 1
	hasDocument byte = 1 << 2
)

// maxDepth bounds the nesting of decoded mappings and sequences
const maxDepth = 64

var errShort = errors.New("data too short")

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.ISerializer)
// --------------------------------------------------------------------------

// Layout: flags byte, then the present parts in order
//
//	key      uint32 length + bytes
//	expireAt int64 unix nanoseconds
//	document uint32 field count + (uint32 name length + name + value)*
//
// A value is a kind byte followed by its payload: nothing for null, uint32
// length + bytes for text, IEEE 754 bits for numbers, one byte for bools, a
// document for mappings and uint32 count + values for sequences. All
// integers are big endian.
func (b binarySerializerImpl) Serialize(entry db.Entry) ([]byte, error) {
	buf := make([]byte, 1, 1+4+len(entry.Key)+8+entry.Document.SizeHint())

	var flags byte
	if entry.Key != "" {
		flags |= hasKey
		buf = appendString(buf, entry.Key)
	}
	if entry.HasExpiry() {
		flags |= hasExpireAt
		buf = binary.BigEndian.AppendUint64(buf, uint64(entry.ExpireAt.UnixNano()))
	}
	if entry.Document.Len() > 0 {
		flags |= hasDocument
		buf = appendDocument(buf, entry.Document)
	}

	// Set flags byte after knowing which parts are present
	buf[0] = flags
	return buf, nil
}

func (b binarySerializerImpl) Deserialize(data []byte, entry *db.Entry) error {
	if len(data) < 1 {
		return errors.Wrap(errShort, "entry header")
	}
	r := &reader{data: data, pos: 1}
	flags := data[0]
	*entry = db.Entry{}

	if flags&hasKey != 0 {
		key, err := r.readString()
		if err != nil {
			return errors.Wrap(err, "key")
		}
		entry.Key = key
	}

	if flags&hasExpireAt != 0 {
		n, err := r.readUint64()
		if err != nil {
			return errors.Wrap(err, "expire at")
		}
		entry.ExpireAt = time.Unix(0, int64(n)).UTC()
	}

	if flags&hasDocument != 0 {
		doc, err := r.readDocument(0)
		if err != nil {
			return errors.Wrap(err, "document")
		}
		entry.Document = doc
	}

	if r.pos != len(data) {
		return errors.Newf("%d trailing bytes after entry", len(data)-r.pos)
	}
	return nil
}

// --------------------------------------------------------------------------
// Encoding
// --------------------------------------------------------------------------

func appendString(buf []byte, s string) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

func appendDocument(buf []byte, doc document.Document) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(doc.Len()))
	for name, v := range doc.Fields() {
		buf = appendString(buf, name)
		buf = appendValue(buf, v)
	}
	return buf
}

func appendValue(buf []byte, v document.Value) []byte {
	buf = append(buf, byte(v.Kind()))
	switch v.Kind() {
	case document.KindText:
		s, _ := v.AsText()
		buf = appendString(buf, s)
	case document.KindNumber:
		f, _ := v.AsNumber()
		buf = binary.BigEndian.AppendUint64(buf, math.Float64bits(f))
	case document.KindBool:
		if b, _ := v.AsBool(); b {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	case document.KindMapping:
		d, _ := v.AsMapping()
		buf = appendDocument(buf, d)
	case document.KindSequence:
		elems, _ := v.AsSequence()
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(elems)))
		for _, e := range elems {
			buf = appendValue(buf, e)
		}
	}
	return buf
}

// --------------------------------------------------------------------------
// Decoding
// --------------------------------------------------------------------------

type reader struct {
	data []byte
	pos  int
}

func (r *reader) need(n int) error {
	if n < 0 || r.pos+n > len(r.data) {
		return errors.Wrapf(errShort, "need %d bytes at offset %d, have %d", n, r.pos, len(r.data)-r.pos)
	}
	return nil
}

func (r *reader) readByte() (byte, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) readUint32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	n := binary.BigEndian.Uint32(r.data[r.pos : r.pos+4])
	r.pos += 4
	return n, nil
}

func (r *reader) readUint64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	n := binary.BigEndian.Uint64(r.data[r.pos : r.pos+8])
	r.pos += 8
	return n, nil
}

func (r *reader) readString() (string, error) {
	n, err := r.readUint32()
	if err != nil {
		return "", err
	}
	if err := r.need(int(n)); err != nil {
		return "", err
	}
	s := string(r.data[r.pos : r.pos+int(n)])
	r.pos += int(n)
	return s, nil
}

// count reads an element count. Every element takes at least minSize
// bytes, so larger counts are rejected before allocating.
func (r *reader) count(minSize int) (int, error) {
	n, err := r.readUint32()
	if err != nil {
		return 0, err
	}
	if int(n) > (len(r.data)-r.pos)/minSize {
		return 0, errors.Wrapf(errShort, "count %d exceeds remaining data", n)
	}
	return int(n), nil
}

func (r *reader) readDocument(depth int) (document.Document, error) {
	if depth > maxDepth {
		return document.Document{}, errors.Newf("nesting deeper than %d", maxDepth)
	}
	n, err := r.count(5)
	if err != nil {
		return document.Document{}, err
	}
	fields := make([]document.Field, 0, n)
	for i := 0; i < n; i++ {
		name, err := r.readString()
		if err != nil {
			return document.Document{}, errors.Wrapf(err, "field %d name", i)
		}
		v, err := r.readValue(depth)
		if err != nil {
			return document.Document{}, errors.Wrapf(err, "field %q", name)
		}
		fields = append(fields, document.Field{Name: name, Value: v})
	}
	return document.New(fields...), nil
}

func (r *reader) readValue(depth int) (document.Value, error) {
	kind, err := r.readByte()
	if err != nil {
		return document.Value{}, err
	}

	switch document.Kind(kind) {
	case document.KindNull:
		return document.Null(), nil

	case document.KindText:
		s, err := r.readString()
		if err != nil {
			return document.Value{}, err
		}
		return document.Text(s), nil

	case document.KindNumber:
		bits, err := r.readUint64()
		if err != nil {
			return document.Value{}, err
		}
		f := math.Float64frombits(bits)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return document.Value{}, errors.Newf("invalid number %v", f)
		}
		return document.Number(f), nil

	case document.KindBool:
		b, err := r.readByte()
		if err != nil {
			return document.Value{}, err
		}
		return document.Bool(b != 0), nil

	case document.KindMapping:
		d, err := r.readDocument(depth + 1)
		if err != nil {
			return document.Value{}, err
		}
		return document.Mapping(d), nil

	case document.KindSequence:
		if depth+1 > maxDepth {
			return document.Value{}, errors.Newf("nesting deeper than %d", maxDepth)
		}
		n, err := r.count(1)
		if err != nil {
			return document.Value{}, err
		}
		elems := make([]document.Value, 0, n)
		for i := 0; i < n; i++ {
			e, err := r.readValue(depth + 1)
			if err != nil {
				return document.Value{}, errors.Wrapf(err, "element %d", i)
			}
			elems = append(elems, e)
		}
		return document.Sequence(elems...), nil
	}
	return document.Value{}, errors.Newf("unknown value kind %d", kind)
}
