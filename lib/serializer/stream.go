package serializer

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"iter"

	"github.com/ValentinKolb/memdoc/lib/db"
	"github.com/cockroachdb/errors"
)

// Magic starts every entry stream written by WriteEntries
var Magic = []byte("MDOC\x01")

// maxFrame bounds the size of a single encoded entry in a stream
const maxFrame = 64 << 20

// WriteEntries writes a stream of length prefixed entries encoded with s
// and returns how many were written
func WriteEntries(w io.Writer, s ISerializer, entries iter.Seq[db.Entry]) (int, error) {
	bw := bufio.NewWriter(w)
	if _, err := bw.Write(Magic); err != nil {
		return 0, err
	}

	n := 0
	var prefix [4]byte
	for e := range entries {
		data, err := s.Serialize(e)
		if err != nil {
			return n, errors.Wrapf(err, "entry %q", e.Key)
		}
		binary.BigEndian.PutUint32(prefix[:], uint32(len(data)))
		if _, err := bw.Write(prefix[:]); err != nil {
			return n, err
		}
		if _, err := bw.Write(data); err != nil {
			return n, err
		}
		n++
	}
	return n, bw.Flush()
}

// IsStream reports whether data starts like a stream of WriteEntries
func IsStream(data []byte) bool {
	return bytes.HasPrefix(data, Magic)
}

// ReadEntries reads a stream written by WriteEntries with the same
// serializer
func ReadEntries(r io.Reader, s ISerializer) ([]db.Entry, error) {
	br := bufio.NewReader(r)
	magic := make([]byte, len(Magic))
	if _, err := io.ReadFull(br, magic); err != nil {
		return nil, errors.Wrap(err, "reading stream header")
	}
	if !bytes.Equal(magic, Magic) {
		return nil, errors.New("not a memdoc entry stream")
	}

	var entries []db.Entry
	var prefix [4]byte
	for {
		if _, err := io.ReadFull(br, prefix[:]); err != nil {
			if err == io.EOF {
				return entries, nil
			}
			return entries, errors.Wrapf(err, "entry %d length", len(entries))
		}
		size := binary.BigEndian.Uint32(prefix[:])
		if size > maxFrame {
			return entries, errors.Newf("entry %d: frame of %d bytes exceeds limit", len(entries), size)
		}
		data := make([]byte, size)
		if _, err := io.ReadFull(br, data); err != nil {
			return entries, errors.Wrapf(err, "entry %d", len(entries))
		}
		var e db.Entry
		if err := s.Deserialize(data, &e); err != nil {
			return entries, errors.Wrapf(err, "entry %d", len(entries))
		}
		entries = append(entries, e)
	}
}
