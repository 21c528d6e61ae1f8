package serializer

import "github.com/ValentinKolb/memdoc/lib/db"

// ISerializer encodes single records for export. Key, Document and
// ExpireAt are encoded; Seq is private to a record store and is always zero
// after Deserialize.
type ISerializer interface {
	// Serialize encodes entry into a new byte slice
	Serialize(entry db.Entry) ([]byte, error)
	// Deserialize decodes b into entry, overwriting all of its fields
	Deserialize(b []byte, entry *db.Entry) error
}

// ByName returns the serializer for "json" or "binary"
func ByName(name string) (ISerializer, bool) {
	switch name {
	case "json":
		return NewJSONSerializer(), true
	case "binary", "bin":
		return NewBinarySerializer(), true
	}
	return nil, false
}
