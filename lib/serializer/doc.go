// Package serializer encodes collection records for export and import.
//
// ISerializer is implemented twice:
//
//   - binarySerializerImpl: a compact tagged format. A flags byte marks which
//     parts of the entry are present, values carry a kind byte. Smallest
//     output and fastest, used for dumps.
//
//   - jsonSerializerImpl: one JSON object per entry with the document fields
//     in their original order. Readable and diffable.
//
// WriteEntries and ReadEntries frame many entries into one stream (a magic
// header followed by length prefixed entries), with either serializer.
//
// Serializers are stateless and safe for concurrent use.
package serializer
