package serializer

import (
	"encoding/json"
	"time"

	"github.com/ValentinKolb/memdoc/lib/db"
	"github.com/ValentinKolb/memdoc/lib/document"
	"github.com/cockroachdb/errors"
)

// NewJSONSerializer creates a serializer writing one JSON object per entry
func NewJSONSerializer() ISerializer {
	return &jsonSerializerImpl{}
}

type jsonSerializerImpl struct {
}

type jsonEntry struct {
	Key      string            `json:"key"`
	ExpireAt *time.Time        `json:"expire_at,omitempty"`
	Document document.Document `json:"document"`
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.ISerializer)
// --------------------------------------------------------------------------

func (j jsonSerializerImpl) Serialize(entry db.Entry) ([]byte, error) {
	out := jsonEntry{Key: entry.Key, Document: entry.Document}
	if entry.HasExpiry() {
		at := entry.ExpireAt.UTC()
		out.ExpireAt = &at
	}
	return json.Marshal(out)
}

func (j jsonSerializerImpl) Deserialize(b []byte, entry *db.Entry) error {
	var in jsonEntry
	if err := json.Unmarshal(b, &in); err != nil {
		return errors.Wrap(err, "decoding json entry")
	}
	*entry = db.Entry{Key: in.Key, Document: in.Document}
	if in.ExpireAt != nil {
		entry.ExpireAt = in.ExpireAt.UTC()
	}
	return nil
}
