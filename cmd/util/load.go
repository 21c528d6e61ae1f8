package util

import (
	"bytes"

	"github.com/ValentinKolb/memdoc/lib/collection"
	"github.com/ValentinKolb/memdoc/lib/database"
	"github.com/ValentinKolb/memdoc/lib/document"
	"github.com/ValentinKolb/memdoc/lib/serializer"
	"github.com/ValentinKolb/memdoc/lib/ttl"
	"github.com/cockroachdb/errors"
)

// Rejection is a document that could not be loaded
type Rejection struct {
	Index int // position in the input, starting at 1
	Err   error
}

// LoadReport summarises loading a data file into a collection
type LoadReport struct {
	Collection string
	Total      int
	Inserted   int
	Updated    int
	Rejected   []Rejection
}

// Load creates a database with a single collection from cfg and writes
// docs into it in input order. Documents violating a constraint are
// reported and skipped.
func Load(cfg collection.Config, docs []document.Document, upsert bool) (*database.Database, *collection.Collection, LoadReport, error) {
	db := database.New("memdoc", ttl.NoExpiry())
	c, err := db.Create(cfg)
	if err != nil {
		_ = db.Close()
		return nil, nil, LoadReport{}, err
	}

	report := LoadReport{Collection: cfg.Name, Total: len(docs)}
	for i, doc := range docs {
		if upsert {
			res, err := c.Upsert(doc)
			switch {
			case err != nil:
				report.Rejected = append(report.Rejected, Rejection{Index: i + 1, Err: err})
			case res.Op == collection.Updated:
				report.Updated++
			default:
				report.Inserted++
			}
			continue
		}
		if _, err := c.Insert(doc); err != nil {
			report.Rejected = append(report.Rejected, Rejection{Index: i + 1, Err: err})
			continue
		}
		report.Inserted++
	}
	plog.Debugf("loaded %d of %d documents into %q", report.Inserted+report.Updated, report.Total, cfg.Name)
	return db, c, report, nil
}

// DecodeDocuments parses data as a binary export or as JSON documents
func DecodeDocuments(data []byte) ([]document.Document, error) {
	if serializer.IsStream(data) {
		entries, err := serializer.ReadEntries(bytes.NewReader(data), serializer.NewBinarySerializer())
		if err != nil {
			return nil, errors.Wrap(err, "reading binary export")
		}
		docs := make([]document.Document, len(entries))
		for i, e := range entries {
			docs[i] = e.Document
		}
		return docs, nil
	}
	return document.ParseMany(data)
}

// LoadFile reads the data file configured in viper and loads it
func LoadFile(path string, upsert bool) (*database.Database, *collection.Collection, LoadReport, error) {
	cfg, err := GetCollectionConfig()
	if err != nil {
		return nil, nil, LoadReport{}, err
	}
	data, err := ReadInput(path)
	if err != nil {
		return nil, nil, LoadReport{}, err
	}
	docs, err := DecodeDocuments(data)
	if err != nil {
		return nil, nil, LoadReport{}, err
	}
	return Load(cfg, docs, upsert)
}
