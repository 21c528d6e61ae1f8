package collection

import (
	"regexp"
	"strings"

	"github.com/ValentinKolb/memdoc/lib/common"
	"github.com/ValentinKolb/memdoc/lib/db"
	"github.com/ValentinKolb/memdoc/lib/ttl"
)

// --------------------------------------------------------------------------
// Key Type and Key Generation
// --------------------------------------------------------------------------

// KeyType is the declared kind of a collection's primary key
type KeyType uint8

const (
	KeyTypeText KeyType = iota
	KeyTypeNumber
)

func (k KeyType) String() string {
	if k == KeyTypeNumber {
		return "number"
	}
	return "text"
}

// ParseKeyType reads "text" (or "string") and "number"
func ParseKeyType(s string) (KeyType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "string":
		return KeyTypeText, nil
	case "number", "int", "integer", "float":
		return KeyTypeNumber, nil
	}
	return 0, common.NewErrorf(common.CodeInvalidConfig, "unknown key type %q, must be text or number", s)
}

// KeyGen says how a missing primary key is filled in on insert
type KeyGen uint8

const (
	KeyGenNone      KeyGen = iota // the caller must supply the key
	KeyGenUUID                    // random uuid v4 text keys
	KeyGenIncrement               // 1, 2, 3, ... skipping keys already taken
)

func (g KeyGen) String() string {
	switch g {
	case KeyGenUUID:
		return "uuid"
	case KeyGenIncrement:
		return "increment"
	default:
		return "none"
	}
}

// ParseKeyGen reads "none", "uuid" and "increment"
func ParseKeyGen(s string) (KeyGen, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return KeyGenNone, nil
	case "uuid":
		return KeyGenUUID, nil
	case "increment", "auto", "autoincrement":
		return KeyGenIncrement, nil
	}
	return 0, common.NewErrorf(common.CodeInvalidConfig, "unknown key generator %q, must be none, uuid or increment", s)
}

// --------------------------------------------------------------------------
// Config
// --------------------------------------------------------------------------

var namePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// Config is the schema and setup of a collection
type Config struct {
	Name         string
	PrimaryKey   string
	KeyType      KeyType
	KeyGen       KeyGen
	UniqueFields []string

	// TTL applies to every record unless a write overrides it. The zero
	// policy means no expiry.
	TTL ttl.Policy

	// Clock drives expiry (nil = system clock)
	Clock ttl.Clock

	// Store creates the record store (nil = maple with default options)
	Store db.Factory
}

// Validate checks the configuration
func (c Config) Validate() error {
	if !namePattern.MatchString(c.Name) {
		return common.NewErrorf(common.CodeInvalidConfig, "invalid collection name %q, use letters, digits, '_', '.' and '-'", c.Name)
	}
	if strings.TrimSpace(c.PrimaryKey) == "" {
		return common.NewErrorf(common.CodeInvalidConfig, "collection %q: primary key field must not be empty", c.Name)
	}
	if c.KeyType > KeyTypeNumber {
		return common.NewErrorf(common.CodeInvalidConfig, "collection %q: unknown key type %d", c.Name, c.KeyType)
	}
	if c.KeyGen > KeyGenIncrement {
		return common.NewErrorf(common.CodeInvalidConfig, "collection %q: unknown key generator %d", c.Name, c.KeyGen)
	}
	if c.KeyGen == KeyGenUUID && c.KeyType != KeyTypeText {
		return common.NewErrorf(common.CodeInvalidConfig, "collection %q: uuid keys need key type text", c.Name)
	}

	seen := make(map[string]bool, len(c.UniqueFields))
	for _, f := range c.UniqueFields {
		if strings.TrimSpace(f) == "" {
			return common.NewErrorf(common.CodeInvalidConfig, "collection %q: empty unique field name", c.Name)
		}
		if f == c.PrimaryKey {
			return common.NewErrorf(common.CodeInvalidConfig, "collection %q: primary key %q is unique already, don't list it as unique field", c.Name, f)
		}
		if seen[f] {
			return common.NewErrorf(common.CodeInvalidConfig, "collection %q: unique field %q listed twice", c.Name, f)
		}
		seen[f] = true
	}
	return nil
}
