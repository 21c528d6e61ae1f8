package ttl

import (
	"strings"
	"time"

	"github.com/ValentinKolb/memdoc/lib/common"
)

// Policy is the expiry rule of a collection: either no expiry or a fixed
// duration after the write that set it. The zero Policy is unset, which
// behaves like NoExpiry but lets a database substitute its default.
type Policy struct {
	set bool
	ttl time.Duration
}

// NoExpiry returns the explicit "never expire" policy
func NoExpiry() Policy { return Policy{set: true} }

// Fixed returns a policy expiring records d after their write. A
// non-positive d is NoExpiry.
func Fixed(d time.Duration) Policy {
	if d <= 0 {
		return NoExpiry()
	}
	return Policy{set: true, ttl: d}
}

// IsSet reports whether the policy was chosen explicitly
func (p Policy) IsSet() bool { return p.set }

// Expires reports whether records written under p get an expiry instant
func (p Policy) Expires() bool { return p.ttl > 0 }

// Duration returns the ttl, 0 for NoExpiry
func (p Policy) Duration() time.Duration { return p.ttl }

func (p Policy) String() string {
	if !p.Expires() {
		return "none"
	}
	return p.ttl.String()
}

// ParsePolicy reads "none", "", "0" or a time.ParseDuration string
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "never", "0":
		return NoExpiry(), nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return Policy{}, common.NewErrorf(common.CodeInvalidConfig, "invalid ttl %q: %v", s, err)
	}
	if d < 0 {
		return Policy{}, common.NewErrorf(common.CodeInvalidConfig, "negative ttl %q", s)
	}
	return Fixed(d), nil
}

func (p Policy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Policy) UnmarshalText(b []byte) error {
	parsed, err := ParsePolicy(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
