// Package detector recognizes social-media link-preview crawlers by user agent.
package detector

import (
	"strings"
	"sync/atomic"
)

// SignatureSet is a versioned list of case-insensitive user-agent substrings.
type SignatureSet struct {
	Version    string   `mapstructure:"version"`
	Signatures []string `mapstructure:"signatures"`
}

// normalized returns a copy with blank and duplicate signatures removed.
func (s SignatureSet) normalized() SignatureSet {
	out := SignatureSet{Version: s.Version}
	seen := make(map[string]struct{}, len(s.Signatures))
	for _, raw := range s.Signatures {
		value := strings.TrimSpace(raw)
		if value == "" {
			continue
		}
		key := strings.ToLower(value)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out.Signatures = append(out.Signatures, value)
	}
	return out
}

// compiled holds the lowercased needles next to their display names.
type compiled struct {
	version string
	names   []string
	needles []string
}

// Detector classifies user agents. The active set can be swapped at runtime
// while requests are being classified.
type Detector struct {
	active atomic.Pointer[compiled]
}

// New creates a detector for the given signature set.
func New(set SignatureSet) *Detector {
	d := &Detector{}
	d.Replace(set)
	return d
}

// Replace atomically installs a new signature set.
func (d *Detector) Replace(set SignatureSet) {
	set = set.normalized()
	c := &compiled{
		version: set.Version,
		names:   set.Signatures,
		needles: make([]string, len(set.Signatures)),
	}
	for i, sig := range set.Signatures {
		c.needles[i] = strings.ToLower(sig)
	}
	d.active.Store(c)
}

// Match returns the first signature contained in userAgent.
func (d *Detector) Match(userAgent string) (string, bool) {
	if userAgent == "" {
		return "", false
	}
	c := d.active.Load()
	if c == nil {
		return "", false
	}
	lower := strings.ToLower(userAgent)
	for i, needle := range c.needles {
		if strings.Contains(lower, needle) {
			return c.names[i], true
		}
	}
	return "", false
}

// IsCrawler reports whether userAgent belongs to a known link-preview crawler.
func (d *Detector) IsCrawler(userAgent string) bool {
	_, ok := d.Match(userAgent)
	return ok
}

// Version reports the version label of the active signature set.
func (d *Detector) Version() string {
	if c := d.active.Load(); c != nil {
		return c.version
	}
	return ""
}

// Signatures returns a copy of the active signature names.
func (d *Detector) Signatures() []string {
	c := d.active.Load()
	if c == nil {
		return nil
	}
	return append([]string(nil), c.names...)
}
