// Package catalog holds the immutable set of installed packages a run
// analyzes, keyed by identity.
package catalog

import (
	"fmt"
	"slices"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/zerr"
)

// Entry describes one installed package.
type Entry struct {
	Identity  string
	Name      string
	SizeBytes int64
}

// Catalog is safe for concurrent reads once loaded.
type Catalog struct {
	entries    map[string]Entry
	byName     map[string][]string
	identities []string
}

// Load builds a Catalog from entries.
func Load(entries []Entry) (*Catalog, error) {
	c := &Catalog{
		entries: make(map[string]Entry, len(entries)),
		byName:  make(map[string][]string),
	}

	for _, e := range entries {
		if err := ValidateIdentity(e.Identity); err != nil {
			return nil, err
		}
		if e.Name == "" {
			return nil, zerr.With(zerr.Wrap(ErrInvalidIdentity, fmt.Sprintf("package %s has an empty name", e.Identity)), "identity", e.Identity)
		}
		if e.SizeBytes < 0 {
			return nil, zerr.With(zerr.With(zerr.Wrap(ErrInvalidIdentity, fmt.Sprintf("package %s has negative size %d", e.Identity, e.SizeBytes)), "identity", e.Identity), "size", e.SizeBytes)
		}
		if _, ok := c.entries[e.Identity]; ok {
			return nil, zerr.With(zerr.Wrap(ErrDuplicateIdentity, fmt.Sprintf("package %s registered twice", e.Identity)), "identity", e.Identity)
		}

		c.entries[e.Identity] = e
		c.byName[e.Name] = append(c.byName[e.Name], e.Identity)
		c.identities = append(c.identities, e.Identity)
	}

	slices.Sort(c.identities)
	for _, ids := range c.byName {
		slices.Sort(ids)
	}

	return c, nil
}

// ValidateIdentity rejects empty identities and identities containing ':'
// or whitespace.
func ValidateIdentity(identity string) error {
	if identity == "" {
		return zerr.Wrap(ErrInvalidIdentity, "identity is empty")
	}
	if strings.ContainsRune(identity, ':') || strings.ContainsFunc(identity, unicode.IsSpace) {
		return zerr.With(zerr.Wrap(ErrInvalidIdentity, fmt.Sprintf("identity %q contains ':' or whitespace", identity)), "identity", identity)
	}
	return nil
}

// ResolveName returns the package name for identity.
func (c *Catalog) ResolveName(identity string) (string, error) {
	e, ok := c.entries[identity]
	if !ok {
		return "", unknown(identity)
	}
	return e.Name, nil
}

// SizeOf returns the installed size of identity in bytes.
func (c *Catalog) SizeOf(identity string) (int64, error) {
	e, ok := c.entries[identity]
	if !ok {
		return 0, unknown(identity)
	}
	return e.SizeBytes, nil
}

// IdentityOf maps a package name back to its single installed identity.
func (c *Catalog) IdentityOf(name string) (string, error) {
	ids := c.byName[name]
	switch len(ids) {
	case 0:
		return "", zerr.With(zerr.Wrap(ErrUnknownIdentity, fmt.Sprintf("no installed package is named %s", name)), "name", name)
	case 1:
		return ids[0], nil
	default:
		err := zerr.With(zerr.Wrap(ErrMultipleMatches, fmt.Sprintf("%s is installed as %s", name, strings.Join(ids, ", "))), "name", name)
		return "", zerr.With(err, "identities", strings.Join(ids, " "))
	}
}

// Lookup returns the entry for identity.
func (c *Catalog) Lookup(identity string) (Entry, bool) {
	e, ok := c.entries[identity]
	return e, ok
}

// Identities returns all identities in lexicographic order.
func (c *Catalog) Identities() []string {
	return slices.Clone(c.identities)
}

// Len returns the number of packages.
func (c *Catalog) Len() int { return len(c.identities) }

// Has reports whether identity is installed.
func (c *Catalog) Has(identity string) bool {
	_, ok := c.entries[identity]
	return ok
}

// Fingerprint digests the sorted identity set. Two catalogs with the same
// installed packages have the same fingerprint.
func (c *Catalog) Fingerprint() uint64 {
	h := xxhash.New()
	for _, id := range c.identities {
		_, _ = h.WriteString(id)
		_, _ = h.Write([]byte{'\n'})
	}
	return h.Sum64()
}

func unknown(identity string) error {
	return zerr.With(zerr.Wrap(ErrUnknownIdentity, identity), "identity", identity)
}
