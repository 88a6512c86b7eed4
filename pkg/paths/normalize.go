// Package paths canonicalizes raw filesystem path strings into ordered,
// interned component lists suitable for high-cardinality tree storage.
//
// A raw path may carry a scheme and authority (hdfs://namenode:8020/a/b),
// a scheme alone (hdfs:///a/b) or nothing (/a/b, resolved against the
// configured default filesystem scheme). Paths under a non-HDFS scheme are
// out of scope for this subsystem and reported as not applicable, which is
// distinct from being malformed.
package paths

import (
	"fmt"
	"hash/fnv"
	"net/url"
	"strings"
)

// Scheme is the distinguished distributed-filesystem scheme this subsystem
// has authority over. Matching is case-insensitive.
const Scheme = "hdfs"

// CanonicalPath is an ordered, non-empty component list with scheme,
// authority and root stripped: /a/b/c becomes [a b c].
type CanonicalPath []string

// Equal reports component-wise sequence equality.
func (p CanonicalPath) Equal(other CanonicalPath) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// Hash returns a stable 64-bit hash consistent with Equal. Components are
// length-prefixed so boundaries stay unambiguous.
func (p CanonicalPath) Hash() uint64 {
	h := fnv.New64a()
	for _, component := range p {
		var length [8]byte
		for i, n := 7, len(component); i >= 0; i, n = i-1, n>>8 {
			length[i] = byte(n)
		}
		h.Write(length[:])
		h.Write([]byte(component))
	}
	return h.Sum64()
}

// String renders the path in /a/b/c form for logs.
func (p CanonicalPath) String() string {
	return "/" + strings.Join(p, "/")
}

// defaultInterner backs Normalize calls that do not bring their own table.
var defaultInterner = NewInterner()

// Normalize converts a raw path string into its canonical component list.
//
// Accepted forms:
//   - hdfs://host:port/path
//   - hdfs:///path
//   - /path (scheme taken from defaultScheme, the scheme of the configured
//     default filesystem)
//
// The second return value reports applicability: a syntactically valid path
// under any other scheme yields (nil, false, nil) so callers feeding paths
// from multiple storage back-ends can skip it without treating the whole
// batch as failed.
//
// Fails with *MalformedPathError when the input is blank, unparsable even
// after percent-encoding, has no resolvable scheme, or resolves to a bare
// root with nothing beneath it. A valid result always has at least one
// component.
//
// Components are interned through table; pass nil to use the shared
// process-wide table.
func Normalize(raw, defaultScheme string, table *Interner) (CanonicalPath, bool, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, false, &MalformedPathError{Path: raw, Reason: "path is empty"}
	}

	// Raw paths routinely contain characters that are not legal in a bare
	// URI (spaces in partition values, for one). Percent-encode before the
	// structural parse.
	u, err := url.Parse(escapePath(raw))
	if err != nil {
		return nil, false, &MalformedPathError{Path: raw, Reason: "unparsable path", Err: err}
	}

	scheme := u.Scheme
	if scheme == "" {
		// Scheme-less paths belong to the default filesystem.
		scheme = defaultScheme
		if scheme == "" {
			return nil, false, &MalformedPathError{
				Path:   raw,
				Reason: "no scheme and no default filesystem scheme to fall back to",
			}
		}
	}

	// Paths under other schemes are out of scope, not malformed.
	if !strings.EqualFold(scheme, Scheme) {
		return nil, false, nil
	}

	// url.Parse returns the decoded path, so components come back with the
	// original characters, not the percent-escapes.
	uriPath := u.Path
	if uriPath == "" {
		return nil, false, &MalformedPathError{Path: raw, Reason: "path part of URI is empty"}
	}
	if !strings.HasPrefix(uriPath, "/") {
		return nil, false, &MalformedPathError{Path: raw, Reason: "path is not absolute"}
	}
	rest := strings.TrimLeft(uriPath, "/")
	if rest == "" {
		// The root alone is not an authorizable path.
		return nil, false, &MalformedPathError{Path: raw, Reason: "path has no components below the root"}
	}

	// One or more consecutive separators act as a single separator.
	components := strings.FieldsFunc(rest, func(r rune) bool { return r == '/' })
	if table == nil {
		table = defaultInterner
	}
	path := make(CanonicalPath, len(components))
	for i, component := range components {
		path[i] = table.Intern(component)
	}
	return path, true, nil
}

// escapePath percent-encodes every byte that cannot appear literally in the
// path or authority of a URI, leaving URI structure characters alone so the
// scheme://authority/path shape survives. Encoding '?' and '#' keeps the
// whole input in the path: raw paths have no query or fragment.
func escapePath(raw string) string {
	const safe = "-_.~!$&'()*+,;=:@/"

	needsEscape := false
	for i := 0; i < len(raw); i++ {
		if !isSafePathByte(raw[i], safe) {
			needsEscape = true
			break
		}
	}
	if !needsEscape {
		return raw
	}

	var b strings.Builder
	b.Grow(len(raw) + 8)
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if isSafePathByte(c, safe) {
			b.WriteByte(c)
		} else {
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

func isSafePathByte(c byte, safe string) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	default:
		return strings.IndexByte(safe, c) >= 0
	}
}
