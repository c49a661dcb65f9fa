package domain

import "strings"

const (
	// keyToken prefixes the identifier embedded in event titles.
	keyToken = "ID:"

	// NoIDPrefix marks synthesized keys for records without a native id.
	NoIDPrefix = "NO_ID:"

	// DefaultLabel substitutes for an empty record description.
	DefaultLabel = "(no description)"

	// isoMillis is the start-time layout used inside composite keys.
	isoMillis = "2006-01-02T15:04:05.000Z"
)

// RecordKey returns the identifier correlating a record with its calendar
// event: the native id when present, otherwise a composite fallback key.
func RecordKey(r TimeRecord) string {
	if r.ID != "" {
		return r.ID
	}
	return CompositeKey(r)
}

// CompositeKey synthesizes an identifier from the start instant and the
// description for records the remote API returned without an id.
func CompositeKey(r TimeRecord) string {
	desc := r.Description
	if desc == "" {
		desc = DefaultLabel
	}
	return NoIDPrefix + r.Start.UTC().Format(isoMillis) + "_" + desc
}

// EventTitle builds the canonical title for a record: the description (or
// default label), the project name when known, and the trailing key token.
func EventTitle(r TimeRecord, projectName string) string {
	desc := r.Description
	if desc == "" {
		desc = DefaultLabel
	}
	parts := []string{desc}
	if projectName != "" {
		parts = append(parts, projectName)
	}
	return strings.Join(parts, " : ") + " " + keyToken + RecordKey(r)
}

// KeyQuery returns the literal text-search term for a key.
func KeyQuery(key string) string {
	return keyToken + key
}

// ExtractKey returns the identifier carried by a properly terminated title,
// i.e. one ending in "ID:<key>" with nothing after it. The " ID:" needle
// never matches inside a NoIDPrefix occurrence because that one is not
// preceded by a space.
func ExtractKey(title string) (string, bool) {
	i := strings.LastIndex(title, " "+keyToken)
	if i < 0 {
		return "", false
	}
	key := title[i+1+len(keyToken):]
	if key == "" || strings.TrimSpace(key) != key {
		return "", false
	}
	return key, true
}

// HasTrailingKey reports whether title ends with exactly "ID:<key>". The
// end-of-string anchor guards against key being a prefix of a longer key.
func HasTrailingKey(title, key string) bool {
	suffix := keyToken + key
	if !strings.HasSuffix(title, suffix) {
		return false
	}
	rest := title[:len(title)-len(suffix)]
	return rest == "" || strings.HasSuffix(rest, " ")
}

// ContainsKeyToken reports whether title carries "ID:<key>" as a whole
// token anywhere, including non-terminal positions. Used to recognize
// legacy events whose suffix was never properly terminated.
func ContainsKeyToken(title, key string) bool {
	tok := keyToken + key
	for i := 0; ; {
		j := strings.Index(title[i:], tok)
		if j < 0 {
			return false
		}
		p := i + j
		preOK := p == 0 || title[p-1] == ' '
		postOK := p+len(tok) == len(title) || title[p+len(tok)] == ' '
		if preOK && postOK {
			return true
		}
		i = p + len(tok)
	}
}

// AdoptTitle rewrites a legacy title so it ends with the canonical
// "ID:<key>" suffix, moving any trailing text in front of the token.
func AdoptTitle(title, key string) string {
	tok := keyToken + key
	if i := strings.Index(title, tok); i >= 0 {
		base := strings.TrimSpace(title[:i])
		rest := strings.TrimSpace(title[i+len(tok):])
		if base == "" {
			base = DefaultLabel
		}
		if rest != "" {
			base = base + " " + rest
		}
		return base + " " + tok
	}
	return strings.TrimSpace(title) + " " + tok
}
