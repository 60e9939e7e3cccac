package dns

import (
	"strings"

	mdns "github.com/miekg/dns"
	"golang.org/x/net/idna"
)

// SplitDestination splits a destination at its first slash into the host
// and the remaining URL path, which keeps its leading slash.
// e.g. "evil.example/Payload.EXE" → "evil.example", "/Payload.EXE"
func SplitDestination(v string) (host, path string) {
	if i := strings.IndexByte(v, '/'); i >= 0 {
		return v[:i], v[i:]
	}
	return v, ""
}

// NormalizeHostname trims whitespace, then drops the trailing root dot,
// lowercases and converts internationalized names to their ASCII form in the
// host part. A URL path after the host is kept as is.
// e.g. " Evil1.Example. " → "evil1.example"
// e.g. "bücher.example" → "xn--bcher-kva.example"
// e.g. "Evil.Example/Malware/Payload.EXE" → "evil.example/Malware/Payload.EXE"
func NormalizeHostname(h string) string {
	host, path := SplitDestination(strings.TrimSpace(h))
	host = strings.TrimSuffix(host, ".")
	if ascii, err := idna.Lookup.ToASCII(host); err == nil {
		host = ascii
	}
	return strings.ToLower(host) + path
}

// ValidHostname reports whether h is a syntactically valid domain name with
// at least two labels.
func ValidHostname(h string) bool {
	if h == "" {
		return false
	}
	if _, ok := mdns.IsDomainName(h); !ok {
		return false
	}
	return mdns.CountLabel(mdns.Fqdn(h)) >= 2
}

// FindList returns the single list named name. Zero or several matches are
// reported as a LookupError.
func FindList(lists []DestinationList, name string) (DestinationList, error) {
	var found []DestinationList
	for _, l := range lists {
		if l.Name == name {
			found = append(found, l)
		}
	}
	switch len(found) {
	case 0:
		return DestinationList{}, &LookupError{Name: name, Err: ErrListNotFound}
	case 1:
		return found[0], nil
	default:
		return DestinationList{}, &LookupError{Name: name, Err: ErrListAmbiguous}
	}
}
