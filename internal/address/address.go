// Package address implements JN's address parser (spec §3.1, §4.2.1,
// §6.3): a total, lossless decomposition of an opaque address string into
// its component parts. Parsing never fails on semantic grounds — only on
// syntactic ones (malformed query strings, bad percent escapes) — leaving
// "does this address make sense" to the resolver.
package address

import (
	"fmt"
	"regexp"
	"strings"

	jnerrors "github.com/jnpipe/jn/pkg/errors"
)

// Kind classifies the address by its origin (spec §3.1).
type Kind string

const (
	KindStdio   Kind = "stdio"
	KindFile    Kind = "file"
	KindURL     Kind = "url"
	KindProfile Kind = "profile"
	KindPlugin  Kind = "plugin"
)

// Compression enumerates the recognized compression suffixes (spec §3.1, §4.2.1).
type Compression string

const (
	CompressionNone Compression = ""
	CompressionGzip Compression = "gz"
	CompressionBzip2 Compression = "bz2"
	CompressionXz   Compression = "xz"
	CompressionZstd Compression = "zst"
)

var compressionSuffixes = []struct {
	suffix string
	kind   Compression
}{
	{".bz2", CompressionBzip2},
	{".zst", CompressionZstd},
	{".xz", CompressionXz},
	{".gz", CompressionGzip},
}

var urlSchemePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.\-]*://`)

// Address is the immutable result of parsing a raw address string.
type Address struct {
	Raw            string
	Kind           Kind
	Base           string
	FormatOverride string
	Compression    Compression
	Parameters     map[string]string
}

// Parse decomposes a raw address string. It is total: every input string
// produces an Address (possibly of Kind file) without panicking; the only
// errors returned are syntactic (spec invariant 1, §8).
func Parse(raw string) (Address, error) {
	if raw == "" {
		return Address{Raw: raw, Kind: KindFile, Base: raw, Parameters: map[string]string{}}, nil
	}

	withoutQuery, query, err := splitQuery(raw)
	if err != nil {
		return Address{}, err
	}

	params, err := parseQuery(query)
	if err != nil {
		return Address{}, err
	}

	isURL := urlSchemePattern.MatchString(withoutQuery)
	base, formatOverride := splitFormatOverride(withoutQuery, isURL)

	kind := classify(base, isURL)

	finalBase, compression := detectCompression(base, kind)

	return Address{
		Raw:            raw,
		Kind:           kind,
		Base:           finalBase,
		FormatOverride: formatOverride,
		Compression:    compression,
		Parameters:     params,
	}, nil
}

// splitQuery locates the first '?' that lies outside a URL's authority
// segment and splits the address into its pre-query prefix and its raw
// (still percent-encoded) query string.
func splitQuery(raw string) (prefix string, query string, err error) {
	idx := strings.IndexByte(raw, '?')
	if idx < 0 {
		return raw, "", nil
	}
	return raw[:idx], raw[idx+1:], nil
}

// parseQuery parses "k=v&k2=v2", percent-decoding values. Keys are taken
// literally. Duplicate keys: last value wins. Odd '=' placement (missing
// '=', empty key) or an invalid percent escape is InvalidAddress (spec §4.2.6).
func parseQuery(query string) (map[string]string, error) {
	params := map[string]string{}
	if query == "" {
		return params, nil
	}

	for _, pair := range strings.Split(query, "&") {
		if pair == "" {
			continue
		}
		eq := strings.IndexByte(pair, '=')
		if eq <= 0 {
			return nil, jnerrors.NewAddressError(query, pair, fmt.Errorf("malformed query pair"))
		}
		key := pair[:eq]
		rawValue := pair[eq+1:]
		value, err := percentDecode(rawValue)
		if err != nil {
			return nil, jnerrors.NewAddressError(query, rawValue, fmt.Errorf("invalid percent escape: %w", err))
		}
		params[key] = value
	}

	return params, nil
}

// percentDecode decodes %XX escapes without treating '+' as a space — JN
// query strings are not form-encoded HTML, they are address parameters.
func percentDecode(s string) (string, error) {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%':
			if i+2 >= len(s) {
				return "", fmt.Errorf("truncated escape at offset %d", i)
			}
			hi, ok1 := hexVal(s[i+1])
			lo, ok2 := hexVal(s[i+2])
			if !ok1 || !ok2 {
				return "", fmt.Errorf("invalid hex digits at offset %d", i)
			}
			b.WriteByte(hi<<4 | lo)
			i += 2
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String(), nil
}

func hexVal(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	default:
		return 0, false
	}
}

// splitFormatOverride locates the last '~' in prefix that is not inside a
// URL's scheme/authority — format overrides on URLs are recognized only
// within the path. For non-URL addresses the entire string is eligible.
func splitFormatOverride(prefix string, isURL bool) (base string, formatOverride string) {
	searchFrom := 0
	if isURL {
		// Skip "scheme://"; then skip the authority up to the next '/'.
		schemeEnd := strings.Index(prefix, "://") + 3
		if schemeEnd >= 3 && schemeEnd <= len(prefix) {
			rest := prefix[schemeEnd:]
			if slash := strings.IndexByte(rest, '/'); slash >= 0 {
				searchFrom = schemeEnd + slash
			} else {
				// No path segment at all (bare "scheme://host"); no override possible.
				searchFrom = len(prefix)
			}
		}
	}

	if searchFrom > len(prefix) {
		searchFrom = len(prefix)
	}

	tail := prefix[searchFrom:]
	idx := strings.LastIndexByte(tail, '~')
	if idx < 0 {
		return prefix, ""
	}

	return prefix[:searchFrom+idx], tail[idx+1:]
}

var profilePattern = regexp.MustCompile(`^@[^/]+/.+$`)

// classify determines the address Kind (spec §4.2.1 step 3).
func classify(base string, isURL bool) Kind {
	switch base {
	case "-", "stdin", "stdout":
		return KindStdio
	}

	if strings.HasPrefix(base, "@") {
		if profilePattern.MatchString(base) {
			return KindProfile
		}
		return KindPlugin
	}

	if isURL {
		return KindURL
	}

	return KindFile
}

// detectCompression strips a recognized compression suffix from base and
// reports which one, if any (spec §4.2.1 step 4). Only file and url
// addresses carry compression suffixes.
func detectCompression(base string, kind Kind) (string, Compression) {
	if kind != KindFile && kind != KindURL {
		return base, CompressionNone
	}

	for _, c := range compressionSuffixes {
		if strings.HasSuffix(base, c.suffix) {
			return strings.TrimSuffix(base, c.suffix), c.kind
		}
	}

	return base, CompressionNone
}
