package reader

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
)

// encodingAliases covers common spellings that the IANA registry lists under
// a different name.
var encodingAliases = map[string]string{
	"latin-1": "ISO-8859-1",
	"latin_1": "ISO-8859-1",
	"utf8":    "UTF-8",
	"utf_8":   "UTF-8",
	"cp1252":  "windows-1252",
}

func lookupEncoding(name string) (encoding.Encoding, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		key = "utf-8"
	}
	if alias, ok := encodingAliases[key]; ok {
		key = alias
	}
	enc, err := ianaindex.IANA.Encoding(key)
	if err != nil {
		return nil, fmt.Errorf("unknown text encoding %q: %w", name, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("text encoding %q is not supported", name)
	}
	return enc, nil
}

// ValidateEncoding reports whether name resolves to a supported encoding.
func ValidateEncoding(name string) error {
	_, err := lookupEncoding(name)
	return err
}

// decodeText converts raw file bytes to a UTF-8 string. Invalid UTF-8 under
// a UTF-8 encoding is an error rather than a silent replacement.
func decodeText(data []byte, name string) (string, error) {
	enc, err := lookupEncoding(name)
	if err != nil {
		return "", err
	}

	if canon, _ := ianaindex.IANA.Name(enc); enc == unicode.UTF8 || canon == "UTF-8" {
		if !utf8.Valid(data) {
			return "", fmt.Errorf("invalid UTF-8 byte sequence")
		}
		return strings.TrimPrefix(string(data), "\uFEFF"), nil
	}

	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("decoding %s: %w", name, err)
	}
	return strings.TrimPrefix(string(out), "\uFEFF"), nil
}
