package dataset

import (
	"os"
	"strings"
	"unicode"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"go.uber.org/zap"
)

// charsetFor returns the attribute decoder for the dataset whose sidecar
// files share stem. The .cpg sidecar wins over the configured name. A nil
// decoder means attribute bytes are used as-is.
func charsetFor(stem, configured string) *encoding.Decoder {
	name := configured
	if data, err := os.ReadFile(stem + ".cpg"); err == nil {
		if cpg := strings.TrimSpace(string(data)); cpg != "" {
			name = cpg
		}
	}
	return decoderFor(name)
}

func decoderFor(name string) *encoding.Decoder {
	label := normalizeCharset(name)
	if label == "" || label == "utf-8" {
		return nil
	}

	enc, err := htmlindex.Get(label)
	if err != nil {
		zap.L().Warn("dataset: unknown attribute charset, using raw bytes", zap.String("charset", name))
		return nil
	}
	return enc.NewDecoder()
}

// normalizeCharset maps code page spellings found in .cpg files to WHATWG
// labels: "1252", "CP1252" and "ANSI 1252" become "windows-1252".
func normalizeCharset(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	if s == "utf8" {
		return "utf-8"
	}

	digits := strings.TrimLeftFunc(strings.TrimPrefix(strings.TrimPrefix(s, "ansi"), "cp"), unicode.IsSpace)
	if digits != "" && strings.IndexFunc(digits, func(r rune) bool { return !unicode.IsDigit(r) }) < 0 {
		switch digits {
		case "65001":
			return "utf-8"
		case "866":
			return "ibm866"
		case "28591":
			return "iso-8859-1"
		}
		return "windows-" + digits
	}
	return s
}

func decodeAttr(dec *encoding.Decoder, raw string) string {
	if dec == nil {
		return raw
	}
	out, err := dec.String(raw)
	if err != nil {
		return raw
	}
	return out
}
