package bookcompiler

import (
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/unicode/norm"
)

// Replacements for common characters outside the core-font encoding.
var textReplacer = strings.NewReplacer(
	"\t", "    ",
	"\r", "",
	"\u2010", "-", // hyphen
	"\u2011", "-", // non-breaking hyphen
	"\u2212", "-", // minus sign
	"\u2032", "'", // prime
	"\u2033", `"`, // double prime
	"\u2028", " ", // line separator
	"\u200b", "", // zero width space
	"\ufeff", "", // byte order mark
)

// cleanText normalizes text before it is measured or painted.
func cleanText(text string) string {
	return textReplacer.Replace(norm.NFC.String(text))
}

// encodeText converts text to the cp1252 bytes expected by the core fonts.
func encodeText(text string) (string, error) {
	text = cleanText(text)
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		c, ok := charmap.Windows1252.EncodeRune(r)
		if !ok {
			return "", &GlyphError{Rune: r, Text: text}
		}
		b.WriteByte(c)
	}
	return b.String(), nil
}

// checkGlyphs returns the first encoding failure among lines.
func checkGlyphs(lines ...string) error {
	for _, line := range lines {
		if _, err := encodeText(line); err != nil {
			return err
		}
	}
	return nil
}
