package text

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	nonDigitRe    = regexp.MustCompile(`[^0-9]`)
	placeholderRe = regexp.MustCompile(`^0+$`)
)

// NormalizeEan strips separators and validates the code.
// Returns empty string for placeholder or invalid barcodes that should be skipped.
func NormalizeEan(ean string) string {
	bc := nonDigitRe.ReplaceAllString(ean, "")
	if bc == "" {
		return ""
	}

	// Skip placeholder barcodes (all zeros)
	if placeholderRe.MatchString(bc) {
		return ""
	}

	// UPC-A (12 digits) -> EAN-13 (add leading 0)
	if len(bc) == 12 {
		bc = "0" + bc
	}

	// Internal short codes pass through untouched
	if len(bc) != 13 {
		return bc
	}

	if !validEan13CheckDigit(bc) {
		return ""
	}

	return bc
}

// validEan13CheckDigit validates the EAN-13 check digit
func validEan13CheckDigit(bc string) bool {
	if len(bc) != 13 {
		return false
	}
	sum := 0
	for i := 0; i < 12; i++ {
		d := int(bc[i] - '0')
		if i%2 == 0 {
			sum += d
		} else {
			sum += d * 3
		}
	}
	checkDigit := (10 - (sum % 10)) % 10
	return int(bc[12]-'0') == checkDigit
}

// EanPrefix returns the leading n digits of an EAN, used to group tracked
// products by brand. Short codes are returned whole.
func EanPrefix(ean string, n int) string {
	if n <= 0 || len(ean) <= n {
		return ean
	}
	return ean[:n]
}

// RemoveDiacritics strips accents so "Almacén Güemes" matches "Almacen Guemes"
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// NormalizeName lowercases, strips accents, and collapses whitespace for
// comparing store names against platform pickup point names.
func NormalizeName(s string) string {
	s = RemoveDiacritics(s)
	s = strings.ToLower(s)
	return strings.Join(strings.Fields(s), " ")
}
