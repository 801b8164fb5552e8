package fetcher

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// NormalizeText applies NFKC, Unicode case folding and whitespace collapsing.
func NormalizeText(value string) string {
	value = norm.NFKC.String(value)
	value = cases.Fold().String(value)
	return strings.Join(strings.Fields(value), " ")
}

// ContentHash is the hex SHA-256 digest of the normalized title and body.
// Items with equal hashes are the same item.
func ContentHash(title, body string) string {
	sum := sha256.Sum256([]byte(NormalizeText(title) + "\n" + NormalizeText(body)))
	return hex.EncodeToString(sum[:])
}
