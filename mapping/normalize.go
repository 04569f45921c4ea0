package mapping

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// NameSuffix marks the human-readable column paired with a reference field.
const NameSuffix = "_Наименование"

// Normalize case-folds s and collapses runs of whitespace. Every alias key
// passes through here before lookup or storage.
func Normalize(s string) string {
	// cases.Caser is stateful, so one per call.
	folded := cases.Fold().String(norm.NFC.String(s))
	return strings.Join(strings.Fields(folded), " ")
}

// IsSurrogateKey reports whether a column holds surrogate identifiers
// ("GUID" or "*_GUID", any case). Such columns are never resolved or suggested.
func IsSurrogateKey(column string) bool {
	c := Normalize(column)
	return c == "guid" || strings.HasSuffix(c, "_guid")
}

func lastWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}
