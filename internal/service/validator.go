package service

import (
	"strings"

	"statement-parser/internal/models"
)

// IssuerGuessMarker replaces an issuer the model likely made up.
const IssuerGuessMarker = "Not Found in Text (AI Guess)"

// issuerFallback is what a missing issuer key is treated as.
const issuerFallback = "Unknown"

var issuerKeywords = []string{"Bank", "Card"}

// ValidateIssuer is a best-effort hallucination guard, not a correctness
// check. A non-empty issuer that does not occur verbatim in sourceText and
// contains none of issuerKeywords is replaced with IssuerGuessMarker.
// A missing issuer counts as "Unknown"; null and "" are left alone.
// It reports whether the field was replaced.
func ValidateIssuer(fields *models.Fields, sourceText string) bool {
	issuer := issuerFallback
	if v, ok := fields.Get(models.ColumnIssuer); ok {
		issuer = v.String()
	}
	if issuer == "" || strings.Contains(sourceText, issuer) {
		return false
	}
	for _, kw := range issuerKeywords {
		if strings.Contains(issuer, kw) {
			return false
		}
	}
	fields.Set(models.ColumnIssuer, models.StringValue(IssuerGuessMarker))
	return true
}
