package export

import "golang.org/x/text/language"

// rtlBaseLanguages are the BCP-47 base subtags of right-to-left scripts
// this exporter recognizes for ViewerPreferences/Direction (spec.md §4.5
// step 7 and scenario 6). Kept as a base-subtag set rather than a script
// lookup table since the document language tag the exporter carries is
// itself just a base subtag (e.g. "ar"), not a full script-tagged locale.
var rtlBaseLanguages = map[string]bool{
	"ar": true, // Arabic
	"he": true, // Hebrew
	"fa": true, // Persian
	"ur": true, // Urdu
	"yi": true, // Yiddish
	"ps": true, // Pashto
	"sd": true, // Sindhi
	"ug": true, // Uyghur
}

// dominantLanguage returns the strict mode of a document's accumulated
// per-language glyph tally (spec.md P10), breaking ties by the
// lexicographically smallest tag for determinism.
func dominantLanguage(totals map[string]int) string {
	best := ""
	bestCount := -1
	for lang, count := range totals {
		if lang == "" {
			continue
		}
		if count > bestCount || (count == bestCount && lang < best) {
			best, bestCount = lang, count
		}
	}
	return best
}

// isRTL reports whether a BCP-47 language tag's base subtag names a
// right-to-left script.
func isRTL(tag string) bool {
	if tag == "" {
		return false
	}
	base, err := language.ParseBase(tag)
	if err != nil {
		return rtlBaseLanguages[tag]
	}
	return rtlBaseLanguages[base.String()]
}
