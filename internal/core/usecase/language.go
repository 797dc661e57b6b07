package usecase

import (
	"strings"
	"unicode"
)

// languageAliases maps ISO 639-1 codes and common spellings to the canonical
// lowercase language names used in prompts.
var languageAliases = map[string]string{
	"en": "english",
	"ru": "russian",
	"zh": "chinese",
	"hi": "hindi",
	"ar": "arabic",
	"de": "german",
	"fr": "french",
	"es": "spanish",
}

func normalizeLanguage(language, fallback string) string {
	lang := strings.ToLower(strings.TrimSpace(language))
	if lang == "" {
		return fallback
	}
	if canonical, ok := languageAliases[lang]; ok {
		return canonical
	}
	return lang
}

// detectLanguage guesses the question's language from its dominant script.
// Latin text defaults to english; that is good enough to decide whether a
// translation notice is warranted.
func detectLanguage(text string) string {
	counts := map[string]int{}
	for _, r := range text {
		switch {
		case unicode.Is(unicode.Cyrillic, r):
			counts["russian"]++
		case unicode.Is(unicode.Han, r):
			counts["chinese"]++
		case unicode.Is(unicode.Devanagari, r):
			counts["hindi"]++
		case unicode.Is(unicode.Arabic, r):
			counts["arabic"]++
		case unicode.Is(unicode.Latin, r):
			counts["english"]++
		}
	}

	best, bestCount := "english", 0
	for lang, count := range counts {
		if count > bestCount {
			best, bestCount = lang, count
		}
	}
	return best
}
