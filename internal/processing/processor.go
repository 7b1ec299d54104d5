package processing

import (
	"crypto/sha1"
	"encoding/hex"
	"html"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/DeafMist/news-collector/internal/models"
)

var urlRegex = regexp.MustCompile(`https?://[^\s]+`)

var (
	tags        = regexp.MustCompile(`<[^>]*>`)
	whitespace  = regexp.MustCompile(`\s+`)
	punctuation = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
)

var stopwords = map[string]struct{}{
	"및": {}, "등": {}, "위해": {}, "대한": {}, "관련": {}, "통해": {}, "있는": {}, "이번": {},
	"a": {}, "an": {}, "the": {}, "to": {}, "in": {}, "for": {}, "and": {}, "of": {},
}

// StripTags removes markup such as the <b> highlight tags the search API wraps around matches.
func StripTags(input string) string {
	return tags.ReplaceAllString(input, " ")
}

// CleanText strips tags, HTML entities, URLs and punctuation and squeezes whitespace.
func CleanText(input string) string {
	if input == "" {
		return ""
	}
	decoded := html.UnescapeString(StripTags(input))
	decoded = urlRegex.ReplaceAllString(decoded, " ")
	decoded = punctuation.ReplaceAllString(decoded, " ")
	decoded = whitespace.ReplaceAllString(decoded, " ")
	return strings.TrimSpace(decoded)
}

// ExtractTerms returns the most frequent words that are not stop-words.
func ExtractTerms(text string, limit, minLen int) []string {
	clean := strings.ToLower(CleanText(text))
	if clean == "" {
		return nil
	}

	freq := make(map[string]int)
	for _, token := range strings.Fields(clean) {
		token = strings.TrimFunc(token, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		})
		if len([]rune(token)) < minLen {
			continue
		}
		if _, skip := stopwords[token]; skip {
			continue
		}
		freq[token]++
	}

	if len(freq) == 0 {
		return nil
	}

	type kv struct {
		word  string
		count int
	}

	pairs := make([]kv, 0, len(freq))
	for word, count := range freq {
		pairs = append(pairs, kv{word: word, count: count})
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].count == pairs[j].count {
			return pairs[i].word < pairs[j].word
		}
		return pairs[i].count > pairs[j].count
	})

	max := limit
	if max <= 0 || max > len(pairs) {
		max = len(pairs)
	}

	terms := make([]string, 0, max)
	for i := 0; i < max; i++ {
		terms = append(terms, pairs[i].word)
	}

	return terms
}

// Fingerprint hashes a row's id together with its mutable fields. Two rows with
// the same fingerprint would produce the same search document.
func Fingerprint(row models.NewsRow) string {
	s := sha1.Sum([]byte(row.ID + "|" + row.Keyword + "|" + row.Summary + "|" + row.URL))
	return hex.EncodeToString(s[:])
}
