package voice

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// Answer parsing is deliberately dumb: the telephony collaborator owns
// speech-to-text quality, and this layer only decides whether the
// transcript carries a usable value. Anything ambiguous is a parse failure
// so the machine re-prompts instead of guessing at clinical data.

var integerLiteral = regexp.MustCompile(`-?\d+`)

// parseScore extracts the first integer literal from a spoken answer.
// Values outside [0,10] are rejected rather than clamped, since clamping
// would silently distort clinical data.
func parseScore(spoken string) (int, bool) {
	match := integerLiteral.FindString(spoken)
	if match == "" {
		return 0, false
	}
	n, err := strconv.Atoi(match)
	if err != nil || n < 0 || n > 10 {
		return 0, false
	}
	return n, true
}

// Yes/no vocabulary covering the English and Mandarin phrasings the
// deployed speech recognizer produces. English tokens match whole words;
// Mandarin tokens match as substrings since the transcript carries no word
// boundaries. Negations are checked first so "沒有" never reads as "有".
var (
	negativeWords = map[string]bool{
		"no": true, "nope": true, "none": true, "nothing": true, "not": true,
		"haven't": true, "hasn't": true, "don't": true, "didn't": true,
	}
	affirmativeWords = map[string]bool{
		"yes": true, "yeah": true, "yep": true, "yup": true, "correct": true,
	}
	negativeCJK    = []string{"沒有", "没有", "不會", "不会", "沒", "没", "不"}
	affirmativeCJK = []string{"有", "是", "會", "会", "對", "对"}
)

// parseYesNo maps a spoken answer onto a boolean using the explicit token
// vocabulary. The second return value is false on anything outside the
// vocabulary.
func parseYesNo(spoken string) (bool, bool) {
	text := strings.ToLower(strings.TrimSpace(spoken))
	if text == "" {
		return false, false
	}

	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})
	for _, w := range words {
		if negativeWords[w] {
			return false, true
		}
	}
	for _, tok := range negativeCJK {
		if strings.Contains(text, tok) {
			return false, true
		}
	}
	for _, w := range words {
		if affirmativeWords[w] {
			return true, true
		}
	}
	for _, tok := range affirmativeCJK {
		if strings.Contains(text, tok) {
			return true, true
		}
	}
	return false, false
}
