package dialogue

import "strings"

var affirmations = []string{
	"sí", "si", "claro", "ok", "vale", "confirmo", "dale", "por supuesto", "afirmativo",
}

var negations = []string{
	"no", "nunca", "cancelar", "cancela", "jamás", "negativo", "mejor no",
}

// isAffirmation matches a confirmation answer against the accepted word
// list. Whole-message match only; "sí pero más tarde" is not a yes.
func isAffirmation(text string) bool {
	return matchesWord(text, affirmations)
}

func isNegation(text string) bool {
	return matchesWord(text, negations)
}

func matchesWord(text string, words []string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	t = strings.TrimRight(t, ".!¡")
	for _, w := range words {
		if t == w {
			return true
		}
	}
	return false
}
