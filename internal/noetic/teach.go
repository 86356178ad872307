package noetic

import (
	"regexp"
	"strings"
)

var tokenPattern = regexp.MustCompile(`[a-zA-Z0-9']+`)

// Tokenize splits text into space-and-punctuation-tokenized lowercase words
// (§6 "Teaching input stream").
func Tokenize(text string) []string {
	return tokenPattern.FindAllString(strings.ToLower(text), -1)
}

var consumesVerbs = map[string]bool{
	"eat": true, "eats": true, "drink": true, "drinks": true,
}

// Learn feeds one sentence of teaching input into store: a temporal edge
// between every consecutive token pair, plus an isa edge for "X is/are Y"
// and a consumes edge for "X {eat|eats|drink|drinks} Y" (§6).
func Learn(store *Store, text string) {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return
	}

	keys := make([]uint64, len(tokens))
	for i, tok := range tokens {
		keys[i] = store.InsertOrFetchNode(tok)
	}

	for i := 0; i < len(tokens)-1; i++ {
		store.UpsertEdge(keys[i], keys[i+1], RelationTemporal)
	}

	for i := 0; i+2 < len(tokens); i++ {
		verb := tokens[i+1]
		subjectKey, objectKey := keys[i], keys[i+2]

		if verb == "is" || verb == "are" {
			store.UpsertEdge(subjectKey, objectKey, RelationIsA)
		}
		if consumesVerbs[verb] {
			store.UpsertEdge(subjectKey, objectKey, RelationConsumes)
		}
	}
}
