// Package tokenize turns log messages into token sequences for the
// similarity merge.
//
// With variable detection enabled, recognizable variable values
// (timestamps, IP-like numbers, decimals, device tokens, duty status
// phrases) become single opaque tokens; everything else is split on word
// boundaries:
//
//	tk := tokenize.New(true)
//	tk.Tokenize("at 10.0.0.1 took 1.5s")
//	// ["at", " ", "10.0.0.1", " ", "took", " ", "1.5", "s"]
package tokenize

// Tokenizer splits messages into tokens.
type Tokenizer struct {
	rules []Rule
}

// New creates a Tokenizer. When gatherVariables is false only the word
// boundary split is applied.
func New(gatherVariables bool) *Tokenizer {
	t := &Tokenizer{}
	if gatherVariables {
		t.rules = BuiltInRules
	}
	return t
}

// NewWithRules creates a Tokenizer with a custom rule table.
func NewWithRules(rules []Rule) *Tokenizer {
	return &Tokenizer{rules: rules}
}

// Tokenize returns the token sequence of text. Concatenating the tokens
// reproduces text.
func (t *Tokenizer) Tokenize(text string) []string {
	if text == "" {
		return nil
	}
	return t.appendTokens(nil, text)
}

func (t *Tokenizer) appendTokens(tokens []string, text string) []string {
	if text == "" {
		return tokens
	}

	for _, rule := range t.rules {
		m := rule.Regex.FindStringSubmatchIndex(text)
		if m == nil || m[4] < 0 {
			continue
		}
		tokens = t.appendTokens(tokens, text[m[2]:m[3]])
		tokens = append(tokens, text[m[4]:m[5]])
		return t.appendTokens(tokens, text[m[6]:m[7]])
	}

	return append(tokens, SplitWords(text)...)
}

// SplitWords splits text on word boundaries. Every maximal run of word
// characters and every maximal run of other characters is one token.
func SplitWords(text string) []string {
	return wordRegex.FindAllString(text, -1)
}
