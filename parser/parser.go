// Package parser extracts (entity, [(field, value)…]) from a question with
// a small tokenizer and two grammar rules.
//
// Entity rule: intro words (count or list), a noun phrase, then the first
// preposition. The noun phrase must canonicalize to a known entity.
//
// Pair rule, applied in two passes with the quoted branch first:
//
//	(a) PREP field-words… "quoted value"
//	(b) PREP field-words… bare-value   (per conjunction segment without quotes)
package parser

import (
	"strings"

	"github.com/greenscale93/IIsys/mapping"
)

// Mode tells whether the question asks for a count or a listing.
type Mode int

const (
	ModeCount Mode = iota
	ModeList
)

func (m Mode) String() string {
	if m == ModeList {
		return "list"
	}
	return "count"
}

// Pair is one field/value condition. Field is canonical when the phrase
// canonicalized, otherwise the phrase itself.
type Pair struct {
	Field  string
	Phrase string
	Value  string
	Quoted bool
}

// Parsed is a successfully parsed question.
type Parsed struct {
	Mode   Mode
	Entity string
	Pairs  []Pair
}

// Canonicalizer is the subset of the mapping store the parser needs.
type Canonicalizer interface {
	CanonicalizeEntity(phrase string) (string, bool)
	CanonicalizeField(phrase string) (string, bool)
}

// Grammar holds the closed word classes.
type Grammar struct {
	CountWords   []string
	ListWords    []string
	Prepositions []string
	Conjunctions []string
}

// DefaultGrammar is the Russian word set.
func DefaultGrammar() Grammar {
	return Grammar{
		CountWords: []string{"сколько", "количество"},
		ListWords:  []string{"список", "выведи", "покажи", "перечисли"},
		Prepositions: []string{
			"в", "во", "по", "у", "на", "из", "с", "со", "к", "ко", "от",
			"для", "за", "о", "об", "обо", "при", "над", "под", "про", "через",
		},
		Conjunctions: []string{"и"},
	}
}

// Parser applies a Grammar against a Canonicalizer.
type Parser struct {
	canon Canonicalizer
	count map[string]bool
	list  map[string]bool
	preps map[string]bool
	conjs map[string]bool
}

// New builds a parser.
func New(canon Canonicalizer, g Grammar) *Parser {
	return &Parser{
		canon: canon,
		count: wordSet(g.CountWords),
		list:  wordSet(g.ListWords),
		preps: wordSet(g.Prepositions),
		conjs: wordSet(g.Conjunctions),
	}
}

func wordSet(words []string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[mapping.Normalize(w)] = true
	}
	return m
}

func (p *Parser) isPrep(t Token) bool {
	return t.Kind == Word && p.preps[mapping.Normalize(t.Text)]
}

// Parse returns nil, false when no entity or no pair is found.
func (p *Parser) Parse(question string) (*Parsed, bool) {
	toks := Tokenize(question)
	res, prepAt, ok := p.entity(toks)
	if !ok {
		return nil, false
	}

	seen := map[string]bool{}
	add := func(phrase, value string, quoted bool) {
		phrase = p.stripLeadingPrep(phrase)
		value = strings.TrimRight(strings.TrimSpace(value), trailingPunct)
		if phrase == "" || value == "" {
			return
		}
		key := mapping.Normalize(phrase) + "\x00" + value
		if seen[key] {
			return
		}
		seen[key] = true
		field := phrase
		if c, ok := p.canon.CanonicalizeField(phrase); ok {
			field = c
		}
		res.Pairs = append(res.Pairs, Pair{Field: field, Phrase: phrase, Value: value, Quoted: quoted})
	}

	p.quotedPairs(toks[prepAt:], add)
	p.barePairs(toks, add)

	if len(res.Pairs) == 0 {
		return nil, false
	}
	return res, true
}

// entity applies the entity rule and returns the index of the preposition
// that closes the noun phrase.
func (p *Parser) entity(toks []Token) (*Parsed, int, bool) {
	i := 0
	for i < len(toks) && toks[i].Kind == Punct {
		i++
	}
	res := &Parsed{}
	intro := 0
	for ; i < len(toks) && toks[i].Kind == Word; i++ {
		w := mapping.Normalize(toks[i].Text)
		if p.list[w] {
			res.Mode = ModeList
		} else if !p.count[w] {
			break
		}
		intro++
	}
	if intro == 0 {
		return nil, 0, false
	}

	var noun []string
	for ; i < len(toks); i++ {
		t := toks[i]
		if t.Kind != Word {
			return nil, 0, false
		}
		if p.isPrep(t) && len(noun) > 0 {
			break
		}
		noun = append(noun, t.Text)
	}
	if i == len(toks) || len(noun) == 0 {
		return nil, 0, false
	}
	entity, ok := p.canon.CanonicalizeEntity(strings.Join(noun, " "))
	if !ok {
		return nil, 0, false
	}
	res.Entity = entity
	return res, i, true
}

// quotedPairs: every preposition followed by words and then a quoted token.
// Scanning resumes after each quoted value.
func (p *Parser) quotedPairs(toks []Token, add func(string, string, bool)) {
	for i := 0; i < len(toks); i++ {
		if !p.isPrep(toks[i]) {
			continue
		}
		var words []string
		j := i + 1
		for ; j < len(toks) && toks[j].Kind == Word; j++ {
			words = append(words, toks[j].Text)
		}
		if j < len(toks) && toks[j].Kind == Quoted && len(words) > 0 {
			add(strings.Join(words, " "), toks[j].Text, true)
			i = j
		}
	}
}

// barePairs: for each conjunction segment without quotes, the first
// preposition, the field words, and the last word as the value.
func (p *Parser) barePairs(toks []Token, add func(string, string, bool)) {
	for _, seg := range p.segments(toks) {
		hasQuote := false
		var words []Token
		for _, t := range seg {
			switch t.Kind {
			case Quoted:
				hasQuote = true
			case Word:
				words = append(words, t)
			}
		}
		if hasQuote {
			continue
		}
		for k, t := range words {
			if !p.isPrep(t) {
				continue
			}
			rest := words[k+1:]
			if len(rest) < 2 {
				break
			}
			field := make([]string, 0, len(rest)-1)
			for _, w := range rest[:len(rest)-1] {
				field = append(field, w.Text)
			}
			add(strings.Join(field, " "), rest[len(rest)-1].Text, false)
			break
		}
	}
}

func (p *Parser) segments(toks []Token) [][]Token {
	var out [][]Token
	start := 0
	for i, t := range toks {
		if t.Kind == Word && p.conjs[mapping.Normalize(t.Text)] {
			out = append(out, toks[start:i])
			start = i + 1
		}
	}
	return append(out, toks[start:])
}

func (p *Parser) stripLeadingPrep(phrase string) string {
	fields := strings.Fields(phrase)
	if len(fields) > 1 && p.preps[mapping.Normalize(fields[0])] {
		fields = fields[1:]
	}
	return strings.Join(fields, " ")
}
