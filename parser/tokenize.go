package parser

import (
	"strings"
	"unicode"
)

// TokenKind classifies a token.
type TokenKind int

const (
	Word TokenKind = iota
	Quoted
	Punct
)

func (k TokenKind) String() string {
	switch k {
	case Word:
		return "word"
	case Quoted:
		return "quoted"
	default:
		return "punct"
	}
}

// Token is one lexical unit of a question. Quoted tokens carry the text
// between the quotes.
type Token struct {
	Kind TokenKind
	Text string
}

const trailingPunct = "?.!,;:"

func isOpenQuote(r rune) bool  { return r == '"' || r == '«' }
func isCloseQuote(r rune) bool { return r == '"' || r == '»' }

// Tokenize splits a question into words, quoted spans and trailing
// punctuation. Either closing quote ends a span opened by either opener.
func Tokenize(s string) []Token {
	var out []Token
	rs := []rune(s)
	for i := 0; i < len(rs); {
		r := rs[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case isOpenQuote(r):
			j := i + 1
			for j < len(rs) && !isCloseQuote(rs[j]) {
				j++
			}
			if j == len(rs) {
				// unbalanced quote: drop it and keep scanning
				i++
				continue
			}
			if text := strings.TrimSpace(string(rs[i+1 : j])); text != "" {
				out = append(out, Token{Kind: Quoted, Text: text})
			}
			i = j + 1
		default:
			j := i
			for j < len(rs) && !unicode.IsSpace(rs[j]) && !isOpenQuote(rs[j]) && rs[j] != '»' {
				j++
			}
			word := string(rs[i:j])
			trimmed := strings.TrimRight(word, trailingPunct)
			if trimmed != "" {
				out = append(out, Token{Kind: Word, Text: trimmed})
			}
			for _, p := range word[len(trimmed):] {
				out = append(out, Token{Kind: Punct, Text: string(p)})
			}
			if j == i {
				j++ // stray closing guillemet
			}
			i = j
		}
	}
	return out
}
