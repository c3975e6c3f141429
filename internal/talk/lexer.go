package talk

import (
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
)

var keywords = []string{
	"on", "end", "private",
	"put", "into", "global", "set", "to", "of", "in", "add", "delete",
	"go", "next", "previous", "answer", "ask", "tell",
	"if", "then", "else", "repeat", "for", "times", "until", "while", "with", "exit",
	"the", "this", "current", "id", "not", "is", "and", "or", "true", "false",
	"world", "stack", "card", "background", "button", "field", "part",
	"first", "second", "third", "fourth", "fifth", "sixth", "seventh", "eighth", "ninth", "tenth", "last",
}

// Keywords are lexed as their own token type so that @Ident never captures one.
// Hyphenated names are matched ahead of keywords so "card-count" stays one identifier;
// identMapper folds them back into Ident before parsing.
var scriptLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `--[^\n]*`},
	{Name: "String", Pattern: `"(\\"|[^"\n])*"`},
	{Name: "Number", Pattern: `\d+(\.\d+)?`},
	{Name: "Hyphenated", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*(-[a-zA-Z0-9_]+)+`},
	{Name: "Keyword", Pattern: `\b(` + strings.Join(keywords, "|") + `)\b`},
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
	{Name: "Operator", Pattern: `<=|>=|!=|[-+*/%&=<>(),]`},
	{Name: "EOL", Pattern: `(\r?\n)+`},
	{Name: "Whitespace", Pattern: `[ \t\r]+`},
})

var (
	identType      = scriptLexer.Symbols()["Ident"]
	hyphenatedType = scriptLexer.Symbols()["Hyphenated"]
)

func identMapper(tok lexer.Token) (lexer.Token, error) {
	if tok.Type == hyphenatedType {
		tok.Type = identType
	}
	return tok, nil
}

type Token struct {
	Type   string
	Value  string
	Line   int
	Column int
}

// Tokenize lexes source and returns every token, comments and whitespace included.
// It backs the CLI's lex debug command.
func Tokenize(filename, source string) ([]Token, error) {
	lex, err := scriptLexer.LexString(filename, source)
	if err != nil {
		return nil, err
	}
	names := make(map[lexer.TokenType]string)
	for name, typ := range scriptLexer.Symbols() {
		names[typ] = name
	}

	var tokens []Token
	for {
		tok, err := lex.Next()
		if err != nil {
			return tokens, parseFailure(filename, source, err)
		}
		tok, _ = identMapper(tok)
		if tok.EOF() {
			return tokens, nil
		}
		tokens = append(tokens, Token{
			Type:   names[tok.Type],
			Value:  tok.Value,
			Line:   tok.Pos.Line,
			Column: tok.Pos.Column,
		})
	}
}
