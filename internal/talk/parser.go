package talk

import (
	"errors"

	"github.com/alecthomas/participle/v2"
)

// Rule selects the grammar rule a parse starts from.
type Rule int

const (
	RuleScript Rule = iota
	RuleBody
	RuleStatement
	RuleExpression
	RuleSpecifier
	RulePropertyValue
)

func (r Rule) String() string {
	switch r {
	case RuleScript:
		return "Script"
	case RuleBody:
		return "Body"
	case RuleStatement:
		return "Statement"
	case RuleExpression:
		return "Expression"
	case RuleSpecifier:
		return "Specifier"
	case RulePropertyValue:
		return "PropertyValue"
	}
	return "Unknown"
}

var parserOptions = []participle.Option{
	participle.Lexer(scriptLexer),
	participle.Map(identMapper, "Hyphenated"),
	participle.Elide("Comment", "Whitespace"),
	participle.Unquote("String"),
	participle.UseLookahead(8),
}

var (
	scriptParser     = participle.MustBuild[ScriptNode](parserOptions...)
	bodyParser       = participle.MustBuild[BodyNode](parserOptions...)
	statementParser  = participle.MustBuild[StatementNode](parserOptions...)
	expressionParser = participle.MustBuild[ExpressionNode](parserOptions...)
	specifierParser  = participle.MustBuild[SpecifierNode](parserOptions...)
	propertyParser   = participle.MustBuild[PropertyValueNode](parserOptions...)
)

type Parser struct {
	filename string
	partial  bool
}

func NewParser(filename string) *Parser {
	return &Parser{filename: filename}
}

// Partial returns a parser that accepts a match of the start rule followed by
// unconsumed trailing input.
func (p *Parser) Partial() *Parser {
	return &Parser{filename: p.filename, partial: true}
}

// Parse parses source starting at rule and returns the matching *...Node tree.
func (p *Parser) Parse(source string, rule Rule) (any, error) {
	switch rule {
	case RuleScript:
		return p.ParseScript(source)
	case RuleBody:
		return parseWith(p, bodyParser, source)
	case RuleStatement:
		return p.ParseStatement(source)
	case RuleExpression:
		return p.ParseExpression(source)
	case RuleSpecifier:
		return p.ParseSpecifier(source)
	case RulePropertyValue:
		return parseWith(p, propertyParser, source)
	}
	return nil, invariant("unknown grammar rule %d", rule)
}

// Matches reports whether source parses as rule.
func (p *Parser) Matches(source string, rule Rule) bool {
	_, err := p.Parse(source, rule)
	return err == nil
}

func (p *Parser) ParseScript(source string) (*ScriptNode, error) {
	return parseWith(p, scriptParser, source)
}

func (p *Parser) ParseStatement(source string) (*StatementNode, error) {
	return parseWith(p, statementParser, source)
}

func (p *Parser) ParseExpression(source string) (*ExpressionNode, error) {
	return parseWith(p, expressionParser, source)
}

func (p *Parser) ParseSpecifier(source string) (*SpecifierNode, error) {
	return parseWith(p, specifierParser, source)
}

func parseWith[T any](p *Parser, g *participle.Parser[T], source string) (*T, error) {
	var opts []participle.ParseOption
	if p.partial {
		opts = append(opts, participle.AllowTrailing(true))
	}
	tree, err := g.ParseString(p.filename, source, opts...)
	if err != nil {
		return nil, parseFailure(p.filename, source, err)
	}
	return tree, nil
}

func parseFailure(filename, source string, err error) *Error {
	te := &Error{
		Kind:     ParseFailure,
		Message:  err.Error(),
		Location: Location{Filename: filename},
	}
	var perr participle.Error
	if errors.As(err, &perr) {
		pos := perr.Position()
		te.Message = perr.Message()
		te.Location.Line = pos.Line
		te.Location.Column = pos.Column
		te.Code = sourceLine(source, pos.Line)
	}
	return te
}
