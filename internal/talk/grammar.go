package talk

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// Parse tree types. Each struct is a participle grammar rule.

type ScriptNode struct {
	Pos      lexer.Position
	Handlers []*HandlerNode `EOL* ( @@ EOL* )*`
}

type HandlerNode struct {
	Pos     lexer.Position
	Private bool             `@"private"?`
	Name    string           `"on" @Ident`
	Params  []string         `( @Ident ( "," @Ident )* )? EOL`
	Body    []*StatementLine `EOL* @@*`
	End     string           `"end" @Ident`
	EndPos  lexer.Position
}

// BodyNode is a bare sequence of statement lines, used for ad-hoc execution.
type BodyNode struct {
	Lines []*StatementLine `EOL* @@*`
}

type StatementLine struct {
	Statement *StatementNode `@@ EOL+`
}

type StatementNode struct {
	Pos        lexer.Position
	Put        *PutNode     `  @@`
	Set        *SetNode     `| @@`
	Add        *AddNode     `| @@`
	Delete     *DeleteNode  `| @@`
	Go         *GoNode      `| @@`
	Answer     *AnswerNode  `| @@`
	Ask        *AskNode     `| @@`
	Tell       *TellNode    `| @@`
	If         *IfNode      `| @@`
	Repeat     *RepeatNode  `| @@`
	ExitRepeat bool         `| "exit" @"repeat"`
	NextRepeat bool         `| "next" @"repeat"`
	Command    *CommandNode `| @@`
}

type PutNode struct {
	Value  *ExpressionNode `"put" @@ "into"`
	Global bool            `@"global"?`
	Name   string          `@Ident`
}

type SetNode struct {
	Property string          `"set" @String "to"`
	Value    *ExpressionNode `@@`
	Target   *SpecifierNode  `( ( "of" | "in" ) @@ )?`
}

type AddNode struct {
	Type   string         `"add" @( "stack" | "card" | "background" | "button" | "field" )`
	Name   *string        `@String?`
	Target *SpecifierNode `( "to" @@ )?`
}

type DeleteNode struct {
	Target *SpecifierNode `"delete" @@`
}

type GoNode struct {
	Direction string         `"go" "to"? ( @( "next" | "previous" )`
	Type      string         `  @( "card" | "stack" )?`
	Target    *SpecifierNode `| @@ )`
}

type AnswerNode struct {
	Value *ExpressionNode `"answer" @@`
}

type AskNode struct {
	Prompt *ExpressionNode `"ask" @@`
}

// TellNode redirects one command form to another part.
type TellNode struct {
	Pos     lexer.Position
	Target  *SpecifierNode `"tell" @@ "to"`
	Set     *SetNode       `(  @@`
	Add     *AddNode       ` | @@`
	Delete  *DeleteNode    ` | @@`
	Go      *GoNode        ` | @@`
	Answer  *AnswerNode    ` | @@`
	Command *CommandNode   ` | @@ )`
}

type CommandNode struct {
	Pos  lexer.Position
	Name string            `@Ident`
	Args []*ExpressionNode `( @@ ( "," @@ )* )?`
}

type IfNode struct {
	Cond       *ExpressionNode  `"if" @@ EOL? "then"`
	Inline     *StatementNode   `( @@`
	InlineElse *StatementNode   `  ( "else" @@ )?`
	Then       []*StatementLine `| EOL+ @@*`
	Else       []*StatementLine `  ( "else" EOL+ @@* )? "end" "if" )`
}

type RepeatNode struct {
	Times *ExpressionNode  `"repeat" ( "for"? @@ "times"`
	Until *ExpressionNode  `| "until" @@`
	While *ExpressionNode  `| "while" @@`
	With  *RepeatWithNode  `| @@ )? EOL+`
	Body  []*StatementLine `@@* "end" "repeat"`
}

type RepeatWithNode struct {
	Var  string          `"with" @Ident "="`
	From *ExpressionNode `@@`
	To   *ExpressionNode `"to" @@`
}

// Expressions, loosest binding first.

type ExpressionNode struct {
	Pos   lexer.Position
	Left  *AndNode   `@@`
	Right []*AndNode `( "or" @@ )*`
}

type AndNode struct {
	Left  *ComparisonNode   `@@`
	Right []*ComparisonNode `( "and" @@ )*`
}

type ComparisonNode struct {
	Left  *ConcatNode `@@`
	Op    string      `( @( "is" "not" | "is" | "=" | "!=" | "<=" | ">=" | "<" | ">" )`
	Right *ConcatNode `  @@ )?`
}

type ConcatNode struct {
	Left  *AdditiveNode   `@@`
	Right []*AdditiveNode `( "&" @@ )*`
}

type AdditiveNode struct {
	Left *TermNode `@@`
	Rest []*AddOp  `@@*`
}

type AddOp struct {
	Op   string    `@( "+" | "-" )`
	Term *TermNode `@@`
}

type TermNode struct {
	Left *UnaryNode `@@`
	Rest []*MulOp   `@@*`
}

type MulOp struct {
	Op    string     `@( "*" | "/" | "%" )`
	Unary *UnaryNode `@@`
}

type UnaryNode struct {
	Op      string      `( @( "-" | "not" )`
	Operand *UnaryNode  `  @@`
	Factor  *FactorNode `| @@ )`
}

type FactorNode struct {
	Pos      lexer.Position
	Number   *float64           `  @Number`
	String   *string            `| @String`
	Bool     *string            `| @( "true" | "false" )`
	Property *PropertyValueNode `| @@`
	Sub      *ExpressionNode    `| "(" @@ ")"`
	Variable *string            `| @Ident`
}

type PropertyValueNode struct {
	Pos      lexer.Position
	Property string         `"the" @String`
	Target   *SpecifierNode `( "of" @@ )?`
}

// Specifiers. A qualifier may be followed by "of" and an outer specifier, nested
// arbitrarily deep; terminals end the chain.

type SpecifierNode struct {
	Pos       lexer.Position
	Terminal  *TerminalNode  `  @@`
	Qualifier *QualifierNode `| @@`
	Of        *SpecifierNode `  ( "of" @@ )?`
}

type TerminalNode struct {
	This    string `  "this" @( "world" | "stack" | "card" | "background" | "button" | "field" | "part" )`
	Current string `| "current" @( "card" | "stack" )`
	Type    string `| @( "world" | "stack" | "card" | "background" | "button" | "field" | "part" ) "id"`
	ID      *int   `  @Number`
}

type QualifierNode struct {
	Pos     lexer.Position
	Ordinal string  `@( "first" | "second" | "third" | "fourth" | "fifth" | "sixth" | "seventh" | "eighth" | "ninth" | "tenth" | "last" )?`
	Type    string  `@( "stack" | "card" | "background" | "button" | "field" | "part" )`
	Index   *int    `( @Number`
	Name    *string `| @String )?`
}
