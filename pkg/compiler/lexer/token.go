package lexer

// Kind represents the type of token identified by the scanner.
type Kind uint8

const (
	KindIdentifier Kind = iota
	KindString
	KindInt
	KindFloat
	KindClass       // class
	KindField       // field
	KindFunc        // func
	KindConstructor // constructor
	KindEnd         // end
	KindPublic      // public
	KindPrivate     // private
	KindAbstract    // abstract
	KindOverride    // override
	KindAssign      // =
	KindColon       // :
	KindLParen      // (
	KindRParen      // )
	KindGreater     // >
)

var kindNames = [...]string{
	KindIdentifier:  "identifier",
	KindString:      "string",
	KindInt:         "int",
	KindFloat:       "float",
	KindClass:       "class",
	KindField:       "field",
	KindFunc:        "func",
	KindConstructor: "constructor",
	KindEnd:         "end",
	KindPublic:      "public",
	KindPrivate:     "private",
	KindAbstract:    "abstract",
	KindOverride:    "override",
	KindAssign:      "'='",
	KindColon:       "':'",
	KindLParen:      "'('",
	KindRParen:      "')'",
	KindGreater:     "'>'",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// IsAttribute reports whether k is one of the declaration attribute keywords.
func (k Kind) IsAttribute() bool {
	return k >= KindPublic && k <= KindOverride
}

// IsPunct reports whether k is structural punctuation.
func (k Kind) IsPunct() bool {
	return k >= KindAssign
}

// Token is one lexical unit of a DRASM line. Value holds the literal text with
// quotes stripped for strings; Int and Float hold parsed numeric payloads.
type Token struct {
	Kind  Kind
	Value string
	Int   int64
	Float float64
	Line  int
}
