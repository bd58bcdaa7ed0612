package grammar

import (
	"github.com/alecthomas/participle/v2/lexer"
)

var VirLexer = lexer.MustStateful(lexer.Rules{
	"Root": {
		// Comments run to end of line
		{"Comment", `;[^\n]*`, nil},

		// SSA and global references carry their sigil
		{"LocalRef", `%[a-zA-Z_][a-zA-Z0-9_.]*`, nil},
		{"GlobalRef", `@[a-zA-Z_][a-zA-Z0-9_.]*`, nil},

		// Keywords, mnemonics, labels and type names
		{"Ident", `[a-zA-Z_][a-zA-Z0-9_.]*`, nil},

		// Integer literals, possibly signed
		{"Integer", `-?[0-9]+`, nil},

		// Quoted variable names in observe instructions
		{"String", `"[^"]*"`, nil},

		// Punctuation
		{"Punctuation", `[{}()\[\]:,=]`, nil},

		// Whitespace
		{"Whitespace", `[ \t\r\n]+`, nil},
	},
})
