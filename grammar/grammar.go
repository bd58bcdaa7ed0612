package grammar

// Node structs for the textual IR form (.vir). One file is one module:
//
//	module demo
//
//	func @classify(%argc: i32, %buf: ptr) line 10 {
//	entry:
//	  %cmp = icmp sgt %argc, 1 line 12
//	  br %cmp, then, else line 12
//	then:
//	  %x = add %argc, 4 line 13
//	  jmp join line 13
//	else:
//	  jmp join line 14
//	join:
//	  %y = phi i32 [then: %x], [else: %argc]
//	  ret %y line 15
//	}
//
// Textual order must respect dominance: apart from phi edges, an operand
// may only reference a value defined earlier in the function.

type Module struct {
	Name      string      `"module" @Ident`
	Functions []*Function `@@*`
}

type Function struct {
	Name   string   `"func" @GlobalRef`
	Params []*Param `"(" [ @@ { "," @@ } ] ")"`
	Line   *int     `[ "line" @Integer ]`
	Blocks []*Block `"{" @@* "}"`
}

type Param struct {
	Name string `@LocalRef ":"`
	Type string `@Ident`
}

type Block struct {
	Label  string   `@Ident ":"`
	Instrs []*Instr `@@*`
}

type Instr struct {
	Assign  *Assign   `  @@`
	Store   *Store    `| @@`
	Call    *CallStmt `| @@`
	Observe *Observe  `| @@`
	Br      *Br       `| @@`
	Jmp     *Jmp      `| @@`
	Ret     *Ret      `| @@`
}

type Assign struct {
	Result string `@LocalRef "="`
	Cmp    *Cmp   `( @@`
	Load   *Load  `| @@`
	Phi    *Phi   `| @@`
	Cast   *Cast  `| @@`
	Call   *Call  `| @@`
	Bin    *Bin   `| @@ )`
	Line   *int   `[ "line" @Integer ]`
}

type Cmp struct {
	Mnemonic string   `@("icmp" | "fcmp")`
	Pred     string   `@Ident`
	Left     *Operand `@@ ","`
	Right    *Operand `@@`
}

type Load struct {
	Type string   `"load" @Ident ","`
	Addr *Operand `@@`
}

type Phi struct {
	Type  string     `"phi" @Ident`
	Edges []*PhiEdge `@@ { "," @@ }`
}

type PhiEdge struct {
	Label string   `"[" @Ident ":"`
	Value *Operand `@@ "]"`
}

type Cast struct {
	Op    string   `@("zext" | "trunc")`
	Value *Operand `@@`
	To    string   `"to" @Ident`
}

type Call struct {
	Type   string     `"call" @Ident`
	Callee string     `@GlobalRef`
	Args   []*Operand `"(" [ @@ { "," @@ } ] ")"`
}

type Bin struct {
	Op    string   `@Ident`
	Left  *Operand `@@ ","`
	Right *Operand `@@`
}

type Store struct {
	Addr  *Operand `"store" @@ ","`
	Value *Operand `@@`
	Line  *int     `[ "line" @Integer ]`
}

type CallStmt struct {
	Callee string     `"call" @GlobalRef`
	Args   []*Operand `"(" [ @@ { "," @@ } ] ")"`
	Line   *int       `[ "line" @Integer ]`
}

type Observe struct {
	Loc     int      `"observe" @Integer ","`
	Branch  int      `@Integer ","`
	Var     string   `@String`
	Operand *Operand `[ "," @@ ]`
	Line    *int     `[ "line" @Integer ]`
}

type Br struct {
	Cond  *Operand `"br" @@ ","`
	True  string   `@Ident ","`
	False string   `@Ident`
	Line  *int     `[ "line" @Integer ]`
}

type Jmp struct {
	Target string `"jmp" @Ident`
	Line   *int   `[ "line" @Integer ]`
}

type Ret struct {
	Value *Operand `"ret" [ @@ ]`
	Line  *int     `[ "line" @Integer ]`
}

type Operand struct {
	Ref *string `  @LocalRef`
	Int *int64  `| @Integer`
}
