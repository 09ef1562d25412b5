package formula

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/PSU3D0/formualizer-sub003/internal/ast"
	"github.com/PSU3D0/formualizer-sub003/internal/coord"
)

// Registry is the subset of the function registry (internal/functions)
// the parser needs in order to bubble up contains_volatile and mark
// Dynamic formulas, per spec.md §4.4 and §4.6. Declared as
// an interface here so formula does not need to import the concrete
// registry implementation.
type Registry interface {
	IsVolatile(name string) bool
	IsDynamic(name string) bool
}

// Context carries the information needed to resolve relative references
// against a current cell and to resolve sheet names to ids.
type Context struct {
	CurrentSheet coord.SheetId
	CurrentCoord coord.Coord
	ResolveSheet func(name string) (coord.SheetId, bool)
	Functions    Registry
}

// ParseError reports a formula parse failure with its source position.
type ParseError struct {
	Pos int
	Msg string
}

func (e *ParseError) Error() string { return fmt.Sprintf("formula parse error at %d: %s", e.Pos, e.Msg) }

// Parser is a recursive-descent parser over a token stream, producing
// nodes in a shared ast.Arena.
type Parser struct {
	toks  []Token
	pos   int
	ctx   *Context
	arena *ast.Arena

	sawVolatile bool
	sawDynamic  bool
}

// Parse tokenizes and parses src (without leading '='), returning the
// root node id. The arena is shared across all formulas in a workbook so
// that repeated sub-expressions across formulas could, in principle, be
// deduplicated by the ingest builder's AST cache (keyed on source
// text, not node identity).
func Parse(src string, ctx *Context, arena *ast.Arena) (ast.Id, error) {
	lx := New(src)
	toks, err := lx.Tokenize()
	if err != nil {
		return 0, err
	}
	p := &Parser{toks: toks, ctx: ctx, arena: arena}
	root, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	if p.cur().Kind != TokEOF {
		return 0, &ParseError{Pos: p.cur().Start, Msg: "unexpected trailing input: " + p.cur().Text}
	}
	n := arena.Get(root)
	n.ContainsVolatile = p.sawVolatile
	n.IsDynamic = p.sawDynamic
	return root, nil
}

func (p *Parser) cur() Token  { return p.toks[p.pos] }
func (p *Parser) advance() Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) expectOp(s string) error {
	if p.cur().Kind == TokOp && p.cur().Text == s {
		p.advance()
		return nil
	}
	return &ParseError{Pos: p.cur().Start, Msg: "expected '" + s + "'"}
}

func (p *Parser) add(n ast.Node) ast.Id { return p.arena.Add(n) }

// parseExpr is the entry point: comparison, the loosest-binding operator
// this parser accepts (there is no space-join union operator).
func (p *Parser) parseExpr() (ast.Id, error) {
	return p.parseCompare()
}

func (p *Parser) parseCompare() (ast.Id, error) {
	left, err := p.parseConcat()
	if err != nil {
		return 0, err
	}
	for p.cur().Kind == TokOp && isCompareOp(p.cur().Text) {
		op := p.advance().Text
		right, err := p.parseConcat()
		if err != nil {
			return 0, err
		}
		left = p.add(ast.Node{Kind: ast.KindBinaryOp, Op: op, Left: left, Right: right})
	}
	return left, nil
}

func isCompareOp(s string) bool {
	switch s {
	case "=", "<>", "<", ">", "<=", ">=":
		return true
	}
	return false
}

func (p *Parser) parseConcat() (ast.Id, error) {
	left, err := p.parseAdd()
	if err != nil {
		return 0, err
	}
	for p.cur().Kind == TokOp && p.cur().Text == "&" {
		p.advance()
		right, err := p.parseAdd()
		if err != nil {
			return 0, err
		}
		left = p.add(ast.Node{Kind: ast.KindBinaryOp, Op: "&", Left: left, Right: right})
	}
	return left, nil
}

func (p *Parser) parseAdd() (ast.Id, error) {
	left, err := p.parseMul()
	if err != nil {
		return 0, err
	}
	for p.cur().Kind == TokOp && (p.cur().Text == "+" || p.cur().Text == "-") {
		op := p.advance().Text
		right, err := p.parseMul()
		if err != nil {
			return 0, err
		}
		left = p.add(ast.Node{Kind: ast.KindBinaryOp, Op: op, Left: left, Right: right})
	}
	return left, nil
}

func (p *Parser) parseMul() (ast.Id, error) {
	left, err := p.parsePow()
	if err != nil {
		return 0, err
	}
	for p.cur().Kind == TokOp && (p.cur().Text == "*" || p.cur().Text == "/") {
		op := p.advance().Text
		right, err := p.parsePow()
		if err != nil {
			return 0, err
		}
		left = p.add(ast.Node{Kind: ast.KindBinaryOp, Op: op, Left: left, Right: right})
	}
	return left, nil
}

func (p *Parser) parsePow() (ast.Id, error) {
	left, err := p.parseUnary()
	if err != nil {
		return 0, err
	}
	if p.cur().Kind == TokOp && p.cur().Text == "^" {
		p.advance()
		right, err := p.parsePow() // right-associative
		if err != nil {
			return 0, err
		}
		left = p.add(ast.Node{Kind: ast.KindBinaryOp, Op: "^", Left: left, Right: right})
	}
	return left, nil
}

func (p *Parser) parseUnary() (ast.Id, error) {
	if p.cur().Kind == TokOp && (p.cur().Text == "-" || p.cur().Text == "+") {
		op := p.advance().Text
		operand, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		return p.add(ast.Node{Kind: ast.KindUnaryOp, Op: op, Left: operand}), nil
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() (ast.Id, error) {
	n, err := p.parsePrimary()
	if err != nil {
		return 0, err
	}
	for p.cur().Kind == TokPercent {
		p.advance()
		n = p.add(ast.Node{Kind: ast.KindUnaryOp, Op: "%", Left: n})
	}
	return n, nil
}

func (p *Parser) parsePrimary() (ast.Id, error) {
	tok := p.cur()
	switch tok.Kind {
	case TokNumber:
		p.advance()
		f, _ := strconv.ParseFloat(tok.Text, 64)
		return p.add(ast.Node{Kind: ast.KindLiteral, LitKind: ast.LitNumber, Num: f}), nil
	case TokString:
		p.advance()
		return p.add(ast.Node{Kind: ast.KindLiteral, LitKind: ast.LitText, Text: tok.Text}), nil
	case TokLParen:
		p.advance()
		inner, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		if err := p.expectCloseParen(); err != nil {
			return 0, err
		}
		return inner, nil
	case TokLBrace:
		return p.parseArrayLiteral()
	case TokIdent:
		return p.parseIdentLed()
	default:
		return 0, &ParseError{Pos: tok.Start, Msg: "unexpected token: " + tok.Text}
	}
}

func (p *Parser) expectCloseParen() error {
	if p.cur().Kind != TokRParen {
		return &ParseError{Pos: p.cur().Start, Msg: "expected ')'"}
	}
	p.advance()
	return nil
}

func (p *Parser) parseArrayLiteral() (ast.Id, error) {
	p.advance() // '{'
	var rows [][]ast.Id
	row := []ast.Id{}
	for {
		if p.cur().Kind == TokRBrace {
			p.advance()
			break
		}
		n, err := p.parseCompare()
		if err != nil {
			return 0, err
		}
		row = append(row, n)
		switch p.cur().Kind {
		case TokComma:
			p.advance()
		case TokSemicolon:
			p.advance()
			rows = append(rows, row)
			row = []ast.Id{}
		case TokRBrace:
			p.advance()
			rows = append(rows, row)
			return p.add(ast.Node{Kind: ast.KindArrayLit, Rows: rows}), nil
		default:
			return 0, &ParseError{Pos: p.cur().Start, Msg: "expected ',', ';' or '}' in array literal"}
		}
	}
	rows = append(rows, row)
	return p.add(ast.Node{Kind: ast.KindArrayLit, Rows: rows}), nil
}

// parseIdentLed handles everything that begins with an identifier token:
// function calls, sheet-qualified references, bare references, booleans,
// and named ranges.
func (p *Parser) parseIdentLed() (ast.Id, error) {
	tok := p.advance()
	name := tok.Text

	// sheet-qualified: Sheet1!A1 or Sheet1!A1:B2
	if p.cur().Kind == TokBang {
		p.advance()
		sheetID, ok := coord.SheetId(0), false
		if p.ctx != nil && p.ctx.ResolveSheet != nil {
			sheetID, ok = p.ctx.ResolveSheet(name)
		}
		return p.parseRefOrRange(sheetID, ok)
	}

	if p.cur().Kind == TokLParen {
		return p.parseCall(name)
	}

	if strings.EqualFold(name, "TRUE") {
		return p.add(ast.Node{Kind: ast.KindLiteral, LitKind: ast.LitBool, Bool: true}), nil
	}
	if strings.EqualFold(name, "FALSE") {
		return p.add(ast.Node{Kind: ast.KindLiteral, LitKind: ast.LitBool, Bool: false}), nil
	}

	if c, ok := parseCellRef(name); ok {
		return p.parseRefOrRangeFromCell(c)
	}

	// bare named range / table reference
	return p.add(ast.Node{Kind: ast.KindName, Name: name}), nil
}

func (p *Parser) parseCall(name string) (ast.Id, error) {
	p.advance() // '('
	var args []ast.Id
	if p.cur().Kind != TokRParen {
		for {
			a, err := p.parseCompare()
			if err != nil {
				return 0, err
			}
			args = append(args, a)
			if p.cur().Kind == TokComma {
				p.advance()
				continue
			}
			break
		}
	}
	if err := p.expectCloseParen(); err != nil {
		return 0, err
	}
	if p.ctx != nil && p.ctx.Functions != nil {
		if p.ctx.Functions.IsVolatile(name) {
			p.sawVolatile = true
		}
		if p.ctx.Functions.IsDynamic(name) {
			p.sawDynamic = true
		}
	}
	return p.add(ast.Node{Kind: ast.KindCall, Func: strings.ToUpper(name), Args: args}), nil
}

// parseRefOrRange parses a ref/range following an explicit sheet
// qualifier (Sheet1! already consumed).
func (p *Parser) parseRefOrRange(sheetID coord.SheetId, hasSheet bool) (ast.Id, error) {
	tok := p.cur()
	if tok.Kind != TokIdent {
		return 0, &ParseError{Pos: tok.Start, Msg: "expected cell reference after sheet qualifier"}
	}
	p.advance()
	c, ok := parseCellRef(tok.Text)
	if !ok {
		return 0, &ParseError{Pos: tok.Start, Msg: "invalid cell reference: " + tok.Text}
	}
	return p.finishRefOrRange(c, sheetID, hasSheet)
}

func (p *Parser) parseRefOrRangeFromCell(c coord.Coord) (ast.Id, error) {
	return p.finishRefOrRange(c, 0, false)
}

func (p *Parser) finishRefOrRange(start coord.Coord, sheetID coord.SheetId, hasSheet bool) (ast.Id, error) {
	if p.cur().Kind == TokColon {
		p.advance()
		tok := p.cur()
		if tok.Kind != TokIdent {
			return 0, &ParseError{Pos: tok.Start, Msg: "expected cell reference after ':'"}
		}
		p.advance()
		end, ok := parseCellRef(tok.Text)
		if !ok {
			return 0, &ParseError{Pos: tok.Start, Msg: "invalid cell reference: " + tok.Text}
		}
		r := coord.RangeRef{Sheet: sheetID, Start: start, End: end}.Normalized()
		return p.add(ast.Node{Kind: ast.KindRange, Sheet: sheetID, HasSheet: hasSheet, Range: r}), nil
	}
	return p.add(ast.Node{Kind: ast.KindRef, Sheet: sheetID, HasSheet: hasSheet, Ref: start}), nil
}

// parseCellRef parses an A1-style token (with optional $ markers) into a
// Coord. Returns ok=false if s is not shaped like a cell reference (e.g.
// it's a function/name identifier).
func parseCellRef(s string) (coord.Coord, bool) {
	i := 0
	colAbs := false
	if i < len(s) && s[i] == '$' {
		colAbs = true
		i++
	}
	colStart := i
	for i < len(s) && ((s[i] >= 'A' && s[i] <= 'Z') || (s[i] >= 'a' && s[i] <= 'z')) {
		i++
	}
	if i == colStart {
		return coord.Coord{}, false
	}
	colStr := strings.ToUpper(s[colStart:i])

	rowAbs := false
	if i < len(s) && s[i] == '$' {
		rowAbs = true
		i++
	}
	rowStart := i
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == rowStart || i != len(s) {
		return coord.Coord{}, false
	}
	row, err := strconv.ParseUint(s[rowStart:i], 10, 32)
	if err != nil {
		return coord.Coord{}, false
	}
	col := coord.ColumnIndex(colStr)
	if col == 0 {
		return coord.Coord{}, false
	}
	return coord.Coord{Row: uint32(row), Col: col, RowAbs: rowAbs, ColAbs: colAbs}, true
}
