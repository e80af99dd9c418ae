// Package parser implements the Pointy-Lang grammar of SPEC_FULL.md §4.2,
// producing the syntax tree defined in package ast.
//
// The grammar as given is genuinely ambiguous between PARALLEL ("||") and
// POINTER/PPOINTER ("->"/"|->") once mixed in one expression — a real LALR
// table needs terminal precedence declarations the written grammar doesn't
// spell out. This parser resolves that ambiguity by giving PARALLEL higher
// precedence (binds tighter) than POINTER/PPOINTER, which share one
// left-associative precedence level with each other. That choice is forced
// by the worked example in §6: `downloader -> 5*parser || notifier ->
// router(...)` only produces the documented semantics (router runs after
// BOTH parser and notifier, each independently fed by downloader) if
// `5*parser || notifier` groups into one unit before either `->` applies.
// See DESIGN.md for the full derivation.
package parser

import (
	"fmt"
	"strconv"

	"github.com/vk/pointyflow/internal/ast"
	"github.com/vk/pointyflow/internal/lexer"
	"github.com/vk/pointyflow/internal/token"
)

// SyntaxError reports a parse failure at a specific token.
type SyntaxError struct {
	Pos      token.Position
	Expected string
	Got      token.Token
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("parser: expected %s, got %s at %s", e.Expected, e.Got, e.Pos)
}

// Parser turns a token stream into a Pointy-Lang syntax tree.
type Parser struct {
	toks []token.Token // COMMENT/DIRECTIVE already filtered out
	pos  int
}

// Parse lexes and parses a complete Pointy-Lang source string.
func Parse(src string) (ast.Node, error) {
	toks, err := lexer.Tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &Parser{toks: filterTrivia(toks)}
	if p.cur().Kind == token.EOF {
		return nil, &SyntaxError{Pos: p.cur().Pos, Expected: "expression", Got: p.cur()}
	}
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if p.cur().Kind != token.EOF {
		return nil, &SyntaxError{Pos: p.cur().Pos, Expected: "end of input", Got: p.cur()}
	}
	return expr, nil
}

func filterTrivia(toks []token.Token) []token.Token {
	out := make([]token.Token, 0, len(toks))
	for _, t := range toks {
		if t.Kind == token.COMMENT || t.Kind == token.DIRECTIVE {
			continue
		}
		out = append(out, t)
	}
	return out
}

func (p *Parser) cur() token.Token {
	return p.toks[p.pos]
}

func (p *Parser) peekNext() (token.Token, bool) {
	if p.pos+1 >= len(p.toks) {
		return token.Token{}, false
	}
	return p.toks[p.pos+1], true
}

func (p *Parser) advance() token.Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) expect(k token.Kind) (token.Token, error) {
	if p.cur().Kind != k {
		return token.Token{}, &SyntaxError{Pos: p.cur().Pos, Expected: k.String(), Got: p.cur()}
	}
	return p.advance(), nil
}

// parseExpression is the loosest precedence level: left-associative
// POINTER/PPOINTER chaining over parseParallel operands.
func (p *Parser) parseExpression() (ast.Node, error) {
	left, err := p.parseParallel()
	if err != nil {
		return nil, err
	}
	for p.cur().Kind == token.POINTER || p.cur().Kind == token.PPOINTER {
		opTok := p.advance()
		right, err := p.parseParallel()
		if err != nil {
			return nil, err
		}
		if opTok.Kind == token.POINTER {
			left = &ast.Seq{Left: left, Right: right, Position: opTok.Pos}
		} else {
			left = &ast.Broadcast{Left: left, Right: right, Position: opTok.Pos}
		}
	}
	return left, nil
}

// parseParallel is the tighter precedence level: left-associative PARALLEL
// chaining over atoms.
func (p *Parser) parseParallel() (ast.Node, error) {
	left, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	for p.cur().Kind == token.PARALLEL {
		opTok := p.advance()
		right, err := p.parseAtom()
		if err != nil {
			return nil, err
		}
		left = &ast.Parallel{Left: left, Right: right, Position: opTok.Pos}
	}
	return left, nil
}

// parseAtom handles the two NUMBER-prefixed productions (descriptor and
// factor) and otherwise defers to parseRetryOrTask.
func (p *Parser) parseAtom() (ast.Node, error) {
	if p.cur().Kind == token.NUMBER {
		next, ok := p.peekNext()
		switch {
		case ok && next.Kind == token.RETRY:
			return p.parseRetryOrTask()
		case ok && (next.Kind == token.POINTER || next.Kind == token.PPOINTER):
			numTok := p.advance()
			n, err := strconv.Atoi(numTok.Lexeme)
			if err != nil {
				return nil, &SyntaxError{Pos: numTok.Pos, Expected: "NUMBER", Got: numTok}
			}
			p.advance() // consume the POINTER/PPOINTER delimiter; it names no edge of
			// its own, it only disambiguates NUMBER-as-descriptor from
			// NUMBER-as-factor. The edge that actually connects this descriptor
			// to whatever follows is built by the next fold iteration up in
			// parseExpression, exactly like any other operand.
			child, err := p.parseRetryOrTask()
			if err != nil {
				return nil, err
			}
			return &ast.Descriptor{N: n, Child: child, Position: numTok.Pos}, nil
		default:
			return nil, &SyntaxError{Pos: p.cur().Pos, Expected: "'*', '->' or '|->' after NUMBER", Got: p.cur()}
		}
	}
	return p.parseRetryOrTask()
}

// parseRetryOrTask handles `factor RETRY task`, `task RETRY factor`, and the
// bare `task` production.
func (p *Parser) parseRetryOrTask() (ast.Node, error) {
	if p.cur().Kind == token.NUMBER {
		numTok := p.advance()
		n, err := strconv.Atoi(numTok.Lexeme)
		if err != nil {
			return nil, &SyntaxError{Pos: numTok.Pos, Expected: "NUMBER", Got: numTok}
		}
		if _, err := p.expect(token.RETRY); err != nil {
			return nil, err
		}
		task, err := p.parseTask()
		if err != nil {
			return nil, err
		}
		return &ast.RetryInverse{N: n, Task: task, Position: numTok.Pos}, nil
	}

	task, err := p.parseTask()
	if err != nil {
		return nil, err
	}
	if p.cur().Kind == token.RETRY {
		retryTok := p.advance()
		numTok, err := p.expect(token.NUMBER)
		if err != nil {
			return nil, err
		}
		n, err := strconv.Atoi(numTok.Lexeme)
		if err != nil {
			return nil, &SyntaxError{Pos: numTok.Pos, Expected: "NUMBER", Got: numTok}
		}
		return &ast.Retry{Task: task, N: n, Position: retryTok.Pos}, nil
	}
	return task, nil
}

// parseTask handles `TASKNAME` and left-recursive conditional-call chaining
// `task(a, b)(c, d)...`.
func (p *Parser) parseTask() (ast.Node, error) {
	nameTok, err := p.expect(token.TASKNAME)
	if err != nil {
		return nil, err
	}
	var node ast.Node = &ast.TaskRef{Name: nameTok.Lexeme, Position: nameTok.Pos}

	for p.cur().Kind == token.LPAREN {
		lparen := p.advance()
		group, err := p.parseTaskGroup()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RPAREN); err != nil {
			return nil, err
		}
		node = &ast.Call{Task: node, Group: group, Position: lparen.Pos}
	}
	return node, nil
}

// parseTaskGroup parses `expression (SEPERATOR expression)+`: at least two
// members, each a full expression.
func (p *Parser) parseTaskGroup() ([]ast.Node, error) {
	first, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	group := []ast.Node{first}
	for p.cur().Kind == token.SEPERATOR {
		p.advance()
		next, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		group = append(group, next)
	}
	if len(group) < 2 {
		return nil, &SyntaxError{Pos: p.cur().Pos, Expected: "',' and a second branch", Got: p.cur()}
	}
	return group, nil
}
