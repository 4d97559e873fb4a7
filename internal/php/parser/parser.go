// Package parser turns PHP source into the ast tree using the tree-sitter
// PHP grammar.
package parser

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/php"
	"go.uber.org/zap"

	"github.com/xkilldash9x/phortress/internal/php/ast"
)

// Parser converts PHP source files into ast.File trees. A Parser is safe
// for concurrent use; every call to Parse allocates its own tree-sitter
// parser.
type Parser struct {
	logger *zap.Logger
}

// New creates a Parser that reports conversion gaps to logger.
func New(logger *zap.Logger) *Parser {
	return &Parser{logger: logger.Named("php_parser")}
}

// Result is the outcome of parsing a single file.
type Result struct {
	File *ast.File
	// SyntaxErrors is true when tree-sitter had to recover from malformed
	// input. The tree is still usable but may be missing statements.
	SyntaxErrors bool
	// Skipped counts grammar node types that have no ast equivalent.
	Skipped map[string]int
}

// Parse parses src and converts the concrete syntax tree.
func (p *Parser) Parse(ctx context.Context, filename string, src []byte) (*Result, error) {
	if len(src) == 0 {
		return &Result{File: &ast.File{Position: ast.At(1), Name: filename}, Skipped: map[string]int{}}, nil
	}

	tsParser := sitter.NewParser()
	defer tsParser.Close()
	tsParser.SetLanguage(php.GetLanguage())

	tree, err := tsParser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter failed to parse %s: %w", filename, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	res := &Result{SyntaxErrors: root.HasError()}
	if res.SyntaxErrors {
		p.logger.Warn("Tree-sitter detected syntax errors; analysis may be incomplete", zap.String("file", filename))
	}

	c := &converter{src: src, skipped: make(map[string]int)}
	res.File = &ast.File{
		Position: ast.At(line(root)),
		Name:     filename,
		Stmts:    c.stmtList(root),
	}
	res.Skipped = c.skipped

	if len(c.skipped) > 0 {
		p.logger.Debug("Some grammar constructs were not converted",
			zap.String("file", filename),
			zap.Any("skipped", c.skipped),
		)
	}
	return res, nil
}

// ParseString is a convenience wrapper for tests and small callers.
func (p *Parser) ParseString(filename, src string) (*ast.File, error) {
	res, err := p.Parse(context.Background(), filename, []byte(src))
	if err != nil {
		return nil, err
	}
	return res.File, nil
}

func line(n *sitter.Node) int {
	return int(n.StartPoint().Row) + 1
}
