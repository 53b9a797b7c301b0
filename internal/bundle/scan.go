package bundle

import (
	"strings"

	"github.com/yuin/gopher-lua/ast"
	"github.com/yuin/gopher-lua/parse"
)

// Import is a static require call found in a source file.
type Import struct {
	Spec string
	Line int
}

// Scan parses source and returns its static imports in source order. Only
// calls of the form require("name") and require "name" are reported; any
// other use of require is left to the runtime.
func Scan(source, name string) ([]Import, error) {
	chunk, err := parse.Parse(strings.NewReader(source), name)
	if err != nil {
		return nil, err
	}

	s := &scanner{seen: make(map[string]bool)}
	s.stmts(chunk)
	return s.imports, nil
}

type scanner struct {
	imports []Import
	seen    map[string]bool
}

func (s *scanner) stmts(stmts []ast.Stmt) {
	for _, stmt := range stmts {
		s.stmt(stmt)
	}
}

func (s *scanner) stmt(stmt ast.Stmt) {
	switch st := stmt.(type) {
	case *ast.AssignStmt:
		s.exprs(st.Lhs)
		s.exprs(st.Rhs)
	case *ast.LocalAssignStmt:
		s.exprs(st.Exprs)
	case *ast.FuncCallStmt:
		s.expr(st.Expr)
	case *ast.DoBlockStmt:
		s.stmts(st.Stmts)
	case *ast.WhileStmt:
		s.expr(st.Condition)
		s.stmts(st.Stmts)
	case *ast.RepeatStmt:
		s.stmts(st.Stmts)
		s.expr(st.Condition)
	case *ast.IfStmt:
		s.expr(st.Condition)
		s.stmts(st.Then)
		s.stmts(st.Else)
	case *ast.NumberForStmt:
		s.expr(st.Init)
		s.expr(st.Limit)
		s.expr(st.Step)
		s.stmts(st.Stmts)
	case *ast.GenericForStmt:
		s.exprs(st.Exprs)
		s.stmts(st.Stmts)
	case *ast.FuncDefStmt:
		if st.Func != nil {
			s.stmts(st.Func.Stmts)
		}
	case *ast.ReturnStmt:
		s.exprs(st.Exprs)
	}
}

func (s *scanner) exprs(exprs []ast.Expr) {
	for _, e := range exprs {
		s.expr(e)
	}
}

func (s *scanner) expr(expr ast.Expr) {
	switch e := expr.(type) {
	case nil:
	case *ast.FuncCallExpr:
		s.call(e)
	case *ast.AttrGetExpr:
		s.expr(e.Object)
		s.expr(e.Key)
	case *ast.TableExpr:
		for _, f := range e.Fields {
			s.expr(f.Key)
			s.expr(f.Value)
		}
	case *ast.FunctionExpr:
		s.stmts(e.Stmts)
	case *ast.LogicalOpExpr:
		s.expr(e.Lhs)
		s.expr(e.Rhs)
	case *ast.RelationalOpExpr:
		s.expr(e.Lhs)
		s.expr(e.Rhs)
	case *ast.StringConcatOpExpr:
		s.expr(e.Lhs)
		s.expr(e.Rhs)
	case *ast.ArithmeticOpExpr:
		s.expr(e.Lhs)
		s.expr(e.Rhs)
	case *ast.UnaryMinusOpExpr:
		s.expr(e.Expr)
	case *ast.UnaryNotOpExpr:
		s.expr(e.Expr)
	case *ast.UnaryLenOpExpr:
		s.expr(e.Expr)
	}
}

func (s *scanner) call(e *ast.FuncCallExpr) {
	if ident, ok := e.Func.(*ast.IdentExpr); ok && ident.Value == "require" && e.Receiver == nil && len(e.Args) > 0 {
		if str, ok := e.Args[0].(*ast.StringExpr); ok {
			if !s.seen[str.Value] {
				s.seen[str.Value] = true
				s.imports = append(s.imports, Import{Spec: str.Value, Line: e.Line()})
			}
		}
	}

	s.expr(e.Func)
	s.expr(e.Receiver)
	s.exprs(e.Args)
}
