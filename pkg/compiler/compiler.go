// Package compiler compiles AST nodes into the value model's prototype
// form (pkg/value), the same representation the solidifier walks.
package compiler

import (
	"fmt"

	"github.com/smoglang/solidify/pkg/ast"
	"github.com/smoglang/solidify/pkg/bytecode"
	"github.com/smoglang/solidify/pkg/value"
)

// funcState is one function/block body being compiled: its own local
// slots, the upvalues it has so far needed to resolve against its
// enclosing funcState, its instruction stream, constant pool, and any
// nested block prototypes it has compiled so far.
type funcState struct {
	parent *funcState

	locals   map[string]int
	nLocals  int
	isVararg bool
	argCount int

	upvalNames []string
	upvals     []value.UpvalDesc

	instructions []bytecode.Instruction
	constants    []value.Value
	subProtos    []*value.Prototype
}

func newFuncState(parent *funcState) *funcState {
	return &funcState{parent: parent, locals: make(map[string]int)}
}

func (fs *funcState) declareLocal(name string) int {
	idx := fs.nLocals
	fs.locals[name] = idx
	fs.nLocals++
	return idx
}

func (fs *funcState) emit(op bytecode.Opcode, operand int) {
	fs.instructions = append(fs.instructions, bytecode.Instruction{Op: op, Operand: operand})
}

func (fs *funcState) addConstant(v value.Value) int {
	fs.constants = append(fs.constants, v)
	return len(fs.constants) - 1
}

// resolveUpval finds name in an enclosing funcState and returns this
// funcState's upvalue index for it, memoizing the descriptor chain the
// same way Lua's compiler threads upvalues through nested closures: each
// intermediate funcState gets its own upvalue entry pointing either
// directly at the ancestor's local slot (InStack) or at that ancestor's
// own upvalue index (chained).
func (fs *funcState) resolveUpval(name string) (int, bool) {
	if fs.parent == nil {
		return 0, false
	}
	for i, n := range fs.upvalNames {
		if n == name {
			return i, true
		}
	}
	if idx, ok := fs.parent.locals[name]; ok {
		fs.upvalNames = append(fs.upvalNames, name)
		fs.upvals = append(fs.upvals, value.UpvalDesc{InStack: true, Idx: idx})
		return len(fs.upvals) - 1, true
	}
	if idx, ok := fs.parent.resolveUpval(name); ok {
		fs.upvalNames = append(fs.upvalNames, name)
		fs.upvals = append(fs.upvals, value.UpvalDesc{InStack: false, Idx: idx})
		return len(fs.upvals) - 1, true
	}
	return 0, false
}

// Compiler compiles smog source (already parsed to an ast.Program) into a
// *value.Prototype, resolving global references against a shared
// GlobalTable rather than inventing a fresh name for each one.
type Compiler struct {
	globals *GlobalTable
	fs      *funcState
}

// New creates a Compiler. globals is the table its GETGBL/SETGBL
// instructions are checked against; pass the same table to a VM and to
// solidify.Dump so all three agree on what counts as a builtin.
func New(globals *GlobalTable) *Compiler {
	if globals == nil {
		globals = NewGlobalTable()
	}
	return &Compiler{globals: globals}
}

// Compile compiles a top-level program into its prototype, named
// "toplevel" (spec.md's solidifier only cares about closures/classes/
// modules it is explicitly handed; a freshly compiled program is wrapped
// in one so it can be solidified the same way any other closure is).
func (c *Compiler) Compile(program *ast.Program) (*value.Prototype, error) {
	c.fs = newFuncState(nil)
	for i, stmt := range program.Statements {
		if err := c.compileStatement(stmt); err != nil {
			return nil, err
		}
		// The last expression statement's value stays on the stack as the
		// program's result, so its trailing POP is dropped.
		if _, ok := stmt.(*ast.ExpressionStatement); ok && i == len(program.Statements)-1 {
			c.fs.instructions = c.fs.instructions[:len(c.fs.instructions)-1]
		}
	}
	c.fs.emit(bytecode.OpReturn, 0)

	return &value.Prototype{
		Name:      "toplevel",
		NStack:    c.fs.nLocals,
		Upvals:    c.fs.upvals,
		SubProtos: c.fs.subProtos,
		Constants: c.fs.constants,
		Code:      c.fs.instructions,
	}, nil
}

func (c *Compiler) compileStatement(stmt ast.Statement) error {
	switch s := stmt.(type) {
	case *ast.ExpressionStatement:
		if err := c.compileExpression(s.Expression); err != nil {
			return err
		}
		c.fs.emit(bytecode.OpPop, 0)
		return nil

	case *ast.VariableDeclaration:
		for _, name := range s.Names {
			c.fs.declareLocal(name)
		}
		return nil

	case *ast.ReturnStatement:
		if err := c.compileExpression(s.Value); err != nil {
			return err
		}
		if c.fs.parent != nil {
			c.fs.emit(bytecode.OpNonLocalReturn, 0)
		} else {
			c.fs.emit(bytecode.OpReturn, 0)
		}
		return nil

	default:
		return fmt.Errorf("compiler: unknown statement type %T", stmt)
	}
}

func (c *Compiler) compileExpression(expr ast.Expression) error {
	switch e := expr.(type) {
	case *ast.IntegerLiteral:
		idx := c.fs.addConstant(e.Value)
		c.fs.emit(bytecode.OpPush, idx)
		return nil

	case *ast.FloatLiteral:
		idx := c.fs.addConstant(e.Value)
		c.fs.emit(bytecode.OpPush, idx)
		return nil

	case *ast.StringLiteral:
		idx := c.fs.addConstant(e.Value)
		c.fs.emit(bytecode.OpPush, idx)
		return nil

	case *ast.BooleanLiteral:
		if e.Value {
			c.fs.emit(bytecode.OpPushTrue, 0)
		} else {
			c.fs.emit(bytecode.OpPushFalse, 0)
		}
		return nil

	case *ast.NilLiteral:
		c.fs.emit(bytecode.OpPushNil, 0)
		return nil

	case *ast.ArrayLiteral:
		for _, el := range e.Elements {
			if err := c.compileExpression(el); err != nil {
				return err
			}
		}
		c.fs.emit(bytecode.OpMakeArray, len(e.Elements))
		return nil

	case *ast.Identifier:
		return c.compileLoad(e.Name)

	case *ast.Assignment:
		if err := c.compileExpression(e.Value); err != nil {
			return err
		}
		return c.compileStore(e.Name)

	case *ast.MessageSend:
		isSuper := false
		if recv, ok := e.Receiver.(*ast.Identifier); ok && recv.Name == "super" {
			isSuper = true
			c.fs.emit(bytecode.OpPushSelf, 0)
		} else if err := c.compileExpression(e.Receiver); err != nil {
			return err
		}
		for _, arg := range e.Args {
			if err := c.compileExpression(arg); err != nil {
				return err
			}
		}
		selectorIdx := c.fs.addConstant(e.Selector)
		op := bytecode.OpSend
		if isSuper {
			op = bytecode.OpSuperSend
		}
		c.fs.emit(op, bytecode.EncodeSend(selectorIdx, len(e.Args)))
		return nil

	case *ast.BlockLiteral:
		return c.compileBlock(e)

	default:
		return fmt.Errorf("compiler: unknown expression type %T", expr)
	}
}

func (c *Compiler) compileLoad(name string) error {
	if name == "self" {
		c.fs.emit(bytecode.OpPushSelf, 0)
		return nil
	}
	if idx, ok := c.fs.locals[name]; ok {
		c.fs.emit(bytecode.OpLoadLocal, idx)
		return nil
	}
	if idx, ok := c.fs.resolveUpval(name); ok {
		c.fs.emit(bytecode.OpLoadUpval, idx)
		return nil
	}
	c.fs.emit(bytecode.OpLoadGlobal, c.globals.IDFor(name))
	return nil
}

func (c *Compiler) compileStore(name string) error {
	if idx, ok := c.fs.locals[name]; ok {
		c.fs.emit(bytecode.OpStoreLocal, idx)
		return nil
	}
	if idx, ok := c.fs.resolveUpval(name); ok {
		c.fs.emit(bytecode.OpStoreUpval, idx)
		return nil
	}
	c.fs.emit(bytecode.OpStoreGlobal, c.globals.IDFor(name))
	return nil
}

// compileBlock compiles a block literal into a nested prototype, appends
// it to the enclosing funcState's sub-prototype table, and emits
// OpMakeClosure referencing it by that table index.
func (c *Compiler) compileBlock(b *ast.BlockLiteral) error {
	parent := c.fs
	child := newFuncState(parent)
	child.argCount = len(b.Parameters)
	for _, p := range b.Parameters {
		child.declareLocal(p)
	}

	c.fs = child
	for i, stmt := range b.Body {
		if err := c.compileStatement(stmt); err != nil {
			c.fs = parent
			return err
		}
		// The block's value is its last expression statement's value.
		if _, ok := stmt.(*ast.ExpressionStatement); ok && i == len(b.Body)-1 {
			child.instructions = child.instructions[:len(child.instructions)-1]
		}
	}
	child.emit(bytecode.OpReturn, 0)
	c.fs = parent

	proto := &value.Prototype{
		Name:      "block",
		NStack:    child.nLocals,
		ArgCount:  child.argCount,
		Upvals:    child.upvals,
		SubProtos: child.subProtos,
		Constants: child.constants,
		Code:      child.instructions,
	}
	parent.subProtos = append(parent.subProtos, proto)
	parent.emit(bytecode.OpMakeClosure, len(parent.subProtos)-1)
	return nil
}

// CompileMethod compiles one class method body into a *value.Closure
// whose prototype's ParentClass is owner, the Go-level entry point used
// in place of source-level class-definition syntax (spec.md's solidifier
// only needs a closure/class graph to walk, not the source that produced
// it; see DESIGN.md for why class-literal parsing is out of scope here).
func (c *Compiler) CompileMethod(m *ast.Method, owner *value.Class) (*value.Closure, error) {
	parent := c.fs
	fs := newFuncState(nil)
	fs.argCount = len(m.Parameters)
	for _, p := range m.Parameters {
		fs.declareLocal(p)
	}

	c.fs = fs
	for _, stmt := range m.Body {
		if err := c.compileStatement(stmt); err != nil {
			c.fs = parent
			return nil, err
		}
	}
	fs.emit(bytecode.OpReturn, 0)
	c.fs = parent

	proto := &value.Prototype{
		Name:        m.Name,
		NStack:      fs.nLocals,
		ArgCount:    fs.argCount,
		Upvals:      fs.upvals,
		SubProtos:   fs.subProtos,
		ParentClass: owner,
		Constants:   fs.constants,
		Code:        fs.instructions,
	}
	return &value.Closure{Proto: proto}, nil
}

// CompileClass builds a *value.Class from an ast.Class, compiling each of
// its methods with CompileMethod and installing them in the class's
// member map under their selector.
func (c *Compiler) CompileClass(cl *ast.Class, super *value.Class) (*value.Class, error) {
	out := &value.Class{Name: cl.Name, NVar: len(cl.Fields), Super: super}
	if len(cl.Methods) == 0 {
		return out, nil
	}
	members := value.NewMap(len(cl.Methods) * 2)
	for _, m := range cl.Methods {
		closure, err := c.CompileMethod(m, out)
		if err != nil {
			return nil, fmt.Errorf("compiler: method %q: %w", m.Name, err)
		}
		if err := members.Set(m.Name, closure); err != nil {
			return nil, err
		}
	}
	out.Members = members
	return out, nil
}
