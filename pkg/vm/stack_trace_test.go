package vm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/smoglang/solidify/pkg/ast"
	"github.com/smoglang/solidify/pkg/bytecode"
	"github.com/smoglang/solidify/pkg/compiler"
	"github.com/smoglang/solidify/pkg/parser"
	"github.com/smoglang/solidify/pkg/value"
)

// TestStackTraceOnError tests that runtime errors include stack trace information.
func TestStackTraceOnError(t *testing.T) {
	source := `
| x y |
x := 10.
y := 0.
x / y
`

	p := parser.New(source)
	program, err := p.Parse()
	require.NoError(t, err)

	c := compiler.New(nil)
	proto, err := c.Compile(program)
	require.NoError(t, err)

	machine := New(nil)
	err = machine.Run(proto)
	if err == nil {
		t.Fatal("Expected division by zero error, got nil")
	}

	runtimeErr, ok := err.(*RuntimeError)
	if !ok {
		t.Fatalf("Expected RuntimeError, got %T: %v", err, err)
	}

	errMsg := runtimeErr.Error()
	if !strings.Contains(errMsg, "division by zero") {
		t.Errorf("Expected error message to contain 'division by zero', got: %v", errMsg)
	}
	if !strings.Contains(errMsg, "Stack trace:") {
		t.Errorf("Expected stack trace in error message, got: %v", errMsg)
	}
}

// TestStackTraceWithNestedCalls tests stack traces with nested message sends
// across methods that each call into the next via self. The call chain is
// driven from a hand-built top-level prototype (new TestClass, send
// method1) rather than class-literal source, since that syntax parsing is
// out of scope here; CompileClass/CompileMethod are the Go-level builders
// that stand in for it.
func TestStackTraceWithNestedCalls(t *testing.T) {
	c := compiler.New(nil)

	cls := &ast.Class{
		Name: "TestClass",
		Methods: []*ast.Method{
			{Name: "method1", Body: parseBody(t, "^self method2")},
			{Name: "method2", Body: parseBody(t, "^self method3")},
			{Name: "method3", Body: parseBody(t, "^1 / 0")},
		},
	}
	class, err := c.CompileClass(cls, nil)
	require.NoError(t, err)

	machine := New(nil)
	machine.globals[machine.globalTable.IDFor(class.Name)] = class

	topLevel := &value.Prototype{
		Name: "toplevel",
		Code: []bytecode.Instruction{
			{Op: bytecode.OpPush, Operand: 0},
			{Op: bytecode.OpNewObject, Operand: 0},
			{Op: bytecode.OpSend, Operand: bytecode.EncodeSend(1, 0)},
			{Op: bytecode.OpReturn, Operand: 0},
		},
		Constants: []value.Value{class.Name, "method1"},
	}

	err = machine.Run(topLevel)
	if err == nil {
		t.Fatal("Expected division by zero error, got nil")
	}

	runtimeErr, ok := err.(*RuntimeError)
	if !ok {
		t.Fatalf("Expected RuntimeError, got %T: %v", err, err)
	}

	errMsg := runtimeErr.Error()
	if !strings.Contains(errMsg, "division by zero") {
		t.Errorf("Expected error message to contain 'division by zero', got: %v", errMsg)
	}
	if !strings.Contains(errMsg, "Stack trace:") {
		t.Errorf("Expected stack trace in error message, got: %v", errMsg)
	}
	if len(runtimeErr.StackTrace) == 0 {
		t.Error("Expected non-empty stack trace")
	}
}

// TestNoStackTraceOnSuccess tests that successful execution doesn't create stack traces.
func TestNoStackTraceOnSuccess(t *testing.T) {
	source := `
| x y |
x := 10.
y := 2.
x / y
`

	p := parser.New(source)
	program, err := p.Parse()
	require.NoError(t, err)

	c := compiler.New(nil)
	proto, err := c.Compile(program)
	require.NoError(t, err)

	machine := New(nil)
	err = machine.Run(proto)
	if err != nil {
		t.Fatalf("Expected successful execution, got error: %v", err)
	}

	result := machine.StackTop()
	if result != int64(5) {
		t.Errorf("Expected result 5, got %v", result)
	}
}
