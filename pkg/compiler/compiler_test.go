package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smoglang/solidify/pkg/bytecode"
	"github.com/smoglang/solidify/pkg/parser"
	"github.com/smoglang/solidify/pkg/value"
)

func compile(t *testing.T, input string) (*Compiler, *value.Prototype) {
	t.Helper()
	p := parser.New(input)
	program, err := p.Parse()
	require.NoError(t, err)

	c := New(nil)
	proto, err := c.Compile(program)
	require.NoError(t, err)
	return c, proto
}

func TestCompileIntegerLiteral(t *testing.T) {
	_, bc := compile(t, "42")

	require.Len(t, bc.Code, 2)
	assert.Equal(t, bytecode.OpPush, bc.Code[0].Op)
	assert.Equal(t, bytecode.OpReturn, bc.Code[1].Op)
	require.Len(t, bc.Constants, 1)
	assert.Equal(t, int64(42), bc.Constants[0])
}

func TestCompileStringLiteral(t *testing.T) {
	_, bc := compile(t, "'Hello'")

	require.Len(t, bc.Code, 2)
	assert.Equal(t, bytecode.OpPush, bc.Code[0].Op)
	assert.Equal(t, "Hello", bc.Constants[0])
}

func TestCompileBooleanLiterals(t *testing.T) {
	tests := []struct {
		input      string
		expectedOp bytecode.Opcode
	}{
		{"true", bytecode.OpPushTrue},
		{"false", bytecode.OpPushFalse},
	}

	for _, tt := range tests {
		_, bc := compile(t, tt.input)
		require.Len(t, bc.Code, 2)
		assert.Equal(t, tt.expectedOp, bc.Code[0].Op)
	}
}

func TestCompileNilLiteral(t *testing.T) {
	_, bc := compile(t, "nil")
	assert.Equal(t, bytecode.OpPushNil, bc.Code[0].Op)
}

func TestCompileVariableDeclarationAndAssignment(t *testing.T) {
	input := "| x |\nx := 42"
	_, bc := compile(t, input)

	require.Len(t, bc.Code, 3)
	assert.Equal(t, bytecode.OpPush, bc.Code[0].Op)
	assert.Equal(t, bytecode.OpStoreLocal, bc.Code[1].Op)
	assert.Equal(t, 0, bc.Code[1].Operand)
}

func TestCompileUnaryMessageSend(t *testing.T) {
	_, bc := compile(t, "'Hello' println")

	require.Len(t, bc.Code, 3)
	assert.Equal(t, bytecode.OpPush, bc.Code[0].Op)
	assert.Equal(t, bytecode.OpSend, bc.Code[1].Op)

	found := false
	for _, c := range bc.Constants {
		if c == "println" {
			found = true
		}
	}
	assert.True(t, found, "expected 'println' in constants")
}

func TestCompileBinaryMessageSend(t *testing.T) {
	_, bc := compile(t, "3 + 4")

	require.Len(t, bc.Code, 4)
	assert.Equal(t, bytecode.OpPush, bc.Code[0].Op)
	assert.Equal(t, bytecode.OpPush, bc.Code[1].Op)
	assert.Equal(t, bytecode.OpSend, bc.Code[2].Op)
	assert.Equal(t, int64(3), bc.Constants[0])
	assert.Equal(t, int64(4), bc.Constants[1])
}

func TestCompileKeywordMessageSend(t *testing.T) {
	_, bc := compile(t, "point x: 10 y: 20")

	require.Len(t, bc.Code, 5)
	assert.Equal(t, bytecode.OpLoadGlobal, bc.Code[0].Op)
	assert.Equal(t, bytecode.OpPush, bc.Code[1].Op)
	assert.Equal(t, bytecode.OpPush, bc.Code[2].Op)
	assert.Equal(t, bytecode.OpSend, bc.Code[3].Op)
}

func TestCompileMultipleStatements(t *testing.T) {
	input := "42.\n'hello'.\ntrue."
	_, bc := compile(t, input)

	// PUSH 42, POP, PUSH "hello", POP, PUSH_TRUE, RETURN
	require.Len(t, bc.Code, 6)
	assert.Equal(t, bytecode.OpPush, bc.Code[0].Op)
	assert.Equal(t, bytecode.OpPop, bc.Code[1].Op)
	assert.Equal(t, bytecode.OpPush, bc.Code[2].Op)
	assert.Equal(t, bytecode.OpPop, bc.Code[3].Op)
	assert.Equal(t, bytecode.OpPushTrue, bc.Code[4].Op)
	assert.Equal(t, bytecode.OpReturn, bc.Code[5].Op)
}

func TestCompileSimpleBlock(t *testing.T) {
	_, bc := compile(t, "[ 42 ]")

	require.Len(t, bc.Code, 2)
	assert.Equal(t, bytecode.OpMakeClosure, bc.Code[0].Op)
	assert.Equal(t, bytecode.OpReturn, bc.Code[1].Op)
	require.Len(t, bc.SubProtos, 1)
}

func TestCompileBlockWithParameter(t *testing.T) {
	_, bc := compile(t, "[ :x | x + 1 ]")

	require.NotEmpty(t, bc.Code)
	assert.Equal(t, bytecode.OpMakeClosure, bc.Code[0].Op)
}

func TestCompileArrayLiteral(t *testing.T) {
	_, bc := compile(t, "#(1 2 3)")

	require.Len(t, bc.Code, 5)
	for i := 0; i < 3; i++ {
		assert.Equal(t, bytecode.OpPush, bc.Code[i].Op)
	}
	assert.Equal(t, bytecode.OpMakeArray, bc.Code[3].Op)
	assert.Equal(t, 3, bc.Code[3].Operand)
}

// TestCompileSharesGlobalTableAcrossCompiles verifies that reusing one
// Compiler's GlobalTable across several Compile calls keeps the same
// name resolving to the same builtin index, the behavior the REPL and
// solidify command both depend on.
func TestCompileSharesGlobalTableAcrossCompiles(t *testing.T) {
	globals := NewGlobalTable()
	c := New(globals)

	p1 := parser.New("x println")
	program1, err := p1.Parse()
	require.NoError(t, err)
	bc1, err := c.Compile(program1)
	require.NoError(t, err)
	firstIdx := bc1.Code[0].Operand

	p2 := parser.New("x println")
	program2, err := p2.Parse()
	require.NoError(t, err)
	bc2, err := c.Compile(program2)
	require.NoError(t, err)

	assert.Equal(t, firstIdx, bc2.Code[0].Operand)
	assert.Equal(t, 1, globals.BuiltinCount())
}

func TestGlobalTableAssignsStableIndices(t *testing.T) {
	g := NewGlobalTable()
	a := g.IDFor("foo")
	b := g.IDFor("bar")
	assert.Equal(t, a, g.IDFor("foo"))
	assert.NotEqual(t, a, b)
	assert.Equal(t, 2, g.BuiltinCount())

	name, ok := g.BuiltinName(a)
	require.True(t, ok)
	assert.Equal(t, "foo", name)

	_, ok = g.BuiltinName(99)
	assert.False(t, ok)
}
