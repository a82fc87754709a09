package solidify

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smoglang/solidify/pkg/bytecode"
	"github.com/smoglang/solidify/pkg/value"
)

type fakeBuiltins struct {
	names []string
}

func (f *fakeBuiltins) BuiltinCount() int { return len(f.names) }

func (f *fakeBuiltins) BuiltinName(idx int) (string, bool) {
	if idx < 0 || idx >= len(f.names) {
		return "", false
	}
	return f.names[idx], true
}

func dumpToString(t *testing.T, v value.Value, builtins BuiltinTable) string {
	t.Helper()
	var buf bytes.Buffer
	err := Dump(v, builtins, WithOutput(&buf))
	require.NoError(t, err)
	return buf.String()
}

func TestDumpClosureBasicShape(t *testing.T) {
	proto := &value.Prototype{
		Name:     "f",
		NStack:   2,
		ArgCount: 1,
		Constants: []value.Value{
			int64(42),
			"hello",
		},
		Code: []bytecode.Instruction{
			{Op: bytecode.OpPush, Operand: 1},
			{Op: bytecode.OpReturn},
		},
	}
	closure := &value.Closure{Proto: proto}

	out := dumpToString(t, closure, &fakeBuiltins{})
	assert.Contains(t, out, "be_local_closure(f,")
	assert.Contains(t, out, "/* K0 */ be_const_int(42)")
	assert.Contains(t, out, "/* K1 */ be_nested_str(hello)")
}

func TestDumpClassForwardDeclaresBeforeMethod(t *testing.T) {
	classA := &value.Class{Name: "A"}
	proto := &value.Prototype{Name: "m", ParentClass: classA}
	method := &value.Closure{Proto: proto}

	members := value.NewMap(4)
	require.NoError(t, members.Set("m", method))
	classA.Members = members

	out := dumpToString(t, classA, &fakeBuiltins{})
	declIdx := indexOf(t, out, "extern const bclass be_class_A;")
	methodIdx := indexOf(t, out, "be_local_closure(class_A_m,")
	assert.Less(t, declIdx, methodIdx)
}

func TestDumpClassBorrowedMethod(t *testing.T) {
	classA := &value.Class{Name: "A"}
	classB := &value.Class{Name: "B"}
	proto := &value.Prototype{Name: "m", ParentClass: classB}
	method := &value.Closure{Proto: proto}

	members := value.NewMap(4)
	require.NoError(t, members.Set("m", method))
	classA.Members = members

	out := dumpToString(t, classA, &fakeBuiltins{})
	assert.Contains(t, out, "// Borrowed method 'm' from class 'B'")
	assert.Contains(t, out, "extern bclosure *class_B_m;")
}

func TestDumpMapKeyEncodingAndIntKey(t *testing.T) {
	m := value.NewMap(8)
	require.NoError(t, m.Set("k_X", int64(1)))
	require.NoError(t, m.Set(int64(7), "v?"))

	var buf bytes.Buffer
	st := &state{sink: NewSink(&buf), builtins: &fakeBuiltins{}}
	require.NoError(t, emitMap(st, m, false, ""))
	require.NoError(t, st.sink.Flush())

	out := buf.String()
	assert.Contains(t, out, "k_X_")
	assert.Contains(t, out, "be_const_key_int(7,")
	assert.Contains(t, out, "v_X3F")
}

func TestDumpBytesInstance(t *testing.T) {
	bytesClass := &value.Class{Kind: value.ClassBytes}
	ins := &value.Instance{
		Class: bytesClass,
		Members: []value.Value{
			[]byte{0xDE, 0xAD, 0xBE, 0xEF},
			int64(4),
		},
	}

	var buf bytes.Buffer
	st := &state{sink: NewSink(&buf), builtins: &fakeBuiltins{}}
	require.NoError(t, emitValue(st, ins, false, "", ""))
	require.NoError(t, st.sink.Flush())

	assert.Contains(t, buf.String(), "be_const_bytes_instance(DEADBEEF)")
}

func TestDumpNonBuiltinGlobalAborts(t *testing.T) {
	proto := &value.Prototype{
		Name: "f",
		Code: []bytecode.Instruction{
			{Op: bytecode.OpLoadGlobal, Operand: 2},
		},
	}
	closure := &value.Closure{Proto: proto}

	err := Dump(closure, &fakeBuiltins{names: []string{"a", "b"}}, WithOutput(&bytes.Buffer{}))
	require.Error(t, err)
	var solidifyErr *Error
	require.ErrorAs(t, err, &solidifyErr)
	assert.Equal(t, ErrNonBuiltinGlobal, solidifyErr.Kind)
}

func TestDumpUpvalClosureEmitsMarkerButContinues(t *testing.T) {
	proto := &value.Prototype{Name: "blk"}
	closure := &value.Closure{Proto: proto, UpvalCount: 1}

	out := dumpToString(t, closure, &fakeBuiltins{})
	assert.Contains(t, out, "Unsupported upvals in closure")
	assert.Contains(t, out, "be_local_closure(blk,")
}

func TestDumpModuleExportsNativeModule(t *testing.T) {
	mod := &value.Module{Name: "mymodule"}
	out := dumpToString(t, mod, &fakeBuiltins{})
	assert.Contains(t, out, "be_local_module(mymodule, \"mymodule\", NULL);")
	assert.Contains(t, out, "EXPORT_VARIABLE define_const_native_module(mymodule);")
}

func TestDumpRejectsUnsupportedTopLevel(t *testing.T) {
	err := Dump(int64(5), &fakeBuiltins{}, WithOutput(&bytes.Buffer{}))
	require.Error(t, err)
	var solidifyErr *Error
	require.ErrorAs(t, err, &solidifyErr)
	assert.Equal(t, ErrValue, solidifyErr.Kind)
}

func indexOf(t *testing.T, haystack, needle string) int {
	t.Helper()
	idx := bytesIndex(haystack, needle)
	require.GreaterOrEqual(t, idx, 0, "expected %q to contain %q", haystack, needle)
	return idx
}

func bytesIndex(haystack, needle string) int {
	return bytes.Index([]byte(haystack), []byte(needle))
}
