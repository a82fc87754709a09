// Package persist serializes and deserializes solidify's value graph
// (pkg/value) to and from a compact binary form: the on-disk ".sg" unit
// that lets a compiled closure, class, or module be loaded without
// re-parsing or re-compiling source.
//
// This adapts the teacher's own bytecode file-format codec to the richer
// value model the solidifier operates on: a top-level unit is now a
// *value.Prototype, *value.Class, or *value.Module rather than a bare
// constants+instructions pair, and the constant pool may itself nest
// prototypes, classes, closures, maps, and lists.
//
// Binary Format Layout:
//
//	[Header]
//	  Magic Number (4 bytes): "SMOG" (0x534D4F47)
//	  Version (4 bytes): Format version number (currently 1)
//	  Flags (4 bytes): Reserved for future use
//	[Unit]
//	  Kind (1 byte): which of Prototype/Class/Module follows
//	  Body: the kind-specific encoding below
package persist

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/smoglang/solidify/pkg/bytecode"
	"github.com/smoglang/solidify/pkg/value"
)

const (
	// MagicNumber is the file signature for .sg files: "SMOG".
	MagicNumber uint32 = 0x534D4F47

	// FormatVersion is the current bytecode format version.
	FormatVersion uint32 = 1

	formatFlags uint32 = 0
)

// Unit kind tags, one per top-level value Dump accepts.
const (
	unitPrototype byte = 0x01
	unitClass     byte = 0x02
	unitModule    byte = 0x03
)

// Constant type identifiers, mirroring the dispatch table the solidifier's
// value emitter already switches on (pkg/solidify/value_emit.go).
const (
	constTypeInteger   byte = 0x01
	constTypeFloat64   byte = 0x02
	constTypeFloat32   byte = 0x03
	constTypeString    byte = 0x04
	constTypeBoolean   byte = 0x05
	constTypeNil       byte = 0x06
	constTypeIndex     byte = 0x07
	constTypeClass     byte = 0x08
	constTypeClosure   byte = 0x09
	constTypePrototype byte = 0x0A
	constTypeMap       byte = 0x0B
	constTypeList      byte = 0x0C
)

// Encode writes v to w in the .sg binary format. v must be a
// *value.Prototype, *value.Class, or *value.Module.
func Encode(v value.Value, w io.Writer) error {
	if err := writeHeader(w); err != nil {
		return fmt.Errorf("persist: write header: %w", err)
	}
	switch t := v.(type) {
	case *value.Prototype:
		if err := writeByte(w, unitPrototype); err != nil {
			return err
		}
		return writePrototype(w, t)
	case *value.Class:
		if err := writeByte(w, unitClass); err != nil {
			return err
		}
		return writeClass(w, t)
	case *value.Module:
		if err := writeByte(w, unitModule); err != nil {
			return err
		}
		return writeModule(w, t)
	default:
		return fmt.Errorf("persist: unsupported top-level unit type %T", v)
	}
}

// Decode reads a unit previously written by Encode.
func Decode(r io.Reader) (value.Value, error) {
	version, err := readHeader(r)
	if err != nil {
		return nil, fmt.Errorf("persist: read header: %w", err)
	}
	if version != FormatVersion {
		return nil, fmt.Errorf("persist: unsupported format version %d (expected %d)", version, FormatVersion)
	}

	kind, err := readByteVal(r)
	if err != nil {
		return nil, err
	}
	switch kind {
	case unitPrototype:
		return readPrototype(r)
	case unitClass:
		return readClass(r)
	case unitModule:
		return readModule(r)
	default:
		return nil, fmt.Errorf("persist: unknown unit kind 0x%02X", kind)
	}
}

func writeHeader(w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, MagicNumber); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, FormatVersion); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, formatFlags)
}

func readHeader(r io.Reader) (uint32, error) {
	var magic uint32
	if err := binary.Read(r, binary.LittleEndian, &magic); err != nil {
		return 0, err
	}
	if magic != MagicNumber {
		return 0, fmt.Errorf("invalid magic number: 0x%08X (expected 0x%08X)", magic, MagicNumber)
	}
	var version, flags uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return 0, err
	}
	if err := binary.Read(r, binary.LittleEndian, &flags); err != nil {
		return 0, err
	}
	return version, nil
}

func writeByte(w io.Writer, b byte) error {
	return binary.Write(w, binary.LittleEndian, b)
}

func readByteVal(r io.Reader) (byte, error) {
	var b byte
	err := binary.Read(r, binary.LittleEndian, &b)
	return b, err
}

func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := w.Write([]byte(s))
	return err
}

func readString(r io.Reader) (string, error) {
	var length uint32
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return "", err
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func writeStringSlice(w io.Writer, s []string) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(s))); err != nil {
		return err
	}
	for _, v := range s {
		if err := writeString(w, v); err != nil {
			return err
		}
	}
	return nil
}

func readStringSlice(r io.Reader) ([]string, error) {
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, err
	}
	out := make([]string, count)
	for i := range out {
		s, err := readString(r)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

func writeBool(w io.Writer, b bool) error {
	var v byte
	if b {
		v = 1
	}
	return writeByte(w, v)
}

func readBool(r io.Reader) (bool, error) {
	v, err := readByteVal(r)
	return v != 0, err
}

// writePrototype encodes the prototype's name, nstack/argc/vararg and the
// static-method flag, upvalue descriptors, the sub-prototype table and
// parent-class back-reference, the constant pool, and its bytecode — the
// fields the solidifier walks (spec.md §4.5) — in a fixed order, so
// decoding needs no lookahead.
func writePrototype(w io.Writer, p *value.Prototype) error {
	if err := writeString(w, p.Name); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, int32(p.NStack)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, int32(p.ArgCount)); err != nil {
		return err
	}
	if err := writeBool(w, p.IsVararg); err != nil {
		return err
	}
	if err := writeBool(w, p.IsStaticMethod); err != nil {
		return err
	}

	if err := binary.Write(w, binary.LittleEndian, uint32(len(p.Upvals))); err != nil {
		return err
	}
	for _, uv := range p.Upvals {
		if err := writeBool(w, uv.InStack); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, int32(uv.Idx)); err != nil {
			return err
		}
	}

	if err := binary.Write(w, binary.LittleEndian, uint32(len(p.SubProtos))); err != nil {
		return err
	}
	for _, sub := range p.SubProtos {
		if err := writePrototype(w, sub); err != nil {
			return err
		}
	}
	if err := writeBool(w, p.ParentClass != nil); err != nil {
		return err
	}
	if p.ParentClass != nil {
		if err := writeString(w, p.ParentClass.Name); err != nil {
			return err
		}
	}

	if err := binary.Write(w, binary.LittleEndian, uint32(len(p.Constants))); err != nil {
		return err
	}
	for _, c := range p.Constants {
		if err := writeValue(w, c); err != nil {
			return err
		}
	}

	if err := binary.Write(w, binary.LittleEndian, uint32(len(p.Code))); err != nil {
		return err
	}
	for _, instr := range p.Code {
		if err := writeByte(w, byte(instr.Op)); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, int32(instr.Operand)); err != nil {
			return err
		}
	}
	return nil
}

// readPrototype is writePrototype's inverse. The decoded ParentClass is a
// name-only stub (Name set, nothing else) — a full class object is only
// available when the enclosing class itself is decoded and relinks its
// methods; callers that need the real object look it up by name there.
func readPrototype(r io.Reader) (*value.Prototype, error) {
	name, err := readString(r)
	if err != nil {
		return nil, err
	}
	var nstack, argc int32
	if err := binary.Read(r, binary.LittleEndian, &nstack); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.LittleEndian, &argc); err != nil {
		return nil, err
	}
	vararg, err := readBool(r)
	if err != nil {
		return nil, err
	}
	static, err := readBool(r)
	if err != nil {
		return nil, err
	}

	var nUpvals uint32
	if err := binary.Read(r, binary.LittleEndian, &nUpvals); err != nil {
		return nil, err
	}
	upvals := make([]value.UpvalDesc, nUpvals)
	for i := range upvals {
		instack, err := readBool(r)
		if err != nil {
			return nil, err
		}
		var idx int32
		if err := binary.Read(r, binary.LittleEndian, &idx); err != nil {
			return nil, err
		}
		upvals[i] = value.UpvalDesc{InStack: instack, Idx: int(idx)}
	}

	var nSub uint32
	if err := binary.Read(r, binary.LittleEndian, &nSub); err != nil {
		return nil, err
	}
	subs := make([]*value.Prototype, nSub)
	for i := range subs {
		sub, err := readPrototype(r)
		if err != nil {
			return nil, err
		}
		subs[i] = sub
	}

	hasParent, err := readBool(r)
	if err != nil {
		return nil, err
	}
	var parent *value.Class
	if hasParent {
		parentName, err := readString(r)
		if err != nil {
			return nil, err
		}
		parent = &value.Class{Name: parentName}
	}

	var nConst uint32
	if err := binary.Read(r, binary.LittleEndian, &nConst); err != nil {
		return nil, err
	}
	consts := make([]value.Value, nConst)
	for i := range consts {
		c, err := readValue(r)
		if err != nil {
			return nil, err
		}
		consts[i] = c
	}

	var nCode uint32
	if err := binary.Read(r, binary.LittleEndian, &nCode); err != nil {
		return nil, err
	}
	code := make([]bytecode.Instruction, nCode)
	for i := range code {
		op, err := readByteVal(r)
		if err != nil {
			return nil, err
		}
		var operand int32
		if err := binary.Read(r, binary.LittleEndian, &operand); err != nil {
			return nil, err
		}
		code[i] = bytecode.Instruction{Op: bytecode.Opcode(op), Operand: int(operand)}
	}

	return &value.Prototype{
		Name:           name,
		NStack:         int(nstack),
		ArgCount:       int(argc),
		IsVararg:       vararg,
		IsStaticMethod: static,
		Upvals:         upvals,
		SubProtos:      subs,
		ParentClass:    parent,
		Constants:      consts,
		Code:           code,
	}, nil
}

func writeClosure(w io.Writer, c *value.Closure) error {
	if err := writeBool(w, c.IsStatic); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, int32(c.UpvalCount)); err != nil {
		return err
	}
	return writePrototype(w, c.Proto)
}

func readClosure(r io.Reader) (*value.Closure, error) {
	static, err := readBool(r)
	if err != nil {
		return nil, err
	}
	var upvalCount int32
	if err := binary.Read(r, binary.LittleEndian, &upvalCount); err != nil {
		return nil, err
	}
	proto, err := readPrototype(r)
	if err != nil {
		return nil, err
	}
	return &value.Closure{Proto: proto, UpvalCount: int(upvalCount), IsStatic: static}, nil
}

// writeClass encodes name, kind, instance-variable count, superclass name
// (empty if none), and the members map (selector -> closure).
func writeClass(w io.Writer, c *value.Class) error {
	if err := writeString(w, c.Name); err != nil {
		return err
	}
	if err := writeByte(w, byte(c.Kind)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, int32(c.NVar)); err != nil {
		return err
	}
	superName := ""
	if c.Super != nil {
		superName = c.Super.Name
	}
	if err := writeString(w, superName); err != nil {
		return err
	}

	var selectors []string
	var methods []*value.Closure
	if c.Members != nil {
		for i := 0; i < c.Members.Cap(); i++ {
			key, val, _, used := c.Members.Slot(i)
			if !used {
				continue
			}
			sel, isString := key.(string)
			closure, isClosure := val.(*value.Closure)
			if !isString || !isClosure {
				continue
			}
			selectors = append(selectors, sel)
			methods = append(methods, closure)
		}
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(selectors))); err != nil {
		return err
	}
	for i, sel := range selectors {
		if err := writeString(w, sel); err != nil {
			return err
		}
		if err := writeClosure(w, methods[i]); err != nil {
			return err
		}
	}
	return nil
}

func readClass(r io.Reader) (*value.Class, error) {
	name, err := readString(r)
	if err != nil {
		return nil, err
	}
	kind, err := readByteVal(r)
	if err != nil {
		return nil, err
	}
	var nvar int32
	if err := binary.Read(r, binary.LittleEndian, &nvar); err != nil {
		return nil, err
	}
	superName, err := readString(r)
	if err != nil {
		return nil, err
	}

	var nMembers uint32
	if err := binary.Read(r, binary.LittleEndian, &nMembers); err != nil {
		return nil, err
	}

	cls := &value.Class{Name: name, Kind: value.Kind(kind), NVar: int(nvar)}
	if superName != "" {
		cls.Super = &value.Class{Name: superName}
	}
	if nMembers > 0 {
		members := value.NewMap(int(nMembers) * 2)
		for i := uint32(0); i < nMembers; i++ {
			sel, err := readString(r)
			if err != nil {
				return nil, err
			}
			closure, err := readClosure(r)
			if err != nil {
				return nil, err
			}
			closure.Proto.ParentClass = cls
			if err := members.Set(sel, closure); err != nil {
				return nil, err
			}
		}
		cls.Members = members
	}
	return cls, nil
}

func writeModule(w io.Writer, m *value.Module) error {
	if err := writeString(w, m.Name); err != nil {
		return err
	}
	hasTable := m.Table != nil && m.Table.Len() > 0
	if err := writeBool(w, hasTable); err != nil {
		return err
	}
	if !hasTable {
		return nil
	}
	var names []string
	var values []value.Value
	for i := 0; i < m.Table.Cap(); i++ {
		key, val, _, used := m.Table.Slot(i)
		if !used {
			continue
		}
		name, ok := key.(string)
		if !ok {
			continue
		}
		names = append(names, name)
		values = append(values, val)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(names))); err != nil {
		return err
	}
	for i, name := range names {
		if err := writeString(w, name); err != nil {
			return err
		}
		if err := writeValue(w, values[i]); err != nil {
			return err
		}
	}
	return nil
}

func readModule(r io.Reader) (*value.Module, error) {
	name, err := readString(r)
	if err != nil {
		return nil, err
	}
	hasTable, err := readBool(r)
	if err != nil {
		return nil, err
	}
	mod := &value.Module{Name: name}
	if !hasTable {
		return mod, nil
	}
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, err
	}
	table := value.NewMap(int(count) * 2)
	for i := uint32(0); i < count; i++ {
		key, err := readString(r)
		if err != nil {
			return nil, err
		}
		val, err := readValue(r)
		if err != nil {
			return nil, err
		}
		if err := table.Set(key, val); err != nil {
			return nil, err
		}
	}
	mod.Table = table
	return mod, nil
}

// writeValue encodes one constant-pool entry, recursing for the
// structured tags (spec.md §4.2's dispatch table covers the same set).
func writeValue(w io.Writer, v value.Value) error {
	switch t := v.(type) {
	case nil:
		return writeByte(w, constTypeNil)
	case bool:
		if err := writeByte(w, constTypeBoolean); err != nil {
			return err
		}
		return writeBool(w, t)
	case int64:
		if err := writeByte(w, constTypeInteger); err != nil {
			return err
		}
		return binary.Write(w, binary.LittleEndian, t)
	case value.Index:
		if err := writeByte(w, constTypeIndex); err != nil {
			return err
		}
		return binary.Write(w, binary.LittleEndian, int64(t))
	case float32:
		if err := writeByte(w, constTypeFloat32); err != nil {
			return err
		}
		return binary.Write(w, binary.LittleEndian, t)
	case float64:
		if err := writeByte(w, constTypeFloat64); err != nil {
			return err
		}
		return binary.Write(w, binary.LittleEndian, t)
	case string:
		if err := writeByte(w, constTypeString); err != nil {
			return err
		}
		return writeString(w, t)
	case *value.Class:
		if err := writeByte(w, constTypeClass); err != nil {
			return err
		}
		return writeClass(w, t)
	case *value.Closure:
		if err := writeByte(w, constTypeClosure); err != nil {
			return err
		}
		return writeClosure(w, t)
	case *value.Prototype:
		if err := writeByte(w, constTypePrototype); err != nil {
			return err
		}
		return writePrototype(w, t)
	case *value.Map:
		if err := writeByte(w, constTypeMap); err != nil {
			return err
		}
		return writeMapValue(w, t)
	case *value.List:
		if err := writeByte(w, constTypeList); err != nil {
			return err
		}
		return writeListValue(w, t)
	default:
		return fmt.Errorf("persist: unsupported constant type %T", v)
	}
}

func readValue(r io.Reader) (value.Value, error) {
	tag, err := readByteVal(r)
	if err != nil {
		return nil, err
	}
	switch tag {
	case constTypeNil:
		return nil, nil
	case constTypeBoolean:
		return readBool(r)
	case constTypeInteger:
		var v int64
		err := binary.Read(r, binary.LittleEndian, &v)
		return v, err
	case constTypeIndex:
		var v int64
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return nil, err
		}
		return value.Index(v), nil
	case constTypeFloat32:
		var v float32
		err := binary.Read(r, binary.LittleEndian, &v)
		return v, err
	case constTypeFloat64:
		var v float64
		err := binary.Read(r, binary.LittleEndian, &v)
		return v, err
	case constTypeString:
		return readString(r)
	case constTypeClass:
		return readClass(r)
	case constTypeClosure:
		return readClosure(r)
	case constTypePrototype:
		return readPrototype(r)
	case constTypeMap:
		return readMapValue(r)
	case constTypeList:
		return readListValue(r)
	default:
		return nil, fmt.Errorf("persist: unknown constant type 0x%02X", tag)
	}
}

// writeMapValue encodes a map's compacted slot array directly, preserving
// chain links exactly like the solidifier's own map emitter does
// (pkg/solidify/map_emit.go), so decoding reconstructs identical lookup
// behavior rather than just the same key/value pairs.
func writeMapValue(w io.Writer, m *value.Map) error {
	m.Compact()
	slotCount := m.Cap()
	if err := binary.Write(w, binary.LittleEndian, uint32(slotCount)); err != nil {
		return err
	}
	for i := 0; i < slotCount; i++ {
		key, val, next, used := m.Slot(i)
		if err := writeBool(w, used); err != nil {
			return err
		}
		if !used {
			continue
		}
		if err := writeValue(w, key); err != nil {
			return err
		}
		if err := writeValue(w, val); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, int32(next)); err != nil {
			return err
		}
	}
	return nil
}

func readMapValue(r io.Reader) (*value.Map, error) {
	var slotCount uint32
	if err := binary.Read(r, binary.LittleEndian, &slotCount); err != nil {
		return nil, err
	}
	m := value.NewRawMap(int(slotCount))
	for i := uint32(0); i < slotCount; i++ {
		used, err := readBool(r)
		if err != nil {
			return nil, err
		}
		if !used {
			continue
		}
		key, err := readValue(r)
		if err != nil {
			return nil, err
		}
		val, err := readValue(r)
		if err != nil {
			return nil, err
		}
		var next int32
		if err := binary.Read(r, binary.LittleEndian, &next); err != nil {
			return nil, err
		}
		m.SetSlot(int(i), key, val, int(next))
	}
	return m, nil
}

func writeListValue(w io.Writer, l *value.List) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(l.Len())); err != nil {
		return err
	}
	for i := 0; i < l.Len(); i++ {
		if err := writeValue(w, l.At(i)); err != nil {
			return err
		}
	}
	return nil
}

func readListValue(r io.Reader) (*value.List, error) {
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, err
	}
	elems := make([]value.Value, count)
	for i := range elems {
		v, err := readValue(r)
		if err != nil {
			return nil, err
		}
		elems[i] = v
	}
	return &value.List{Elems: elems}, nil
}
