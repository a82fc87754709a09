// Package vm implements the bytecode virtual machine for smog.
//
// The VM is a stack-based interpreter that executes bytecode instructions.
// It's the final stage in the execution pipeline:
//
//   Source Code -> Lexer -> Parser -> AST -> Compiler -> Prototype -> VM -> Execution
//
// Virtual Machine Architecture:
//
// The VM uses a stack-based architecture with the following components:
//
//   1. Value Stack: Holds intermediate values during computation
//   2. Stack Pointer (sp): Tracks the top of the value stack
//   3. Local Variables: Array of local variable values
//   4. Global Variables: Indexed by a compiler.GlobalTable shared with the
//      compiler, so a prototype's GETGBL/SETGBL operands are builtin-table
//      indices rather than names
//   5. Constants: Pool of literal values owned by the running prototype
//
// Execution Model:
//
// The VM executes instructions sequentially using an instruction pointer (ip).
// Each instruction manipulates the stack, variables, or control flow. Blocks
// (closures) and methods each run in their own VM instance, with upvalues
// threaded through as captured cells rather than a shared locals array, so
// the same *value.Prototype a block ran from is exactly what the solidifier
// later walks.
//
// Error Handling:
//
// The VM returns errors for runtime problems:
//   - Stack overflow/underflow
//   - Invalid operands (e.g., adding string to number)
//   - Division by zero
//   - Unknown messages
package vm

import (
	"fmt"

	"github.com/smoglang/solidify/pkg/bytecode"
	"github.com/smoglang/solidify/pkg/compiler"
	"github.com/smoglang/solidify/pkg/value"
)

// upvalCell is a captured variable cell, shared between the defining
// frame's locals slot (or an ancestor closure's own cell) and every
// closure that closes over it.
type upvalCell struct {
	ptr *interface{}
}

func (c *upvalCell) get() interface{}  { return *c.ptr }
func (c *upvalCell) set(v interface{}) { *c.ptr = v }

// Block is the runtime form of a closure: a prototype plus the upvalue
// cells it captured at creation time. value.Closure is its
// serialization-facing counterpart (spec.md §4.6); this richer runtime
// object exists only inside the VM.
type Block struct {
	Proto       *value.Prototype
	Upvals      []*upvalCell
	HomeContext *VM
}

// NonLocalReturn implements Smalltalk-style `^expr` inside a block: it
// returns from the method that created the block, not just the block
// itself, by propagating as an error until it reaches its HomeContext.
type NonLocalReturn struct {
	Value       interface{}
	HomeContext *VM
}

func (nlr *NonLocalReturn) Error() string { return "non-local return" }

// Instance is a runtime object instance backed by a *value.Class.
type Instance struct {
	Class  *value.Class
	Fields []interface{}
}

// VM represents the virtual machine that executes bytecode.
type VM struct {
	stack []interface{} // Value stack for computation
	sp    int           // Stack pointer (index of next free slot)

	locals []interface{} // Local variable storage for this activation
	upvals []*upvalCell  // Upvalue cells captured by this activation's closure, if any

	globalTable *compiler.GlobalTable // Shared name<->index authority for globals
	globals     map[int]interface{}   // Global variable storage, keyed by GlobalTable index

	constants []value.Value      // Constant pool of the prototype currently running
	subProtos []*value.Prototype // Sub-prototype table of the prototype currently running

	self         interface{}  // Current receiver (self) for method execution
	currentClass *value.Class // Current class context (for super sends)

	homeContext *VM // Home context for non-local returns (nil for methods, set for blocks)

	callStack []StackFrame // Call stack for debugging and error reporting
	ip        int          // Current instruction pointer (for error reporting)
	debugger  *Debugger    // Optional debugger for interactive debugging
}

// New creates a new virtual machine instance bound to globals, the same
// compiler.GlobalTable the compiler used to resolve global references. A
// VM is reusable across Run calls; globals and locals persist, the stack
// is reset each time.
func New(globals *compiler.GlobalTable) *VM {
	if globals == nil {
		globals = compiler.NewGlobalTable()
	}
	return &VM{
		stack:       make([]interface{}, 1024),
		locals:      make([]interface{}, 256),
		globalTable: globals,
		globals:     make(map[int]interface{}),
		callStack:   make([]StackFrame, 0, 64),
	}
}

// Run executes a prototype's code on the virtual machine.
func (vm *VM) Run(p *value.Prototype) error {
	vm.sp = 0

	hasInitializedLocals := false
	for i := range vm.locals {
		if vm.locals[i] != nil {
			hasInitializedLocals = true
			break
		}
	}
	if !hasInitializedLocals {
		for i := range vm.locals {
			vm.locals[i] = nil
		}
	}

	vm.constants = p.Constants
	vm.subProtos = p.SubProtos

	vm.pushFrame(p.Name, "")
	defer vm.popFrame()

	for vm.ip = 0; vm.ip < len(p.Code); vm.ip++ {
		instr := p.Code[vm.ip]

		if vm.debugger != nil && vm.debugger.ShouldPause() {
			if !vm.debugger.InteractivePrompt(p) {
				return fmt.Errorf("debugging session terminated")
			}
		}

		switch instr.Op {
		case bytecode.OpPush:
			if instr.Operand < 0 || instr.Operand >= len(vm.constants) {
				return vm.runtimeError(fmt.Sprintf("constant index out of bounds: %d", instr.Operand))
			}
			if err := vm.push(vm.constants[instr.Operand]); err != nil {
				return vm.runtimeError(err.Error())
			}

		case bytecode.OpPop:
			if _, err := vm.pop(); err != nil {
				return err
			}

		case bytecode.OpDup:
			if vm.sp == 0 {
				return vm.runtimeError("stack underflow: cannot duplicate empty stack")
			}
			if err := vm.push(vm.stack[vm.sp-1]); err != nil {
				return vm.runtimeError(err.Error())
			}

		case bytecode.OpPushTrue:
			if err := vm.push(true); err != nil {
				return err
			}

		case bytecode.OpPushFalse:
			if err := vm.push(false); err != nil {
				return err
			}

		case bytecode.OpPushNil:
			if err := vm.push(nil); err != nil {
				return err
			}

		case bytecode.OpPushSelf:
			if err := vm.push(vm.self); err != nil {
				return err
			}

		case bytecode.OpLoadLocal:
			if instr.Operand < 0 || instr.Operand >= len(vm.locals) {
				return fmt.Errorf("local variable index out of bounds: %d", instr.Operand)
			}
			if err := vm.push(vm.locals[instr.Operand]); err != nil {
				return err
			}

		case bytecode.OpStoreLocal:
			if instr.Operand < 0 || instr.Operand >= len(vm.locals) {
				return fmt.Errorf("local variable index out of bounds: %d", instr.Operand)
			}
			val, err := vm.pop()
			if err != nil {
				return err
			}
			vm.locals[instr.Operand] = val
			if err := vm.push(val); err != nil {
				return err
			}

		case bytecode.OpLoadUpval:
			if instr.Operand < 0 || instr.Operand >= len(vm.upvals) {
				return fmt.Errorf("upvalue index out of bounds: %d", instr.Operand)
			}
			if err := vm.push(vm.upvals[instr.Operand].get()); err != nil {
				return err
			}

		case bytecode.OpStoreUpval:
			if instr.Operand < 0 || instr.Operand >= len(vm.upvals) {
				return fmt.Errorf("upvalue index out of bounds: %d", instr.Operand)
			}
			val, err := vm.pop()
			if err != nil {
				return err
			}
			vm.upvals[instr.Operand].set(val)
			if err := vm.push(val); err != nil {
				return err
			}

		case bytecode.OpLoadGlobal:
			val, ok := vm.globals[instr.Operand]
			if !ok {
				name, _ := vm.globalTable.BuiltinName(instr.Operand)
				return fmt.Errorf("undefined global variable: %s", name)
			}
			if err := vm.push(val); err != nil {
				return err
			}

		case bytecode.OpStoreGlobal:
			val, err := vm.pop()
			if err != nil {
				return err
			}
			vm.globals[instr.Operand] = val
			if err := vm.push(val); err != nil {
				return err
			}

		case bytecode.OpSend, bytecode.OpSuperSend:
			selectorIdx, argCount := bytecode.DecodeSend(instr.Operand)
			if selectorIdx < 0 || selectorIdx >= len(vm.constants) {
				return vm.runtimeError(fmt.Sprintf("selector index out of bounds: %d", selectorIdx))
			}
			selector, ok := vm.constants[selectorIdx].(string)
			if !ok {
				return vm.runtimeError("expected string constant for selector")
			}

			args := make([]interface{}, argCount)
			for i := argCount - 1; i >= 0; i-- {
				arg, err := vm.pop()
				if err != nil {
					return vm.runtimeError(err.Error())
				}
				args[i] = arg
			}

			receiver, err := vm.pop()
			if err != nil {
				return vm.runtimeError(err.Error())
			}

			vm.pushFrame("message send", selector)
			var result interface{}
			if instr.Op == bytecode.OpSuperSend {
				instance, ok := receiver.(*Instance)
				if !ok {
					vm.popFrame()
					return vm.runtimeError("super can only be used within instance methods")
				}
				if vm.currentClass == nil {
					vm.popFrame()
					return vm.runtimeError("super used without class context")
				}
				result, err = vm.superSend(instance, selector, args)
			} else {
				result, err = vm.send(receiver, selector, args)
			}
			vm.popFrame()

			if err != nil {
				if _, isNonLocal := err.(*NonLocalReturn); isNonLocal {
					return err
				}
				return vm.runtimeError(err.Error())
			}
			if err := vm.push(result); err != nil {
				return vm.runtimeError(err.Error())
			}

		case bytecode.OpMakeClosure:
			if instr.Operand < 0 || instr.Operand >= len(vm.subProtos) {
				return fmt.Errorf("sub-prototype index out of bounds: %d", instr.Operand)
			}
			sub := vm.subProtos[instr.Operand]
			block := &Block{Proto: sub, HomeContext: vm.homeContext}
			if block.HomeContext == nil {
				block.HomeContext = vm
			}
			block.Upvals = make([]*upvalCell, len(sub.Upvals))
			for i, desc := range sub.Upvals {
				if desc.InStack {
					block.Upvals[i] = &upvalCell{ptr: &vm.locals[desc.Idx]}
				} else {
					block.Upvals[i] = vm.upvals[desc.Idx]
				}
			}
			if err := vm.push(block); err != nil {
				return err
			}

		case bytecode.OpMakeArray:
			elemCount := instr.Operand
			elements := make([]value.Value, elemCount)
			for i := elemCount - 1; i >= 0; i-- {
				elem, err := vm.pop()
				if err != nil {
					return err
				}
				elements[i] = elem
			}
			if err := vm.push(value.NewList(elements)); err != nil {
				return err
			}

		case bytecode.OpMakeDictionary:
			pairCount := instr.Operand
			m := value.NewMap(pairCount*2 + 1)
			pairs := make([][2]value.Value, pairCount)
			for i := pairCount - 1; i >= 0; i-- {
				val, err := vm.pop()
				if err != nil {
					return err
				}
				key, err := vm.pop()
				if err != nil {
					return err
				}
				pairs[i] = [2]value.Value{key, val}
			}
			for _, kv := range pairs {
				if err := m.Set(kv[0], kv[1]); err != nil {
					return fmt.Errorf("dictionary literal: %w", err)
				}
			}
			if err := vm.push(m); err != nil {
				return err
			}

		case bytecode.OpDefineClass:
			if instr.Operand < 0 || instr.Operand >= len(vm.constants) {
				return fmt.Errorf("constant index out of bounds: %d", instr.Operand)
			}
			class, ok := vm.constants[instr.Operand].(*value.Class)
			if !ok {
				return fmt.Errorf("expected *value.Class at constant[%d], got %T", instr.Operand, vm.constants[instr.Operand])
			}
			vm.globals[vm.globalTable.IDFor(class.Name)] = class

		case bytecode.OpNewObject:
			if instr.Operand < 0 || instr.Operand >= len(vm.constants) {
				return fmt.Errorf("constant index out of bounds: %d", instr.Operand)
			}
			name, ok := vm.constants[instr.Operand].(string)
			if !ok {
				return fmt.Errorf("expected string class name at constant[%d]", instr.Operand)
			}
			classVal, ok := vm.globals[vm.globalTable.IDFor(name)]
			if !ok {
				return fmt.Errorf("undefined class: %s", name)
			}
			class, ok := classVal.(*value.Class)
			if !ok {
				return fmt.Errorf("%s is not a class", name)
			}
			instance := &Instance{Class: class, Fields: make([]interface{}, vm.countAllFields(class))}
			if err := vm.push(instance); err != nil {
				return err
			}

		case bytecode.OpLoadField:
			instance, ok := vm.self.(*Instance)
			if !ok {
				return fmt.Errorf("LOAD_FIELD requires self to be an Instance, got %T", vm.self)
			}
			if instr.Operand < 0 || instr.Operand >= len(instance.Fields) {
				return fmt.Errorf("field index out of bounds: %d", instr.Operand)
			}
			if err := vm.push(instance.Fields[instr.Operand]); err != nil {
				return err
			}

		case bytecode.OpStoreField:
			instance, ok := vm.self.(*Instance)
			if !ok {
				return fmt.Errorf("STORE_FIELD requires self to be an Instance, got %T", vm.self)
			}
			if instr.Operand < 0 || instr.Operand >= len(instance.Fields) {
				return fmt.Errorf("field index out of bounds: %d", instr.Operand)
			}
			val, err := vm.pop()
			if err != nil {
				return err
			}
			instance.Fields[instr.Operand] = val
			if err := vm.push(val); err != nil {
				return err
			}

		case bytecode.OpJump:
			vm.ip = instr.Operand - 1

		case bytecode.OpJumpIfFalse:
			cond, err := vm.pop()
			if err != nil {
				return err
			}
			if b, ok := cond.(bool); ok && !b {
				vm.ip = instr.Operand - 1
			}

		case bytecode.OpReturn:
			return nil

		case bytecode.OpNonLocalReturn:
			var returnValue interface{}
			if vm.sp > 0 {
				returnValue = vm.stack[vm.sp-1]
			}
			if vm.homeContext != nil {
				return &NonLocalReturn{Value: returnValue, HomeContext: vm.homeContext}
			}
			return nil

		default:
			return fmt.Errorf("unknown opcode: %v", instr.Op)
		}
	}

	return nil
}

// send implements message dispatch: control-flow primitives on blocks and
// booleans, collection primitives on lists/maps, instance method lookup,
// and finally the arithmetic/comparison/IO primitives in primitives.go.
func (vm *VM) send(receiver interface{}, selector string, args []interface{}) (interface{}, error) {
	if block, ok := receiver.(*Block); ok {
		if selector == "value" || (len(selector) >= 6 && selector[:6] == "value:") {
			return vm.executeBlock(block, args)
		}
		switch selector {
		case "whileTrue:":
			bodyBlock, ok := oneBlockArg(args)
			if !ok {
				return nil, fmt.Errorf("whileTrue: expects 1 block argument")
			}
			for {
				result, err := vm.executeBlock(block, nil)
				if err != nil {
					return nil, err
				}
				cond, ok := result.(bool)
				if !ok || !cond {
					break
				}
				if _, err := vm.executeBlock(bodyBlock, nil); err != nil {
					return nil, err
				}
			}
			return nil, nil

		case "whileFalse:":
			bodyBlock, ok := oneBlockArg(args)
			if !ok {
				return nil, fmt.Errorf("whileFalse: expects 1 block argument")
			}
			for {
				result, err := vm.executeBlock(block, nil)
				if err != nil {
					return nil, err
				}
				cond, ok := result.(bool)
				if !ok || cond {
					break
				}
				if _, err := vm.executeBlock(bodyBlock, nil); err != nil {
					return nil, err
				}
			}
			return nil, nil
		}
	}

	if b, ok := receiver.(bool); ok {
		switch selector {
		case "ifTrue:":
			blk, ok := oneBlockArg(args)
			if !ok {
				return nil, fmt.Errorf("ifTrue: expects 1 block argument")
			}
			if b {
				return vm.executeBlock(blk, nil)
			}
			return nil, nil
		case "ifFalse:":
			blk, ok := oneBlockArg(args)
			if !ok {
				return nil, fmt.Errorf("ifFalse: expects 1 block argument")
			}
			if !b {
				return vm.executeBlock(blk, nil)
			}
			return nil, nil
		case "ifTrue:ifFalse:":
			if len(args) != 2 {
				return nil, fmt.Errorf("ifTrue:ifFalse: expects 2 arguments")
			}
			trueBlk, ok1 := args[0].(*Block)
			falseBlk, ok2 := args[1].(*Block)
			if !ok1 || !ok2 {
				return nil, fmt.Errorf("ifTrue:ifFalse: arguments must be blocks")
			}
			if b {
				return vm.executeBlock(trueBlk, nil)
			}
			return vm.executeBlock(falseBlk, nil)
		}
	}

	if num, ok := receiver.(int64); ok && selector == "timesRepeat:" {
		blk, ok := oneBlockArg(args)
		if !ok {
			return nil, fmt.Errorf("timesRepeat: expects 1 block argument")
		}
		for i := int64(0); i < num; i++ {
			if _, err := vm.executeBlock(blk, nil); err != nil {
				return nil, err
			}
		}
		return nil, nil
	}

	if list, ok := receiver.(*value.List); ok {
		switch selector {
		case "size":
			return int64(list.Len()), nil
		case "at:":
			idx, ok := oneIntArg(args)
			if !ok {
				return nil, fmt.Errorf("at: expects 1 integer argument")
			}
			if idx < 1 || idx > int64(list.Len()) {
				return nil, fmt.Errorf("array index out of bounds: %d", idx)
			}
			return list.At(int(idx - 1)), nil
		case "at:put:":
			if len(args) != 2 {
				return nil, fmt.Errorf("at:put: expects 2 arguments")
			}
			idx, ok := args[0].(int64)
			if !ok {
				return nil, fmt.Errorf("array index must be integer")
			}
			if idx < 1 || idx > int64(list.Len()) {
				return nil, fmt.Errorf("array index out of bounds: %d", idx)
			}
			list.Elems[idx-1] = args[1]
			return args[1], nil
		case "do:":
			blk, ok := oneBlockArg(args)
			if !ok {
				return nil, fmt.Errorf("do: expects 1 block argument")
			}
			for _, elem := range list.Elems {
				if _, err := vm.executeBlock(blk, []interface{}{elem}); err != nil {
					return nil, err
				}
			}
			return list, nil
		}
	}

	if class, ok := receiver.(*value.Class); ok {
		switch selector {
		case "new":
			instance := &Instance{Class: class, Fields: make([]interface{}, vm.countAllFields(class))}
			return instance, nil
		default:
			return vm.executeClassMethod(class, selector, args)
		}
	}

	if instance, ok := receiver.(*Instance); ok {
		return vm.executeMethod(instance, selector, args)
	}

	switch selector {
	case "+":
		return vm.add(receiver, args[0])
	case "-":
		return vm.subtract(receiver, args[0])
	case "*":
		return vm.multiply(receiver, args[0])
	case "/":
		return vm.divide(receiver, args[0])
	case "<":
		return vm.lessThan(receiver, args[0])
	case ">":
		return vm.greaterThan(receiver, args[0])
	case "<=":
		return vm.lessOrEqual(receiver, args[0])
	case ">=":
		return vm.greaterOrEqual(receiver, args[0])
	case "=":
		return vm.equal(receiver, args[0])
	case "~=":
		return vm.notEqual(receiver, args[0])
	case "println":
		fmt.Println(receiver)
		return receiver, nil
	case "print":
		fmt.Print(receiver)
		return receiver, nil

	case "httpGet:":
		url, ok := oneStringArg(args)
		if !ok {
			return nil, fmt.Errorf("httpGet: expects 1 string argument")
		}
		return vm.httpGet(url)

	case "httpPost:body:":
		url, body, ok := twoStringArgs(args)
		if !ok {
			return nil, fmt.Errorf("httpPost:body: expects 2 string arguments")
		}
		return vm.httpPost(url, body)

	case "aesEncrypt:key:":
		data, key, ok := twoStringArgs(args)
		if !ok {
			return nil, fmt.Errorf("aesEncrypt:key: expects 2 string arguments")
		}
		return vm.aesEncrypt(data, key)

	case "aesDecrypt:key:":
		data, key, ok := twoStringArgs(args)
		if !ok {
			return nil, fmt.Errorf("aesDecrypt:key: expects 2 string arguments")
		}
		return vm.aesDecrypt(data, key)

	case "aesGenerateKey":
		return vm.aesGenerateKey()

	case "sha256:":
		data, ok := oneStringArg(args)
		if !ok {
			return nil, fmt.Errorf("sha256: expects 1 string argument")
		}
		return vm.sha256Hash(data), nil

	case "sha512:":
		data, ok := oneStringArg(args)
		if !ok {
			return nil, fmt.Errorf("sha512: expects 1 string argument")
		}
		return vm.sha512Hash(data), nil

	case "md5:":
		data, ok := oneStringArg(args)
		if !ok {
			return nil, fmt.Errorf("md5: expects 1 string argument")
		}
		return vm.md5Hash(data), nil

	case "base64Encode:":
		data, ok := oneStringArg(args)
		if !ok {
			return nil, fmt.Errorf("base64Encode: expects 1 string argument")
		}
		return vm.base64Encode(data), nil

	case "base64Decode:":
		data, ok := oneStringArg(args)
		if !ok {
			return nil, fmt.Errorf("base64Decode: expects 1 string argument")
		}
		return vm.base64Decode(data)

	case "zipCompress:":
		data, ok := oneStringArg(args)
		if !ok {
			return nil, fmt.Errorf("zipCompress: expects 1 string argument")
		}
		return vm.zipCompress(data)

	case "zipDecompress:":
		data, ok := oneStringArg(args)
		if !ok {
			return nil, fmt.Errorf("zipDecompress: expects 1 string argument")
		}
		return vm.zipDecompress(data)

	case "gzipCompress:":
		data, ok := oneStringArg(args)
		if !ok {
			return nil, fmt.Errorf("gzipCompress: expects 1 string argument")
		}
		return vm.gzipCompress(data)

	case "gzipDecompress:":
		data, ok := oneStringArg(args)
		if !ok {
			return nil, fmt.Errorf("gzipDecompress: expects 1 string argument")
		}
		return vm.gzipDecompress(data)

	case "fileRead:":
		path, ok := oneStringArg(args)
		if !ok {
			return nil, fmt.Errorf("fileRead: expects 1 string argument")
		}
		return vm.fileRead(path)

	case "fileWrite:content:":
		path, content, ok := twoStringArgs(args)
		if !ok {
			return nil, fmt.Errorf("fileWrite:content: expects 2 string arguments")
		}
		return nil, vm.fileWrite(path, content)

	case "fileExists:":
		path, ok := oneStringArg(args)
		if !ok {
			return nil, fmt.Errorf("fileExists: expects 1 string argument")
		}
		return vm.fileExists(path), nil

	case "fileDelete:":
		path, ok := oneStringArg(args)
		if !ok {
			return nil, fmt.Errorf("fileDelete: expects 1 string argument")
		}
		return nil, vm.fileDelete(path)

	case "jsonParse:":
		data, ok := oneStringArg(args)
		if !ok {
			return nil, fmt.Errorf("jsonParse: expects 1 string argument")
		}
		return vm.jsonParse(data)

	case "jsonGenerate:":
		if len(args) != 1 {
			return nil, fmt.Errorf("jsonGenerate: expects 1 argument")
		}
		return vm.jsonGenerate(args[0])

	case "regexMatch:text:":
		pattern, text, ok := twoStringArgs(args)
		if !ok {
			return nil, fmt.Errorf("regexMatch:text: expects 2 string arguments")
		}
		return vm.regexMatch(pattern, text)

	case "regexFindAll:text:":
		pattern, text, ok := twoStringArgs(args)
		if !ok {
			return nil, fmt.Errorf("regexFindAll:text: expects 2 string arguments")
		}
		return vm.regexFindAll(pattern, text)

	case "regexReplace:text:with:":
		if len(args) != 3 {
			return nil, fmt.Errorf("regexReplace:text:with: expects 3 arguments")
		}
		pattern, ok1 := args[0].(string)
		text, ok2 := args[1].(string)
		replacement, ok3 := args[2].(string)
		if !ok1 || !ok2 || !ok3 {
			return nil, fmt.Errorf("regexReplace:text:with: arguments must be strings")
		}
		return vm.regexReplace(pattern, text, replacement)

	case "randomInt:max:":
		if len(args) != 2 {
			return nil, fmt.Errorf("randomInt:max: expects 2 arguments")
		}
		lo, ok1 := args[0].(int64)
		hi, ok2 := args[1].(int64)
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("randomInt:max: arguments must be integers")
		}
		return vm.randomInt(lo, hi)

	case "randomFloat":
		return vm.randomFloat()

	case "randomBytes:":
		n, ok := oneIntArg(args)
		if !ok {
			return nil, fmt.Errorf("randomBytes: expects 1 integer argument")
		}
		return vm.randomBytes(n)

	case "dateNow":
		return vm.dateNow(), nil

	case "dateFormat:format:":
		if len(args) != 2 {
			return nil, fmt.Errorf("dateFormat:format: expects 2 arguments")
		}
		ts, ok1 := args[0].(int64)
		format, ok2 := args[1].(string)
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("dateFormat:format: arguments must be integer and string")
		}
		return vm.dateFormat(ts, format), nil

	case "dateParse:format:":
		dateStr, format, ok := twoStringArgs(args)
		if !ok {
			return nil, fmt.Errorf("dateParse:format: expects 2 string arguments")
		}
		return vm.dateParse(dateStr, format)

	case "timeYear:":
		ts, ok := oneIntArg(args)
		if !ok {
			return nil, fmt.Errorf("timeYear: expects 1 integer argument")
		}
		return vm.timeYear(ts), nil

	case "timeMonth:":
		ts, ok := oneIntArg(args)
		if !ok {
			return nil, fmt.Errorf("timeMonth: expects 1 integer argument")
		}
		return vm.timeMonth(ts), nil

	case "timeDay:":
		ts, ok := oneIntArg(args)
		if !ok {
			return nil, fmt.Errorf("timeDay: expects 1 integer argument")
		}
		return vm.timeDay(ts), nil

	case "timeHour:":
		ts, ok := oneIntArg(args)
		if !ok {
			return nil, fmt.Errorf("timeHour: expects 1 integer argument")
		}
		return vm.timeHour(ts), nil

	case "timeMinute:":
		ts, ok := oneIntArg(args)
		if !ok {
			return nil, fmt.Errorf("timeMinute: expects 1 integer argument")
		}
		return vm.timeMinute(ts), nil

	case "timeSecond:":
		ts, ok := oneIntArg(args)
		if !ok {
			return nil, fmt.Errorf("timeSecond: expects 1 integer argument")
		}
		return vm.timeSecond(ts), nil

	default:
		return nil, fmt.Errorf("unknown message: %s", selector)
	}
}

// tryPrimitive is the narrower primitive set available as a fallback when
// instance method lookup fails: arithmetic, comparison, and basic IO. It
// excludes every selector send already routes through the full switch in
// send, so a miss here is a genuine "doesNotUnderstand".
func (vm *VM) tryPrimitive(receiver interface{}, selector string, args []interface{}) (interface{}, error) {
	if len(args) != 1 {
		switch selector {
		case "println":
			fmt.Println(receiver)
			return receiver, nil
		case "print":
			fmt.Print(receiver)
			return receiver, nil
		}
		return nil, fmt.Errorf("not a primitive")
	}
	switch selector {
	case "+":
		return vm.add(receiver, args[0])
	case "-":
		return vm.subtract(receiver, args[0])
	case "*":
		return vm.multiply(receiver, args[0])
	case "/":
		return vm.divide(receiver, args[0])
	case "<":
		return vm.lessThan(receiver, args[0])
	case ">":
		return vm.greaterThan(receiver, args[0])
	case "<=":
		return vm.lessOrEqual(receiver, args[0])
	case ">=":
		return vm.greaterOrEqual(receiver, args[0])
	case "=":
		return vm.equal(receiver, args[0])
	case "~=":
		return vm.notEqual(receiver, args[0])
	default:
		return nil, fmt.Errorf("not a primitive")
	}
}

func oneStringArg(args []interface{}) (string, bool) {
	if len(args) != 1 {
		return "", false
	}
	s, ok := args[0].(string)
	return s, ok
}

func twoStringArgs(args []interface{}) (string, string, bool) {
	if len(args) != 2 {
		return "", "", false
	}
	a, ok1 := args[0].(string)
	b, ok2 := args[1].(string)
	return a, b, ok1 && ok2
}

func oneBlockArg(args []interface{}) (*Block, bool) {
	if len(args) != 1 {
		return nil, false
	}
	blk, ok := args[0].(*Block)
	return blk, ok
}

func oneIntArg(args []interface{}) (int64, bool) {
	if len(args) != 1 {
		return 0, false
	}
	n, ok := args[0].(int64)
	return n, ok
}

// executeBlock runs a block's prototype with args bound to its parameter
// slots and its captured upvalue cells wired in.
func (vm *VM) executeBlock(block *Block, args []interface{}) (interface{}, error) {
	if len(args) != block.Proto.ArgCount {
		return nil, fmt.Errorf("block expects %d arguments, got %d", block.Proto.ArgCount, len(args))
	}

	blockVM := &VM{
		stack:       make([]interface{}, 1024),
		locals:      make([]interface{}, max(block.Proto.NStack, 256)),
		upvals:      block.Upvals,
		globalTable: vm.globalTable,
		globals:     vm.globals,
		self:        vm.self,
		homeContext: block.HomeContext,
	}
	copy(blockVM.locals, args)

	if err := blockVM.Run(block.Proto); err != nil {
		if nlr, ok := err.(*NonLocalReturn); ok {
			return nil, nlr
		}
		return nil, err
	}

	if blockVM.sp == 0 {
		return nil, nil
	}
	return blockVM.StackTop(), nil
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// push, pop, StackTop implement the value stack.
func (vm *VM) push(obj interface{}) error {
	if vm.sp >= len(vm.stack) {
		return fmt.Errorf("stack overflow")
	}
	vm.stack[vm.sp] = obj
	vm.sp++
	return nil
}

func (vm *VM) pop() (interface{}, error) {
	if vm.sp == 0 {
		return nil, fmt.Errorf("stack underflow")
	}
	vm.sp--
	return vm.stack[vm.sp], nil
}

// StackTop returns the top of the value stack without popping it.
func (vm *VM) StackTop() interface{} {
	if vm.sp == 0 {
		return nil
	}
	return vm.stack[vm.sp-1]
}

// countAllFields counts a class's declared fields plus all its
// superclasses' fields, superclass-first (matching value.Instance's
// layout convention).
func (vm *VM) countAllFields(class *value.Class) int {
	total := class.NVar
	for c := class.Super; c != nil; c = c.Super {
		total += c.NVar
	}
	return total
}

// lookupMethod walks class and its superclass chain for a non-static
// method matching selector.
func (vm *VM) lookupMethod(class *value.Class, selector string) (*value.Closure, *value.Class) {
	for c := class; c != nil; c = c.Super {
		if c.Members == nil {
			continue
		}
		if v, ok := c.Members.Get(selector); ok {
			if closure, ok := v.(*value.Closure); ok && !closure.IsStatic {
				return closure, c
			}
		}
	}
	return nil, nil
}

func (vm *VM) superSend(instance *Instance, selector string, args []interface{}) (interface{}, error) {
	if vm.currentClass.Super == nil {
		return nil, fmt.Errorf("class %s has no superclass to send '%s' to", vm.currentClass.Name, selector)
	}
	method, class := vm.lookupMethod(vm.currentClass.Super, selector)
	if method == nil {
		return nil, fmt.Errorf("superclass of %s does not understand message '%s'", vm.currentClass.Name, selector)
	}
	return vm.runMethod(method, class, instance, args)
}

func (vm *VM) executeMethod(instance *Instance, selector string, args []interface{}) (interface{}, error) {
	method, class := vm.lookupMethod(instance.Class, selector)
	if method == nil {
		result, err := vm.tryPrimitive(instance, selector, args)
		if err == nil {
			return result, nil
		}
		return nil, fmt.Errorf("instance of %s does not understand message '%s'", instance.Class.Name, selector)
	}
	return vm.runMethod(method, class, instance, args)
}

func (vm *VM) executeClassMethod(class *value.Class, selector string, args []interface{}) (interface{}, error) {
	if class.Members == nil {
		return nil, fmt.Errorf("class %s does not understand class message '%s'", class.Name, selector)
	}
	v, ok := class.Members.Get(selector)
	if !ok {
		return nil, fmt.Errorf("class %s does not understand class message '%s'", class.Name, selector)
	}
	method, ok := v.(*value.Closure)
	if !ok || !method.IsStatic {
		return nil, fmt.Errorf("class %s does not understand class message '%s'", class.Name, selector)
	}
	return vm.runMethod(method, class, class, args)
}

// runMethod runs a method closure's prototype in a fresh VM, with self
// bound to receiver and currentClass bound to the class the method was
// found on (for subsequent super sends).
func (vm *VM) runMethod(method *value.Closure, class *value.Class, receiver interface{}, args []interface{}) (interface{}, error) {
	if len(args) != method.Proto.ArgCount {
		return nil, fmt.Errorf("method %s expects %d arguments, got %d", method.Proto.Name, method.Proto.ArgCount, len(args))
	}

	methodVM := New(vm.globalTable)
	methodVM.globals = vm.globals
	methodVM.self = receiver
	methodVM.currentClass = class
	copy(methodVM.locals, args)

	if err := methodVM.Run(method.Proto); err != nil {
		if nlr, ok := err.(*NonLocalReturn); ok {
			if nlr.HomeContext == methodVM {
				return nlr.Value, nil
			}
			return nil, nlr
		}
		return nil, fmt.Errorf("error in method %s: %w", method.Proto.Name, err)
	}

	if methodVM.sp > 0 {
		return methodVM.stack[methodVM.sp-1], nil
	}
	return nil, nil
}

// add implements the + binary message for int64 and float64 operands.
func (vm *VM) add(a, b interface{}) (interface{}, error) {
	switch aVal := a.(type) {
	case int64:
		if bVal, ok := b.(int64); ok {
			return aVal + bVal, nil
		}
	case float64:
		if bVal, ok := b.(float64); ok {
			return aVal + bVal, nil
		}
	}
	return nil, fmt.Errorf("cannot add %T and %T", a, b)
}

// subtract implements the - binary message.
func (vm *VM) subtract(a, b interface{}) (interface{}, error) {
	switch aVal := a.(type) {
	case int64:
		if bVal, ok := b.(int64); ok {
			return aVal - bVal, nil
		}
	case float64:
		if bVal, ok := b.(float64); ok {
			return aVal - bVal, nil
		}
	}
	return nil, fmt.Errorf("cannot subtract %T and %T", a, b)
}

// multiply implements the * binary message.
func (vm *VM) multiply(a, b interface{}) (interface{}, error) {
	switch aVal := a.(type) {
	case int64:
		if bVal, ok := b.(int64); ok {
			return aVal * bVal, nil
		}
	case float64:
		if bVal, ok := b.(float64); ok {
			return aVal * bVal, nil
		}
	}
	return nil, fmt.Errorf("cannot multiply %T and %T", a, b)
}

// divide implements the / binary message.
func (vm *VM) divide(a, b interface{}) (interface{}, error) {
	switch aVal := a.(type) {
	case int64:
		if bVal, ok := b.(int64); ok {
			if bVal == 0 {
				return nil, fmt.Errorf("division by zero")
			}
			return aVal / bVal, nil
		}
	case float64:
		if bVal, ok := b.(float64); ok {
			if bVal == 0 {
				return nil, fmt.Errorf("division by zero")
			}
			return aVal / bVal, nil
		}
	}
	return nil, fmt.Errorf("cannot divide %T and %T", a, b)
}

func (vm *VM) lessThan(a, b interface{}) (interface{}, error) {
	switch aVal := a.(type) {
	case int64:
		if bVal, ok := b.(int64); ok {
			return aVal < bVal, nil
		}
	case float64:
		if bVal, ok := b.(float64); ok {
			return aVal < bVal, nil
		}
	}
	return nil, fmt.Errorf("cannot compare %T and %T", a, b)
}

func (vm *VM) greaterThan(a, b interface{}) (interface{}, error) {
	switch aVal := a.(type) {
	case int64:
		if bVal, ok := b.(int64); ok {
			return aVal > bVal, nil
		}
	case float64:
		if bVal, ok := b.(float64); ok {
			return aVal > bVal, nil
		}
	}
	return nil, fmt.Errorf("cannot compare %T and %T", a, b)
}

func (vm *VM) lessOrEqual(a, b interface{}) (interface{}, error) {
	switch aVal := a.(type) {
	case int64:
		if bVal, ok := b.(int64); ok {
			return aVal <= bVal, nil
		}
	case float64:
		if bVal, ok := b.(float64); ok {
			return aVal <= bVal, nil
		}
	}
	return nil, fmt.Errorf("cannot compare %T and %T", a, b)
}

func (vm *VM) greaterOrEqual(a, b interface{}) (interface{}, error) {
	switch aVal := a.(type) {
	case int64:
		if bVal, ok := b.(int64); ok {
			return aVal >= bVal, nil
		}
	case float64:
		if bVal, ok := b.(float64); ok {
			return aVal >= bVal, nil
		}
	}
	return nil, fmt.Errorf("cannot compare %T and %T", a, b)
}

// equal implements the = binary message using Go's == operator.
func (vm *VM) equal(a, b interface{}) (interface{}, error) {
	return a == b, nil
}

// notEqual implements the ~= binary message.
func (vm *VM) notEqual(a, b interface{}) (interface{}, error) {
	return a != b, nil
}

// GetGlobal retrieves a global variable by name, primarily for tests.
func (vm *VM) GetGlobal(name string) interface{} {
	return vm.globals[vm.globalTable.IDFor(name)]
}

// pushFrame adds a new call frame to the call stack.
func (vm *VM) pushFrame(name, selector string) {
	vm.callStack = append(vm.callStack, StackFrame{Name: name, Selector: selector, IP: vm.ip})
}

// popFrame removes the top call frame from the call stack.
func (vm *VM) popFrame() {
	if len(vm.callStack) > 0 {
		vm.callStack = vm.callStack[:len(vm.callStack)-1]
	}
}

// runtimeError wraps message as a RuntimeError carrying the current stack trace.
func (vm *VM) runtimeError(message string) error {
	return newRuntimeError(message, vm.callStack)
}

// EnableDebugger attaches and enables an interactive debugger on this VM.
func (vm *VM) EnableDebugger() *Debugger {
	vm.debugger = NewDebugger(vm)
	vm.debugger.Enable()
	return vm.debugger
}

// GetDebugger returns the VM's debugger, or nil if none is attached.
func (vm *VM) GetDebugger() *Debugger {
	return vm.debugger
}
