// Command smog is the command-line front end for the smog language: a
// REPL, a source runner, a bytecode compiler/disassembler, and the
// solidifier that emits C source from a compiled value graph.
package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/smoglang/solidify/pkg/bytecode"
	"github.com/smoglang/solidify/pkg/compiler"
	"github.com/smoglang/solidify/pkg/parser"
	"github.com/smoglang/solidify/pkg/persist"
	"github.com/smoglang/solidify/pkg/solidify"
	"github.com/smoglang/solidify/pkg/value"
	"github.com/smoglang/solidify/pkg/vm"
)

const version = "0.5.0"

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "smog [file]",
		Short:   "smog - a simple object-oriented language",
		Version: version,
		Args:    cobra.MaximumNArgs(1),
		// With no subcommand, a bare file argument runs it; with neither,
		// smog drops into the REPL.
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				runREPL()
				return nil
			}
			return runFile(args[0])
		},
	}

	root.AddCommand(
		newRunCmd(),
		newReplCmd(),
		newCompileCmd(),
		newDisassembleCmd(),
		newSolidifyCmd(),
	)
	return root
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <file>",
		Short: "Run a .smog or .sg file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFile(args[0])
		},
	}
}

func newReplCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Start the interactive REPL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runREPL()
			return nil
		},
	}
}

func newCompileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compile <input.smog> [output.sg]",
		Short: "Compile a .smog file to .sg bytecode",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := ""
			if len(args) == 2 {
				out = args[1]
			}
			return compileFile(args[0], out)
		},
	}
}

func newDisassembleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "disassemble <file.sg>",
		Aliases: []string{"disasm"},
		Short:   "Disassemble a .sg bytecode file",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return disassembleFile(args[0])
		},
	}
	return cmd
}

func newSolidifyCmd() *cobra.Command {
	var literal bool
	var prefix string
	var output string

	cmd := &cobra.Command{
		Use:   "solidify <file>",
		Short: "Emit C source reconstructing a compiled .smog or .sg file as build-time constants",
		Long: "solidify walks the closure/class/module graph produced by compiling or\n" +
			"loading file and prints C source that, compiled and linked against the\n" +
			"smog VM runtime, reconstructs the same graph as read-only constants.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return solidifyFile(args[0], literal, prefix, output)
		},
	}
	cmd.Flags().BoolVar(&literal, "literal", false, "use the string-literal-friendly constructor family instead of the interned one")
	cmd.Flags().StringVar(&prefix, "prefix", "", "outermost symbol prefix for top-level closures")
	cmd.Flags().StringVar(&output, "output", "", "write generated C source to this file instead of stdout")
	return cmd
}

// runFile runs a .smog source file or .sg bytecode file, picking the path
// by extension: .sg files load straight into the VM, anything else is
// parsed and compiled first.
func runFile(filename string) error {
	if filepath.Ext(filename) == ".sg" {
		return runBytecodeFile(filename)
	}
	return runSourceFile(filename)
}

func runSourceFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}

	p := parser.New(string(data))
	program, err := p.Parse()
	if err != nil {
		return fmt.Errorf("parse error: %w", err)
	}

	globals := compiler.NewGlobalTable()
	c := compiler.New(globals)
	proto, err := c.Compile(program)
	if err != nil {
		return fmt.Errorf("compile error: %w", err)
	}

	machine := vm.New(globals)
	if err := machine.Run(proto); err != nil {
		return fmt.Errorf("runtime error: %w", err)
	}
	return nil
}

// runBytecodeFile loads and executes a pre-compiled .sg bytecode file.
// A decoded prototype carries no record of the global table it was
// compiled against, so it runs against a fresh one; its GETGBL/SETGBL
// operands are still the same small integers, just freshly named.
func runBytecodeFile(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}
	defer file.Close()

	decoded, err := persist.Decode(file)
	if err != nil {
		return fmt.Errorf("loading bytecode: %w", err)
	}
	proto, ok := decoded.(*value.Prototype)
	if !ok {
		return fmt.Errorf("%s does not hold a runnable prototype (got %T)", filename, decoded)
	}

	machine := vm.New(nil)
	if err := machine.Run(proto); err != nil {
		return fmt.Errorf("runtime error: %w", err)
	}
	return nil
}

// compileFile compiles a .smog source file to a .sg bytecode file so it
// can be distributed or loaded without the source, or fed to solidify
// directly.
func compileFile(inputFile, outputFile string) error {
	if outputFile == "" {
		if filepath.Ext(inputFile) == ".smog" {
			outputFile = inputFile[:len(inputFile)-len(".smog")] + ".sg"
		} else {
			outputFile = inputFile + ".sg"
		}
	}

	data, err := os.ReadFile(inputFile)
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}

	p := parser.New(string(data))
	program, err := p.Parse()
	if err != nil {
		return fmt.Errorf("parse error: %w", err)
	}

	c := compiler.New(nil)
	proto, err := c.Compile(program)
	if err != nil {
		return fmt.Errorf("compile error: %w", err)
	}

	outFile, err := os.Create(outputFile)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer outFile.Close()

	if err := persist.Encode(proto, outFile); err != nil {
		return fmt.Errorf("writing bytecode: %w", err)
	}

	fmt.Printf("Compiled %s -> %s\n", inputFile, outputFile)
	return nil
}

// solidifyFile compiles or loads filename and dumps its value graph as C
// source. .sg files are decoded as-is; anything else is compiled fresh.
func solidifyFile(filename string, literal bool, prefix, output string) error {
	globals := compiler.NewGlobalTable()
	var v value.Value

	if filepath.Ext(filename) == ".sg" {
		file, err := os.Open(filename)
		if err != nil {
			return fmt.Errorf("reading file: %w", err)
		}
		defer file.Close()
		v, err = persist.Decode(file)
		if err != nil {
			return fmt.Errorf("loading bytecode: %w", err)
		}
	} else {
		data, err := os.ReadFile(filename)
		if err != nil {
			return fmt.Errorf("reading file: %w", err)
		}
		p := parser.New(string(data))
		program, err := p.Parse()
		if err != nil {
			return fmt.Errorf("parse error: %w", err)
		}
		c := compiler.New(globals)
		v, err = c.Compile(program)
		if err != nil {
			return fmt.Errorf("compile error: %w", err)
		}
	}

	opts := []solidify.Option{solidify.WithLiteralMode(literal)}
	if prefix != "" {
		opts = append(opts, solidify.WithPrefix(prefix))
	}

	var out *os.File
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		out = f
	} else {
		out = os.Stdout
	}
	opts = append(opts, solidify.WithOutput(out))

	if err := solidify.Dump(v, globals, opts...); err != nil {
		return fmt.Errorf("solidify: %w", err)
	}
	return nil
}

// disassembleFile prints a human-readable view of a .sg file's decoded
// value: a prototype's constants and instructions, or a class's members,
// or a module's exported table.
func disassembleFile(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}
	defer file.Close()

	decoded, err := persist.Decode(file)
	if err != nil {
		return fmt.Errorf("loading bytecode: %w", err)
	}

	fmt.Printf("=== Disassembly: %s ===\n\n", filename)
	printValue(decoded, "")
	return nil
}

func printValue(v value.Value, indent string) {
	switch u := v.(type) {
	case *value.Prototype:
		printPrototype(u, indent)
	case *value.Closure:
		printPrototype(u.Proto, indent)
	case *value.Class:
		printClass(u, indent)
	case *value.Module:
		printModule(u, indent)
	default:
		fmt.Printf("%s%v\n", indent, u)
	}
}

func printPrototype(p *value.Prototype, indent string) {
	fmt.Printf("%sprototype %s (nstack=%d, argcount=%d, vararg=%t)\n", indent, p.Name, p.NStack, p.ArgCount, p.IsVararg)

	fmt.Printf("%s  constants:\n", indent)
	if len(p.Constants) == 0 {
		fmt.Printf("%s    (empty)\n", indent)
	}
	for i, c := range p.Constants {
		fmt.Printf("%s    [%d] %s\n", indent, i, formatConstant(c))
	}

	fmt.Printf("%s  code:\n", indent)
	if len(p.Code) == 0 {
		fmt.Printf("%s    (empty)\n", indent)
	}
	names := constNamer(p.Constants)
	for i, instr := range p.Code {
		fmt.Printf("%s    %4d: %s\n", indent, i, bytecode.Disassemble(instr, names, nil))
	}

	for i, sub := range p.SubProtos {
		fmt.Printf("%s  sub-proto[%d]:\n", indent, i)
		printPrototype(sub, indent+"    ")
	}
}

func printClass(c *value.Class, indent string) {
	super := "nil"
	if c.Super != nil {
		super = c.Super.Name
	}
	fmt.Printf("%sclass %s (extends %s, %d fields)\n", indent, c.Name, super, c.NVar)
	if c.Members == nil {
		return
	}
	for i := 0; i < c.Members.Cap(); i++ {
		key, val, _, used := c.Members.Slot(i)
		if !used {
			continue
		}
		fmt.Printf("%s  method %v:\n", indent, key)
		if closure, ok := val.(*value.Closure); ok {
			printPrototype(closure.Proto, indent+"    ")
		}
	}
}

func printModule(m *value.Module, indent string) {
	fmt.Printf("%smodule %s\n", indent, m.Name)
	if m.Table == nil {
		return
	}
	for i := 0; i < m.Table.Cap(); i++ {
		key, val, _, used := m.Table.Slot(i)
		if !used {
			continue
		}
		fmt.Printf("%s  %v:\n", indent, key)
		printValue(val, indent+"    ")
	}
}

// constNamer turns a prototype's constant pool into a bytecode.ConstName
// so Disassemble can annotate SEND/PUSH operands with the selector or
// literal they index.
func constNamer(consts []value.Value) bytecode.ConstName {
	return func(idx int) (string, bool) {
		if idx < 0 || idx >= len(consts) {
			return "", false
		}
		return formatConstant(consts[idx]), true
	}
}

func formatConstant(c value.Value) string {
	switch v := c.(type) {
	case int64:
		return fmt.Sprintf("int64: %d", v)
	case float64:
		return fmt.Sprintf("float64: %f", v)
	case string:
		return fmt.Sprintf("%q", v)
	case bool:
		return fmt.Sprintf("bool: %t", v)
	case nil:
		return "nil"
	case *value.Prototype:
		return fmt.Sprintf("prototype: %s", v.Name)
	case *value.Class:
		return fmt.Sprintf("class: %s", v.Name)
	default:
		return fmt.Sprintf("unknown: %T", c)
	}
}

// runREPL starts an interactive Read-Eval-Print Loop. A single VM and a
// single Compiler sharing one GlobalTable persist for the session:
// globals (any identifier not declared with `| name |`) carry across
// inputs, since the VM never resets its globals map between Run calls.
// A `| name |` block only declares a local for the statement that follows
// it in the same input, as on any other run of the compiler.
func runREPL() {
	fmt.Printf("smog REPL v%s\n", version)
	fmt.Println("Type ':help' for help, ':quit' or ':exit' to exit")
	fmt.Println()

	globals := compiler.NewGlobalTable()
	machine := vm.New(globals)
	c := compiler.New(globals)
	scanner := bufio.NewScanner(os.Stdin)

	var inputBuffer strings.Builder

	for {
		if inputBuffer.Len() == 0 {
			fmt.Print("smog> ")
		} else {
			fmt.Print("....> ")
		}

		if !scanner.Scan() {
			break
		}
		line := scanner.Text()

		if inputBuffer.Len() == 0 {
			switch strings.TrimSpace(line) {
			case ":quit", ":exit":
				fmt.Println("Goodbye!")
				return
			case ":help":
				printREPLHelp()
				continue
			case "":
				continue
			}
		}

		inputBuffer.WriteString(line)
		inputBuffer.WriteString("\n")

		input := strings.TrimSpace(inputBuffer.String())
		if !strings.HasSuffix(input, ".") && line != "" {
			continue
		}

		if input != "" {
			evalREPL(machine, c, input)
		}
		inputBuffer.Reset()
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
	}
}

// evalREPL parses, compiles, and runs one REPL input against the shared
// VM and compiler, printing the top-of-stack result on success.
func evalREPL(machine *vm.VM, c *compiler.Compiler, input string) {
	p := parser.New(input)
	program, err := p.Parse()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Parse error: %v\n", err)
		for _, e := range p.Errors() {
			fmt.Fprintf(os.Stderr, "  %s\n", e)
		}
		return
	}

	proto, err := c.Compile(program)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Compile error: %v\n", err)
		return
	}

	if err := machine.Run(proto); err != nil {
		fmt.Fprintf(os.Stderr, "Runtime error: %v\n", err)
		return
	}

	if result := machine.StackTop(); result != nil {
		fmt.Printf("=> %v\n", result)
	}
}

func printREPLHelp() {
	fmt.Println("smog REPL Help")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  :help     Show this help message")
	fmt.Println("  :quit     Exit the REPL")
	fmt.Println("  :exit     Exit the REPL")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  - Enter smog expressions and press Enter")
	fmt.Println("  - Statements should end with a period (.)")
	fmt.Println("  - Use | vars | to declare locals for the statement that follows")
	fmt.Println("  - Plain assignment to an undeclared name persists across inputs as a global")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  smog> x := 42.")
	fmt.Println("  smog> x + 8.")
	fmt.Println("  => 50")
	fmt.Println()
	fmt.Println("  smog> 'Hello, World!' println.")
	fmt.Println()
}
