package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/loomlang/loom/compiler"
	"github.com/loomlang/loom/manifest"
	"github.com/loomlang/loom/program"
)

// compileProject loads the manifest at dir and compiles its sources,
// printing every diagnostic to stderr.
func compileProject(dir string) (*program.Program, *manifest.Manifest, error) {
	m, err := manifest.Load(dir)
	if err != nil {
		return nil, nil, err
	}

	p, diags := compiler.CompileProject(m)
	for _, d := range diags {
		fmt.Fprintln(os.Stderr, d)
	}
	if p == nil {
		return nil, nil, fmt.Errorf("compilation failed")
	}
	return p, m, nil
}

func runCompile(args []string, verbose bool) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}

	p, m, err := compileProject(dir)
	if err != nil {
		return err
	}

	data, err := program.Marshal(p)
	if err != nil {
		return err
	}
	out := m.OutputPath()
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return err
	}

	if verbose {
		names := p.NodeNames()
		sort.Strings(names)
		fmt.Printf("%s: %d nodes (%v), %d strings\n", out, len(names), names, len(p.Strings))
	} else {
		fmt.Printf("wrote %s (%d bytes)\n", out, len(data))
	}
	return nil
}

func runDisasm(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("disasm takes exactly one compiled program file")
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	p, err := program.Unmarshal(data)
	if err != nil {
		return err
	}
	fmt.Print(program.Disassemble(p))
	return nil
}
