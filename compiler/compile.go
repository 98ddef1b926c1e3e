// Package compiler implements the dialogue-script front end: an
// indentation-aware lexer, a recovering recursive-descent parser, a
// batch static analyzer, and a code generator emitting the shared
// program representation.
package compiler

import (
	"fmt"
	"os"

	"github.com/tliron/commonlog"

	"github.com/loomlang/loom/manifest"
	"github.com/loomlang/loom/program"
)

var log = commonlog.GetLogger("loom.compiler")

// File is one named source text. A file may contain several nodes.
type File struct {
	Name    string
	Content string
}

// Option configures a compilation batch.
type Option func(*config)

type config struct {
	functions map[string]FunctionSignature
}

// WithFunction declares a host-provided function signature for the
// type checker, beyond the built-in standard library.
func WithFunction(name string, params []program.ValueType, returns program.ValueType) Option {
	return func(c *config) {
		c.functions[name] = FunctionSignature{Params: params, Returns: returns}
	}
}

// Compile runs the full pipeline over a batch of source files: parse,
// analyze, generate, assemble, validate. All files are compiled
// together so cross-file jumps and declarations resolve. When any
// error diagnostic is produced the Program is nil; diagnostics always
// cover the whole batch.
func Compile(files []File, opts ...Option) (*program.Program, []Diagnostic) {
	cfg := &config{functions: make(map[string]FunctionSignature)}
	for _, opt := range opts {
		opt(cfg)
	}

	var nodes []*NodeDecl
	var diags []Diagnostic
	for _, file := range files {
		parsed, parseDiags := ParseFile(file.Name, file.Content)
		nodes = append(nodes, parsed...)
		diags = append(diags, parseDiags...)
	}

	analysis, analysisDiags := Analyze(nodes, cfg.functions)
	diags = append(diags, analysisDiags...)

	p, genDiags := Generate(nodes, analysis)
	diags = append(diags, genDiags...)
	if HasErrors(diags) {
		return nil, diags
	}

	// Final gate: the generated Program must satisfy the same
	// invariants a deserialized one is held to.
	if err := program.Validate(p); err != nil {
		diags = append(diags, Diagnostic{
			Severity: SeverityError,
			Category: CategoryUnresolvedJump,
			Message:  fmt.Sprintf("internal: generated program failed validation: %v", err),
		})
		return nil, diags
	}

	log.Infof("compiled %d file(s): %s", len(files), p)
	return p, diags
}

// CompileProject compiles every source file named by a project
// manifest.
func CompileProject(m *manifest.Manifest, opts ...Option) (*program.Program, []Diagnostic) {
	paths, err := m.SourceFiles()
	if err != nil {
		return nil, []Diagnostic{{
			Severity: SeverityError,
			Category: CategorySyntax,
			Message:  fmt.Sprintf("cannot enumerate sources: %v", err),
		}}
	}
	var files []File
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, []Diagnostic{{
				Severity: SeverityError,
				Category: CategorySyntax,
				File:     path,
				Message:  fmt.Sprintf("cannot read source: %v", err),
			}}
		}
		files = append(files, File{Name: path, Content: string(content)})
	}
	return Compile(files, opts...)
}
