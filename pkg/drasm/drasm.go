// Package drasm runs the DRASM pipeline (source text to tokens to program
// model to executable module) and hosts the generated classes.
package drasm

import (
	"time"

	"github.com/inconshreveable/log15"
	"github.com/pkg/errors"

	"github.com/agenthands/drasm/pkg/compiler/ast"
	"github.com/agenthands/drasm/pkg/compiler/emitter"
	"github.com/agenthands/drasm/pkg/compiler/lexer"
	"github.com/agenthands/drasm/pkg/compiler/parser"
	"github.com/agenthands/drasm/pkg/vm"
)

var log = log15.New("pkg", "drasm")

// Prepare strips comments and blank lines, keeping source line numbers.
func Prepare(src string) []lexer.Line {
	return lexer.Prepare(src)
}

// Tokenize prepares src and returns one token row per kept line.
func Tokenize(src string) [][]lexer.Token {
	return lexer.Scan(src)
}

// Parse builds the program model of src.
func Parse(src string) (*ast.Program, error) {
	prog, err := parser.Parse(lexer.Scan(src))
	if err != nil {
		return nil, errors.WithMessage(err, "drasm: parse")
	}
	return prog, nil
}

// Compile runs the whole pipeline. On failure the error carries a
// *diag.Error (see diag.As) and no module is returned.
func Compile(src string) (*vm.Module, error) {
	start := time.Now()
	prog, err := Parse(src)
	if err != nil {
		log.Debug("Compilation failed", "stage", "parse", "err", err)
		return nil, err
	}
	mod, err := emitter.NewEmitter(prog).Emit()
	if err != nil {
		log.Debug("Compilation failed", "stage", "emit", "err", err)
		return nil, errors.WithMessage(err, "drasm: generate")
	}
	log.Debug("Compiled unit", "classes", len(mod.Classes), "elapsed", time.Since(start))
	return mod, nil
}
