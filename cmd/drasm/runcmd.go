package main

import (
	"fmt"
	"os"

	"github.com/davecgh/go-spew/spew"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/agenthands/drasm/pkg/core/value"
	"github.com/agenthands/drasm/pkg/drasm"
	"github.com/agenthands/drasm/pkg/vm"
)

var (
	classFlag = cli.StringFlag{
		Name:  "class",
		Usage: "Class to instantiate (default: every public concrete class)",
	}
	ctorFlag = cli.IntFlag{
		Name:  "ctor",
		Usage: "Constructor index used with --class",
	}
	callFlag = cli.StringSliceFlag{
		Name:  "call",
		Usage: "Method to call on the --class instance, in order (repeatable)",
	}
	modelFlag = cli.BoolFlag{
		Name:  "model",
		Usage: "Also dump the parsed program model",
	}

	runCommand = cli.Command{
		Action:    runUnit,
		Name:      "run",
		Usage:     "Compile a unit, instantiate its classes and call methods",
		ArgsUsage: "<file>",
		Flags:     []cli.Flag{classFlag, ctorFlag, callFlag},
		Description: `
The run command compiles one unit and hosts it. Without --class every public,
non-abstract class is instantiated through its first constructor. With --class
only that class is instantiated and every --call method is invoked on the
instance; non-void results are printed.`,
	}
	checkCommand = cli.Command{
		Action:    checkUnits,
		Name:      "check",
		Usage:     "Compile units and report diagnostics without running them",
		ArgsUsage: "<file> [<file>...]",
	}
	dumpCommand = cli.Command{
		Action:    dumpUnit,
		Name:      "dump",
		Usage:     "Print the generated code of a unit",
		ArgsUsage: "<file>",
		Flags:     []cli.Flag{modelFlag},
	}
)

func runUnit(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return fmt.Errorf("run expects exactly one file")
	}
	r, cfg, err := makeRegistry(ctx)
	if err != nil {
		return err
	}
	src, err := readUnit(cfg, ctx.Args().First())
	if err != nil {
		return err
	}
	names, err := r.Load(src)
	if err != nil {
		return err
	}

	calls := ctx.StringSlice(callFlag.Name)
	name := ctx.String(classFlag.Name)
	if name == "" {
		if len(calls) > 0 {
			return fmt.Errorf("--call needs --class")
		}
		for _, n := range names {
			c, _ := r.Class(n)
			if !c.Public || c.Abstract {
				continue
			}
			if _, err := r.New(n); err != nil {
				return err
			}
		}
		return nil
	}

	obj, err := r.NewWith(name, ctx.Int(ctorFlag.Name))
	if err != nil {
		return err
	}
	for _, method := range calls {
		ret, err := r.Call(obj, method)
		if err != nil {
			return err
		}
		if ret.Type != value.TypeVoid {
			fmt.Printf("%s.%s = %s\n", name, method, ret.Format())
		}
	}
	return nil
}

func checkUnits(ctx *cli.Context) error {
	if ctx.NArg() == 0 {
		return fmt.Errorf("check expects at least one file")
	}
	cfg, err := makeConfig(ctx)
	if err != nil {
		return err
	}
	failed := 0
	for _, path := range ctx.Args() {
		src, err := readUnit(cfg, path)
		if err == nil {
			var mod *vm.Module
			if mod, err = drasm.Compile(src); err == nil {
				fmt.Printf("%s: ok (%d classes)\n", path, len(mod.Classes))
				continue
			}
		}
		failed++
		fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d units failed", failed, ctx.NArg())
	}
	return nil
}

func dumpUnit(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return fmt.Errorf("dump expects exactly one file")
	}
	cfg, err := makeConfig(ctx)
	if err != nil {
		return err
	}
	src, err := readUnit(cfg, ctx.Args().First())
	if err != nil {
		return err
	}
	if ctx.Bool(modelFlag.Name) {
		prog, err := drasm.Parse(src)
		if err != nil {
			return err
		}
		spew.Fdump(os.Stdout, prog)
	}
	mod, err := drasm.Compile(src)
	if err != nil {
		return err
	}
	for _, c := range mod.Classes {
		fmt.Printf("class %s public=%v abstract=%v\n", c.Name, c.Public, c.Abstract)
		for i, f := range c.Fields {
			fmt.Printf("  field %d %s : %s public=%v\n", i, f.Name, f.Type, f.Public)
		}
		for _, p := range c.Constructors {
			fmt.Print(vm.Disassemble(p))
		}
		for _, p := range c.Methods {
			fmt.Print(vm.Disassemble(p))
		}
	}
	return nil
}
