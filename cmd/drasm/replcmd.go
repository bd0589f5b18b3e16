package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/agenthands/drasm/pkg/compiler/lexer"
	"github.com/agenthands/drasm/pkg/drasm"
	"github.com/agenthands/drasm/pkg/vm"
)

const (
	historyFile = ".drasm_history"
	promptMain  = "drasm> "
	promptCont  = "...... "
	replHelp    = `Enter class declarations; a unit is loaded once its last end is typed.
  :classes            list loaded classes
  :new <Class> [n]    instantiate Class through constructor n
  :call <method>      call a method on the current object
  :get <field>        print a field of the current object
  :dump <Class>       print the generated code of Class
  :quit               leave`
)

var replCommand = cli.Command{
	Action:    repl,
	Name:      "repl",
	Usage:     "Start an interactive session",
	ArgsUsage: "",
}

type session struct {
	reg *drasm.Registry
	obj *vm.Object
}

func repl(ctx *cli.Context) error {
	r, _, err := makeRegistry(ctx)
	if err != nil {
		return err
	}
	s := &session{reg: r}

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	if f, err := os.Open(histPath); err == nil {
		ln.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			ln.WriteHistory(f)
			f.Close()
		}
	}()

	fmt.Println(replHelp)
	for {
		unit, ok := readUnitLines(ln)
		if !ok {
			fmt.Println()
			return nil
		}
		text := strings.TrimSpace(unit)
		if text == "" {
			continue
		}
		ln.AppendHistory(strings.ReplaceAll(text, "\n", " "))

		if strings.HasPrefix(text, ":") {
			if text == ":quit" {
				return nil
			}
			if err := s.command(strings.Fields(text)); err != nil {
				fmt.Fprintln(os.Stderr, err)
			}
			continue
		}
		names, err := r.Load(unit)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			continue
		}
		fmt.Printf("loaded %s\n", strings.Join(names, ", "))
	}
}

// readUnitLines reads lines until every opened class, func or constructor
// has been closed by an end. Commands are returned on their own.
func readUnitLines(ln *liner.State) (string, bool) {
	var sb strings.Builder
	depth := 0
	for {
		prompt := promptMain
		if sb.Len() > 0 {
			prompt = promptCont
		}
		line, err := ln.Prompt(prompt)
		if err == liner.ErrPromptAborted {
			return "", true
		}
		if err != nil { // io.EOF or a closed terminal
			return sb.String(), sb.Len() > 0
		}
		if sb.Len() == 0 && strings.HasPrefix(strings.TrimSpace(line), ":") {
			return line, true
		}
		sb.WriteString(line)
		sb.WriteByte('\n')

		depth += nesting(line)
		if depth <= 0 {
			return sb.String(), true
		}
	}
}

// nesting reports how a source line changes the block depth.
func nesting(line string) int {
	d := 0
	for _, row := range lexer.Scan(line) {
		if len(row) == 0 {
			continue
		}
		switch row[0].Kind {
		case lexer.KindClass, lexer.KindFunc, lexer.KindConstructor:
			d++
		case lexer.KindEnd:
			d--
		}
	}
	return d
}

func (s *session) command(args []string) error {
	switch args[0] {
	case ":classes":
		names := s.reg.Classes()
		sort.Strings(names)
		fmt.Println(strings.Join(names, " "))

	case ":new":
		if len(args) < 2 {
			return fmt.Errorf("usage: :new <Class> [ctor]")
		}
		ctor := 0
		if len(args) > 2 {
			n, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("bad constructor index %q", args[2])
			}
			ctor = n
		}
		obj, err := s.reg.NewWith(args[1], ctor)
		if err != nil {
			return err
		}
		s.obj = obj
		fmt.Printf("current object is a new %s\n", obj.TypeName())

	case ":call":
		if len(args) != 2 {
			return fmt.Errorf("usage: :call <method>")
		}
		if s.obj == nil {
			return fmt.Errorf("no current object, use :new first")
		}
		ret, err := s.reg.Call(s.obj, args[1])
		if err != nil {
			return err
		}
		fmt.Println(ret.Format())

	case ":get":
		if len(args) != 2 {
			return fmt.Errorf("usage: :get <field>")
		}
		if s.obj == nil {
			return fmt.Errorf("no current object, use :new first")
		}
		v, err := s.obj.Get(args[1])
		if err != nil {
			return err
		}
		fmt.Println(v.Format())

	case ":dump":
		if len(args) != 2 {
			return fmt.Errorf("usage: :dump <Class>")
		}
		c, ok := s.reg.Class(args[1])
		if !ok {
			return fmt.Errorf("unknown class %s", args[1])
		}
		for _, p := range c.Constructors {
			fmt.Print(vm.Disassemble(p))
		}
		for _, p := range c.Methods {
			fmt.Print(vm.Disassemble(p))
		}

	default:
		return fmt.Errorf("unknown command %s, type :quit to exit", args[0])
	}
	return nil
}
