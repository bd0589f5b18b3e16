// drasm compiles and runs DRASM compilation units.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/inconshreveable/log15"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/agenthands/drasm/pkg/drasm"
	"github.com/agenthands/drasm/pkg/stdlib"
)

var (
	app = cli.NewApp()
	log = log15.New("cmd", "drasm")
)

func init() {
	app.Name = "drasm"
	app.Usage = "the DRASM compiler and host"
	app.Version = "0.1.0"
	app.Commands = []cli.Command{
		// See runcmd.go:
		runCommand,
		checkCommand,
		dumpCommand,
		// See replcmd.go:
		replCommand,
		// See config.go:
		dumpConfigCommand,
	}
	sort.Sort(cli.CommandsByName(app.Commands))

	app.Flags = []cli.Flag{
		configFileFlag,
		verbosityFlag,
		gasFlag,
		rootFlag,
	}

	app.Before = func(ctx *cli.Context) error {
		cfg, err := makeConfig(ctx)
		if err != nil {
			return err
		}
		return setupLogging(cfg.Log)
	}
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// makeRegistry builds the compiler and host of one command invocation.
func makeRegistry(ctx *cli.Context) (*drasm.Registry, drasmConfig, error) {
	cfg, err := makeConfig(ctx)
	if err != nil {
		return nil, cfg, err
	}
	c, err := drasm.NewCompiler(cfg.Compiler)
	if err != nil {
		return nil, cfg, err
	}
	return drasm.NewRegistry(c, os.Stdout), cfg, nil
}

// readUnit reads the unit at path through the source sandbox. Without a
// configured root the unit's own directory is the root.
func readUnit(cfg drasmConfig, path string) (string, error) {
	root, name := cfg.Source.Root, path
	if root == "" {
		root, name = filepath.Dir(path), filepath.Base(path)
	}
	src, err := stdlib.NewFSSandbox(root, cfg.Source.MaxFileSize).ReadSource(name)
	if err != nil {
		return "", err
	}
	log.Debug("Read unit", "path", path, "bytes", len(src))
	return src, nil
}
