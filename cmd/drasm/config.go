package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"unicode"

	"github.com/inconshreveable/log15"
	"github.com/naoina/toml"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/agenthands/drasm/pkg/drasm"
)

var (
	dumpConfigCommand = cli.Command{
		Action:      dumpConfig,
		Name:        "dumpconfig",
		Usage:       "Show configuration values",
		ArgsUsage:   "",
		Category:    "MISCELLANEOUS COMMANDS",
		Description: `The dumpconfig command shows configuration values.`,
	}

	configFileFlag = cli.StringFlag{
		Name:  "config",
		Usage: "TOML configuration file",
	}
	verbosityFlag = cli.StringFlag{
		Name:  "verbosity",
		Usage: "Logging level: crit, error, warn, info, debug",
	}
	gasFlag = cli.IntFlag{
		Name:  "gas",
		Usage: "Instruction budget of every constructor or method call",
	}
	rootFlag = cli.StringFlag{
		Name:  "root",
		Usage: "Directory compilation units are read from",
	}
)

// These settings ensure that TOML keys use the same names as Go struct fields.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		link := ""
		if unicode.IsUpper(rune(rt.Name()[0])) && rt.PkgPath() != "main" {
			link = fmt.Sprintf(", see https://godoc.org/%s#%s for available fields", rt.PkgPath(), rt.Name())
		}
		return fmt.Errorf("field '%s' is not defined in %s%s", field, rt.String(), link)
	},
}

type sourceConfig struct {
	Root        string `toml:",omitempty"`
	MaxFileSize int
}

type logConfig struct {
	Level string
}

type drasmConfig struct {
	Compiler drasm.Config
	Source   sourceConfig
	Log      logConfig
}

func defaultConfig() drasmConfig {
	return drasmConfig{
		Compiler: drasm.DefaultConfig,
		Source:   sourceConfig{MaxFileSize: 1 << 20},
		Log:      logConfig{Level: "info"},
	}
}

func loadConfig(file string, cfg *drasmConfig) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(cfg)
	// Add file name to errors that have a line number.
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(file + ", " + err.Error())
	}
	return err
}

// makeConfig loads defaults, then the config file, then flag overrides.
func makeConfig(ctx *cli.Context) (drasmConfig, error) {
	cfg := defaultConfig()
	if file := ctx.GlobalString(configFileFlag.Name); file != "" {
		if err := loadConfig(file, &cfg); err != nil {
			return cfg, err
		}
	}
	if ctx.GlobalIsSet(verbosityFlag.Name) {
		cfg.Log.Level = ctx.GlobalString(verbosityFlag.Name)
	}
	if ctx.GlobalIsSet(gasFlag.Name) {
		cfg.Compiler.GasLimit = ctx.GlobalInt(gasFlag.Name)
	}
	if ctx.GlobalIsSet(rootFlag.Name) {
		cfg.Source.Root = ctx.GlobalString(rootFlag.Name)
	}
	return cfg, nil
}

func setupLogging(cfg logConfig) error {
	lvl, err := log15.LvlFromString(cfg.Level)
	if err != nil {
		return err
	}
	log15.Root().SetHandler(log15.LvlFilterHandler(lvl, log15.StreamHandler(os.Stderr, log15.TerminalFormat())))
	return nil
}

// dumpConfig is the dumpconfig command.
func dumpConfig(ctx *cli.Context) error {
	cfg, err := makeConfig(ctx)
	if err != nil {
		return err
	}
	out, err := tomlSettings.Marshal(&cfg)
	if err != nil {
		return err
	}
	io.WriteString(os.Stdout, "# drasm configuration\n\n")
	os.Stdout.Write(out)
	return nil
}
