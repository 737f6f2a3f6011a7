// Command upkginfo inspects the packages of a game directory.
//
// Usage:
//
//	upkginfo [flags] <command> [arguments]
//
// Commands:
//
//	list [-check]                 list every package found with its kind
//	maps                          list the maps
//	dump [-format f] <package>    print a package's tables (text, html or cbor)
//	resolve [-class c] <path>     load an object by path, e.g. Engine.Actor
//	palette [-o file] <path>      write a palette as a BMP swatch
//	ini [-all] <file> <sec> <key> look up an ini setting
//	localize <sec> <key> <pkg>    look up a localised string
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/tsawler/upkg/config"
	"github.com/tsawler/upkg/natives"
	"github.com/tsawler/upkg/reader"
)

var log = commonlog.GetLogger("upkginfo")

var errUsage = errors.New("usage")

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if !errors.Is(err, errUsage) && !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "upkginfo: %v\n", err)
		}
		os.Exit(1)
	}
}

type app struct {
	m   *reader.Manager
	out io.Writer
}

type command struct {
	args string
	help string
	run  func(a *app, args []string) error
}

func commands() map[string]command {
	return map[string]command{
		"list":     {"[-check]", "list every package found with its kind", runList},
		"maps":     {"", "list the maps", runMaps},
		"dump":     {"[-format text|html|cbor] [-o file] [-load] <package>", "print a package's tables", runDump},
		"resolve":  {"[-class name] <path>", "load an object by dotted path", runResolve},
		"palette":  {"[-o file] <path>", "write a palette as a BMP swatch", runPalette},
		"ini":      {"[-all] <file> <section> <key>", "look up an ini setting", runIni},
		"localize": {"<section> <key> <package>", "look up a localised string", runLocalize},
	}
}

func usage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintln(w, "Usage: upkginfo [flags] <command> [arguments]")
	fmt.Fprintln(w, "\nFlags:")
	fs.PrintDefaults()
	fmt.Fprintln(w, "\nCommands:")

	cmds := commands()
	names := make([]string, 0, len(cmds))
	for name := range cmds {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-9s %s\n", name, cmds[name].help)
	}
}

// run executes one command. extra options are appended to those derived
// from the configuration.
func run(args []string, out io.Writer, extra ...reader.Option) error {
	fs := flag.NewFlagSet("upkginfo", flag.ContinueOnError)
	fs.SetOutput(out)
	configPath := fs.String("config", "", "TOML configuration file")
	envFile := fs.String("env", ".env", "environment file")
	dir := fs.String("dir", "", "game directory (overrides the configuration)")
	level := fs.String("log-level", "", "none, critical, error, warning, notice, info or debug")
	fs.Usage = func() { usage(out, fs) }

	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := config.LoadDotEnv(*envFile); err != nil {
		return err
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *dir != "" {
		cfg.BaseDir = *dir
	}
	if *level != "" {
		if _, err := config.ParseLevel(*level); err != nil {
			return err
		}
		cfg.LogLevel = *level
	}
	cfg.ConfigureLogging()

	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return errUsage
	}
	cmd, ok := commands()[rest[0]]
	if !ok {
		fs.Usage()
		return fmt.Errorf("unknown command %q", rest[0])
	}

	opts := append(cfg.ManagerOptions(), reader.WithNatives(natives.Register))
	opts = append(opts, extra...)
	m, err := reader.New(cfg.BaseDir, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			log.Warningf("closing packages: %v", err)
		}
	}()

	n, err := m.ScanDefaultFolders()
	if err != nil {
		return err
	}
	log.Infof("%s: %d packages", cfg.BaseDir, n)

	return cmd.run(&app{m: m, out: out}, rest[1:])
}
