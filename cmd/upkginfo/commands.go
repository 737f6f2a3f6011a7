package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/tsawler/upkg/catalog"
	"github.com/tsawler/upkg/format"
	"github.com/tsawler/upkg/natives"
	"github.com/tsawler/upkg/object"
)

// subcommand parses the flags of a command and checks its argument
// count.
func subcommand(a *app, name string, args []string, nargs int, define func(*flag.FlagSet)) ([]string, error) {
	cmd := commands()[name]
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.out)
	fs.Usage = func() {
		fmt.Fprintf(a.out, "Usage: upkginfo %s %s\n", name, cmd.args)
		fs.PrintDefaults()
	}
	if define != nil {
		define(fs)
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() != nargs {
		fs.Usage()
		return nil, errUsage
	}
	return fs.Args(), nil
}

func runList(a *app, args []string) error {
	var check bool
	if _, err := subcommand(a, "list", args, 0, func(fs *flag.FlagSet) {
		fs.BoolVar(&check, "check", false, "read each file's signature and version")
	}); err != nil {
		return err
	}
	for _, name := range a.m.Packages() {
		path, _ := a.m.PackagePath(name)
		kind := format.Detect(path)
		if !check {
			fmt.Fprintf(a.out, "%s\t%s\n", name, kind)
			continue
		}
		version, err := sniff(a, path)
		if err != nil {
			fmt.Fprintf(a.out, "%s\t%s\t%v\n", name, kind, err)
			continue
		}
		fmt.Fprintf(a.out, "%s\t%s\t%d\n", name, kind, version)
	}
	return nil
}

func sniff(a *app, path string) (uint16, error) {
	f, err := a.m.Fs().Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return format.Sniff(f)
}

func runMaps(a *app, args []string) error {
	if _, err := subcommand(a, "maps", args, 0, nil); err != nil {
		return err
	}
	for _, name := range a.m.Maps() {
		fmt.Fprintln(a.out, name)
	}
	return nil
}

// output opens path for writing, or returns a.out for an empty path.
func output(a *app, path string) (io.Writer, func() error, error) {
	if path == "" {
		return a.out, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

func runDump(a *app, args []string) error {
	var format, outPath string
	var load bool
	rest, err := subcommand(a, "dump", args, 1, func(fs *flag.FlagSet) {
		fs.StringVar(&format, "format", "text", "output format: text, html or cbor")
		fs.StringVar(&outPath, "o", "", "write to file instead of standard output")
		fs.BoolVar(&load, "load", false, "instantiate every export first")
	})
	if err != nil {
		return err
	}

	p, err := a.m.GetPackage(rest[0])
	if err != nil {
		return err
	}
	if load {
		if err := p.LoadAll(); err != nil {
			return err
		}
	}
	c, err := catalog.Build(p, a.m.Resolver())
	if err != nil {
		return err
	}

	w, closeOut, err := output(a, outPath)
	if err != nil {
		return err
	}
	switch format {
	case "text":
		err = c.WriteText(w)
	case "html":
		err = c.RenderHTML(w)
	case "cbor":
		var data []byte
		if data, err = c.CBOR(); err == nil {
			_, err = w.Write(data)
		}
	default:
		err = fmt.Errorf("unknown format %q", format)
	}
	if cerr := closeOut(); err == nil {
		err = cerr
	}
	return err
}

func describe(w io.Writer, obj object.Object) {
	fmt.Fprintf(w, "%s %s (%s)\n", obj.Class(), obj.Name(), obj.Flags())
	switch o := obj.(type) {
	case *natives.Palette:
		fmt.Fprintf(w, "colours: %d\n", len(o.Colors))
	case *natives.TextBuffer:
		fmt.Fprintf(w, "pos %d, top %d\n%s\n", o.Pos, o.Top, o.Text)
	case *natives.Class:
		fmt.Fprintf(w, "payload: %d bytes\n", len(o.Data))
	case *natives.Object:
		fmt.Fprintf(w, "payload: %d bytes\n", len(o.Data))
	}
}

func runResolve(a *app, args []string) error {
	var class string
	rest, err := subcommand(a, "resolve", args, 1, func(fs *flag.FlagSet) {
		fs.StringVar(&class, "class", "", "class of the object (any when empty)")
	})
	if err != nil {
		return err
	}

	obj, err := a.m.FindObject(class, rest[0])
	if err != nil {
		return err
	}
	describe(a.out, obj)
	return nil
}

func runPalette(a *app, args []string) error {
	var outPath string
	rest, err := subcommand(a, "palette", args, 1, func(fs *flag.FlagSet) {
		fs.StringVar(&outPath, "o", "", "write to file instead of standard output")
	})
	if err != nil {
		return err
	}

	obj, err := a.m.FindObject("Palette", rest[0])
	if err != nil {
		return err
	}
	pal, ok := obj.(*natives.Palette)
	if !ok {
		return fmt.Errorf("%s is a %T, not a palette", rest[0], obj)
	}

	w, closeOut, err := output(a, outPath)
	if err != nil {
		return err
	}
	err = pal.WriteBMP(w)
	if cerr := closeOut(); err == nil {
		err = cerr
	}
	return err
}

func runIni(a *app, args []string) error {
	var all bool
	rest, err := subcommand(a, "ini", args, 3, func(fs *flag.FlagSet) {
		fs.BoolVar(&all, "all", false, "print every value of a repeated key")
	})
	if err != nil {
		return err
	}

	if !all {
		v, err := a.m.GetIniValue(rest[0], rest[1], rest[2])
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, v)
		return nil
	}
	vs, err := a.m.GetIniValues(rest[0], rest[1], rest[2])
	if err != nil {
		return err
	}
	for _, v := range vs {
		fmt.Fprintln(a.out, v)
	}
	return nil
}

func runLocalize(a *app, args []string) error {
	rest, err := subcommand(a, "localize", args, 3, nil)
	if err != nil {
		return err
	}
	v, err := a.m.Localize(rest[0], rest[1], rest[2])
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, v)
	return nil
}
