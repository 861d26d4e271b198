// Command typebin inspects and converts encoded values from the command
// line. Values travel as hex on stdin/argv and as the text format on the
// way out.
//
//	typebin check <typestring>
//	typebin print [-json] <typestring> <hex>
//	typebin parse [-type <typestring>] <text>
//	typebin convert [-policy <flags>] <src-typestring> <hex> <dst-typestring>
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/typebin/typebin-go/pkg/typebin"
)

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	var err error
	switch os.Args[1] {
	case "check":
		err = runCheck(os.Args[2:])
	case "print":
		err = runPrint(os.Args[2:])
	case "parse":
		err = runParse(os.Args[2:])
	case "convert":
		err = runConvert(os.Args[2:])
	default:
		usage()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: typebin check|print|parse|convert ...")
	os.Exit(2)
}

func runCheck(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("check: want exactly one typestring")
	}
	if err := typebin.CheckType(args[0]); err != nil {
		return err
	}
	fmt.Println("ok")
	return nil
}

func runPrint(args []string) error {
	fs := flag.NewFlagSet("print", flag.ExitOnError)
	jsonMode := fs.Bool("json", false, "render in the JSON-like mode")
	withType := fs.Bool("type", false, "prefix the output with the <typestring>")
	_ = fs.Parse(args)
	if fs.NArg() != 2 {
		return fmt.Errorf("print: want <typestring> <hex>")
	}
	data, err := hex.DecodeString(fs.Arg(1))
	if err != nil {
		return fmt.Errorf("print: bad hex: %w", err)
	}
	out, perr := typebin.PrintChecked(typebin.ViewOf(fs.Arg(0), data),
		typebin.Options{JSON: *jsonMode, WithType: *withType})
	if perr != nil {
		return perr
	}
	fmt.Println(out)
	return nil
}

func runParse(args []string) error {
	fs := flag.NewFlagSet("parse", flag.ExitOnError)
	ts := fs.String("type", "", "parse type-directed instead of inferring")
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("parse: want exactly one text value")
	}
	var v *typebin.Value
	var err *typebin.Error
	if *ts != "" {
		v, err = typebin.ParseAs(*ts, fs.Arg(0))
	} else {
		v, err = typebin.Parse(fs.Arg(0))
	}
	if err != nil {
		return err
	}
	fmt.Printf("%s %s\n", v.Type(), hex.EncodeToString(v.Bytes()))
	return nil
}

func runConvert(args []string) error {
	fs := flag.NewFlagSet("convert", flag.ExitOnError)
	policy := fs.String("policy", "all", "comma-separated policy flags")
	_ = fs.Parse(args)
	if fs.NArg() != 3 {
		return fmt.Errorf("convert: want <src-typestring> <hex> <dst-typestring>")
	}
	pol, err := parsePolicy(*policy)
	if err != nil {
		return err
	}
	data, err := hex.DecodeString(fs.Arg(1))
	if err != nil {
		return fmt.Errorf("convert: bad hex: %w", err)
	}
	v, verr := typebin.FromRaw(fs.Arg(0), data)
	if verr != nil {
		return verr
	}
	out, cerr := v.ConvertTo(fs.Arg(2), pol)
	if cerr != nil {
		return cerr
	}
	fmt.Println(hex.EncodeToString(out.Bytes()))
	return nil
}

func parsePolicy(s string) (typebin.Policy, error) {
	var pol typebin.Policy
	for _, name := range strings.Split(s, ",") {
		switch strings.TrimSpace(name) {
		case "", "none":
		case "all":
			pol |= typebin.All
		case "ints":
			pol |= typebin.Ints
		case "ints-narrowing":
			pol |= typebin.IntsNarrowing
		case "double":
			pol |= typebin.Double
		case "bool":
			pol |= typebin.Bool
		case "fallible":
			pol |= typebin.Fallible
		case "dynamic":
			pol |= typebin.Dynamic
		case "aux":
			pol |= typebin.Aux
		case "tuple-list":
			pol |= typebin.TupleList
		default:
			return 0, fmt.Errorf("unknown policy flag %q", name)
		}
	}
	return pol, nil
}
