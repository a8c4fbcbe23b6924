// Command lcc is the litecode compiler: it parses the CLI flags with pflag
// and hands off to internal/driver for the lex/parse/analyze/codegen/
// assemble/link pipeline.
package main

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/litecode-org/lcc/internal/driver"
)

var version = "0.1.0"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("lcc", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: lcc [options] input.lc")
		fs.PrintDefaults()
	}

	output := fs.StringP("output", "o", "", "executable output path")
	keepAsm := fs.BoolP("keep-asm", "S", false, "retain the generated .s file")
	verbose := fs.BoolP("verbose", "v", false, "phase-by-phase progress to stderr")
	target := fs.String("target", "", "target architecture: x86_64, arm64, arm32 (default: auto-detect)")
	showVersion := fs.Bool("version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		fmt.Fprintf(os.Stderr, "lcc: %s\n", err)
		return 1
	}

	if *showVersion {
		fmt.Println("lcc version", version)
		return 0
	}

	rest := fs.Args()
	if len(rest) == 0 {
		fmt.Fprintln(os.Stderr, "lcc: no input file")
		return 1
	}
	if len(rest) > 1 {
		fmt.Fprintln(os.Stderr, "lcc: only one input file is supported")
		return 1
	}

	opts := driver.Options{
		Input:   rest[0],
		Output:  *output,
		Target:  *target,
		KeepAsm: *keepAsm,
		Verbose: *verbose,
	}

	if err := driver.Compile(opts); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
