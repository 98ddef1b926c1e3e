// Loom CLI - compile, inspect, and play dialogue projects
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
)

func main() {
	verbose := flag.Bool("v", false, "Verbose output")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: loom [options] <command> [args]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  compile [dir]          Compile the project at dir (default .) to its output file\n")
		fmt.Fprintf(os.Stderr, "  disasm <file.loomc>    Print a compiled program as readable instructions\n")
		fmt.Fprintf(os.Stderr, "  run [dir|file.loomc]   Play a project or compiled program in the terminal\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  loom compile ./game        # Compile game/loom.toml sources\n")
		fmt.Fprintf(os.Stderr, "  loom run ./game            # Compile and play from the entry node\n")
		fmt.Fprintf(os.Stderr, "  loom run game.loomc -node Intro\n")
		fmt.Fprintf(os.Stderr, "  loom disasm game.loomc\n")
	}
	flag.Parse()

	if *verbose {
		commonlog.Configure(1, nil)
	} else {
		commonlog.Configure(0, nil)
	}

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	var err error
	switch args[0] {
	case "compile":
		err = runCompile(args[1:], *verbose)
	case "disasm":
		err = runDisasm(args[1:])
	case "run":
		err = runPlay(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", args[0])
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
