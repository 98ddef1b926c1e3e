package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/loomlang/loom/program"
	"github.com/loomlang/loom/vm"
)

// runPlay compiles (or loads) a program and plays it interactively on
// stdin/stdout.
func runPlay(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	node := fs.String("node", "", "Node to start from (default: the manifest entry node)")
	seed := fs.Int64("seed", 0, "Session seed for reproducible runs (0 = random)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	target := "."
	if fs.NArg() > 0 {
		target = fs.Arg(0)
	}

	p, start, err := loadTarget(target)
	if err != nil {
		return err
	}
	if *node != "" {
		start = *node
	}
	if start == "" {
		start = "Start"
	}

	d := vm.New(p)
	if *seed != 0 {
		d.SetSessionSeed(*seed)
	}
	if err := d.SetNode(start); err != nil {
		return err
	}

	stdin := bufio.NewScanner(os.Stdin)
	for {
		sig, err := d.Continue()
		if err != nil {
			return err
		}
		switch s := sig.(type) {
		case vm.LineSignal:
			fmt.Println(s.Text)
			waitForEnter(stdin)
		case vm.OptionsSignal:
			index, err := promptOption(stdin, s.Options)
			if err != nil {
				return err
			}
			if err := d.SetSelectedOption(index); err != nil {
				return err
			}
		case vm.CommandSignal:
			fmt.Printf("[%s]\n", s.Text)
		case vm.NodeCompleteSignal:
			// No output; node boundaries are invisible to the player.
		case vm.DialogueCompleteSignal:
			return nil
		}
	}
}

// loadTarget accepts either a compiled .loomc file or a project
// directory, and returns the program plus its entry node (empty for a
// bare compiled file).
func loadTarget(target string) (*program.Program, string, error) {
	info, err := os.Stat(target)
	if err != nil {
		return nil, "", err
	}
	if !info.IsDir() {
		data, err := os.ReadFile(target)
		if err != nil {
			return nil, "", err
		}
		p, err := program.Unmarshal(data)
		return p, "", err
	}

	p, m, err := compileProject(target)
	if err != nil {
		return nil, "", err
	}
	return p, m.Source.Entry, nil
}

func waitForEnter(stdin *bufio.Scanner) {
	stdin.Scan()
}

func promptOption(stdin *bufio.Scanner, options []vm.Option) (int, error) {
	for i, opt := range options {
		marker := " "
		if !opt.Enabled {
			marker = "x"
		}
		fmt.Printf("  %d) [%s] %s\n", i+1, marker, opt.Text)
	}
	for {
		fmt.Print("> ")
		if !stdin.Scan() {
			return 0, fmt.Errorf("input closed while waiting for a choice")
		}
		choice, err := strconv.Atoi(strings.TrimSpace(stdin.Text()))
		if err != nil || choice < 1 || choice > len(options) {
			fmt.Printf("enter a number between 1 and %d\n", len(options))
			continue
		}
		if !options[choice-1].Enabled {
			fmt.Println("that option is not available")
			continue
		}
		return choice - 1, nil
	}
}
