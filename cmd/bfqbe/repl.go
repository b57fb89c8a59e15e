package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/chazu/bfqbe/compiler"
)

const historyFile = ".bfqbe_history"

// repl compiles each input line as a complete program.
type repl struct {
	opts compiler.Options
	out  io.Writer
	runs bool // print the optimized runs instead of the full program
}

// runREPL starts an interactive read-compile-print loop
func runREPL(opts compiler.Options) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	histPath := ""
	if home, err := os.UserHomeDir(); err == nil {
		histPath = filepath.Join(home, historyFile)
		if f, err := os.Open(histPath); err == nil {
			line.ReadHistory(f)
			f.Close()
		}
	}

	r := &repl{opts: opts, out: os.Stdout}
	fmt.Println("bfqbe REPL (type 'exit' to quit, ':help' for commands)")
	fmt.Println()

	for {
		input, err := line.Prompt(">> ")
		if err == liner.ErrPromptAborted || err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if strings.TrimSpace(input) == "" {
			continue
		}
		line.AppendHistory(input)

		if !r.handle(input) {
			break
		}
	}
	fmt.Println()

	if histPath != "" {
		if f, err := os.Create(histPath); err == nil {
			line.WriteHistory(f)
			f.Close()
		}
	}
	return nil
}

// handle processes one line of input and reports whether to keep going.
func (r *repl) handle(input string) bool {
	input = strings.TrimSpace(input)
	switch input {
	case "exit", "quit":
		return false
	case ":help", ":h", ":?":
		fmt.Fprintln(r.out, "REPL Commands:")
		fmt.Fprintln(r.out, "  :help, :h, :?     Show this help")
		fmt.Fprintln(r.out, "  :runs             Toggle printing optimized runs instead of IR")
		fmt.Fprintln(r.out, "  exit, quit        Exit REPL")
		fmt.Fprintln(r.out, "Any other line is compiled as a whole program.")
		return true
	case ":runs":
		r.runs = !r.runs
		fmt.Fprintf(r.out, "Run listing %s\n", onOff(r.runs))
		return true
	}
	if strings.HasPrefix(input, ":") {
		fmt.Fprintf(r.out, "Unknown command: %s (type :help for commands)\n", input)
		return true
	}

	if err := r.compile(input); err != nil {
		fmt.Fprintf(r.out, "Error: %v\n", err)
	}
	return true
}

func (r *repl) compile(src string) error {
	if !r.runs {
		var b strings.Builder
		if _, err := compiler.Compile(src, &b, r.opts); err != nil {
			return err
		}
		fmt.Fprint(r.out, b.String())
		return nil
	}

	runs, err := compiler.CollectRuns(compiler.NewOptimizer(compiler.NewScanner(src)))
	for _, run := range runs {
		fmt.Fprintf(r.out, "%-20s @%s\n", run, run.Pos)
	}
	return err
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
