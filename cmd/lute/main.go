package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/risor-io/lute"
)

var version = "dev"

func main() {
	var (
		code    string
		noColor bool
		debug   bool
		showVer bool
	)
	flag.StringVar(&code, "c", "", "code to evaluate")
	flag.BoolVar(&noColor, "no-color", false, "disable colored output")
	flag.BoolVar(&debug, "debug", false, "enable debug logging")
	flag.BoolVar(&showVer, "version", false, "print version and exit")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.Disabled)
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	if noColor || os.Getenv("NO_COLOR") != "" {
		color.NoColor = true
	}
	if showVer {
		fmt.Println("lute", version)
		return
	}

	l := lute.New()
	defer l.Close()
	l.OpenBase()

	switch {
	case code != "":
		log.Debug().Msg("evaluating command-line code")
		if err := l.Exec(code); err != nil {
			fatal(err)
		}
	case flag.NArg() > 0:
		name := flag.Arg(0)
		f, err := os.Open(name)
		if err != nil {
			fatal(err)
		}
		defer f.Close()
		log.Debug().Str("file", name).Msg("running script")
		if err := l.ExecFrom(f); err != nil {
			fatal(err)
		}
	case isatty.IsTerminal(os.Stdin.Fd()):
		repl(l)
	default:
		if err := l.ExecFrom(os.Stdin); err != nil {
			fatal(err)
		}
	}
}

// repl reads one line at a time. Each line is first tried as an
// expression whose value is printed; if that fails to parse, it is run
// as a statement instead.
func repl(l *lute.Lua) {
	prompt := color.New(color.FgCyan).Sprint(">>> ")
	result := color.New(color.FgGreen)
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Printf("lute %s (ctrl+d to exit)\n", version)
	for {
		fmt.Print(prompt)
		if !scanner.Scan() {
			fmt.Println()
			return
		}
		line := scanner.Text()
		if line == "" {
			continue
		}
		v, err := lute.Eval[lute.Option[lute.AnyValue]](l, "return "+line)
		if err != nil {
			var lerr *lute.Error
			if errors.As(err, &lerr) && lerr.Kind == lute.SyntaxError {
				err = l.Exec(line)
			}
		}
		if err != nil {
			printError(err)
			continue
		}
		if v.Valid {
			result.Println(v.Value.String())
		}
	}
}

func printError(err error) {
	fmt.Fprintln(os.Stderr, color.New(color.FgRed).Sprint(err.Error()))
}

func fatal(err error) {
	printError(err)
	os.Exit(1)
}
