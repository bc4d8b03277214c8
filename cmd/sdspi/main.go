// Command sdspi drives an SD card over an SPI link.
//
// The card is either simulated in-process on top of an image file
// (--image) or served by another sdspi process on a FIFO bus (--bus):
//
//	sdspi mkimage card.img 8192
//	sdspi -i card.img -b /tmp/sd-bus serve &
//	sdspi -b /tmp/sd-bus info
//	sdspi -b /tmp/sd-bus read 0 2
//
// Run sdspi --help for the full command list.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/timtadh/getopt"
	"golang.org/x/term"

	"github.com/ardnew/sdspi/pkg"
	"github.com/ardnew/sdspi/pkg/prof"
	"github.com/ardnew/sdspi/sim"
)

const componentCLI pkg.Component = "cli"

// Exit codes.
const (
	exitOK    = 0
	exitUsage = 2
	exitOpts  = 3
	exitIO    = 4
)

var usageMessage = "sdspi [options] <command> [args]"
var extendedMessage = `
sdspi -- drive an SD card in SPI mode

Options
  -h, --help             view this message
  -v, --verbose          debug logging
  --json                 JSON logs (default when stderr is not a terminal)
  -b, --bus=<dir>        talk to a card served on this FIFO bus directory
  -i, --image=<file>     simulate a card in-process backed by this image
  --class=<v1|v2|hc>     simulated card class (default hc)
  --cpuprofile=<file>    write a CPU profile (needs -tags profile)
  --memprofile=<file>    write a heap profile (needs -tags profile)

Commands
  serve                    serve the simulated card (--image) on --bus
  mkimage <file> <sectors> create a zero-filled image of <sectors> sectors
  info                     initialize and print class, capacity and registers
  read <sector> [count]    hexdump sectors to stdout
  write <sector> <file>    write file contents (padded to 512, - for stdin)
  erase <first> <last>     erase an inclusive sector range
  verify <sector> [count]  write a pattern, read it back and compare
`

// usageError is a command line mistake, reported with exitUsage.
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

// options are the global options.
type options struct {
	verbose bool
	json    bool
	bus     string
	image   string
	class   sim.Class

	cpuProfile string
	memProfile string
}

// env is where a command reads and writes.
type env struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func main() {
	os.Exit(run(os.Args[1:], env{stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr}))
}

func run(argv []string, e env) int {
	args, optargs, err := getopt.GetOpt(
		argv,
		"hvb:i:",
		[]string{
			"help", "verbose", "json", "bus=", "image=", "class=",
			"cpuprofile=", "memprofile=",
		},
	)
	if err != nil {
		fmt.Fprintln(e.stderr, err)
		return usage(e, exitOpts)
	}

	opts := options{json: !isTerminal(e.stderr)}
	for _, oa := range optargs {
		switch oa.Opt() {
		case "-h", "--help":
			return usage(e, exitOK)
		case "-v", "--verbose":
			opts.verbose = true
		case "--json":
			opts.json = true
		case "-b", "--bus":
			opts.bus = oa.Arg()
		case "-i", "--image":
			opts.image = oa.Arg()
		case "--class":
			class, ok := sim.ParseClass(oa.Arg())
			if !ok {
				fmt.Fprintf(e.stderr, "Unknown card class '%v'\n", oa.Arg())
				return usage(e, exitOpts)
			}
			opts.class = class
		case "--cpuprofile":
			opts.cpuProfile = oa.Arg()
		case "--memprofile":
			opts.memProfile = oa.Arg()
		default:
			fmt.Fprintf(e.stderr, "Unknown flag '%v'\n", oa.Opt())
			return usage(e, exitOpts)
		}
	}

	setupLogging(opts, e.stderr)

	if len(args) == 0 {
		fmt.Fprintln(e.stderr, "Must supply a command, try --help")
		return usage(e, exitUsage)
	}

	cmd, has := commands[args[0]]
	if !has {
		fmt.Fprintf(e.stderr, "Command '%v' not supported, try --help\n", args[0])
		return usage(e, exitUsage)
	}

	stop, err := startProfiles(opts)
	if err != nil {
		fmt.Fprintf(e.stderr, "sdspi: %v\n", err)
		return exitIO
	}
	err = cmd(opts, args[1:], e)
	if perr := stop(); perr != nil {
		pkg.LogWarn(componentCLI, "profile not written", "error", perr)
	}
	if err != nil {
		if ue, ok := err.(*usageError); ok {
			fmt.Fprintln(e.stderr, ue.msg)
			return usage(e, exitUsage)
		}
		pkg.LogError(componentCLI, args[0]+" failed", "error", err)
		fmt.Fprintf(e.stderr, "sdspi %s: %v\n", args[0], err)
		return exitIO
	}
	return exitOK
}

func usage(e env, code int) int {
	if code == exitOK {
		fmt.Fprintln(e.stdout, usageMessage)
		fmt.Fprintln(e.stdout, extendedMessage)
		return code
	}
	fmt.Fprintln(e.stderr, usageMessage)
	fmt.Fprintln(e.stderr, "Try -h or --help for help")
	return code
}

// startProfiles starts the requested profiles. The returned function
// stops them.
func startProfiles(opts options) (func() error, error) {
	if opts.cpuProfile == "" && opts.memProfile == "" {
		return func() error { return nil }, nil
	}
	if !prof.Enabled() {
		pkg.LogWarn(componentCLI, "profiling not compiled in, rebuild with -tags profile")
	}
	if opts.cpuProfile != "" {
		if err := prof.StartCPU(opts.cpuProfile); err != nil {
			return nil, fmt.Errorf("cpu profile: %w", err)
		}
	}
	return func() error {
		err := prof.StopCPU()
		if opts.memProfile != "" {
			if herr := prof.WriteHeap(opts.memProfile); err == nil {
				err = herr
			}
		}
		return err
	}, nil
}

func setupLogging(opts options, w io.Writer) {
	if opts.verbose {
		pkg.SetLogLevel(slog.LevelDebug)
	}
	format := pkg.LogFormatText
	if opts.json {
		format = pkg.LogFormatJSON
	}
	pkg.SetLogFormat(format, w)
}

// fdWriter is satisfied by *os.File.
type fdWriter interface {
	Fd() uintptr
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(fdWriter)
	return ok && term.IsTerminal(int(f.Fd()))
}

// terminalWidth returns the column count of w, or 0 when w is not a
// terminal.
func terminalWidth(w io.Writer) int {
	f, ok := w.(fdWriter)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 0
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return width
}
