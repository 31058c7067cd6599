package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/atone/format/abi"
	"github.com/wippyai/atone/format/redislist"
	"github.com/wippyai/atone/vc"
)

func main() {
	var (
		from        = flag.String("from", "json", "Input format (json, wire, cbor, redis)")
		to          = flag.String("to", "json", "Output format (json, wire, cbor, abi, redis)")
		elem        = flag.String("type", "any", "Element type ("+strings.Join(typeNames, ", ")+")")
		in          = flag.String("in", "", "Input file (default stdin)")
		out         = flag.String("out", "", "Output file (default stdout)")
		redisAddr   = flag.String("redis", "", "Redis address for -from/-to redis")
		key         = flag.String("key", "", "Redis list key")
		hexMode     = flag.Bool("hex", false, "Hex encode binary output and decode binary input")
		verbose     = flag.Bool("v", false, "Log decoder and allocator activity to stderr")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	if *verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer l.Sync()
		vc.SetLogger(l.Named("vc"))
		abi.SetLogger(l.Named("abi"))
		redislist.SetLogger(l.Named("redislist"))
	}

	if *interactive {
		if err := runInteractive(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	opts := options{
		from:      *from,
		to:        *to,
		elem:      *elem,
		in:        *in,
		out:       *out,
		redisAddr: *redisAddr,
		key:       *key,
		hex:       *hexMode,
	}
	tty := term.IsTerminal(int(os.Stdout.Fd()))

	n, err := convert(context.Background(), opts, os.Stdin, os.Stdout, tty)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fmt.Fprintln(os.Stderr, "Usage: vcconv -from json -to wire -type int [-in file] [-out file]")
		fmt.Fprintln(os.Stderr, "       vcconv -from json -to redis -redis localhost:6379 -key name")
		fmt.Fprintln(os.Stderr, "       vcconv -i  (interactive mode)")
		os.Exit(1)
	}
	if *out != "" {
		fmt.Fprintf(os.Stderr, "%d elements written to %s\n", n, *out)
	}
}
