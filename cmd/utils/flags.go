// Package flags provides command-line flag helpers shared by the kernos
// commands.
package flags

import (
	"flag"
	"fmt"
	"os"
)

// ParseFlags parses the given flag set with the provided arguments.
// It returns the remaining non-flag arguments. When help is requested the
// defaults are printed and flag.ErrHelp is returned.
func ParseFlags(fs *flag.FlagSet, args []string) ([]string, error) {
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			fmt.Fprintln(os.Stderr)
			fs.PrintDefaults()
		}
		return nil, err
	}
	return fs.Args(), nil
}

// EnvDefault returns the value of the environment variable name, or
// fallback when it is unset or empty.
func EnvDefault(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
