package flags

import (
	"errors"
	"flag"
	"slices"
	"testing"
)

func TestParseFlags(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	step := fs.Bool("step", false, "")

	rest, err := ParseFlags(fs, []string{"-step", "extra"})
	if err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}
	if !*step {
		t.Error("step = false, want true")
	}
	if !slices.Equal(rest, []string{"extra"}) {
		t.Errorf("ParseFlags() = %v, want [extra]", rest)
	}

	help := flag.NewFlagSet("test", flag.ContinueOnError)
	if _, err := ParseFlags(help, []string{"-h"}); !errors.Is(err, flag.ErrHelp) {
		t.Errorf("ParseFlags(-h) error = %v, want %v", err, flag.ErrHelp)
	}
}

func TestEnvDefault(t *testing.T) {
	t.Setenv("KERNOS_TEST_VALUE", "")
	if got := EnvDefault("KERNOS_TEST_VALUE", "fallback"); got != "fallback" {
		t.Errorf("EnvDefault() = %q, want %q", got, "fallback")
	}
	t.Setenv("KERNOS_TEST_VALUE", "set")
	if got := EnvDefault("KERNOS_TEST_VALUE", "fallback"); got != "set" {
		t.Errorf("EnvDefault() = %q, want %q", got, "set")
	}
}
