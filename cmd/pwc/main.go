// pwc converts between the packwire text notation and wire bytes.
//
//	pwc encode [flags]              text notation -> bytes
//	pwc decode --schema S [flags]   bytes -> text notation
//
// Both sides must agree on the session configuration, which is assembled
// from an optional YAML file (--config) and then individual flags.
package main

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/dadrian/packwire"
	"github.com/dadrian/packwire/textrep"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "pwc: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	in          string
	out         string
	hex         bool
	bigEndian   bool
	untagged    bool
	lengthWidth int
	limit       int
	configPath  string
	schema      string
	verbose     bool
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	if len(args) == 0 {
		return errors.New("usage: pwc encode|decode [flags]")
	}
	cmd := args[0]
	if cmd != "encode" && cmd != "decode" {
		return errors.Newf("unknown command %q (want encode or decode)", cmd)
	}

	var o options
	flagSet := pflag.NewFlagSet("pwc "+cmd, pflag.ContinueOnError)
	flagSet.StringVar(&o.in, "in", "-", "input file (or - for stdin)")
	flagSet.StringVar(&o.out, "out", "-", "output file (or - for stdout)")
	flagSet.BoolVar(&o.hex, "hex", false, "read or write wire bytes as hex text")
	flagSet.BoolVar(&o.bigEndian, "big-endian", false, "use big-endian byte order")
	flagSet.BoolVar(&o.untagged, "untagged", false, "write optionals without a presence byte")
	flagSet.IntVar(&o.lengthWidth, "length-width", 4, "container length prefix width (1, 2, 4, 8 or 16)")
	flagSet.IntVar(&o.limit, "limit", 0, "maximum encoded size in bytes")
	flagSet.StringVar(&o.configPath, "config", "", "YAML session config; flags override it")
	flagSet.BoolVarP(&o.verbose, "verbose", "v", false, "log to stderr")
	if cmd == "decode" {
		flagSet.StringVar(&o.schema, "schema", "", "comma separated value types, e.g. \"u32, list<string>\"")
	}
	if err := flagSet.Parse(args[1:]); err != nil {
		return err
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return errors.Newf("unexpected argument: %s", rest[0])
	}

	logger := zap.NewNop()
	if o.verbose {
		var err error
		if logger, err = zap.NewDevelopment(); err != nil {
			return errors.Wrap(err, "logger")
		}
		defer func() { _ = logger.Sync() }()
	}
	packwire.SetLogger(logger)

	cfg, err := sessionConfig(flagSet, o)
	if err != nil {
		return err
	}
	logger.Debug("session", zap.String("command", cmd), zap.Stringer("config", cfg))

	input, err := readInput(o.in, stdin)
	if err != nil {
		return err
	}

	var output []byte
	switch cmd {
	case "encode":
		out, err := textrep.EncodeBytes(input, cfg)
		if err != nil {
			return errors.Wrap(err, "encode")
		}
		output = out
		if o.hex {
			output = []byte(hex.EncodeToString(out) + "\n")
		}
		logger.Debug("encoded", zap.Int("bytes", len(out)))
	case "decode":
		if o.schema == "" {
			return errors.New("decode needs --schema")
		}
		if o.hex {
			input, err = hex.DecodeString(strings.Join(strings.Fields(string(input)), ""))
			if err != nil {
				return errors.Wrap(err, "hex input")
			}
		}
		text, err := textrep.DecodeBytes(o.schema, input, cfg)
		if err != nil {
			return errors.Wrap(err, "decode")
		}
		output = []byte(text + "\n")
		logger.Debug("decoded", zap.Int("bytes", len(input)))
	}
	return writeOutput(o.out, stdout, output)
}

// sessionConfig layers the config file, then explicitly set flags, over
// the defaults.
func sessionConfig(flagSet *pflag.FlagSet, o options) (packwire.Config, error) {
	var fc fileConfig
	if o.configPath != "" {
		var err error
		if fc, err = loadConfigFile(o.configPath); err != nil {
			return packwire.Config{}, err
		}
	}
	if flagSet.Changed("big-endian") {
		fc.ByteOrder = "little"
		if o.bigEndian {
			fc.ByteOrder = "big"
		}
	}
	if flagSet.Changed("untagged") {
		fc.Optional = "tagged"
		if o.untagged {
			fc.Optional = "untagged"
		}
	}
	if flagSet.Changed("length-width") {
		fc.LengthWidth = o.lengthWidth
		if fc.LengthWidth == 0 {
			return packwire.Config{}, errors.New("length-width: want 1, 2, 4, 8 or 16, got 0")
		}
	}
	if flagSet.Changed("limit") {
		limit := o.limit
		fc.Limit = &limit
	}
	opts, err := fc.options()
	if err != nil {
		return packwire.Config{}, err
	}
	return packwire.NewConfig(opts...), nil
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		b, err := io.ReadAll(stdin)
		return b, errors.Wrap(err, "read stdin")
	}
	b, err := os.ReadFile(path)
	return b, errors.Wrap(err, "read input")
}

func writeOutput(path string, stdout io.Writer, b []byte) error {
	if path == "-" {
		_, err := io.Copy(stdout, bytes.NewReader(b))
		return errors.Wrap(err, "write")
	}
	return errors.Wrap(os.WriteFile(path, b, 0o644), "write output")
}
