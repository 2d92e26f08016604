package main

import (
	"bytes"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/dadrian/packwire"
)

// fileConfig is the YAML form of a session Config. Unset fields keep the
// packwire defaults.
//
//	byte_order: big
//	optional: untagged
//	length_width: 2
//	limit: 4096
type fileConfig struct {
	ByteOrder   string `yaml:"byte_order"`
	Optional    string `yaml:"optional"`
	LengthWidth int    `yaml:"length_width"`
	Limit       *int   `yaml:"limit"`
}

func loadConfigFile(path string) (fileConfig, error) {
	var fc fileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return fc, errors.Wrap(err, "reading config")
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
		return fc, errors.Wrapf(err, "parsing config %s", path)
	}
	return fc, nil
}

// options validates fc and converts it to packwire options. The options
// themselves panic on bad input, so every value is checked here first.
func (fc fileConfig) options() ([]packwire.Option, error) {
	var opts []packwire.Option
	switch fc.ByteOrder {
	case "":
	case "little":
		opts = append(opts, packwire.WithLittleEndian())
	case "big":
		opts = append(opts, packwire.WithBigEndian())
	default:
		return nil, errors.Newf("byte_order: want little or big, got %q", fc.ByteOrder)
	}
	switch fc.Optional {
	case "":
	case "tagged":
		opts = append(opts, packwire.WithTaggedOptional())
	case "untagged":
		opts = append(opts, packwire.WithUntaggedOptional())
	default:
		return nil, errors.Newf("optional: want tagged or untagged, got %q", fc.Optional)
	}
	if fc.LengthWidth != 0 {
		if !packwire.ValidLengthWidth(fc.LengthWidth) {
			return nil, errors.Newf("length_width: want 1, 2, 4, 8 or 16, got %d", fc.LengthWidth)
		}
		opts = append(opts, packwire.WithLengthWidth(fc.LengthWidth))
	}
	if fc.Limit != nil {
		if *fc.Limit < 0 {
			return nil, errors.Newf("limit: must be >= 0, got %d", *fc.Limit)
		}
		opts = append(opts, packwire.WithLimit(*fc.Limit))
	}
	return opts, nil
}
