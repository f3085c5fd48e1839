// Copyright 2024 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"
	"sigs.k8s.io/release-utils/version"

	"github.com/ianlewis/go-tfrecord"
)

const (
	// ExitCodeSuccess is successful error code.
	ExitCodeSuccess int = iota

	// ExitCodeFlagParseError is the exit code for a flag parsing error.
	ExitCodeFlagParseError

	// ExitCodeCorruption is the exit code for integrity check failures.
	ExitCodeCorruption

	// ExitCodeUnknownError is the exit code for an unknown error.
	ExitCodeUnknownError
)

// ErrTFRecord is the base error for CLI errors.
var ErrTFRecord = errors.New("tfrecord")

// ErrFlagParse is a flag parsing error.
var ErrFlagParse = errors.New("parsing flags")

func init() {
	// Set the HelpFlag to a random name so that it isn't used. `cli` handles
	// the flag with the root command such that it takes a command name argument
	// but we don't use commands.
	//
	// This is done because `tfrecord --help foo` will display a
	// "command foo not found" error instead of the help.
	//
	// This flag is hidden by the help output.
	// See: github.com/urfave/cli/issues/1809
	cli.HelpFlag = &cli.BoolFlag{
		// NOTE: Use a random name no one would guess.
		Name:               "d41d8cd98f00b204e980",
		DisableDefaultText: true,
	}
}

// check checks the error and panics if not nil.
func check(err error) {
	if err != nil {
		panic(err)
	}
}

// must checks the error and panics if not nil.
func must[T any](val T, err error) T {
	if err != nil {
		panic(err)
	}
	return val
}

// parseCompression maps the --compression flag value to a compression type.
func parseCompression(v string) (tfrecord.Compression, error) {
	switch strings.ToLower(v) {
	case "", "none":
		return tfrecord.None, nil
	case "gzip":
		return tfrecord.GZIP, nil
	case "zlib":
		return tfrecord.ZLIB, nil
	}
	return tfrecord.None, fmt.Errorf("%w: unknown compression %q", ErrFlagParse, v)
}

func newTFRecordApp() *cli.App {
	return &cli.App{
		Name:  filepath.Base(os.Args[0]),
		Usage: "Inspect record-oriented training data files.",
		Description: strings.Join([]string{
			"Lists, verifies, and dumps CRC-checksummed record files.",
			"http://github.com/ianlewis/go-tfrecord",
		}, "\n"),
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:               "list",
				Usage:              "list file metadata (sizes, record counts)",
				Aliases:            []string{"l"},
				DisableDefaultText: true,
			},
			&cli.BoolFlag{
				Name:               "test",
				Usage:              "verify every record checksum",
				Aliases:            []string{"t"},
				DisableDefaultText: true,
			},
			&cli.BoolFlag{
				Name:               "stdout",
				Usage:              "write record payloads to stdout",
				Aliases:            []string{"c"},
				DisableDefaultText: true,
			},
			&cli.StringFlag{
				Name:    "compression",
				Usage:   "compression type: none, gzip, or zlib",
				Aliases: []string{"C"},
				Value:   "none",
			},
			&cli.IntFlag{
				Name:    "jobs",
				Usage:   "number of files to scan concurrently with --list",
				Aliases: []string{"j"},
				Value:   4,
			},

			// Special flags are shown at the end.
			&cli.BoolFlag{
				Name:               "help",
				Usage:              "print this help text and exit",
				Aliases:            []string{"h"},
				DisableDefaultText: true,
			},
			&cli.BoolFlag{
				Name:               "license",
				Usage:              "print license information and exit",
				Aliases:            []string{"L"},
				DisableDefaultText: true,
			},
			&cli.BoolFlag{
				Name:               "version",
				Usage:              "print version information and exit",
				Aliases:            []string{"v"},
				DisableDefaultText: true,
			},
		},
		ArgsUsage:       "[PATH]...",
		Copyright:       "Google LLC",
		HideHelp:        true,
		HideHelpCommand: true,
		Action: func(c *cli.Context) error {
			if c.Bool("help") {
				check(cli.ShowAppHelp(c))
				return nil
			}

			if c.Bool("version") {
				versionInfo := version.GetVersionInfo()
				_ = must(fmt.Fprintf(c.App.Writer, `%s %s
Copyright (c) Google LLC

%s`, c.App.Name, versionInfo.GitVersion, versionInfo.String()))
				return nil
			}

			if c.Bool("license") {
				return printLicense(c)
			}

			compression, err := parseCompression(c.String("compression"))
			if err != nil {
				return err
			}

			switch {
			case c.Bool("list"):
				l := list{
					paths:       c.Args().Slice(),
					compression: compression,
					jobs:        c.Int("jobs"),
					out:         c.App.Writer,
				}
				return l.Run()
			case c.Bool("test"):
				v := verify{
					paths:       c.Args().Slice(),
					compression: compression,
					out:         c.App.Writer,
				}
				return v.Run()
			case c.Bool("stdout"):
				d := dump{
					paths:       c.Args().Slice(),
					compression: compression,
					out:         c.App.Writer,
				}
				return d.Run()
			}

			check(cli.ShowAppHelp(c))
			return nil
		},
		ExitErrHandler: func(c *cli.Context, err error) {
			if err == nil {
				return
			}

			_ = must(fmt.Fprintf(c.App.ErrWriter, "%s: %v\n", c.App.Name, err))
			if errors.Is(err, ErrFlagParse) {
				cli.OsExiter(ExitCodeFlagParseError)
				return
			}
			if errors.Is(err, tfrecord.ErrCorruption) {
				cli.OsExiter(ExitCodeCorruption)
				return
			}

			cli.OsExiter(ExitCodeUnknownError)
		},
	}
}
