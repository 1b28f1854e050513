/*
 * gigjson, (C) 2021 The gigjson Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Command gigjson bundles small utilities on top of the parser: a
// whitespace minifier, a validator and a JSON Pointer query tool.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/gigjson/gigjson"
)

func main() {
	app := &cli.App{
		Name:  "gigjson",
		Usage: "high-throughput JSON utilities",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "impl",
				Usage: "force a parser implementation (e.g. avx2, fallback)",
			},
		},
		Before: func(c *cli.Context) error {
			if name := c.String("impl"); name != "" {
				return gigjson.SetImplementation(name)
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "minify",
				Usage:     "strip insignificant whitespace",
				ArgsUsage: "[file]",
				Action: func(c *cli.Context) error {
					in, err := readInput(c)
					if err != nil {
						return err
					}
					out, err := gigjson.Minify(in)
					if err != nil {
						return err
					}
					_, err = os.Stdout.Write(out)
					return err
				},
			},
			{
				Name:      "validate",
				Usage:     "parse the input and report the first error",
				ArgsUsage: "[file]",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "nd",
						Usage: "accept newline-delimited documents",
					},
				},
				Action: func(c *cli.Context) error {
					in, err := readInput(c)
					if err != nil {
						return err
					}
					if c.Bool("nd") {
						_, err = gigjson.ParseND(in, nil)
					} else {
						_, err = gigjson.Parse(in, nil)
					}
					if err != nil {
						return cli.Exit(err.Error(), 1)
					}
					fmt.Println("valid")
					return nil
				},
			},
			{
				Name:      "get",
				Usage:     "resolve an RFC 6901 JSON Pointer",
				ArgsUsage: "pointer [file]",
				Action: func(c *cli.Context) error {
					if c.NArg() < 1 {
						return cli.Exit("missing pointer argument", 2)
					}
					pointer := c.Args().Get(0)
					in, err := readFileArg(c.Args().Get(1))
					if err != nil {
						return err
					}
					doc, err := gigjson.Parse(in, nil)
					if err != nil {
						return cli.Exit(err.Error(), 1)
					}
					it, err := doc.AtPointer(pointer)
					if err != nil {
						return cli.Exit(err.Error(), 1)
					}
					out, err := it.MarshalJSON()
					if err != nil {
						return cli.Exit(err.Error(), 1)
					}
					fmt.Printf("%s\n", out)
					return nil
				},
			},
			{
				Name:  "impls",
				Usage: "list parser implementations usable on this host",
				Action: func(c *cli.Context) error {
					for _, name := range gigjson.Implementations() {
						marker := "  "
						if name == gigjson.Implementation() {
							marker = "* "
						}
						fmt.Println(marker + name)
					}
					return nil
				},
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func readInput(c *cli.Context) ([]byte, error) {
	return readFileArg(c.Args().Get(0))
}

func readFileArg(name string) ([]byte, error) {
	if name == "" || name == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(name)
}
