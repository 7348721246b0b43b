// TETRADEC - A TETRA air interface decoder and security analysis engine.
// Copyright (C) 2026 The tetradec authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"tetradec/csv"
	"tetradec/pipeline"
)

var configFile = flag.String("config", "", "YAML configuration file")

var inputFile = flag.String("input", "-", "burst record source, '-' for stdin")
var inputFormat = flag.String("informat", "jsonl", "burst record input format: jsonl or binary")

var format = flag.String("format", "plain", "decoded frame output format: plain, csv or json")

var keyFile = flag.String("keys", "", "supplemental key catalog in ALG:ID:HEX line format")

var timeLimit = flag.Duration("duration", 0, "time to run for, 0 for infinite, ex. 1h5m10s")

var workers = flag.Int("workers", 0, "cipher trial worker count, 0 for config value")
var deadline = flag.Duration("deadline", 0, "per-frame cipher trial budget, 0 for config value")
var queueDepth = flag.Int("queuedepth", 0, "burst intake queue depth, 0 for config value")

var version = flag.Bool("version", false, "display build date and commit hash")

var encoder Encoder

// JSON and CSV encoders both implement this interface so the output
// loop does not care which was selected.
type Encoder interface {
	Encode(interface{}) error
}

type PlainEncoder struct{}

func (PlainEncoder) Encode(msg interface{}) (err error) {
	_, err = fmt.Println(msg)
	return
}

func RegisterFlags() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		flag.PrintDefaults()
	}
}

// EnvOverride applies TETRADEC_<FLAG> environment variables to any
// flag not set on the command line.
func EnvOverride(log *logrus.Logger) {
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	flag.VisitAll(func(f *flag.Flag) {
		if set[f.Name] {
			return
		}
		envName := "TETRADEC_" + strings.ToUpper(f.Name)
		val := os.Getenv(envName)
		if val == "" {
			return
		}
		if err := flag.Set(f.Name, val); err != nil {
			log.WithError(err).WithFields(logrus.Fields{
				"env":  envName,
				"flag": f.Name,
			}).Warn("environment override rejected")
		}
	})
}

func HandleFlags() {
	*format = strings.ToLower(*format)
	switch *format {
	case "plain":
		encoder = PlainEncoder{}
	case "csv":
		encoder = csv.NewEncoder(os.Stdout)
	case "json":
		enc := json.NewEncoder(os.Stdout)
		encoder = enc
	default:
		fmt.Fprintf(os.Stderr, "invalid output format: %q\n", *format)
		os.Exit(2)
	}

	*inputFormat = strings.ToLower(*inputFormat)
	if *inputFormat != "jsonl" && *inputFormat != "binary" {
		fmt.Fprintf(os.Stderr, "invalid input format: %q\n", *inputFormat)
		os.Exit(2)
	}
}

// overrideConfig applies explicitly-set flags on top of the loaded
// file config.
func overrideConfig(cfg *Config, pcfg *pipeline.Config) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "keys":
			cfg.Keys = *keyFile
		case "workers":
			pcfg.CipherWorkers = *workers
		case "deadline":
			pcfg.CipherDeadline = *deadline
		case "queuedepth":
			pcfg.QueueDepth = *queueDepth
		}
	})
}
