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
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
	"gopkg.in/yaml.v3"

	"tetradec/pipeline"
)

// Config is the file-backed configuration. Durations are integer
// milliseconds or seconds; zero means "use the built-in default".
// Flags override individual fields after loading.
type Config struct {
	Log struct {
		Level string `yaml:"level"`
		// File enables rotated file logging; empty logs to stderr.
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
	} `yaml:"log"`

	// Keys points at a supplemental ALG:ID:HEX key catalog.
	Keys string `yaml:"keys"`

	// Cipher overrides the trial-decryption confidence bands; zero
	// keeps the engine defaults.
	Cipher struct {
		MinScore    int `yaml:"min_score"`
		MediumScore int `yaml:"medium_score"`
		HighScore   int `yaml:"high_score"`
	} `yaml:"cipher"`

	Pipeline struct {
		QueueDepth       int `yaml:"queue_depth"`
		CipherDeadlineMs int `yaml:"cipher_deadline_ms"`
		CipherWorkers    int `yaml:"cipher_workers"`
		Tolerance        int `yaml:"tolerance"`
		SDSTimeoutSec    int `yaml:"sds_timeout_sec"`

		Sync struct {
			Primary     float64   `yaml:"primary"`
			Ladder      []float64 `yaml:"ladder"`
			RelaxAfter  int       `yaml:"relax_after"`
			UnlockAfter int       `yaml:"unlock_after"`
			DebounceMs  int       `yaml:"debounce_ms"`
			Window      int       `yaml:"window"`
		} `yaml:"sync"`
	} `yaml:"pipeline"`

	NATS struct {
		URL     string `yaml:"url"`
		Subject string `yaml:"subject"`
	} `yaml:"nats"`

	Metrics struct {
		Listen string `yaml:"listen"`
	} `yaml:"metrics"`
}

func DefaultConfigValues() Config {
	var c Config
	c.Log.Level = "info"
	c.Log.MaxSizeMB = 50
	c.Log.MaxBackups = 3
	c.Log.MaxAgeDays = 14
	c.NATS.Subject = "tetradec.frames"
	return c
}

// LoadConfig reads a YAML config file over the defaults. An empty path
// returns the defaults unchanged.
func LoadConfig(path string) (Config, error) {
	c := DefaultConfigValues()
	if path == "" {
		return c, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return c, errors.Wrap(err, "opening config")
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && err != io.EOF {
		return c, errors.Wrap(err, "parsing config")
	}
	return c, nil
}

// PipelineConfig maps the file fields onto the pipeline's config,
// keeping the defaults wherever the file left a field unset.
func (c Config) PipelineConfig() pipeline.Config {
	p := pipeline.DefaultConfig()

	if v := c.Pipeline.QueueDepth; v > 0 {
		p.QueueDepth = v
	}
	if v := c.Pipeline.CipherDeadlineMs; v > 0 {
		p.CipherDeadline = time.Duration(v) * time.Millisecond
	}
	if v := c.Pipeline.CipherWorkers; v > 0 {
		p.CipherWorkers = v
	}
	if v := c.Pipeline.Tolerance; v > 0 {
		p.Tolerance = v
	}
	if v := c.Pipeline.SDSTimeoutSec; v > 0 {
		p.SDSTimeout = time.Duration(v) * time.Second
	}

	s := c.Pipeline.Sync
	if s.Primary > 0 {
		p.Sync.Primary = s.Primary
	}
	if len(s.Ladder) > 0 {
		p.Sync.Ladder = s.Ladder
	}
	if s.RelaxAfter > 0 {
		p.Sync.RelaxAfter = s.RelaxAfter
	}
	if s.UnlockAfter > 0 {
		p.Sync.UnlockAfter = s.UnlockAfter
	}
	if s.DebounceMs > 0 {
		p.Sync.Debounce = time.Duration(s.DebounceMs) * time.Millisecond
	}
	if s.Window > 0 {
		p.Sync.Window = s.Window
	}

	return p
}

// Logger builds the process logger: rotated file output when
// configured, stderr otherwise.
func (c Config) Logger() *logrus.Logger {
	log := logrus.New()

	level, err := logrus.ParseLevel(c.Log.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if c.Log.File != "" {
		log.SetOutput(&lumberjack.Logger{
			Filename:   c.Log.File,
			MaxSize:    c.Log.MaxSizeMB,
			MaxBackups: c.Log.MaxBackups,
			MaxAge:     c.Log.MaxAgeDays,
			Compress:   true,
		})
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	return log
}
