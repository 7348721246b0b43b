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
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"tetradec/frame"
	"tetradec/pipeline"
	"tetradec/stats"
	"tetradec/tea"
)

var rcvr Receiver

type Receiver struct {
	cfg Config
	log *logrus.Logger

	p       *pipeline.Pipeline
	pub     Publisher
	metrics *http.Server

	input  io.ReadCloser
	reader BurstReader
}

func (rcvr *Receiver) NewReceiver() {
	var err error
	rcvr.cfg, err = LoadConfig(*configFile)
	if err != nil {
		logrus.WithError(err).Fatal("loading configuration")
	}
	rcvr.log = rcvr.cfg.Logger()

	pcfg := rcvr.cfg.PipelineConfig()
	overrideConfig(&rcvr.cfg, &pcfg)

	catalog := tea.Builtin()
	if rcvr.cfg.Keys != "" {
		if err := catalog.LoadFile(rcvr.cfg.Keys, rcvr.log); err != nil {
			rcvr.log.WithError(err).Fatal("loading key catalog")
		}
	}
	rcvr.log.WithField("keys", catalog.Len()).Info("key catalog ready")

	engine := tea.NewEngine(catalog)
	if v := rcvr.cfg.Cipher.MinScore; v > 0 {
		engine.Min = v
	}
	if v := rcvr.cfg.Cipher.MediumScore; v > 0 {
		engine.Medium = v
	}
	if v := rcvr.cfg.Cipher.HighScore; v > 0 {
		engine.High = v
	}

	registry := prometheus.NewRegistry()
	rcvr.p = pipeline.New(pcfg, engine, stats.New(registry), nil, rcvr.log)

	if rcvr.cfg.Metrics.Listen != "" {
		rcvr.metrics = serveMetrics(rcvr.cfg.Metrics.Listen, registry, rcvr.log)
	}

	if rcvr.cfg.NATS.URL != "" {
		rcvr.pub, err = NewNATSPublisher(rcvr.cfg.NATS.URL, rcvr.cfg.NATS.Subject)
		if err != nil {
			rcvr.log.WithError(err).Fatal("nats")
		}
		rcvr.log.WithField("subject", rcvr.cfg.NATS.Subject).Info("publishing frames to nats")
	}

	if *inputFile == "-" {
		rcvr.input = os.Stdin
	} else {
		rcvr.input, err = os.Open(*inputFile)
		if err != nil {
			rcvr.log.WithError(err).Fatal("opening input")
		}
	}

	switch *inputFormat {
	case "binary":
		rcvr.reader = newBinaryReader(rcvr.input)
	default:
		rcvr.reader = newJSONLReader(rcvr.input)
	}
}

func (rcvr *Receiver) Close() {
	if rcvr.pub != nil {
		rcvr.pub.Close()
	}
	if rcvr.metrics != nil {
		rcvr.metrics.Close()
	}
	rcvr.input.Close()
}

func (rcvr *Receiver) Run() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)

	tLimit := make(<-chan time.Time, 1)
	if *timeLimit != 0 {
		tLimit = time.After(*timeLimit)
	}

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		rcvr.p.Run(ctx)
	}()

	// Feed bursts at the reader's pace. Undersized or malformed
	// records are rejected per record, never fatally.
	go func() {
		for {
			b, err := rcvr.reader.Next()
			switch {
			case err == nil:
				rcvr.p.Feed(b)
			case errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF):
				rcvr.log.Info("input exhausted")
				// Give the queue a chance to drain before teardown.
				time.Sleep(4 * frame.BurstPeriod)
				cancel()
				return
			case errors.Is(err, frame.ErrShortBurst):
				rcvr.log.WithError(err).Debug("skipping undersized burst")
			default:
				rcvr.log.WithError(err).Warn("rejecting burst record")
			}
		}
	}()

	go func() {
		select {
		case <-sigint:
			rcvr.log.Info("interrupt, shutting down")
		case <-tLimit:
			rcvr.log.Info("time limit reached")
		case <-ctx.Done():
			return
		}
		cancel()
	}()

	for df := range rcvr.p.Frames() {
		if err := encoder.Encode(df); err != nil {
			rcvr.log.WithError(err).Fatal("encoding frame")
		}
		if rcvr.pub != nil {
			if err := rcvr.pub.Publish(df); err != nil {
				rcvr.log.WithError(err).Warn("publish failed")
			}
		}
	}
	<-runDone

	snap := rcvr.p.Stats().Snapshot()
	rcvr.log.WithFields(logrus.Fields{
		"bursts":        snap.Bursts,
		"crc_pass":      snap.CRCPass,
		"encrypted":     snap.EncryptedFrames,
		"sds_completed": snap.SDSCompleted,
	}).Info("pipeline stopped")
}

var (
	buildTag   = "dev"     // v#.#.#
	buildDate  = "unknown" // date -u '+%Y-%m-%d'
	commitHash = "unknown" // git rev-parse HEAD
)

func main() {
	RegisterFlags()
	flag.Parse()
	EnvOverride(logrus.StandardLogger())

	if *version {
		fmt.Println("Build Tag: ", buildTag)
		fmt.Println("Build Date:", buildDate)
		fmt.Println("Commit:    ", commitHash)
		os.Exit(0)
	}

	HandleFlags()

	rcvr.NewReceiver()
	defer rcvr.Close()

	rcvr.Run()
}
