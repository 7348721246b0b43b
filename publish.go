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
	"net/http"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"tetradec/pipeline"
)

// Publisher forwards decoded frames to an external consumer. The
// output loop never blocks on it.
type Publisher interface {
	Publish(pipeline.DecodedFrame) error
	Close()
}

type natsPublisher struct {
	conn    *nats.Conn
	subject string
}

func NewNATSPublisher(url, subject string) (Publisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("tetradec"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, errors.Wrap(err, "connecting to nats")
	}
	return &natsPublisher{conn: conn, subject: subject}, nil
}

func (p *natsPublisher) Publish(df pipeline.DecodedFrame) error {
	data, err := json.Marshal(df)
	if err != nil {
		return errors.Wrap(err, "marshaling frame")
	}
	return p.conn.Publish(p.subject, data)
}

func (p *natsPublisher) Close() {
	// Drain flushes buffered publishes before closing.
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}

// serveMetrics exposes the prometheus registry on /metrics.
func serveMetrics(listen string, reg *prometheus.Registry, log *logrus.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: listen, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("metrics server stopped")
		}
	}()
	log.WithField("listen", listen).Info("serving metrics")
	return srv
}
