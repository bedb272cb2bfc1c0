// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

import (
	"time"

	"github.com/amiller-gh/hoist/pkg/status"
	prom "github.com/prometheus/client_golang/prometheus"
	"gitlab.com/tozd/go/errors"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	reg            *prom.Registry
	uploads        *prom.CounterVec
	uploadDuration prom.Histogram
	deletes        *prom.CounterVec
	pending        prom.Gauge
	deployDuration prom.Histogram
}

// NewPrometheusRecorder constructs and registers the deploy metrics on reg.
// A nil reg gets a fresh registry.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		reg: reg,
		uploads: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "hoist",
			Name:      "objects_total",
			Help:      "Upload decisions by outcome and kind",
		}, []string{"outcome", "kind"}),
		uploadDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: "hoist",
			Name:      "upload_duration_seconds",
			Help:      "Duration of individual object uploads",
			Buckets:   prom.DefBuckets,
		}),
		deletes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "hoist",
			Name:      "deletes_total",
			Help:      "Garbage collected objects by result",
		}, []string{"result"}),
		pending: prom.NewGauge(prom.GaugeOpts{
			Namespace: "hoist",
			Name:      "pending_deletion",
			Help:      "Objects waiting out the grace period after the last deploy",
		}),
		deployDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: "hoist",
			Name:      "deploy_duration_seconds",
			Help:      "Total deploy duration",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
	}
	reg.MustRegister(pr.uploads, pr.uploadDuration, pr.deletes, pr.pending, pr.deployDuration)
	return pr
}

// Registry returns the registry the metrics live in.
func (p *PrometheusRecorder) Registry() *prom.Registry {
	return p.reg
}

func (p *PrometheusRecorder) IncUpload(outcome status.Outcome, derived bool) {
	kind := "primary"
	if derived {
		kind = "derived"
	}
	p.uploads.WithLabelValues(outcome.Label(), kind).Inc()
}

func (p *PrometheusRecorder) ObserveUploadDuration(d time.Duration) {
	p.uploadDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncDelete(success bool) {
	res := "failed"
	if success {
		res = "success"
	}
	p.deletes.WithLabelValues(res).Inc()
}

func (p *PrometheusRecorder) SetPending(n int) {
	p.pending.Set(float64(n))
}

func (p *PrometheusRecorder) ObserveDeployDuration(d time.Duration) {
	p.deployDuration.Observe(d.Seconds())
}

// WriteTextfile writes every metric in the textfile collector format.
func (p *PrometheusRecorder) WriteTextfile(path string) error {
	if err := prom.WriteToTextfile(path, p.reg); err != nil {
		return errors.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}
