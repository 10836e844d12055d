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

package transfer

import (
	"context"
	"io"
	"sync"

	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
	"github.com/walteh/backuprc/pkg/engine"
)

// 📊 BarReporter draws engine statistics as a pterm progress bar
type BarReporter struct {
	mu      sync.Mutex
	writer  io.Writer
	title   string
	bar     *pterm.ProgressbarPrinter
	percent int
	done    bool
}

var _ engine.ProgressSink = (*BarReporter)(nil)

// NewBarReporter creates a reporter drawing to w. The bar starts with the
// first statistics update.
func NewBarReporter(w io.Writer, title string) *BarReporter {
	return &BarReporter{writer: w, title: title}
}

// Progress advances the bar to the completion in stats.
func (r *BarReporter) Progress(stats engine.Stats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.done {
		return
	}

	if r.bar == nil {
		bar, err := pterm.DefaultProgressbar.
			WithTotal(100).
			WithTitle(r.title).
			WithWriter(r.writer).
			Start()
		if err != nil {
			r.done = true
			return
		}
		r.bar = bar
	}

	r.bar.UpdateTitle(r.title + " " + stats.String())

	target := int(stats.Percent())
	if delta := target - r.percent; delta > 0 {
		r.percent = target
		r.bar.Add(delta)
	}
}

// Percent returns the completion last drawn.
func (r *BarReporter) Percent() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.percent
}

// Finish stops the bar. Later updates are ignored.
func (r *BarReporter) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.done = true
	if r.bar != nil {
		_, _ = r.bar.Stop()
	}
}

// 📝 LogReporter writes each statistics update to the context logger at debug
func LogReporter(ctx context.Context) engine.ProgressSink {
	logger := zerolog.Ctx(ctx)
	return engine.ProgressFunc(func(stats engine.Stats) {
		logger.Debug().
			Int64("bytes", stats.Bytes).
			Int64("total_bytes", stats.TotalBytes).
			Int64("transfers", stats.Transfers).
			Int64("errors", stats.Errors).
			Msg(stats.String())
	})
}
