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

package log

import (
	"fmt"
	"io"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/walteh/backuprc/pkg/failure"
	"github.com/walteh/backuprc/pkg/run"
)

// 🎨 Display configuration
const (
	labelWidth = 12 // width of the summary labels
	indent     = 4  // spaces before cleanup failures
)

// 🖥️ Console prints human readable run status
type Console struct {
	out io.Writer
	mu  sync.Mutex
}

// 🏭 NewConsole creates a console writing to out
func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

// 📝 Header prints the tool banner with msg
func (c *Console) Header(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	name := color.New(color.Bold, color.FgCyan).Sprint("backuprc")
	fmt.Fprintf(c.out, "\n%s %s\n\n", name, color.New(color.Faint).Sprint("• "+msg))
}

// 📝 Success prints a success line
func (c *Console) Success(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "✅ %s\n", color.New(color.FgGreen).Sprint(msg))
}

// 📝 Warning prints a warning line
func (c *Console) Warning(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "⚠️  %s\n", color.New(color.FgYellow).Sprint(msg))
}

// 📝 Error prints an error line
func (c *Console) Error(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "❌ %s\n", color.New(color.FgRed).Sprint(msg))
}

func (c *Console) field(label, value string) {
	fmt.Fprintf(c.out, "%s %s\n", color.New(color.Faint).Sprintf("%-*s", labelWidth, label), value)
}

// 📋 Summary prints the verdict of a run followed by its details
func (c *Console) Summary(out *run.Outcome) {
	switch out.Status {
	case run.StatusSucceeded:
		c.Success("backup succeeded")
	case run.StatusSucceededWithCleanupErrors:
		c.Warning("backup succeeded, cleanup had problems")
	default:
		c.Error("backup failed")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if out.Remote != nil {
		c.field("remote", fmt.Sprintf("%s (%s)", out.Remote.Name, out.Remote.Type))
		if out.Remote.About != nil && out.Remote.About.Free != nil {
			c.field("free", humanize.IBytes(uint64(max(*out.Remote.About.Free, 0))))
		}
	}
	if t := out.Transfer; t != nil {
		c.field("copy", fmt.Sprintf("%s → %s", t.Source, t.Destination))
		c.field("took", t.Duration.String())
	}
	if out.LogFile != "" {
		c.field("log", out.LogFile)
	}
	if out.Primary != nil {
		c.field("error", color.New(color.FgRed).Sprint(out.Primary.Error()))
	}
	for _, err := range out.Cleanup {
		fmt.Fprintf(c.out, "%*s%s %s\n", indent, "",
			color.New(color.FgYellow).Sprint(failure.KindOf(err).String()),
			err.Error())
	}
}
