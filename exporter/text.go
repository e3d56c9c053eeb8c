package exporter

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/AlexKent3141/lurien/domain"
	"github.com/AlexKent3141/lurien/domain/metrics"
)

var _ domain.Sink = (*TextSink)(nil)

// TextSink renders each thread as an indented tree:
//
//	Thread ID: 0x1
//	outer 0.9
//	  inner 0.4
//
// Whole trees are written under one lock, so trees from threads that end
// at the same time never interleave.
type TextSink struct {
	mu  sync.Mutex
	out io.Writer
}

func NewTextSink(out io.Writer) *TextSink {
	return &TextSink{out: out}
}

func (s *TextSink) HandleOutput(output *metrics.ThreadOutput) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Thread ID: %#x\n", output.ThreadID)
	output.Walk(func(scope *metrics.ScopeOutput, depth int, _ []string) {
		buf.WriteString(strings.Repeat("  ", depth))
		buf.WriteString(scope.Name)
		buf.WriteByte(' ')
		buf.WriteString(FormatProportion(scope.CPUProportion))
		buf.WriteByte('\n')
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.out.Write(buf.Bytes())
}

// FormatProportion prints p with six significant digits and no trailing
// zeros.
func FormatProportion(p float64) string {
	return strconv.FormatFloat(p, 'g', 6, 64)
}
