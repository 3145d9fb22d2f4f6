package resolve

import (
	"fmt"
	"log"
	"strings"
)

const (
	successChar   = "✓"
	successCharSp = successChar + " "
	failChar      = "✗"
	failCharSp    = failChar + " "
	backChar      = "←"
)

// tracer mirrors the teacher's solver trace logging (trace.go): a plain
// stdlib *log.Logger, glyph-prefixed messages, indentation keyed to
// backtracking depth.
type tracer struct {
	enabled bool
	l       *log.Logger
}

func newTracer(enabled bool, l *log.Logger) *tracer {
	if l == nil {
		l = log.Default()
	}
	return &tracer{enabled: enabled, l: l}
}

func tracePrefix(msg, cur, next string) string {
	return cur + msg
}

func (t *tracer) activate(depth int, id PackageId) {
	if !t.enabled {
		return
	}
	prefix := strings.Repeat("| ", depth)
	t.l.Printf("%s\n", tracePrefix(successCharSp+id.String(), prefix, prefix))
}

func (t *tracer) reject(depth int, id PackageId, err error) {
	if !t.enabled {
		return
	}
	prefix := strings.Repeat("| ", depth)
	t.l.Printf("%s\n", tracePrefix(fmt.Sprintf("%s%s: %v", failCharSp, id.String(), err), prefix, prefix))
}

func (t *tracer) backtrack(depth int, id PackageId) {
	if !t.enabled {
		return
	}
	prefix := strings.Repeat("| ", depth)
	t.l.Printf("%s\n", tracePrefix(fmt.Sprintf("%s backtrack: popped %s", backChar, id.String()), prefix, prefix))
}

func (t *tracer) attempt(depth int, name string, remaining int) {
	if !t.enabled {
		return
	}
	prefix := strings.Repeat("| ", depth)
	t.l.Printf("%s\n", tracePrefix(fmt.Sprintf("? attempt %s; %d versions to try", name, remaining), prefix, prefix))
}
