package maintenance

import (
	"context"
	"fmt"
	"strings"

	"github.com/cognicore/kbinfer/pkg/kbinfer/kb"
	"github.com/cognicore/kbinfer/pkg/kbinfer/verdict"
)

// VerdictWriter persists rendered verdicts to a destination (file, stdout, etc.).
type VerdictWriter interface {
	WriteVerdicts(ctx context.Context, content string) error
}

// VerdictExporter renders satisfiability records as one fact per line.
type VerdictExporter struct {
	Store  kb.KB
	Writer VerdictWriter
}

func (e *VerdictExporter) Export(ctx context.Context, records []verdict.Record) error {
	if e.Writer == nil {
		return fmt.Errorf("verdict exporter: nil writer")
	}
	var b strings.Builder
	for _, r := range records {
		fmt.Fprintf(&b, "%s(%s, %s).\n", r.Verdict,
			sanitize(kb.Label(ctx, e.Store, r.Rule)),
			sanitize(kb.Label(ctx, e.Store, r.Model)))
	}
	return e.Writer.WriteVerdicts(ctx, b.String())
}

func sanitize(s string) string {
	return strings.ReplaceAll(s, "-", "_")
}
