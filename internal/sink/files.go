package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"

	"github.com/hazyhaar/pageprobe/report"
)

// Files writes each snapshot to dir as <id>.html (verbatim source), <id>.md
// (readable Markdown rendering) and <id>.json (metadata). Outcomes are not
// written; pair Files with another sink for those.
type Files struct {
	dir string
	md  *converter.Converter
}

// NewFiles creates dir if needed.
func NewFiles(dir string) (*Files, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("files: mkdir: %w", err)
	}
	return &Files{
		dir: dir,
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}, nil
}

func (f *Files) Send(context.Context, report.Outcome) error { return nil }

func (f *Files) SendSnapshot(_ context.Context, snap report.Snapshot) error {
	base := filepath.Join(f.dir, snap.ID)
	if err := os.WriteFile(base+".html", snap.Source, 0o644); err != nil {
		return fmt.Errorf("files: write html: %w", err)
	}

	md, err := f.md.ConvertString(string(snap.Source), converter.WithDomain(snap.PageURL))
	if err != nil {
		return fmt.Errorf("files: markdown: %w", err)
	}
	if err := os.WriteFile(base+".md", []byte(md), 0o644); err != nil {
		return fmt.Errorf("files: write markdown: %w", err)
	}

	meta := snap
	meta.Source = nil
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("files: marshal: %w", err)
	}
	if err := os.WriteFile(base+".json", data, 0o644); err != nil {
		return fmt.Errorf("files: write meta: %w", err)
	}
	return nil
}

func (f *Files) Close() error { return nil }

// Dir is the output directory.
func (f *Files) Dir() string { return f.dir }
