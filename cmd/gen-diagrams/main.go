// gen-diagrams renders the bundled example documents for README documentation.
// Run: go run ./cmd/gen-diagrams
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/rendis/procperf/internal/diagram"
	"github.com/rendis/procperf/internal/engine"
	"github.com/rendis/procperf/pkg/schema"
)

func main() {
	settings := schema.DefaultSettings()
	if data, err := os.ReadFile(filepath.Join("examples", "settings.yaml")); err == nil {
		if err := yaml.Unmarshal(data, &settings); err != nil {
			fail("settings", err)
		}
	}

	analyzer, err := engine.NewAnalyzer(engine.Config{})
	if err != nil {
		fail("analyzer", err)
	}
	defer analyzer.Close()

	report, err := analyzer.AnalyzeFile(context.Background(), filepath.Join("examples", "order-fulfillment.yaml"), settings)
	if err != nil {
		fail("analyze", err)
	}
	if !report.Resolved {
		fail("analyze", fmt.Errorf("document did not resolve: %d problem(s)", len(report.Problems)))
	}

	outDir := filepath.Join("docs", "assets")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		fail("mkdir", err)
	}

	for _, pr := range report.Processes {
		model, err := diagram.Build(pr)
		if err != nil {
			fail("build "+pr.ProcessID, err)
		}

		ascii := diagram.RenderASCII(model)
		write(filepath.Join(outDir, pr.ProcessID+"-ascii.txt"), ascii)
		fmt.Printf("=== %s (ASCII) ===\n%s\n", pr.ProcessID, ascii)

		mermaid := diagram.RenderMermaid(model)
		write(filepath.Join(outDir, pr.ProcessID+"-mermaid.md"), "```mermaid\n"+mermaid+"\n```\n")
		fmt.Printf("=== %s (Mermaid) ===\n%s\n", pr.ProcessID, mermaid)
	}
}

func write(path, content string) {
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		fail("write", err)
	}
}

func fail(stage string, err error) {
	fmt.Fprintf(os.Stderr, "%s error: %v\n", stage, err)
	os.Exit(1)
}
