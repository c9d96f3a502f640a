package formatter

import (
	"strings"
	"testing"

	"github.com/alevsk/quay-ops/internal/types"
)

func TestTableFormat(t *testing.T) {
	tests := []struct {
		name        string
		opts        *Options
		contains    []string
		notContains []string
	}{
		{
			name: "with summary",
			opts: DefaultOptions(),
			contains: []string{
				"SYNC",
				"KIND",
				"ENTITY",
				"organization/team1",
				"r2.example/team1/app:v1",
				"push: denied",
				"1M30S (2 MIN)",
				"SUMMARY",
				"copied",
			},
		},
		{
			name:        "without summary",
			opts:        &Options{},
			contains:    []string{"organization/team2", "skipped"},
			notContains: []string{"SUMMARY"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := NewFormatter(TypeTable, tt.opts)
			if err != nil {
				t.Fatal(err)
			}
			out, err := f.Format(sampleReport())
			if err != nil {
				t.Fatal(err)
			}
			for _, want := range tt.contains {
				if !strings.Contains(out, want) {
					t.Errorf("table output missing %q:\n%s", want, out)
				}
			}
			for _, unwanted := range tt.notContains {
				if strings.Contains(out, unwanted) {
					t.Errorf("table output should not contain %q", unwanted)
				}
			}
		})
	}
}

func TestTableEmptyReport(t *testing.T) {
	f, _ := NewFormatter(TypeTable, nil)
	out, err := f.Format(types.NewReport("preflight"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "PREFLIGHT") {
		t.Errorf("expected operation title, got:\n%s", out)
	}
	if !strings.Contains(out, "SUMMARY") {
		t.Errorf("expected empty summary table, got:\n%s", out)
	}
}

func TestMarkdownFormat(t *testing.T) {
	f, _ := NewFormatter(TypeMarkdown, nil)
	out, err := f.Format(sampleReport())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "| --- |") {
		t.Errorf("expected markdown separator row, got:\n%s", out)
	}
	if !strings.Contains(out, "organization/team1") {
		t.Errorf("expected step entity in markdown output")
	}
}
