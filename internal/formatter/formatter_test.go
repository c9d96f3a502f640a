package formatter

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/alevsk/quay-ops/internal/types"
)

func sampleReport() *types.Report {
	return &types.Report{
		Operation: "sync",
		Started:   time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		Elapsed:   90 * time.Second,
		Steps: []types.Step{
			{Entity: "organization/team1", Kind: "organization", Action: types.ActionCreated, Elapsed: 120 * time.Millisecond},
			{Entity: "organization/team2", Kind: "organization", Action: types.ActionSkipped},
			{Entity: "r2.example/team1/app:v1", Kind: "image", Action: types.ActionCopied, Elapsed: 30 * time.Second},
			{Entity: "r2.example/team1/app:v2", Kind: "image", Action: types.ActionFailed, Detail: "push: denied"},
		},
	}
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	if !opts.IncludeSummary {
		t.Errorf("DefaultOptions().IncludeSummary = false, want true")
	}
}

func TestParseType(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantType Type
		wantErr  bool
	}{
		{"json", "json", TypeJSON, false},
		{"yaml", "yaml", TypeYAML, false},
		{"table", "table", TypeTable, false},
		{"markdown", "markdown", TypeMarkdown, false},
		{"unknown", "unknown", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotType, err := ParseType(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseType() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if gotType != tt.wantType {
				t.Errorf("ParseType() gotType = %v, want %v", gotType, tt.wantType)
			}
		})
	}
}

func TestNewFormatter(t *testing.T) {
	tests := []struct {
		name string
		typ  Type
		want Formatter
	}{
		{"json", TypeJSON, &JSON{}},
		{"yaml", TypeYAML, &YAML{}},
		{"table", TypeTable, &Table{}},
		{"markdown", TypeMarkdown, &Markdown{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewFormatter(tt.typ, nil)
			if err != nil {
				t.Fatalf("NewFormatter() error = %v", err)
			}
			if reflect.TypeOf(got) != reflect.TypeOf(tt.want) {
				t.Errorf("NewFormatter() = %T, want %T", got, tt.want)
			}
		})
	}

	if _, err := NewFormatter("invalid", nil); err == nil {
		t.Error("NewFormatter() expected error for invalid type")
	}
}

func TestJSONFormat(t *testing.T) {
	f, _ := NewFormatter(TypeJSON, nil)
	out, err := f.Format(sampleReport())
	if err != nil {
		t.Fatal(err)
	}

	var parsed ParsedReport
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if parsed.Operation != "sync" || parsed.Minutes != 2 || parsed.Elapsed != "1m30s" {
		t.Errorf("unexpected header %+v", parsed)
	}
	if parsed.Started != "2024-05-01T10:00:00Z" {
		t.Errorf("unexpected start %s", parsed.Started)
	}
	if len(parsed.Steps) != 4 || parsed.Steps[3].Detail != "push: denied" {
		t.Errorf("unexpected steps %+v", parsed.Steps)
	}
	if parsed.Steps[1].Elapsed != "" {
		t.Errorf("expected empty elapsed for untimed step, got %q", parsed.Steps[1].Elapsed)
	}

	want := []SummaryEntry{
		{Action: types.ActionCreated, Count: 1},
		{Action: types.ActionCopied, Count: 1},
		{Action: types.ActionSkipped, Count: 1},
		{Action: types.ActionFailed, Count: 1},
	}
	if !reflect.DeepEqual(parsed.Summary, want) {
		t.Errorf("summary = %+v, want %+v", parsed.Summary, want)
	}
}

func TestYAMLFormat(t *testing.T) {
	f, _ := NewFormatter(TypeYAML, &Options{})
	out, err := f.Format(sampleReport())
	if err != nil {
		t.Fatal(err)
	}

	var parsed ParsedReport
	if err := yaml.Unmarshal([]byte(out), &parsed); err != nil {
		t.Fatalf("output is not valid YAML: %v", err)
	}
	if parsed.Summary != nil {
		t.Errorf("expected no summary, got %+v", parsed.Summary)
	}
	if parsed.Steps[0].Entity != "organization/team1" || parsed.Steps[0].Elapsed != "120ms" {
		t.Errorf("unexpected first step %+v", parsed.Steps[0])
	}
	if strings.Contains(out, "summary:") {
		t.Error("summary key should be omitted")
	}
}

func TestNilReport(t *testing.T) {
	f, _ := NewFormatter(TypeJSON, nil)
	out, err := f.Format(nil)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `"steps": []`) {
		t.Errorf("expected empty steps, got %s", out)
	}
}
