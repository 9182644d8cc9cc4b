package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/motionclinic/casematch/internal/domain"
	"github.com/motionclinic/casematch/internal/engine"
	"github.com/motionclinic/casematch/internal/logger"
)

// fakeEvaluator returns a canned report keyed by category.
type fakeEvaluator struct {
	reports map[string]domain.Report
	calls   []engine.Query
}

func (f *fakeEvaluator) Evaluate(ctx context.Context, q engine.Query, category string) (domain.Report, error) {
	f.calls = append(f.calls, q)
	report, ok := f.reports[category]
	if !ok {
		return domain.Report{}, fmt.Errorf("%w: %q", domain.ErrCorpusNotFound, category)
	}
	return report, nil
}

func newTestProcessor(eval Evaluator) *Processor {
	return NewProcessor(eval, logger.NewDefault())
}

// splitResponses breaks framed output into individual JSON documents.
func splitResponses(t *testing.T, output string) []string {
	t.Helper()
	var docs []string
	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		if line == "" {
			continue
		}
		if !strings.HasSuffix(line, ResponseEndMarker) {
			t.Fatalf("response line missing end marker: %q", line)
		}
		docs = append(docs, strings.TrimSuffix(line, ResponseEndMarker))
	}
	return docs
}

func TestProcessor_ValidRequest(t *testing.T) {
	eval := &fakeEvaluator{reports: map[string]domain.Report{
		"xray": {
			FinalDiagnosis:  "Bone Fracture",
			Source:          domain.TierDatasetMatch,
			SimilarityScore: "91.00%",
		},
	}}
	p := newTestProcessor(eval)

	in := strings.NewReader(`{"query": "wrist pain after fall", "category": "xray"}` + "\n")
	var out strings.Builder
	if err := p.Run(context.Background(), in, &out); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	docs := splitResponses(t, out.String())
	if len(docs) != 1 {
		t.Fatalf("expected 1 response, got %d", len(docs))
	}

	var report domain.Report
	if err := json.Unmarshal([]byte(docs[0]), &report); err != nil {
		t.Fatalf("response is not a valid report: %v", err)
	}
	if report.FinalDiagnosis != "Bone Fracture" {
		t.Errorf("FinalDiagnosis = %q, want %q", report.FinalDiagnosis, "Bone Fracture")
	}
	if report.Source != domain.TierDatasetMatch {
		t.Errorf("Source = %q, want %q", report.Source, domain.TierDatasetMatch)
	}

	if len(eval.calls) != 1 {
		t.Fatalf("expected 1 evaluation, got %d", len(eval.calls))
	}
	if eval.calls[0].Text != "wrist pain after fall" {
		t.Errorf("query text = %q", eval.calls[0].Text)
	}
}

func TestProcessor_MalformedLineDoesNotStopStream(t *testing.T) {
	eval := &fakeEvaluator{reports: map[string]domain.Report{
		"ct": {FinalDiagnosis: "Hernia", Source: domain.TierDatasetMatch},
	}}
	p := newTestProcessor(eval)

	input := strings.Join([]string{
		`{not json at all`,
		`{"query": "back pain", "category": "ct"}`,
	}, "\n") + "\n"

	var out strings.Builder
	if err := p.Run(context.Background(), strings.NewReader(input), &out); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	docs := splitResponses(t, out.String())
	if len(docs) != 2 {
		t.Fatalf("expected 2 responses, got %d", len(docs))
	}

	var errPayload domain.ErrorPayload
	if err := json.Unmarshal([]byte(docs[0]), &errPayload); err != nil {
		t.Fatalf("first response is not an error payload: %v", err)
	}
	if errPayload.Code != "malformed_request" {
		t.Errorf("error code = %q, want %q", errPayload.Code, "malformed_request")
	}

	var report domain.Report
	if err := json.Unmarshal([]byte(docs[1]), &report); err != nil {
		t.Fatalf("second response is not a report: %v", err)
	}
	if report.FinalDiagnosis != "Hernia" {
		t.Errorf("FinalDiagnosis = %q, want %q", report.FinalDiagnosis, "Hernia")
	}
}

func TestProcessor_RejectedRequests(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		wantCode string
	}{
		{
			name:     "missing category",
			line:     `{"query": "knee pain"}`,
			wantCode: "malformed_request",
		},
		{
			name:     "missing query and image",
			line:     `{"category": "mri"}`,
			wantCode: "malformed_request",
		},
		{
			name:     "unknown category",
			line:     `{"query": "knee pain", "category": "ultrasound"}`,
			wantCode: "corpus_not_found",
		},
		{
			name:     "unreadable image path",
			line:     `{"image_path": "/nonexistent/scan.png", "category": "mri"}`,
			wantCode: "malformed_request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eval := &fakeEvaluator{reports: map[string]domain.Report{
				"mri": {Source: domain.TierDatasetMatch},
			}}
			p := newTestProcessor(eval)

			var out strings.Builder
			if err := p.Run(context.Background(), strings.NewReader(tt.line+"\n"), &out); err != nil {
				t.Fatalf("Run() error = %v", err)
			}

			docs := splitResponses(t, out.String())
			if len(docs) != 1 {
				t.Fatalf("expected 1 response, got %d", len(docs))
			}

			var payload domain.ErrorPayload
			if err := json.Unmarshal([]byte(docs[0]), &payload); err != nil {
				t.Fatalf("response is not an error payload: %v", err)
			}
			if payload.Code != tt.wantCode {
				t.Errorf("error code = %q, want %q", payload.Code, tt.wantCode)
			}
		})
	}
}

func TestProcessor_BlankLinesSkipped(t *testing.T) {
	eval := &fakeEvaluator{reports: map[string]domain.Report{
		"xray": {Source: domain.TierDatasetMatch},
	}}
	p := newTestProcessor(eval)

	input := "\n\n" + `{"query": "shoulder pain", "category": "xray"}` + "\n\n"
	var out strings.Builder
	if err := p.Run(context.Background(), strings.NewReader(input), &out); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	docs := splitResponses(t, out.String())
	if len(docs) != 1 {
		t.Fatalf("expected 1 response, got %d", len(docs))
	}
	if len(eval.calls) != 1 {
		t.Fatalf("expected 1 evaluation, got %d", len(eval.calls))
	}
}

func TestProcessor_EmptyInput(t *testing.T) {
	p := newTestProcessor(&fakeEvaluator{})
	var out strings.Builder
	if err := p.Run(context.Background(), strings.NewReader(""), &out); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("expected no output, got %q", out.String())
	}
}
