// Package stream implements the line-delimited JSON serve mode: one request
// per input line, one framed response per output line. A parent process keeps
// the evaluator warm and pipes queries through stdin/stdout.
package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/motionclinic/casematch/internal/domain"
	"github.com/motionclinic/casematch/internal/engine"
	"github.com/motionclinic/casematch/internal/logger"
)

// ResponseEndMarker terminates every response line so the consuming process
// can split concatenated output without relying on line buffering.
const ResponseEndMarker = "RESPONSE_END"

// maxLineBytes bounds a single request line. Image payloads travel by path,
// not inline, so requests stay small.
const maxLineBytes = 1 << 20

// Request is one evaluation request on the stream.
type Request struct {
	Query     string `json:"query"`
	ImagePath string `json:"image_path,omitempty"`
	Category  string `json:"category"`
	Age       *int   `json:"age,omitempty"`
}

// Evaluator is the subset of the engine the processor needs.
type Evaluator interface {
	Evaluate(ctx context.Context, q engine.Query, category string) (domain.Report, error)
}

// Processor reads requests line by line and writes framed responses.
type Processor struct {
	evaluator Evaluator
	logger    *logger.Logger
}

// NewProcessor creates a stream processor over the given evaluator.
func NewProcessor(evaluator Evaluator, log *logger.Logger) *Processor {
	return &Processor{
		evaluator: evaluator,
		logger:    log,
	}
}

// Run processes requests from r until EOF or context cancellation.
// A malformed line produces an error response and the stream continues;
// only a read or write failure terminates the loop.
// Parameters:
//   - ctx: context for cancellation.
//   - r: request source, one JSON object per line.
//   - w: response sink.
// Returns:
//   - error: non-nil on read or write failure.
func (p *Processor) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	out := bufio.NewWriter(w)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		requestID := uuid.NewString()
		reqCtx := logger.SetRequestID(ctx, requestID)

		payload := p.handleLine(reqCtx, line)
		if err := p.write(out, payload); err != nil {
			return fmt.Errorf("write response: %w", err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read request: %w", err)
	}
	return out.Flush()
}

// handleLine parses and evaluates one request line, always returning a
// marshalable payload: either a report or a structured error.
func (p *Processor) handleLine(ctx context.Context, line string) interface{} {
	log := logger.FromContext(ctx)

	var req Request
	if err := json.Unmarshal([]byte(line), &req); err != nil {
		log.WithError(err).Warn("invalid request line")
		return domain.NewErrorPayload(fmt.Errorf("%w: invalid JSON", domain.ErrMalformedRequest))
	}

	q, err := p.buildQuery(req)
	if err != nil {
		log.WithError(err).Warn("rejected request")
		return domain.NewErrorPayload(err)
	}

	report, err := p.evaluator.Evaluate(ctx, q, req.Category)
	if err != nil {
		log.WithField(logger.FieldCategory, req.Category).WithError(err).Error("evaluation failed")
		return domain.NewErrorPayload(err)
	}

	log.WithFields(logger.Fields{
		logger.FieldCategory: req.Category,
		logger.FieldTier:     string(report.Source),
	}).Info("request evaluated")
	return report
}

// buildQuery validates the request and loads the image when a path is given.
func (p *Processor) buildQuery(req Request) (engine.Query, error) {
	if req.Category == "" {
		return engine.Query{}, fmt.Errorf("%w: category is required", domain.ErrMalformedRequest)
	}
	if req.Query == "" && req.ImagePath == "" {
		return engine.Query{}, fmt.Errorf("%w: query or image_path is required", domain.ErrMalformedRequest)
	}

	q := engine.Query{
		Text: req.Query,
		Age:  req.Age,
	}
	if req.ImagePath != "" {
		data, err := os.ReadFile(req.ImagePath)
		if err != nil {
			return engine.Query{}, fmt.Errorf("%w: cannot read image: %v", domain.ErrMalformedRequest, err)
		}
		q.Image = data
		q.ImageFormat = strings.TrimPrefix(filepath.Ext(req.ImagePath), ".")
	}
	return q, nil
}

// write emits one framed response line: JSON, the end marker, a newline.
func (p *Processor) write(out *bufio.Writer, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		data, _ = json.Marshal(domain.NewErrorPayload(err))
	}
	if _, err := out.Write(data); err != nil {
		return err
	}
	if _, err := out.WriteString(ResponseEndMarker); err != nil {
		return err
	}
	if err := out.WriteByte('\n'); err != nil {
		return err
	}
	return out.Flush()
}
