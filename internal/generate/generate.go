// Package generate turns free-form notes into structured documents and
// enriches existing steps, using a hosted model behind Genkit flows. Every
// entry point degrades gracefully: batch generation falls back to heuristic
// line parsing, batch enhancement falls back to per-step calls, and a step
// that cannot be enhanced is returned unchanged.
package generate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/ultrasop/ultrasop/internal/log"
	"github.com/ultrasop/ultrasop/internal/sop"
)

// Sentinel errors.
var (
	// ErrNotConfigured indicates no model backend is available (missing
	// API key). Callers should not retry.
	ErrNotConfigured = errors.New("generation backend not configured")

	// ErrUpstream indicates the model backend failed after retries. When
	// returned from GenerateFromNotes a heuristic fallback document
	// accompanies it.
	ErrUpstream = errors.New("model backend error")

	// ErrBadOutput indicates the model responded but its output was
	// unusable.
	ErrBadOutput = errors.New("unusable model output")
)

// DetailLevel selects how verbose generated step write-ups should be.
type DetailLevel string

const (
	DetailPreview DetailLevel = "preview"
	DetailFull    DetailLevel = "full"
	DetailRich    DetailLevel = "rich"
)

// wordHint returns the target word range for step write-ups at each level.
func (d DetailLevel) wordHint() string {
	switch d {
	case DetailRich:
		return "200-260"
	case DetailPreview:
		return "80-120"
	default:
		return "150-220"
	}
}

// Valid reports whether the level is one of the known values.
func (d DetailLevel) Valid() bool {
	switch d {
	case DetailPreview, DetailFull, DetailRich:
		return true
	}
	return false
}

// stepPayload is the wire shape steps take through the model.
type stepPayload struct {
	Title              string   `json:"title"`
	Details            string   `json:"details,omitempty"`
	Longform           string   `json:"longform,omitempty"`
	OwnerRole          string   `json:"ownerRole,omitempty"`
	DurationMin        *int     `json:"durationMin,omitempty"`
	Checklist          []string `json:"checklist,omitempty"`
	Prerequisites      []string `json:"prerequisites,omitempty"`
	AcceptanceCriteria []string `json:"acceptanceCriteria,omitempty"`
	Tools              []string `json:"tools,omitempty"`
	References         []string `json:"references,omitempty"`
	Risks              []string `json:"risks,omitempty"`
}

type generateInput struct {
	Notes  string `json:"notes"`
	Title  string `json:"title,omitempty"`
	Detail string `json:"detail"`
}

type generateOutput struct {
	Title   string        `json:"title"`
	Summary string        `json:"summary"`
	Steps   []stepPayload `json:"steps"`
}

type enhanceInput struct {
	Title   string        `json:"title"`
	Summary string        `json:"summary,omitempty"`
	Steps   []stepPayload `json:"steps"`
	Detail  string        `json:"detail"`
}

type enhanceOutput struct {
	Steps []stepPayload `json:"steps"`
}

type enhanceStepInput struct {
	DocTitle   string      `json:"docTitle"`
	DocSummary string      `json:"docSummary,omitempty"`
	Step       stepPayload `json:"step"`
	Detail     string      `json:"detail"`
}

// Service is the gateway to the model backend.
type Service struct {
	logger    log.Logger
	model     string
	batchCfg  RetryConfig
	stepCfg   RetryConfig
	stepDelay time.Duration

	// Flow runners, bound to the registered Genkit flows in New. Tests
	// substitute these directly to exercise the failure paths.
	runGenerate    func(ctx context.Context, in generateInput) (generateOutput, error)
	runEnhance     func(ctx context.Context, in enhanceInput) (enhanceOutput, error)
	runEnhanceStep func(ctx context.Context, in enhanceStepInput) (stepPayload, error)
}

// New wires the generation flows. A nil Genkit instance produces a Service
// whose calls report ErrNotConfigured, so callers can run without a key and
// still get fallback behavior.
func New(g *genkit.Genkit, model string, logger log.Logger) *Service {
	if logger == nil {
		logger = log.NewNop()
	}
	s := &Service{
		logger:    logger,
		model:     model,
		batchCfg:  DefaultRetryConfig,
		stepCfg:   StepRetryConfig,
		stepDelay: 250 * time.Millisecond,
	}
	if g == nil {
		return s
	}

	generateFlow := genkit.DefineFlow(g, "generateSOP",
		func(ctx context.Context, in generateInput) (generateOutput, error) {
			var out generateOutput
			resp, err := genkit.Generate(ctx, g,
				ai.WithModelName(s.model),
				ai.WithSystem(generateSystemPrompt),
				ai.WithPrompt(generateUserPrompt(in)),
				ai.WithOutputType(generateOutput{}),
			)
			if err != nil {
				return out, err
			}
			if err := resp.Output(&out); err != nil {
				return out, fmt.Errorf("%w: %v", ErrBadOutput, err)
			}
			return out, nil
		})

	enhanceFlow := genkit.DefineFlow(g, "enhanceSteps",
		func(ctx context.Context, in enhanceInput) (enhanceOutput, error) {
			var out enhanceOutput
			resp, err := genkit.Generate(ctx, g,
				ai.WithModelName(s.model),
				ai.WithSystem(enhanceSystemPrompt),
				ai.WithPrompt(enhanceUserPrompt(in)),
				ai.WithOutputType(enhanceOutput{}),
			)
			if err != nil {
				return out, err
			}
			if err := resp.Output(&out); err != nil {
				return out, fmt.Errorf("%w: %v", ErrBadOutput, err)
			}
			return out, nil
		})

	enhanceStepFlow := genkit.DefineFlow(g, "enhanceStep",
		func(ctx context.Context, in enhanceStepInput) (stepPayload, error) {
			var out stepPayload
			resp, err := genkit.Generate(ctx, g,
				ai.WithModelName(s.model),
				ai.WithSystem(enhanceSystemPrompt),
				ai.WithPrompt(enhanceStepUserPrompt(in)),
				ai.WithOutputType(stepPayload{}),
			)
			if err != nil {
				return out, err
			}
			if err := resp.Output(&out); err != nil {
				return out, fmt.Errorf("%w: %v", ErrBadOutput, err)
			}
			return out, nil
		})

	s.runGenerate = generateFlow.Run
	s.runEnhance = enhanceFlow.Run
	s.runEnhanceStep = enhanceStepFlow.Run
	return s
}

// Configured reports whether a model backend is wired.
func (s *Service) Configured() bool {
	return s.runGenerate != nil
}

// GenerateFromNotes produces a complete document from free-form notes. When
// the backend fails after retries, or responds with unusable output, a
// heuristic fallback document is returned together with an ErrUpstream error
// so callers can surface a warning while still giving the user a usable
// result.
func (s *Service) GenerateFromNotes(ctx context.Context, notes, overrideTitle string, detail DetailLevel) (*sop.Document, error) {
	if strings.TrimSpace(notes) == "" {
		return nil, errors.New("notes are required")
	}
	if !s.Configured() {
		return nil, ErrNotConfigured
	}

	in := generateInput{Notes: notes, Title: overrideTitle, Detail: string(detail)}
	out, err := withRetry(ctx, s.batchCfg, func(ctx context.Context) (generateOutput, error) {
		return s.runGenerate(ctx, in)
	})
	if err == nil && len(out.Steps) == 0 {
		err = fmt.Errorf("%w: missing steps", ErrBadOutput)
	}
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		s.logger.Warn("generation failed, using heuristic fallback", "error", err)
		return FallbackFromNotes(notes, overrideTitle), fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	d := sop.NewDocument()
	d.Title = out.Title
	if strings.TrimSpace(overrideTitle) != "" {
		d.Title = overrideTitle
	}
	d.Summary = out.Summary
	d.Steps = payloadsToSteps(out.Steps)
	sop.Sanitize(d)
	return d, nil
}

// EnhanceSteps enriches every step with structured detail. The result has
// the same length and order as the input. When the batch call fails the
// service degrades to sequential per-step enhancement, keeping the original
// step wherever even that fails; degraded reports that the cheaper path ran.
func (s *Service) EnhanceSteps(ctx context.Context, title, summary string, steps []sop.Step, detail DetailLevel) (enhanced []sop.Step, degraded bool, err error) {
	if len(steps) == 0 {
		return nil, false, errors.New("steps are required")
	}
	if !s.Configured() {
		return nil, false, ErrNotConfigured
	}

	in := enhanceInput{
		Title:   title,
		Summary: summary,
		Steps:   stepsToPayloads(steps),
		Detail:  string(detail),
	}
	out, err := withRetry(ctx, s.batchCfg, func(ctx context.Context) (enhanceOutput, error) {
		o, err := s.runEnhance(ctx, in)
		if err != nil {
			return o, err
		}
		if len(o.Steps) != len(steps) {
			return o, fmt.Errorf("%w: got %d steps for %d inputs", ErrBadOutput, len(o.Steps), len(steps))
		}
		return o, nil
	})
	if err == nil {
		return sanitizeEnhanced(steps, out.Steps), false, nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil, false, err
	}

	s.logger.Warn("batch enhancement failed, degrading to per-step calls", "error", err)
	enhanced, err = s.enhanceSequential(ctx, title, summary, steps, detail)
	if err != nil {
		return nil, false, err
	}
	return enhanced, true, nil
}

// EnhanceStep enriches a single step in the context of its document.
func (s *Service) EnhanceStep(ctx context.Context, title, summary string, step sop.Step, detail DetailLevel) (sop.Step, error) {
	if !s.Configured() {
		return sop.Step{}, ErrNotConfigured
	}
	in := enhanceStepInput{
		DocTitle:   title,
		DocSummary: summary,
		Step:       stepToPayload(step),
		Detail:     string(detail),
	}
	out, err := withRetry(ctx, s.stepCfg, func(ctx context.Context) (stepPayload, error) {
		return s.runEnhanceStep(ctx, in)
	})
	if err != nil {
		return sop.Step{}, err
	}
	merged := mergeEnhanced(step, out)
	if enhanced, ok := sop.SanitizeStep(merged); ok {
		return enhanced, nil
	}
	return sop.Step{}, fmt.Errorf("%w: blank step title", ErrBadOutput)
}

// enhanceSequential enhances one step at a time, pausing briefly between
// calls to stay under rate limits. A step that fails keeps its original
// content.
func (s *Service) enhanceSequential(ctx context.Context, title, summary string, steps []sop.Step, detail DetailLevel) ([]sop.Step, error) {
	out := make([]sop.Step, len(steps))
	for i, st := range steps {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.stepDelay):
			}
		}
		enhanced, err := s.EnhanceStep(ctx, title, summary, st, detail)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			s.logger.Warn("step enhancement failed, keeping original", "index", i, "error", err)
			out[i] = st
			continue
		}
		out[i] = enhanced
	}
	return out, nil
}

// sanitizeEnhanced merges model output onto the original steps and
// sanitizes, preserving length and order. A step the model blanked keeps
// its original.
func sanitizeEnhanced(originals []sop.Step, payloads []stepPayload) []sop.Step {
	out := make([]sop.Step, len(originals))
	for i, p := range payloads {
		merged := mergeEnhanced(originals[i], p)
		if st, ok := sop.SanitizeStep(merged); ok {
			out[i] = st
		} else {
			out[i] = originals[i]
		}
	}
	return out
}

// mergeEnhanced overlays model output on an original step. The original
// title wins when the model drops it, so enhancement never loses a step's
// identity.
func mergeEnhanced(original sop.Step, p stepPayload) sop.Step {
	st := payloadToStep(p)
	if strings.TrimSpace(st.Title) == "" {
		st.Title = original.Title
	}
	if st.Details == "" {
		st.Details = original.Details
	}
	return st
}

func stepToPayload(s sop.Step) stepPayload {
	return stepPayload{
		Title:              s.Title,
		Details:            s.Details,
		Longform:           s.Longform,
		OwnerRole:          s.OwnerRole,
		DurationMin:        s.DurationMin,
		Checklist:          s.Checklist,
		Prerequisites:      s.Prerequisites,
		AcceptanceCriteria: s.AcceptanceCriteria,
		Tools:              s.Tools,
		References:         s.References,
		Risks:              s.Risks,
	}
}

func payloadToStep(p stepPayload) sop.Step {
	return sop.Step{
		Title:              p.Title,
		Details:            p.Details,
		Longform:           p.Longform,
		OwnerRole:          p.OwnerRole,
		DurationMin:        p.DurationMin,
		Checklist:          p.Checklist,
		Prerequisites:      p.Prerequisites,
		AcceptanceCriteria: p.AcceptanceCriteria,
		Tools:              p.Tools,
		References:         p.References,
		Risks:              p.Risks,
	}
}

func stepsToPayloads(steps []sop.Step) []stepPayload {
	out := make([]stepPayload, len(steps))
	for i, s := range steps {
		out[i] = stepToPayload(s)
	}
	return out
}

func payloadsToSteps(payloads []stepPayload) []sop.Step {
	out := make([]sop.Step, len(payloads))
	for i, p := range payloads {
		out[i] = payloadToStep(p)
	}
	return out
}
