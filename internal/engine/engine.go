// Package engine scores extracted answer-sheet responses against answer
// keys. It is a pure computation: the same inputs always produce the
// same EvaluationResult, and every score carries a rationale naming the
// rule that produced it.
package engine

// Grading policy constants. These are part of the scoring contract
// with exam boards, not tuning knobs.
const (
	fuzzyFullThreshold    = 0.8
	fuzzyPartialThreshold = 0.6
	fuzzyPartialFactor    = 0.7
	attemptCreditFactor   = 0.5
	proportionalPenalty   = 0.5
	proportionalPassRatio = 0.8

	// illegibleSentinel marks blank text the extractor could not read.
	illegibleSentinel = "illegible"
	// anyAnswerSentinel in an expected-answer set awards attempt credit
	// for any non-empty response.
	anyAnswerSentinel = "unknown"
)

// Engine evaluates submissions. It holds configuration only, never
// per-call state, so a single Engine is safe for concurrent use.
type Engine struct {
	proportionalPartial bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithProportionalPartial enables the legacy multi-choice rule that
// awards proportional credit with a half-point penalty per wrong
// selection instead of zeroing on any wrong selection.
func WithProportionalPartial(b bool) Option {
	return func(e *Engine) { e.proportionalPartial = b }
}

// New creates an evaluation engine.
func New(opts ...Option) *Engine {
	e := &Engine{}
	for _, o := range opts {
		o(e)
	}
	return e
}
