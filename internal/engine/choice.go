package engine

import (
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/pavelanni/sheetgrader/internal/model"
)

// scoreWeighted applies the strict weighted rule: any incorrect selection
// zeroes the question, a correct subset earns the sum of its per-option
// weights. Questions without a weight map fall through to the
// traditional rule.
func (e *Engine) scoreWeighted(key model.QuestionKey, ans model.ExtractedAnswer) model.QuestionResult {
	if len(key.Weightages) == 0 {
		return e.scoreTraditional(key, ans)
	}

	correct := normalizeCorrect(key.CorrectOptions, key.Options)
	student := normalizeSelections(ans.SelectedOptions, key.Options)
	res := newChoiceResult(key, student, correct)

	if len(correct) == 0 {
		res.Rationale = "no correct answer defined"
		return res
	}
	if wrong := minus(student, correct); len(wrong) > 0 {
		res.Rationale = "incorrect option selected: " + strings.Join(displays(wrong), ", ")
		return res
	}
	if len(student) == 0 {
		res.Rationale = "no answer provided"
		return res
	}

	weights := resolveWeights(key.Weightages, key.Options)
	var sum float64
	for _, o := range student {
		sum += weightFor(weights, o.display)
	}
	res.Score = round2(sum)
	res.IsCorrect = sameSet(student, correct) && res.Score == res.MaxPoints
	res.Rationale = fmt.Sprintf("weighted credit %.2f of %.2f", res.Score, res.MaxPoints)
	return res
}

// scoreTraditional applies the unweighted rule: exact match for a single
// correct option; for multiple correct options either strict-no-penalty
// (default) or the legacy proportional-with-penalty variant.
func (e *Engine) scoreTraditional(key model.QuestionKey, ans model.ExtractedAnswer) model.QuestionResult {
	correct := normalizeCorrect(key.CorrectOptions, key.Options)
	student := normalizeSelections(ans.SelectedOptions, key.Options)
	res := newChoiceResult(key, student, correct)

	if len(correct) == 0 {
		res.Rationale = "no correct answer defined"
		return res
	}
	if len(student) == 0 {
		res.Rationale = "no answer provided"
		return res
	}

	if len(correct) == 1 {
		if sameSet(student, correct) {
			res.Score = res.MaxPoints
			res.IsCorrect = true
			res.Rationale = "correct option selected"
		} else {
			res.Rationale = "incorrect option selected: " + strings.Join(displays(student), ", ")
		}
		return res
	}

	inter := intersectCount(student, correct)
	wrong := minus(student, correct)

	if e.proportionalPartial {
		raw := (float64(inter) - proportionalPenalty*float64(len(wrong))) / float64(len(correct))
		if raw < 0 {
			raw = 0
		}
		res.Score = round2(raw * res.MaxPoints)
		res.IsCorrect = res.Score >= proportionalPassRatio*res.MaxPoints
		res.Rationale = fmt.Sprintf("partial credit: %d of %d correct, %d incorrect", inter, len(correct), len(wrong))
		return res
	}

	if len(wrong) > 0 {
		res.Rationale = "incorrect option selected: " + strings.Join(displays(wrong), ", ")
		return res
	}
	res.Score = round2(float64(inter) / float64(len(correct)) * res.MaxPoints)
	res.IsCorrect = inter == len(correct)
	if res.IsCorrect {
		res.Rationale = "all correct options selected"
	} else {
		res.Rationale = fmt.Sprintf("partial credit: %d of %d correct options", inter, len(correct))
	}
	return res
}

// scoreOMR scores mark detections with the same arithmetic as the other
// choice rules. Detector tokens of the form "option:state" are reduced to
// the filled options first; unusable detections fall back to scoring the
// raw selections. Mark metadata lands in the rationale only, never in the
// score.
func (e *Engine) scoreOMR(key model.QuestionKey, ans model.ExtractedAnswer, fallback scoreFunc) model.QuestionResult {
	selections, err := markSelections(ans.SelectedOptions)
	if err != nil {
		slog.Warn("mark detections unusable, scoring raw selections",
			"question", key.Number, "error", err)
		return fallback(key, ans)
	}
	adapted := ans
	adapted.SelectedOptions = selections
	res := fallback(key, adapted)
	res.Rationale = annotateMarks(res.Rationale, ans)
	return res
}

type scoreFunc func(model.QuestionKey, model.ExtractedAnswer) model.QuestionResult

// markSelections accepts plain option tokens or detector pairs like
// "A:filled" / "B:empty", keeping only the filled options.
func markSelections(raw []string) ([]string, error) {
	out := make([]string, 0, len(raw))
	for _, tok := range raw {
		if !strings.Contains(tok, ":") {
			out = append(out, tok)
			continue
		}
		parts := strings.SplitN(tok, ":", 2)
		opt := strings.TrimSpace(parts[0])
		if opt == "" {
			return nil, fmt.Errorf("malformed mark detection %q", tok)
		}
		switch compareForm(parts[1]) {
		case "filled", "marked", "checked", "true":
			out = append(out, opt)
		case "empty", "unmarked", "unchecked", "false":
		default:
			return nil, fmt.Errorf("unknown mark state in %q", tok)
		}
	}
	return out, nil
}

func annotateMarks(rationale string, ans model.ExtractedAnswer) string {
	if ans.MarkType != "" {
		rationale += "; mark type: " + ans.MarkType
	}
	if ans.Confidence != "" {
		rationale += "; extraction confidence: " + string(ans.Confidence)
	}
	return rationale
}

func newChoiceResult(key model.QuestionKey, student, correct []option) model.QuestionResult {
	return model.QuestionResult{
		QuestionNumber:    key.Number,
		StudentSelections: displays(student),
		CorrectSelections: displays(correct),
		MaxPoints:         choiceMaxPoints(key),
	}
}

func choiceMaxPoints(key model.QuestionKey) float64 {
	if key.MaxPoints > 0 {
		return key.MaxPoints
	}
	return 1
}

func minus(a, b []option) []option {
	out := make([]option, 0, len(a))
	for _, o := range a {
		if !containsOption(b, o.cmp) {
			out = append(out, o)
		}
	}
	return out
}

func intersectCount(a, b []option) int {
	n := 0
	for _, o := range a {
		if containsOption(b, o.cmp) {
			n++
		}
	}
	return n
}

func sameSet(a, b []option) bool {
	return len(a) == len(b) && intersectCount(a, b) == len(a)
}

func containsOption(opts []option, cmp string) bool {
	for _, o := range opts {
		if o.cmp == cmp {
			return true
		}
	}
	return false
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
