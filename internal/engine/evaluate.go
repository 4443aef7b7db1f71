package engine

import (
	"log/slog"
	"sort"

	"github.com/pavelanni/sheetgrader/internal/model"
)

// Evaluate scores one submission's extracted answers against the answer
// keys and aggregates the per-question results into a submission total.
//
// Every answer key yields exactly one QuestionResult, ordered by question
// number; questions with no extracted answer are scored zero. Extracted
// answers with no matching key are skipped with a warning. Evaluate never
// fails: a degenerate input still produces an EvaluationResult.
func (e *Engine) Evaluate(keys []model.QuestionKey, answers []model.ExtractedAnswer, format model.QuestionFormat, mode model.EvalMode) model.EvaluationResult {
	known := make(map[int]bool, len(keys))
	for _, k := range keys {
		known[k.Number] = true
	}

	byNumber := make(map[int]model.ExtractedAnswer, len(answers))
	for _, a := range answers {
		if !known[a.QuestionNumber] {
			slog.Warn("no answer key for extracted answer, skipping",
				"question", a.QuestionNumber)
			continue
		}
		if _, dup := byNumber[a.QuestionNumber]; dup {
			slog.Warn("duplicate extracted answer, keeping first",
				"question", a.QuestionNumber)
			continue
		}
		byNumber[a.QuestionNumber] = a
	}

	ordered := make([]model.QuestionKey, len(keys))
	copy(ordered, keys)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Number < ordered[j].Number
	})

	scorer := e.selectScorer(keys, format, mode)

	perQuestion := make([]model.QuestionResult, 0, len(ordered))
	for _, key := range ordered {
		if format != model.FormatFillBlanks && len(key.CorrectOptions) == 0 {
			slog.Warn("question key has no correct options", "question", key.Number)
		}
		// A missing answer scores as an empty one, which backfills a
		// zero result for the question.
		perQuestion = append(perQuestion, scorer(key, byNumber[key.Number]))
	}

	return aggregate(perQuestion)
}

// selectScorer is the format dispatcher: fill-in-the-blank papers always
// use the blank scorer; otherwise OMR mode wraps the choice rule with the
// mark adapter, and manual mode or any present weightage selects the
// strict weighted rule over the traditional one.
func (e *Engine) selectScorer(keys []model.QuestionKey, format model.QuestionFormat, mode model.EvalMode) scoreFunc {
	if format == model.FormatFillBlanks {
		return e.scoreBlanks
	}

	choice := e.scoreTraditional
	if mode == model.ModeManual || anyWeightages(keys) {
		choice = e.scoreWeighted
	}

	if mode == model.ModeOMR {
		return func(k model.QuestionKey, a model.ExtractedAnswer) model.QuestionResult {
			return e.scoreOMR(k, a, choice)
		}
	}
	return choice
}

func anyWeightages(keys []model.QuestionKey) bool {
	for _, k := range keys {
		if len(k.Weightages) > 0 {
			return true
		}
	}
	return false
}

func aggregate(perQuestion []model.QuestionResult) model.EvaluationResult {
	res := model.EvaluationResult{PerQuestion: perQuestion}
	for _, qr := range perQuestion {
		res.TotalScore += qr.Score
		res.MaxPossibleScore += qr.MaxPoints
	}
	res.TotalScore = round2(res.TotalScore)
	if res.MaxPossibleScore > 0 {
		res.Percentage = res.TotalScore / res.MaxPossibleScore * 100
	}
	res.Grade = GradeLetter(res.Percentage)
	return res
}

// GradeLetter maps a percentage to its letter grade. Boundaries are
// inclusive lower bounds.
func GradeLetter(percentage float64) string {
	switch {
	case percentage >= 90:
		return "A+"
	case percentage >= 80:
		return "A"
	case percentage >= 70:
		return "B+"
	case percentage >= 60:
		return "B"
	case percentage >= 50:
		return "C"
	case percentage >= 40:
		return "D"
	default:
		return "F"
	}
}
