package engine

import (
	"fmt"
	"math"
	"strings"

	"github.com/pavelanni/sheetgrader/internal/model"
)

// scoreBlanks scores a fill-in-the-blank question blank by blank.
// Missing or illegible text earns nothing; an "unknown" entry in the
// expected answers awards attempt credit for any response; otherwise each
// blank is matched per its match type, with fuzzy matching as the
// default.
func (e *Engine) scoreBlanks(key model.QuestionKey, ans model.ExtractedAnswer) model.QuestionResult {
	res := model.QuestionResult{
		QuestionNumber:    key.Number,
		StudentSelections: make([]string, 0, len(key.BlankSpecs)),
		CorrectSelections: make([]string, 0, len(key.BlankSpecs)),
	}

	if len(key.BlankSpecs) == 0 {
		res.MaxPoints = 1
		res.Rationale = "no correct answer defined"
		return res
	}

	// First answer per position wins.
	byPos := make(map[int]model.BlankAnswer, len(ans.BlankAnswers))
	for _, ba := range ans.BlankAnswers {
		if _, ok := byPos[ba.Position]; !ok {
			byPos[ba.Position] = ba
		}
	}

	var total, max float64
	notes := make([]string, 0, len(key.BlankSpecs))
	allFull := true

	for _, spec := range key.BlankSpecs {
		max += spec.Points
		res.CorrectSelections = append(res.CorrectSelections, strings.Join(spec.ExpectedAnswers, "|"))

		ba, found := byPos[spec.Position]
		text := strings.TrimSpace(ba.Text)
		res.StudentSelections = append(res.StudentSelections, text)

		score, note := e.scoreBlank(spec, text, found)
		total += score
		notes = append(notes, fmt.Sprintf("blank %d: %s", spec.Position, note))
		if score < spec.Points {
			allFull = false
		}
	}

	res.Score = round2(total)
	res.MaxPoints = max
	res.IsCorrect = allFull && max > 0
	res.Rationale = strings.Join(notes, "; ")
	return res
}

func (e *Engine) scoreBlank(spec model.BlankSpec, text string, found bool) (float64, string) {
	if !found || text == "" {
		return 0, "no answer provided"
	}
	got := compareForm(text)
	if got == illegibleSentinel {
		return 0, "illegible"
	}

	for _, expected := range spec.ExpectedAnswers {
		if compareForm(expected) == anyAnswerSentinel {
			return math.Floor(spec.Points * attemptCreditFactor), "attempt credit"
		}
	}

	matchType := spec.MatchType
	if matchType == "" {
		matchType = model.MatchFuzzy
	}

	for _, expected := range spec.ExpectedAnswers {
		exp := compareForm(expected)
		if exp == "" {
			continue
		}
		switch matchType {
		case model.MatchExact:
			if got == exp {
				return spec.Points, "exact match"
			}
		case model.MatchContains:
			if strings.Contains(got, exp) || strings.Contains(exp, got) {
				return spec.Points, "contains match"
			}
		default:
			sim := similarity(got, exp)
			if sim >= fuzzyFullThreshold {
				return spec.Points, fmt.Sprintf("fuzzy match %.2f", sim)
			}
			if sim >= fuzzyPartialThreshold {
				return math.Floor(spec.Points * fuzzyPartialFactor), fmt.Sprintf("fuzzy partial match %.2f", sim)
			}
		}
	}
	return 0, "no match"
}
