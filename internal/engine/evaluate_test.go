package engine

import (
	"reflect"
	"testing"

	"github.com/pavelanni/sheetgrader/internal/model"
)

func TestEvaluateSingleChoicePaper(t *testing.T) {
	keys := []model.QuestionKey{
		{Number: 1, CorrectOptions: []string{"A"}, Options: map[string]string{"A": "Paris", "B": "Lyon"}},
	}

	t.Run("correct selection scores full", func(t *testing.T) {
		answers := []model.ExtractedAnswer{{QuestionNumber: 1, SelectedOptions: []string{"A"}}}
		res := New().Evaluate(keys, answers, model.FormatMultipleChoice, model.ModeAuto)
		if len(res.PerQuestion) != 1 {
			t.Fatalf("expected 1 result, got %d", len(res.PerQuestion))
		}
		qr := res.PerQuestion[0]
		if qr.Score != 1 || !qr.IsCorrect {
			t.Errorf("score=%v correct=%v, want 1/true", qr.Score, qr.IsCorrect)
		}
		if res.TotalScore != 1 || res.Percentage != 100 || res.Grade != "A+" {
			t.Errorf("total=%v pct=%v grade=%q", res.TotalScore, res.Percentage, res.Grade)
		}
	})

	t.Run("extra wrong selection zeroes", func(t *testing.T) {
		answers := []model.ExtractedAnswer{{QuestionNumber: 1, SelectedOptions: []string{"A", "B"}}}
		res := New().Evaluate(keys, answers, model.FormatMultipleChoice, model.ModeAuto)
		qr := res.PerQuestion[0]
		if qr.Score != 0 || qr.IsCorrect {
			t.Errorf("score=%v correct=%v, want 0/false", qr.Score, qr.IsCorrect)
		}
	})
}

func TestEvaluateBackfillsUnanswered(t *testing.T) {
	keys := []model.QuestionKey{
		{Number: 1, CorrectOptions: []string{"A"}},
		{Number: 2, CorrectOptions: []string{"B"}},
	}
	answers := []model.ExtractedAnswer{{QuestionNumber: 1, SelectedOptions: []string{"A"}}}

	res := New().Evaluate(keys, answers, model.FormatMultipleChoice, model.ModeAuto)
	if len(res.PerQuestion) != 2 {
		t.Fatalf("expected 2 results, got %d", len(res.PerQuestion))
	}
	backfilled := res.PerQuestion[1]
	if backfilled.QuestionNumber != 2 {
		t.Fatalf("expected question 2, got %d", backfilled.QuestionNumber)
	}
	if backfilled.Score != 0 || len(backfilled.StudentSelections) != 0 {
		t.Errorf("backfilled score=%v selections=%v", backfilled.Score, backfilled.StudentSelections)
	}
	if backfilled.Rationale != "no answer provided" {
		t.Errorf("rationale = %q", backfilled.Rationale)
	}
}

func TestEvaluateSkipsAnswerWithoutKey(t *testing.T) {
	keys := []model.QuestionKey{{Number: 1, CorrectOptions: []string{"A"}}}
	answers := []model.ExtractedAnswer{
		{QuestionNumber: 1, SelectedOptions: []string{"A"}},
		{QuestionNumber: 99, SelectedOptions: []string{"B"}},
	}
	res := New().Evaluate(keys, answers, model.FormatMultipleChoice, model.ModeAuto)
	if len(res.PerQuestion) != 1 {
		t.Fatalf("expected 1 result, got %d", len(res.PerQuestion))
	}
	if res.TotalScore != 1 {
		t.Errorf("total = %v, want 1", res.TotalScore)
	}
}

func TestEvaluateDuplicateAnswerKeepsFirst(t *testing.T) {
	keys := []model.QuestionKey{{Number: 1, CorrectOptions: []string{"A"}}}
	answers := []model.ExtractedAnswer{
		{QuestionNumber: 1, SelectedOptions: []string{"A"}},
		{QuestionNumber: 1, SelectedOptions: []string{"B"}},
	}
	res := New().Evaluate(keys, answers, model.FormatMultipleChoice, model.ModeAuto)
	if res.PerQuestion[0].Score != 1 {
		t.Errorf("score = %v, want 1 (first answer wins)", res.PerQuestion[0].Score)
	}
}

func TestEvaluateOrdersByQuestionNumber(t *testing.T) {
	keys := []model.QuestionKey{
		{Number: 3, CorrectOptions: []string{"C"}},
		{Number: 1, CorrectOptions: []string{"A"}},
		{Number: 2, CorrectOptions: []string{"B"}},
	}
	res := New().Evaluate(keys, nil, model.FormatMultipleChoice, model.ModeAuto)
	for i, qr := range res.PerQuestion {
		if qr.QuestionNumber != i+1 {
			t.Fatalf("position %d holds question %d", i, qr.QuestionNumber)
		}
	}
}

func TestEvaluateIdempotent(t *testing.T) {
	keys := []model.QuestionKey{
		{Number: 1, CorrectOptions: []string{"a", "c"}, Weightages: map[string]float64{"a": 0.6, "c": 0.4}},
		{Number: 2, CorrectOptions: []string{"B"}, Options: map[string]string{"A": "Paris", "B": "Lyon"}},
	}
	answers := []model.ExtractedAnswer{
		{QuestionNumber: 1, SelectedOptions: []string{"a"}},
		{QuestionNumber: 2, SelectedOptions: []string{"Lyon"}},
	}
	e := New()
	first := e.Evaluate(keys, answers, model.FormatMultipleChoice, model.ModeAuto)
	second := e.Evaluate(keys, answers, model.FormatMultipleChoice, model.ModeAuto)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("results differ:\n%+v\n%+v", first, second)
	}
}

func TestEvaluateDispatch(t *testing.T) {
	t.Run("fill blanks wins over mode", func(t *testing.T) {
		keys := []model.QuestionKey{{
			Number:     1,
			Format:     model.FormatFillBlanks,
			BlankSpecs: []model.BlankSpec{{Position: 1, ExpectedAnswers: []string{"Paris"}, Points: 2}},
		}}
		answers := []model.ExtractedAnswer{{
			QuestionNumber: 1,
			BlankAnswers:   []model.BlankAnswer{{Position: 1, Text: "paris"}},
		}}
		res := New().Evaluate(keys, answers, model.FormatFillBlanks, model.ModeOMR)
		if res.PerQuestion[0].Score != 2 {
			t.Errorf("score = %v, want 2", res.PerQuestion[0].Score)
		}
	})

	t.Run("weightage presence selects weighted rule", func(t *testing.T) {
		keys := []model.QuestionKey{{
			Number:         1,
			CorrectOptions: []string{"A", "B"},
			Weightages:     map[string]float64{"A": 0.7, "B": 0.3},
		}}
		answers := []model.ExtractedAnswer{{QuestionNumber: 1, SelectedOptions: []string{"A"}}}
		res := New().Evaluate(keys, answers, model.FormatMultipleChoice, model.ModeAuto)
		if res.PerQuestion[0].Score != 0.7 {
			t.Errorf("score = %v, want 0.7 (weighted rule)", res.PerQuestion[0].Score)
		}
	})

	t.Run("auto without weightages uses traditional rule", func(t *testing.T) {
		keys := []model.QuestionKey{{Number: 1, CorrectOptions: []string{"A", "B"}}}
		answers := []model.ExtractedAnswer{{QuestionNumber: 1, SelectedOptions: []string{"A"}}}
		res := New().Evaluate(keys, answers, model.FormatMultipleChoice, model.ModeAuto)
		if res.PerQuestion[0].Score != 0.5 {
			t.Errorf("score = %v, want 0.5 (strict partial)", res.PerQuestion[0].Score)
		}
	})

	t.Run("omr mode reduces detections", func(t *testing.T) {
		keys := []model.QuestionKey{{Number: 1, CorrectOptions: []string{"A"}}}
		answers := []model.ExtractedAnswer{{
			QuestionNumber:  1,
			SelectedOptions: []string{"A:filled", "B:empty"},
			MarkType:        "checkmark",
		}}
		res := New().Evaluate(keys, answers, model.FormatMultipleChoice, model.ModeOMR)
		qr := res.PerQuestion[0]
		if qr.Score != 1 || !qr.IsCorrect {
			t.Errorf("score=%v correct=%v, want 1/true", qr.Score, qr.IsCorrect)
		}
	})
}

func TestEvaluateEmptyInputs(t *testing.T) {
	res := New().Evaluate(nil, nil, model.FormatMultipleChoice, model.ModeAuto)
	if len(res.PerQuestion) != 0 {
		t.Errorf("expected no per-question results, got %d", len(res.PerQuestion))
	}
	if res.TotalScore != 0 || res.MaxPossibleScore != 0 || res.Percentage != 0 {
		t.Errorf("degenerate totals: %+v", res)
	}
	if res.Grade != "F" {
		t.Errorf("grade = %q, want F", res.Grade)
	}
}

func TestGradeLetter(t *testing.T) {
	tests := []struct {
		pct  float64
		want string
	}{
		{100, "A+"},
		{90.0, "A+"},
		{89.999, "A"},
		{80, "A"},
		{79.999, "B+"},
		{70, "B+"},
		{60, "B"},
		{50, "C"},
		{40.0, "D"},
		{39.999, "F"},
		{0, "F"},
	}
	for _, tt := range tests {
		if got := GradeLetter(tt.pct); got != tt.want {
			t.Errorf("GradeLetter(%v) = %q, want %q", tt.pct, got, tt.want)
		}
	}
}
