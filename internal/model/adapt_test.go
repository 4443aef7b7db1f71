package model

import (
	"reflect"
	"testing"
)

func TestParseQuestionKeys(t *testing.T) {
	t.Run("canonical array", func(t *testing.T) {
		data := []byte(`[{
			"number": 1,
			"format": "multiple_choice",
			"correct_options": ["A"],
			"options": {"A": "Paris", "B": "Lyon"},
			"weightages": {"A": 1.0},
			"max_points": 2
		}]`)
		keys, err := ParseQuestionKeys(data)
		if err != nil {
			t.Fatalf("ParseQuestionKeys: %v", err)
		}
		if len(keys) != 1 {
			t.Fatalf("expected 1 key, got %d", len(keys))
		}
		k := keys[0]
		if k.Number != 1 || k.Format != FormatMultipleChoice || k.MaxPoints != 2 {
			t.Errorf("unexpected key: %+v", k)
		}
		if k.Options["A"] != "Paris" || k.Weightages["A"] != 1.0 {
			t.Errorf("options/weightages not parsed: %+v", k)
		}
	})

	t.Run("alias field names", func(t *testing.T) {
		data := []byte(`{"questions": [{
			"question_no": 3,
			"type": "mcq",
			"answer": "B",
			"choices": {"A": "Red", "B": "Blue"},
			"weights": {"B": 1.0},
			"marks": 5
		}]}`)
		keys, err := ParseQuestionKeys(data)
		if err != nil {
			t.Fatalf("ParseQuestionKeys: %v", err)
		}
		k := keys[0]
		if k.Number != 3 {
			t.Errorf("number = %d, want 3", k.Number)
		}
		if !reflect.DeepEqual(k.CorrectOptions, []string{"B"}) {
			t.Errorf("correctOptions = %v", k.CorrectOptions)
		}
		if k.Options["B"] != "Blue" || k.Weightages["B"] != 1.0 || k.MaxPoints != 5 {
			t.Errorf("unexpected key: %+v", k)
		}
	})

	t.Run("blank specs imply fill blanks format", func(t *testing.T) {
		data := []byte(`[{
			"number": 1,
			"blanks": [
				{"pos": 1, "expected": ["Paris"], "match": "fuzzy", "points": 2},
				{"pos": 2, "expected": "Seine"}
			]
		}]`)
		keys, err := ParseQuestionKeys(data)
		if err != nil {
			t.Fatalf("ParseQuestionKeys: %v", err)
		}
		k := keys[0]
		if k.Format != FormatFillBlanks {
			t.Errorf("format = %q, want fill_blanks", k.Format)
		}
		if len(k.BlankSpecs) != 2 {
			t.Fatalf("expected 2 blank specs, got %d", len(k.BlankSpecs))
		}
		if k.BlankSpecs[0].Points != 2 || k.BlankSpecs[0].MatchType != MatchFuzzy {
			t.Errorf("blank 1: %+v", k.BlankSpecs[0])
		}
		// Single-string expected answer and default points.
		if !reflect.DeepEqual(k.BlankSpecs[1].ExpectedAnswers, []string{"Seine"}) || k.BlankSpecs[1].Points != 1 {
			t.Errorf("blank 2: %+v", k.BlankSpecs[1])
		}
	})

	t.Run("missing number fails", func(t *testing.T) {
		if _, err := ParseQuestionKeys([]byte(`[{"correct": ["A"]}]`)); err == nil {
			t.Error("expected error for missing question number")
		}
	})

	t.Run("malformed document fails", func(t *testing.T) {
		if _, err := ParseQuestionKeys([]byte(`{"nothing": true}`)); err == nil {
			t.Error("expected error for missing questions list")
		}
		if _, err := ParseQuestionKeys([]byte(``)); err == nil {
			t.Error("expected error for empty document")
		}
	})
}

func TestParseExtractedAnswers(t *testing.T) {
	t.Run("aliases and single-string selection", func(t *testing.T) {
		data := []byte(`{"answers": [
			{"qno": 1, "selected": "A", "confidence": "HIGH", "marking": "bubble"},
			{"question_number": 2, "marked_options": ["A", "B"], "confidence": 0.4}
		]}`)
		answers, err := ParseExtractedAnswers(data)
		if err != nil {
			t.Fatalf("ParseExtractedAnswers: %v", err)
		}
		if len(answers) != 2 {
			t.Fatalf("expected 2 answers, got %d", len(answers))
		}
		if answers[0].QuestionNumber != 1 || answers[0].Confidence != ConfidenceHigh || answers[0].MarkType != "bubble" {
			t.Errorf("answer 1: %+v", answers[0])
		}
		if !reflect.DeepEqual(answers[0].SelectedOptions, []string{"A"}) {
			t.Errorf("answer 1 selections: %v", answers[0].SelectedOptions)
		}
		// Numeric confidence maps onto the named levels.
		if answers[1].Confidence != ConfidenceLow {
			t.Errorf("answer 2 confidence = %q, want low", answers[1].Confidence)
		}
	})

	t.Run("blank answers", func(t *testing.T) {
		data := []byte(`[{
			"number": 4,
			"blanks": [{"position": 1, "value": "Paris", "confidence": 0.9}]
		}]`)
		answers, err := ParseExtractedAnswers(data)
		if err != nil {
			t.Fatalf("ParseExtractedAnswers: %v", err)
		}
		ba := answers[0].BlankAnswers
		if len(ba) != 1 || ba[0].Text != "Paris" || ba[0].Confidence != ConfidenceHigh {
			t.Errorf("blank answers: %+v", ba)
		}
	})

	t.Run("empty selections stay empty", func(t *testing.T) {
		answers, err := ParseExtractedAnswers([]byte(`[{"number": 1, "selected": []}]`))
		if err != nil {
			t.Fatalf("ParseExtractedAnswers: %v", err)
		}
		if len(answers[0].SelectedOptions) != 0 {
			t.Errorf("selections = %v, want none", answers[0].SelectedOptions)
		}
	})
}
