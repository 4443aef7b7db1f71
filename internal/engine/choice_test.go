package engine

import (
	"strings"
	"testing"

	"github.com/pavelanni/sheetgrader/internal/model"
)

func TestScoreWeighted(t *testing.T) {
	key := model.QuestionKey{
		Number:         1,
		Format:         model.FormatMultipleChoice,
		CorrectOptions: []string{"a", "c"},
		Weightages:     map[string]float64{"a": 0.6, "c": 0.4},
		MaxPoints:      1,
	}

	tests := []struct {
		name        string
		selected    []string
		wantScore   float64
		wantCorrect bool
	}{
		{"full selection", []string{"a", "c"}, 1.0, true},
		{"order does not matter", []string{"c", "a"}, 1.0, true},
		{"partial subset", []string{"a"}, 0.6, false},
		{"other subset", []string{"c"}, 0.4, false},
		{"wrong option zeroes", []string{"a", "b"}, 0, false},
		{"only wrong option", []string{"b"}, 0, false},
		{"no answer", nil, 0, false},
		{"case-insensitive match", []string{"A", "C"}, 1.0, true},
	}
	e := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.scoreWeighted(key, model.ExtractedAnswer{QuestionNumber: 1, SelectedOptions: tt.selected})
			if got.Score != tt.wantScore {
				t.Errorf("score = %v, want %v", got.Score, tt.wantScore)
			}
			if got.IsCorrect != tt.wantCorrect {
				t.Errorf("isCorrect = %v, want %v", got.IsCorrect, tt.wantCorrect)
			}
		})
	}
}

func TestScoreWeightedWrongOptionRationale(t *testing.T) {
	key := model.QuestionKey{
		Number:         1,
		CorrectOptions: []string{"A"},
		Options:        map[string]string{"A": "Paris", "B": "Lyon"},
		Weightages:     map[string]float64{"A": 1},
	}
	got := New().scoreWeighted(key, model.ExtractedAnswer{SelectedOptions: []string{"A", "B"}})
	if got.Score != 0 || got.IsCorrect {
		t.Fatalf("expected zero score, got %v correct=%v", got.Score, got.IsCorrect)
	}
	if !strings.Contains(got.Rationale, "Lyon") {
		t.Errorf("rationale should name the wrong option, got %q", got.Rationale)
	}
}

func TestScoreWeightedLabelResolution(t *testing.T) {
	// Key, weightages, and selections all authored as labels.
	key := model.QuestionKey{
		Number:         2,
		CorrectOptions: []string{"A", "B"},
		Options:        map[string]string{"A": "Mercury", "B": "Venus", "C": "Mars"},
		Weightages:     map[string]float64{"A": 0.5, "B": 0.5},
		MaxPoints:      1,
	}
	got := New().scoreWeighted(key, model.ExtractedAnswer{SelectedOptions: []string{"Mercury", "B"}})
	if got.Score != 1.0 || !got.IsCorrect {
		t.Errorf("mixed label/content selection: score=%v correct=%v", got.Score, got.IsCorrect)
	}
}

func TestScoreWeightedFallsBackWithoutWeights(t *testing.T) {
	key := model.QuestionKey{Number: 1, CorrectOptions: []string{"A"}}
	got := New().scoreWeighted(key, model.ExtractedAnswer{SelectedOptions: []string{"A"}})
	if got.Score != 1 || !got.IsCorrect {
		t.Errorf("expected traditional scoring fallback, got score=%v correct=%v", got.Score, got.IsCorrect)
	}
}

func TestScoreTraditionalSingle(t *testing.T) {
	key := model.QuestionKey{Number: 1, CorrectOptions: []string{"Paris"}, MaxPoints: 2}

	tests := []struct {
		name        string
		selected    []string
		wantScore   float64
		wantCorrect bool
	}{
		{"exact", []string{"Paris"}, 2, true},
		{"case-folded", []string{"paris"}, 2, true},
		{"wrong", []string{"Lyon"}, 0, false},
		{"extra selection", []string{"Paris", "Lyon"}, 0, false},
		{"unanswered", nil, 0, false},
	}
	e := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.scoreTraditional(key, model.ExtractedAnswer{SelectedOptions: tt.selected})
			if got.Score != tt.wantScore || got.IsCorrect != tt.wantCorrect {
				t.Errorf("score=%v correct=%v, want %v/%v", got.Score, got.IsCorrect, tt.wantScore, tt.wantCorrect)
			}
		})
	}
}

func TestScoreTraditionalMultiStrict(t *testing.T) {
	key := model.QuestionKey{Number: 1, CorrectOptions: []string{"A", "B", "C"}, MaxPoints: 1}

	tests := []struct {
		name        string
		selected    []string
		wantScore   float64
		wantCorrect bool
	}{
		{"all correct", []string{"A", "B", "C"}, 1, true},
		{"partial no penalty", []string{"A", "B"}, 0.67, false},
		{"one of three", []string{"A"}, 0.33, false},
		{"any wrong zeroes", []string{"A", "B", "D"}, 0, false},
		{"unanswered", nil, 0, false},
	}
	e := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.scoreTraditional(key, model.ExtractedAnswer{SelectedOptions: tt.selected})
			if got.Score != tt.wantScore || got.IsCorrect != tt.wantCorrect {
				t.Errorf("score=%v correct=%v, want %v/%v", got.Score, got.IsCorrect, tt.wantScore, tt.wantCorrect)
			}
		})
	}
}

func TestScoreTraditionalMultiProportional(t *testing.T) {
	key := model.QuestionKey{Number: 1, CorrectOptions: []string{"A", "B", "C"}, MaxPoints: 1}

	tests := []struct {
		name        string
		selected    []string
		wantScore   float64
		wantCorrect bool
	}{
		{"all correct", []string{"A", "B", "C"}, 1, true},
		{"two correct one wrong", []string{"A", "B", "D"}, 0.5, false},
		{"penalty floors at zero", []string{"D", "E", "F"}, 0, false},
		{"partial", []string{"A", "B"}, 0.67, false},
		// 2.5/3 of the points clears the 0.8 pass ratio.
		{"near-full with penalty", []string{"A", "B", "C", "D"}, 0.83, true},
	}
	e := New(WithProportionalPartial(true))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.scoreTraditional(key, model.ExtractedAnswer{SelectedOptions: tt.selected})
			if got.Score != tt.wantScore || got.IsCorrect != tt.wantCorrect {
				t.Errorf("score=%v correct=%v, want %v/%v", got.Score, got.IsCorrect, tt.wantScore, tt.wantCorrect)
			}
		})
	}
}

func TestScoreChoiceNoCorrectAnswer(t *testing.T) {
	key := model.QuestionKey{Number: 7}
	e := New()
	for name, fn := range map[string]scoreFunc{"weighted": e.scoreWeighted, "traditional": e.scoreTraditional} {
		t.Run(name, func(t *testing.T) {
			got := fn(key, model.ExtractedAnswer{SelectedOptions: []string{"A"}})
			if got.Score != 0 || got.IsCorrect {
				t.Errorf("score=%v correct=%v, want 0/false", got.Score, got.IsCorrect)
			}
			if got.Rationale != "no correct answer defined" {
				t.Errorf("rationale = %q", got.Rationale)
			}
		})
	}
}

func TestMarkSelections(t *testing.T) {
	tests := []struct {
		name    string
		raw     []string
		want    []string
		wantErr bool
	}{
		{"plain tokens", []string{"A", "B"}, []string{"A", "B"}, false},
		{"detector pairs", []string{"A:filled", "B:empty", "C:marked"}, []string{"A", "C"}, false},
		{"mixed", []string{"A", "B:checked"}, []string{"A", "B"}, false},
		{"missing option", []string{":filled"}, nil, true},
		{"unknown state", []string{"A:smudged"}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := markSelections(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("markSelections: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("got %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestScoreOMR(t *testing.T) {
	e := New()
	key := model.QuestionKey{Number: 1, CorrectOptions: []string{"A"}}

	t.Run("detections reduced before scoring", func(t *testing.T) {
		ans := model.ExtractedAnswer{
			SelectedOptions: []string{"A:filled", "B:empty"},
			MarkType:        "bubble",
			Confidence:      model.ConfidenceLow,
		}
		got := e.scoreOMR(key, ans, e.scoreTraditional)
		if got.Score != 1 || !got.IsCorrect {
			t.Errorf("score=%v correct=%v, want 1/true", got.Score, got.IsCorrect)
		}
		if !strings.Contains(got.Rationale, "bubble") || !strings.Contains(got.Rationale, "low") {
			t.Errorf("rationale should carry mark metadata, got %q", got.Rationale)
		}
	})

	t.Run("unusable detections fall back to raw scoring", func(t *testing.T) {
		ans := model.ExtractedAnswer{SelectedOptions: []string{"A:smudged"}}
		got := e.scoreOMR(key, ans, e.scoreTraditional)
		// The raw token does not match the correct option; the point is
		// that the engine degrades instead of failing.
		if got.Score != 0 || got.IsCorrect {
			t.Errorf("score=%v correct=%v, want 0/false", got.Score, got.IsCorrect)
		}
	})
}
