package i18n

import (
	"context"
	"testing"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init(lang); err != nil {
		t.Fatalf("Init(%q): %v", lang, err)
	}
	loc := NewLocalizer(lang)
	return WithLocalizer(context.Background(), loc)
}

func TestTranslateEnglish(t *testing.T) {
	ctx := initLang(t, "en")

	got := T(ctx, "ReportTitle")
	if got != "Grading Report" {
		t.Errorf("T(ReportTitle) = %q, want 'Grading Report'", got)
	}

	got = T(ctx, "NotGraded")
	if got != "This submission has not been graded yet." {
		t.Errorf("T(NotGraded) = %q", got)
	}
}

func TestTranslateRussian(t *testing.T) {
	ctx := initLang(t, "ru")

	got := T(ctx, "ReportTitle")
	if got != "Отчёт об оценке" {
		t.Errorf("T(ReportTitle) = %q, want 'Отчёт об оценке'", got)
	}

	got = T(ctx, "Grade")
	if got != "Оценка" {
		t.Errorf("T(Grade) = %q, want 'Оценка'", got)
	}
}

func TestPluralTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got1 := Tp(ctx, "QuestionsGraded", 1)
	if got1 != "1 question graded." {
		t.Errorf("Tp(QuestionsGraded, 1) = %q, want '1 question graded.'", got1)
	}

	got5 := Tp(ctx, "QuestionsGraded", 5)
	if got5 != "5 questions graded." {
		t.Errorf("Tp(QuestionsGraded, 5) = %q, want '5 questions graded.'", got5)
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got := Td(ctx, "SubmissionN", map[string]any{"ID": 42})
	if got != "Submission #42" {
		t.Errorf("Td(SubmissionN, ID=42) = %q, want 'Submission #42'", got)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")

	got := T(ctx, "NonExistentKey")
	if got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want 'NonExistentKey'", got)
	}
}
