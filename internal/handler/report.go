package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/pavelanni/sheetgrader/internal/i18n"
	"github.com/pavelanni/sheetgrader/internal/model"
)

// buildReport renders a plain-text grading report for one submission,
// localized through the request context.
func buildReport(ctx context.Context, view *model.SubmissionView) string {
	var sb strings.Builder

	sb.WriteString(i18n.T(ctx, "ReportTitle") + "\n")
	sb.WriteString(i18n.Td(ctx, "SubmissionN", map[string]any{"ID": view.Submission.ID}) + "\n\n")

	sb.WriteString(fmt.Sprintf("%s: %s\n", i18n.T(ctx, "Paper"), view.Paper.Name))
	if view.Submission.StudentName != "" {
		sb.WriteString(fmt.Sprintf("%s: %s\n", i18n.T(ctx, "Student"), view.Submission.StudentName))
	}
	if view.Submission.RollNumber != "" {
		sb.WriteString(fmt.Sprintf("%s: %s\n", i18n.T(ctx, "RollNumber"), view.Submission.RollNumber))
	}
	sb.WriteString("\n")

	if view.Result == nil {
		sb.WriteString(i18n.T(ctx, "NotGraded") + "\n")
		return sb.String()
	}

	for _, qr := range view.Result.PerQuestion {
		verdict := i18n.T(ctx, "Incorrect")
		if qr.IsCorrect {
			verdict = i18n.T(ctx, "Correct")
		}
		sb.WriteString(fmt.Sprintf("%s %d: %s (%.2f / %.2f)\n",
			i18n.T(ctx, "Question"), qr.QuestionNumber, verdict, qr.Score, qr.MaxPoints))
		if qr.Rationale != "" {
			sb.WriteString("  " + qr.Rationale + "\n")
		}
	}

	sb.WriteString("\n")
	sb.WriteString(i18n.Tp(ctx, "QuestionsGraded", len(view.Result.PerQuestion)) + "\n")
	sb.WriteString(fmt.Sprintf("%s: %.2f / %.2f\n", i18n.T(ctx, "TotalScore"),
		view.Result.TotalScore, view.Result.MaxPossibleScore))
	sb.WriteString(fmt.Sprintf("%s: %.2f%%\n", i18n.T(ctx, "Percentage"), view.Result.Percentage))
	sb.WriteString(fmt.Sprintf("%s: %s\n", i18n.T(ctx, "Grade"), view.Result.Grade))

	return sb.String()
}
