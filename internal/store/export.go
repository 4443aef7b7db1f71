package store

import (
	"fmt"
	"time"

	"github.com/pavelanni/sheetgrader/internal/model"
)

// ExportPaper collects a paper's submissions with their evaluations
// into an export structure.
func (s *Store) ExportPaper(paperID int64) (*model.GradeExport, error) {
	paper, err := s.GetPaper(paperID)
	if err != nil {
		return nil, fmt.Errorf("get paper: %w", err)
	}
	subs, err := s.ListSubmissions(paperID)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}

	export := &model.GradeExport{
		PaperID:    paper.ID,
		PaperName:  paper.Name,
		Subject:    paper.Subject,
		Format:     paper.Format,
		Mode:       paper.Mode,
		ExportedAt: time.Now(),
	}
	for _, sub := range subs {
		result, err := s.GetEvaluation(sub.ID)
		if err != nil {
			return nil, fmt.Errorf("get evaluation for submission %d: %w", sub.ID, err)
		}
		export.Results = append(export.Results, model.SubmissionExport{
			SubmissionID: sub.ID,
			StudentName:  sub.StudentName,
			RollNumber:   sub.RollNumber,
			Status:       sub.Status,
			CreatedAt:    sub.CreatedAt,
			GradedAt:     sub.GradedAt,
			Result:       result,
		})
	}
	return export, nil
}
