package model

import "time"

// GradeExport is the top-level structure for exporting a paper's
// grading results as JSON.
type GradeExport struct {
	PaperID    int64              `json:"paper_id"`
	PaperName  string             `json:"paper_name"`
	Subject    string             `json:"subject,omitempty"`
	Format     QuestionFormat     `json:"format"`
	Mode       EvalMode           `json:"mode"`
	ExportedAt time.Time          `json:"exported_at"`
	Results    []SubmissionExport `json:"results"`
}

// SubmissionExport is one graded submission within a GradeExport.
type SubmissionExport struct {
	SubmissionID int64            `json:"submission_id"`
	StudentName  string           `json:"student_name"`
	RollNumber   string           `json:"roll_number,omitempty"`
	Status       SubmissionStatus `json:"status"`
	CreatedAt    time.Time        `json:"created_at"`
	GradedAt     *time.Time       `json:"graded_at,omitempty"`
	Result       *EvaluationResult `json:"result,omitempty"`
}
