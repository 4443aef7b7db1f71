package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pavelanni/sheetgrader/internal/model"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS papers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		subject TEXT NOT NULL DEFAULT '',
		format TEXT NOT NULL DEFAULT 'multiple_choice',
		mode TEXT NOT NULL DEFAULT 'auto',
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS question_keys (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		paper_id INTEGER NOT NULL,
		number INTEGER NOT NULL,
		format TEXT NOT NULL DEFAULT 'multiple_choice',
		correct_options TEXT NOT NULL DEFAULT '[]',
		options TEXT NOT NULL DEFAULT '{}',
		weightages TEXT NOT NULL DEFAULT '{}',
		max_points REAL NOT NULL DEFAULT 0,
		blank_specs TEXT NOT NULL DEFAULT '[]',
		UNIQUE (paper_id, number),
		FOREIGN KEY (paper_id) REFERENCES papers(id)
	);

	CREATE TABLE IF NOT EXISTS submissions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		paper_id INTEGER NOT NULL,
		student_name TEXT NOT NULL DEFAULT '',
		roll_number TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'received',
		created_at DATETIME NOT NULL,
		graded_at DATETIME,
		FOREIGN KEY (paper_id) REFERENCES papers(id)
	);

	CREATE TABLE IF NOT EXISTS extracted_answers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		submission_id INTEGER NOT NULL,
		question_number INTEGER NOT NULL,
		selected_options TEXT NOT NULL DEFAULT '[]',
		confidence TEXT NOT NULL DEFAULT '',
		mark_type TEXT NOT NULL DEFAULT '',
		blank_answers TEXT NOT NULL DEFAULT '[]',
		FOREIGN KEY (submission_id) REFERENCES submissions(id)
	);

	CREATE TABLE IF NOT EXISTS evaluations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		submission_id INTEGER NOT NULL UNIQUE,
		total_score REAL NOT NULL DEFAULT 0,
		max_possible_score REAL NOT NULL DEFAULT 0,
		percentage REAL NOT NULL DEFAULT 0,
		grade TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		FOREIGN KEY (submission_id) REFERENCES submissions(id)
	);

	CREATE TABLE IF NOT EXISTS question_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		evaluation_id INTEGER NOT NULL,
		question_number INTEGER NOT NULL,
		student_selections TEXT NOT NULL DEFAULT '[]',
		correct_selections TEXT NOT NULL DEFAULT '[]',
		is_correct INTEGER NOT NULL DEFAULT 0,
		score REAL NOT NULL DEFAULT 0,
		max_points REAL NOT NULL DEFAULT 0,
		rationale TEXT NOT NULL DEFAULT '',
		FOREIGN KEY (evaluation_id) REFERENCES evaluations(id)
	);

	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'teacher',
		active INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS auth_sessions (
		id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL,
		created_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS imported_files (
		path TEXT PRIMARY KEY,
		hash TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS grading_metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// CreatePaper stores a paper and returns its ID.
func (s *Store) CreatePaper(p model.Paper) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO papers (name, subject, format, mode, created_at) VALUES (?, ?, ?, ?, ?)`,
		p.Name, p.Subject, p.Format, p.Mode, time.Now(),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetPaper returns a paper by ID.
func (s *Store) GetPaper(id int64) (model.Paper, error) {
	var p model.Paper
	err := s.db.QueryRow(
		`SELECT id, name, subject, format, mode, created_at FROM papers WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &p.Subject, &p.Format, &p.Mode, &p.CreatedAt)
	return p, err
}

// ListPapers returns all papers, newest first.
func (s *Store) ListPapers() ([]model.Paper, error) {
	rows, err := s.db.Query(`SELECT id, name, subject, format, mode, created_at FROM papers ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var papers []model.Paper
	for rows.Next() {
		var p model.Paper
		if err := rows.Scan(&p.ID, &p.Name, &p.Subject, &p.Format, &p.Mode, &p.CreatedAt); err != nil {
			return nil, err
		}
		papers = append(papers, p)
	}
	return papers, rows.Err()
}

// InsertQuestionKeys stores all answer keys for a paper in one transaction.
func (s *Store) InsertQuestionKeys(paperID int64, keys []model.QuestionKey) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, k := range keys {
		_, err := tx.Exec(
			`INSERT INTO question_keys (paper_id, number, format, correct_options, options, weightages, max_points, blank_specs)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			paperID, k.Number, k.Format,
			mustJSON(k.CorrectOptions), mustJSON(k.Options), mustJSON(k.Weightages),
			k.MaxPoints, mustJSON(k.BlankSpecs),
		)
		if err != nil {
			return fmt.Errorf("insert key for question %d: %w", k.Number, err)
		}
	}
	return tx.Commit()
}

// GetQuestionKeys returns a paper's answer keys ordered by question number.
func (s *Store) GetQuestionKeys(paperID int64) ([]model.QuestionKey, error) {
	rows, err := s.db.Query(
		`SELECT number, format, correct_options, options, weightages, max_points, blank_specs
		 FROM question_keys WHERE paper_id = ? ORDER BY number`, paperID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var keys []model.QuestionKey
	for rows.Next() {
		var k model.QuestionKey
		var correct, options, weightages, blanks string
		if err := rows.Scan(&k.Number, &k.Format, &correct, &options, &weightages, &k.MaxPoints, &blanks); err != nil {
			return nil, err
		}
		if err := fromJSON(correct, &k.CorrectOptions); err != nil {
			return nil, fmt.Errorf("question %d correct_options: %w", k.Number, err)
		}
		if err := fromJSON(options, &k.Options); err != nil {
			return nil, fmt.Errorf("question %d options: %w", k.Number, err)
		}
		if err := fromJSON(weightages, &k.Weightages); err != nil {
			return nil, fmt.Errorf("question %d weightages: %w", k.Number, err)
		}
		if err := fromJSON(blanks, &k.BlankSpecs); err != nil {
			return nil, fmt.Errorf("question %d blank_specs: %w", k.Number, err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// QuestionKeyCount returns the number of answer keys for a paper.
func (s *Store) QuestionKeyCount(paperID int64) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM question_keys WHERE paper_id = ?`, paperID).Scan(&count)
	return count, err
}

// CreateSubmission creates a submission for a paper.
func (s *Store) CreateSubmission(sub model.Submission) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO submissions (paper_id, student_name, roll_number, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		sub.PaperID, sub.StudentName, sub.RollNumber, model.StatusReceived, time.Now(),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetSubmission returns a submission by ID.
func (s *Store) GetSubmission(id int64) (model.Submission, error) {
	var sub model.Submission
	err := s.db.QueryRow(
		`SELECT id, paper_id, student_name, roll_number, status, created_at, graded_at FROM submissions WHERE id = ?`, id,
	).Scan(&sub.ID, &sub.PaperID, &sub.StudentName, &sub.RollNumber, &sub.Status, &sub.CreatedAt, &sub.GradedAt)
	return sub, err
}

// ListSubmissions returns all submissions for a paper, newest first.
func (s *Store) ListSubmissions(paperID int64) ([]model.Submission, error) {
	rows, err := s.db.Query(
		`SELECT id, paper_id, student_name, roll_number, status, created_at, graded_at
		 FROM submissions WHERE paper_id = ? ORDER BY id DESC`, paperID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var subs []model.Submission
	for rows.Next() {
		var sub model.Submission
		if err := rows.Scan(&sub.ID, &sub.PaperID, &sub.StudentName, &sub.RollNumber, &sub.Status, &sub.CreatedAt, &sub.GradedAt); err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// UpdateSubmissionStatus updates the submission status; reaching the
// graded status also stamps graded_at.
func (s *Store) UpdateSubmissionStatus(id int64, status model.SubmissionStatus) error {
	query := `UPDATE submissions SET status = ? WHERE id = ?`
	args := []any{status, id}
	if status == model.StatusGraded {
		query = `UPDATE submissions SET status = ?, graded_at = ? WHERE id = ?`
		args = []any{status, time.Now(), id}
	}
	_, err := s.db.Exec(query, args...)
	return err
}

// ReplaceExtractedAnswers stores a submission's extracted answers,
// replacing any prior extraction run.
func (s *Store) ReplaceExtractedAnswers(submissionID int64, answers []model.ExtractedAnswer) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM extracted_answers WHERE submission_id = ?`, submissionID); err != nil {
		return err
	}
	for _, a := range answers {
		_, err := tx.Exec(
			`INSERT INTO extracted_answers (submission_id, question_number, selected_options, confidence, mark_type, blank_answers)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			submissionID, a.QuestionNumber, mustJSON(a.SelectedOptions), a.Confidence, a.MarkType, mustJSON(a.BlankAnswers),
		)
		if err != nil {
			return fmt.Errorf("insert answer for question %d: %w", a.QuestionNumber, err)
		}
	}
	return tx.Commit()
}

// GetExtractedAnswers returns a submission's extracted answers in
// insertion order.
func (s *Store) GetExtractedAnswers(submissionID int64) ([]model.ExtractedAnswer, error) {
	rows, err := s.db.Query(
		`SELECT question_number, selected_options, confidence, mark_type, blank_answers
		 FROM extracted_answers WHERE submission_id = ? ORDER BY id`, submissionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var answers []model.ExtractedAnswer
	for rows.Next() {
		var a model.ExtractedAnswer
		var selected, blanks string
		if err := rows.Scan(&a.QuestionNumber, &selected, &a.Confidence, &a.MarkType, &blanks); err != nil {
			return nil, err
		}
		if err := fromJSON(selected, &a.SelectedOptions); err != nil {
			return nil, fmt.Errorf("question %d selections: %w", a.QuestionNumber, err)
		}
		if err := fromJSON(blanks, &a.BlankAnswers); err != nil {
			return nil, fmt.Errorf("question %d blank answers: %w", a.QuestionNumber, err)
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

// SaveEvaluation stores an evaluation result for a submission: the
// aggregate row plus one row per question, replacing any prior run so
// re-grading stays idempotent.
func (s *Store) SaveEvaluation(submissionID int64, result model.EvaluationResult) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var oldID int64
	err = tx.QueryRow(`SELECT id FROM evaluations WHERE submission_id = ?`, submissionID).Scan(&oldID)
	if err != nil && err != sql.ErrNoRows {
		return err
	}
	if err == nil {
		if _, err := tx.Exec(`DELETE FROM question_results WHERE evaluation_id = ?`, oldID); err != nil {
			return err
		}
		if _, err := tx.Exec(`DELETE FROM evaluations WHERE id = ?`, oldID); err != nil {
			return err
		}
	}

	res, err := tx.Exec(
		`INSERT INTO evaluations (submission_id, total_score, max_possible_score, percentage, grade, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		submissionID, result.TotalScore, result.MaxPossibleScore, result.Percentage, result.Grade, time.Now(),
	)
	if err != nil {
		return err
	}
	evalID, err := res.LastInsertId()
	if err != nil {
		return err
	}

	for _, qr := range result.PerQuestion {
		_, err := tx.Exec(
			`INSERT INTO question_results (evaluation_id, question_number, student_selections, correct_selections, is_correct, score, max_points, rationale)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			evalID, qr.QuestionNumber, mustJSON(qr.StudentSelections), mustJSON(qr.CorrectSelections),
			qr.IsCorrect, qr.Score, qr.MaxPoints, qr.Rationale,
		)
		if err != nil {
			return fmt.Errorf("insert result for question %d: %w", qr.QuestionNumber, err)
		}
	}
	return tx.Commit()
}

// GetEvaluation returns the stored evaluation for a submission, or nil
// if the submission has not been graded.
func (s *Store) GetEvaluation(submissionID int64) (*model.EvaluationResult, error) {
	var evalID int64
	var result model.EvaluationResult
	err := s.db.QueryRow(
		`SELECT id, total_score, max_possible_score, percentage, grade FROM evaluations WHERE submission_id = ?`,
		submissionID,
	).Scan(&evalID, &result.TotalScore, &result.MaxPossibleScore, &result.Percentage, &result.Grade)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(
		`SELECT question_number, student_selections, correct_selections, is_correct, score, max_points, rationale
		 FROM question_results WHERE evaluation_id = ? ORDER BY question_number`, evalID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var qr model.QuestionResult
		var student, correct string
		if err := rows.Scan(&qr.QuestionNumber, &student, &correct, &qr.IsCorrect, &qr.Score, &qr.MaxPoints, &qr.Rationale); err != nil {
			return nil, err
		}
		if err := fromJSON(student, &qr.StudentSelections); err != nil {
			return nil, fmt.Errorf("question %d student selections: %w", qr.QuestionNumber, err)
		}
		if err := fromJSON(correct, &qr.CorrectSelections); err != nil {
			return nil, fmt.Errorf("question %d correct selections: %w", qr.QuestionNumber, err)
		}
		result.PerQuestion = append(result.PerQuestion, qr)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetSubmissionView builds a full view of a submission with its paper,
// extracted answers, and evaluation.
func (s *Store) GetSubmissionView(submissionID int64) (*model.SubmissionView, error) {
	sub, err := s.GetSubmission(submissionID)
	if err != nil {
		return nil, err
	}
	paper, err := s.GetPaper(sub.PaperID)
	if err != nil {
		return nil, err
	}
	answers, err := s.GetExtractedAnswers(submissionID)
	if err != nil {
		return nil, err
	}
	result, err := s.GetEvaluation(submissionID)
	if err != nil {
		return nil, err
	}
	return &model.SubmissionView{
		Submission: sub,
		Paper:      paper,
		Answers:    answers,
		Result:     result,
	}, nil
}

// mustJSON marshals collection columns. The canonical types marshal
// without error; nil collections are stored as empty JSON values.
func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil || string(b) == "null" {
		switch v.(type) {
		case map[string]string, map[string]float64:
			return "{}"
		default:
			return "[]"
		}
	}
	return string(b)
}

func fromJSON(s string, v any) error {
	if s == "" {
		return nil
	}
	return json.Unmarshal([]byte(s), v)
}
