package model

import (
	"context"
	"time"
)

// UserRole represents a user's access level.
type UserRole string

const (
	// UserRoleTeacher is a teacher user role.
	UserRoleTeacher UserRole = "teacher"
	// UserRoleAdmin is an admin user role.
	UserRoleAdmin UserRole = "admin"
)

// User represents a system user.
type User struct {
	ID           int64
	Username     string
	DisplayName  string
	PasswordHash string
	Role         UserRole
	Active       bool
	CreatedAt    time.Time
}

// AuthSession represents an authentication session.
type AuthSession struct {
	ID        string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

type userCtxKey struct{}

// ContextWithUser stores a user in the request context.
func ContextWithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext retrieves the authenticated user from context, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userCtxKey{}).(*User)
	return u
}

type basePathCtxKey struct{}

// ContextWithBasePath stores the base path prefix in context.
func ContextWithBasePath(ctx context.Context, basePath string) context.Context {
	return context.WithValue(ctx, basePathCtxKey{}, basePath)
}

// BasePathFromContext retrieves the base path from context (empty string if not set).
func BasePathFromContext(ctx context.Context) string {
	bp, _ := ctx.Value(basePathCtxKey{}).(string)
	return bp
}

// QuestionFormat represents the answer format of a paper's questions.
type QuestionFormat string

const (
	FormatMultipleChoice QuestionFormat = "multiple_choice"
	FormatFillBlanks     QuestionFormat = "fill_blanks"
)

// EvalMode selects how multiple-choice questions are scored.
type EvalMode string

const (
	// ModeAuto picks the weighted rule when weightages are present,
	// the traditional rule otherwise.
	ModeAuto EvalMode = "auto"
	// ModeManual forces the strict weighted rule.
	ModeManual EvalMode = "manual"
	// ModeOMR scores optically detected marks.
	ModeOMR EvalMode = "omr"
)

// MatchType selects how a fill-in-the-blank answer is compared.
type MatchType string

const (
	MatchExact    MatchType = "exact"
	MatchContains MatchType = "contains"
	MatchFuzzy    MatchType = "fuzzy"
)

// Confidence is the extractor's self-reported certainty. Advisory only;
// it never affects scoring.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// SubmissionStatus represents the processing state of a submission.
type SubmissionStatus string

const (
	StatusReceived  SubmissionStatus = "received"
	StatusExtracted SubmissionStatus = "extracted"
	StatusGraded    SubmissionStatus = "graded"
	StatusReviewed  SubmissionStatus = "reviewed"
)

// BlankSpec is the answer key for one blank of a fill-in-the-blank question.
type BlankSpec struct {
	Position        int       `json:"position"`
	ExpectedAnswers []string  `json:"expected_answers"`
	MatchType       MatchType `json:"match_type,omitempty"`
	Points          float64   `json:"points"`
}

// QuestionKey is the authoritative answer key for one question.
//
// CorrectOptions may be authored as labels ("A") or as option content
// ("Paris"); Options maps labels to content when the key uses labels.
// Weightages assigns per-option partial credit, keyed by label or content.
type QuestionKey struct {
	Number         int                `json:"number"`
	Format         QuestionFormat     `json:"format"`
	CorrectOptions []string           `json:"correct_options,omitempty"`
	Options        map[string]string  `json:"options,omitempty"`
	Weightages     map[string]float64 `json:"weightages,omitempty"`
	MaxPoints      float64            `json:"max_points,omitempty"`
	BlankSpecs     []BlankSpec        `json:"blank_specs,omitempty"`
}

// BlankAnswer is one extracted blank of a fill-in-the-blank response.
type BlankAnswer struct {
	Position   int        `json:"position"`
	Text       string     `json:"text"`
	Confidence Confidence `json:"confidence,omitempty"`
}

// ExtractedAnswer is the raw extraction output for one question.
type ExtractedAnswer struct {
	QuestionNumber  int           `json:"question_number"`
	SelectedOptions []string      `json:"selected_options,omitempty"`
	Confidence      Confidence    `json:"confidence,omitempty"`
	MarkType        string        `json:"mark_type,omitempty"`
	BlankAnswers    []BlankAnswer `json:"blank_answers,omitempty"`
}

// QuestionResult is the scored outcome for one question. Immutable once
// returned by the engine.
type QuestionResult struct {
	QuestionNumber    int      `json:"question_number"`
	StudentSelections []string `json:"student_selections"`
	CorrectSelections []string `json:"correct_selections"`
	IsCorrect         bool     `json:"is_correct"`
	Score             float64  `json:"score"`
	MaxPoints         float64  `json:"max_points"`
	Rationale         string   `json:"rationale"`
}

// EvaluationResult is the scored outcome for one submission.
type EvaluationResult struct {
	PerQuestion      []QuestionResult `json:"per_question"`
	TotalScore       float64          `json:"total_score"`
	MaxPossibleScore float64          `json:"max_possible_score"`
	Percentage       float64          `json:"percentage"`
	Grade            string           `json:"grade"`
}

// Paper is an exam paper: a named answer key plus its evaluation settings.
type Paper struct {
	ID        int64          `json:"id"`
	Name      string         `json:"name"`
	Subject   string         `json:"subject"`
	Format    QuestionFormat `json:"format"`
	Mode      EvalMode       `json:"mode"`
	CreatedAt time.Time      `json:"created_at"`
}

// Submission is one student's answer sheet for a paper.
type Submission struct {
	ID          int64            `json:"id"`
	PaperID     int64            `json:"paper_id"`
	StudentName string           `json:"student_name"`
	RollNumber  string           `json:"roll_number"`
	Status      SubmissionStatus `json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
	GradedAt    *time.Time       `json:"graded_at,omitempty"`
}

// SubmissionView combines a submission with its evaluation for display.
type SubmissionView struct {
	Submission Submission        `json:"submission"`
	Paper      Paper             `json:"paper"`
	Answers    []ExtractedAnswer `json:"answers,omitempty"`
	Result     *EvaluationResult `json:"result,omitempty"`
}

// ServiceConfig holds runtime parameters set via CLI flags.
type ServiceConfig struct {
	Mode                EvalMode
	ProportionalPartial bool   // legacy multi-choice partial credit with penalty
	BasePath            string // URL prefix for sub-path deployments (e.g. "/grading")
	SecureCookies       bool   // Set Secure flag on cookies (disable for local dev)
	Lang                string
}
