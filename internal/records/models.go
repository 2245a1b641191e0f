package records

import (
	"database/sql"
	"time"
)

// RecordState tags a stored course record as the current enrollment
// for its course or as history kept after a retake. Superseded rows
// are never physically deleted, so score and grade history stays
// queryable.
type RecordState string

const (
	RecordStateActive     RecordState = "active"
	RecordStateSuperseded RecordState = "superseded"
)

// User is a platform account. A user becomes "portal connected" after
// a successful initial sync links it to a student.
type User struct {
	ID              int64         `db:"id"`
	Email           string        `db:"email"`
	StudentID       sql.NullInt64 `db:"student_id"`
	PortalConnected bool          `db:"portal_connected"`
	LastSyncedAt    sql.NullTime  `db:"last_synced_at"`
	CreatedAt       time.Time     `db:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at"`
}

// Student mirrors the portal-side identity, keyed by the external
// student code.
type Student struct {
	ID          int64  `db:"id"`
	StudentCode string `db:"student_code"`
	Name        string `db:"name"`
	Department  string `db:"department"`
	Major       string `db:"major"`
	GradeLevel  int    `db:"grade_level"`
	Status      string `db:"status"`
}

// Course is a catalog entry, keyed by course code.
type Course struct {
	ID   int64  `db:"id"`
	Code string `db:"code"`
	Name string `db:"name"`
}

// Professor is keyed by name; the portal exposes nothing better.
type Professor struct {
	ID   int64  `db:"id"`
	Name string `db:"name"`
}

// Offering is one scheduled instance of a course. Its natural key is
// (course, year, semester, section, professor, division, host
// department); get-or-create lookups by that key keep repeated syncs
// idempotent.
type Offering struct {
	ID             int64         `db:"id"`
	CourseID       int64         `db:"course_id"`
	Year           int           `db:"year"`
	Semester       int           `db:"semester"`
	Section        string        `db:"section"`
	ProfessorID    sql.NullInt64 `db:"professor_id"`
	Division       string        `db:"division"`
	HostDepartment string        `db:"host_department"`
	Schedule       string        `db:"schedule"`
	Points         float64       `db:"points"`
	EvaluationType string        `db:"evaluation_type"`
	AreaCode       string        `db:"area_code"`
}

// CourseRecord is the persisted result of reconciliation: one row per
// (student, offering). CourseID, Year and Semester are joined in from
// the offering on load so collapse and supersession can group by
// course identity.
type CourseRecord struct {
	ID            int64       `db:"id"`
	StudentID     int64       `db:"student_id"`
	OfferingID    int64       `db:"offering_id"`
	CourseID      int64       `db:"course_id"`
	Year          int         `db:"year"`
	Semester      int         `db:"semester"`
	Grade         string      `db:"grade"`
	Points        float64     `db:"points"`
	Retake        bool        `db:"retake"`
	OriginalScore float64     `db:"original_score"`
	State         RecordState `db:"state"`
}

// SemesterSummary is the per-(student, year, semester) aggregate.
// Rewritten only when an observable field differs, so audit
// timestamps stay stable across no-op refreshes.
type SemesterSummary struct {
	ID              int64   `db:"id"`
	StudentID       int64   `db:"student_id"`
	Year            int     `db:"year"`
	Semester        int     `db:"semester"`
	AttemptedPoints float64 `db:"attempted_points"`
	EarnedPoints    float64 `db:"earned_points"`
	GradePointAvg   float64 `db:"grade_point_avg"`
	PercentileScore float64 `db:"percentile_score"`
}

// Equivalent reports whether two summaries agree on every observable
// field (identity columns excluded).
func (s *SemesterSummary) Equivalent(o *SemesterSummary) bool {
	return s.AttemptedPoints == o.AttemptedPoints &&
		s.EarnedPoints == o.EarnedPoints &&
		s.GradePointAvg == o.GradePointAvg &&
		s.PercentileScore == o.PercentileScore
}

// TotalSummary is the per-student cumulative aggregate.
type TotalSummary struct {
	StudentID       int64   `db:"student_id"`
	AttemptedPoints float64 `db:"attempted_points"`
	EarnedPoints    float64 `db:"earned_points"`
	GradePointAvg   float64 `db:"grade_point_avg"`
	PercentileScore float64 `db:"percentile_score"`
}

// Equivalent reports whether two cumulative summaries agree on every
// observable field.
func (s *TotalSummary) Equivalent(o *TotalSummary) bool {
	return s.AttemptedPoints == o.AttemptedPoints &&
		s.EarnedPoints == o.EarnedPoints &&
		s.GradePointAvg == o.GradePointAvg &&
		s.PercentileScore == o.PercentileScore
}
