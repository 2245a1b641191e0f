package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/campuslink/portal-sync/internal/domain"
)

// Storage handles user/student persistence and hands out
// transaction-scoped repositories for reconciliation runs.
type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStorage creates a new Storage instance
func NewStorage(db *sqlx.DB, logger *slog.Logger) *Storage {
	return &Storage{
		db:     db,
		logger: logger,
	}
}

// RunInTx runs fn against a transaction-scoped repository. All
// reconciliation writes for one job go through a single call so they
// commit or roll back together.
func (s *Storage) RunInTx(ctx context.Context, fn func(*TxStore) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(&TxStore{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("Failed to roll back reconciliation transaction",
				slog.Any("error", rbErr),
			)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetUserByID returns the user or domain.ErrUserNotFound.
func (s *Storage) GetUserByID(ctx context.Context, userID int64) (*User, error) {
	var user User
	query := `
		SELECT id, email, student_id, portal_connected, last_synced_at, created_at, updated_at
		FROM users
		WHERE id = $1
	`

	err := s.db.GetContext(ctx, &user, query, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// FindConnectedUserByStudentCode returns a user other than
// excludeUserID that is already portal-connected to the student with
// the given external code, or nil when no such user exists. This is
// the idempotency guard against duplicate initial syncs racing on the
// same portal account.
func (s *Storage) FindConnectedUserByStudentCode(ctx context.Context, studentCode string, excludeUserID int64) (*User, error) {
	var user User
	query := `
		SELECT u.id, u.email, u.student_id, u.portal_connected, u.last_synced_at, u.created_at, u.updated_at
		FROM users u
		JOIN students st ON st.id = u.student_id
		WHERE st.student_code = $1 AND u.portal_connected AND u.id <> $2
		LIMIT 1
	`

	err := s.db.GetContext(ctx, &user, query, studentCode, excludeUserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find connected user: %w", err)
	}

	return &user, nil
}

// UpsertStudent creates or refreshes the student row keyed by its
// external student code.
func (s *Storage) UpsertStudent(ctx context.Context, student Student) (*Student, error) {
	query := `
		INSERT INTO students (student_code, name, department, major, grade_level, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (student_code) DO UPDATE SET
			name = EXCLUDED.name,
			department = EXCLUDED.department,
			major = EXCLUDED.major,
			grade_level = EXCLUDED.grade_level,
			status = EXCLUDED.status
		RETURNING id, student_code, name, department, major, grade_level, status
	`

	var saved Student
	err := s.db.GetContext(ctx, &saved, query,
		student.StudentCode, student.Name, student.Department,
		student.Major, student.GradeLevel, student.Status)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert student: %w", err)
	}

	return &saved, nil
}

// AttachStudent links a user to a student row.
func (s *Storage) AttachStudent(ctx context.Context, userID, studentID int64) error {
	query := `UPDATE users SET student_id = $1, updated_at = NOW() WHERE id = $2`

	if _, err := s.db.ExecContext(ctx, query, studentID, userID); err != nil {
		return fmt.Errorf("failed to attach student: %w", err)
	}
	return nil
}

// MarkPortalConnected flags the user as linked to the portal.
func (s *Storage) MarkPortalConnected(ctx context.Context, userID int64) error {
	query := `UPDATE users SET portal_connected = TRUE, updated_at = NOW() WHERE id = $1`

	if _, err := s.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to mark portal connected: %w", err)
	}
	return nil
}

// TouchLastSynced stamps the user's last successful refresh time.
func (s *Storage) TouchLastSynced(ctx context.Context, userID int64) error {
	query := `UPDATE users SET last_synced_at = NOW(), updated_at = NOW() WHERE id = $1`

	if _, err := s.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to touch last synced: %w", err)
	}
	return nil
}

// TxStore is the transaction-scoped repository the reconciliation
// engine writes through.
type TxStore struct {
	tx *sqlx.Tx
}

func (t *TxStore) GetOrCreateCourse(ctx context.Context, code, name string) (*Course, error) {
	query := `
		INSERT INTO courses (code, name)
		VALUES ($1, $2)
		ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, code, name
	`

	var course Course
	if err := t.tx.GetContext(ctx, &course, query, code, name); err != nil {
		return nil, fmt.Errorf("failed to get or create course %s: %w", code, err)
	}
	return &course, nil
}

func (t *TxStore) GetOrCreateProfessor(ctx context.Context, name string) (*Professor, error) {
	query := `
		INSERT INTO professors (name)
		VALUES ($1)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, name
	`

	var prof Professor
	if err := t.tx.GetContext(ctx, &prof, query, name); err != nil {
		return nil, fmt.Errorf("failed to get or create professor: %w", err)
	}
	return &prof, nil
}

// GetOrCreateOffering resolves an offering by its composite natural
// key. The offerings table carries a NULLS NOT DISTINCT unique index
// over that key, so the upsert is race-safe across concurrent syncs.
func (t *TxStore) GetOrCreateOffering(ctx context.Context, offering Offering) (*Offering, error) {
	query := `
		INSERT INTO offerings (
			course_id, year, semester, section, professor_id,
			division, host_department, schedule, points, evaluation_type, area_code
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (course_id, year, semester, section, professor_id, division, host_department)
		DO UPDATE SET
			schedule = EXCLUDED.schedule,
			points = EXCLUDED.points,
			evaluation_type = EXCLUDED.evaluation_type,
			area_code = EXCLUDED.area_code
		RETURNING id, course_id, year, semester, section, professor_id,
			division, host_department, schedule, points, evaluation_type, area_code
	`

	var saved Offering
	err := t.tx.GetContext(ctx, &saved, query,
		offering.CourseID, offering.Year, offering.Semester, offering.Section,
		offering.ProfessorID, offering.Division, offering.HostDepartment,
		offering.Schedule, offering.Points, offering.EvaluationType, offering.AreaCode)
	if err != nil {
		return nil, fmt.Errorf("failed to get or create offering: %w", err)
	}

	return &saved, nil
}

func (t *TxStore) ListCourseRecords(ctx context.Context, studentID int64) ([]CourseRecord, error) {
	query := `
		SELECT cr.id, cr.student_id, cr.offering_id, o.course_id, o.year, o.semester,
			cr.grade, cr.points, cr.retake, cr.original_score, cr.state
		FROM course_records cr
		JOIN offerings o ON o.id = cr.offering_id
		WHERE cr.student_id = $1
	`

	var recs []CourseRecord
	if err := t.tx.SelectContext(ctx, &recs, query, studentID); err != nil {
		return nil, fmt.Errorf("failed to list course records: %w", err)
	}
	return recs, nil
}

func (t *TxStore) InsertCourseRecord(ctx context.Context, rec CourseRecord) error {
	query := `
		INSERT INTO course_records (student_id, offering_id, grade, points, retake, original_score, state)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (student_id, offering_id) DO NOTHING
	`

	_, err := t.tx.ExecContext(ctx, query,
		rec.StudentID, rec.OfferingID, rec.Grade, rec.Points,
		rec.Retake, rec.OriginalScore, rec.State)
	if err != nil {
		return fmt.Errorf("failed to insert course record: %w", err)
	}
	return nil
}

func (t *TxStore) UpdateCourseRecord(ctx context.Context, rec CourseRecord) error {
	query := `
		UPDATE course_records
		SET grade = $1, points = $2, retake = $3, original_score = $4, state = $5
		WHERE id = $6
	`

	_, err := t.tx.ExecContext(ctx, query,
		rec.Grade, rec.Points, rec.Retake, rec.OriginalScore, rec.State, rec.ID)
	if err != nil {
		return fmt.Errorf("failed to update course record: %w", err)
	}
	return nil
}

func (t *TxStore) MarkSuperseded(ctx context.Context, recordID int64) error {
	query := `UPDATE course_records SET state = $1 WHERE id = $2 AND state <> $1`

	if _, err := t.tx.ExecContext(ctx, query, RecordStateSuperseded, recordID); err != nil {
		return fmt.Errorf("failed to mark record superseded: %w", err)
	}
	return nil
}

func (t *TxStore) DeleteCourseRecord(ctx context.Context, recordID int64) error {
	query := `DELETE FROM course_records WHERE id = $1`

	if _, err := t.tx.ExecContext(ctx, query, recordID); err != nil {
		return fmt.Errorf("failed to delete course record: %w", err)
	}
	return nil
}

func (t *TxStore) GetSemesterSummary(ctx context.Context, studentID int64, year, semester int) (*SemesterSummary, error) {
	query := `
		SELECT id, student_id, year, semester, attempted_points, earned_points, grade_point_avg, percentile_score
		FROM semester_summaries
		WHERE student_id = $1 AND year = $2 AND semester = $3
	`

	var summary SemesterSummary
	err := t.tx.GetContext(ctx, &summary, query, studentID, year, semester)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get semester summary: %w", err)
	}
	return &summary, nil
}

func (t *TxStore) SaveSemesterSummary(ctx context.Context, summary SemesterSummary) error {
	query := `
		INSERT INTO semester_summaries (
			student_id, year, semester, attempted_points, earned_points, grade_point_avg, percentile_score
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (student_id, year, semester) DO UPDATE SET
			attempted_points = EXCLUDED.attempted_points,
			earned_points = EXCLUDED.earned_points,
			grade_point_avg = EXCLUDED.grade_point_avg,
			percentile_score = EXCLUDED.percentile_score
	`

	_, err := t.tx.ExecContext(ctx, query,
		summary.StudentID, summary.Year, summary.Semester,
		summary.AttemptedPoints, summary.EarnedPoints,
		summary.GradePointAvg, summary.PercentileScore)
	if err != nil {
		return fmt.Errorf("failed to save semester summary: %w", err)
	}
	return nil
}

func (t *TxStore) GetTotalSummary(ctx context.Context, studentID int64) (*TotalSummary, error) {
	query := `
		SELECT student_id, attempted_points, earned_points, grade_point_avg, percentile_score
		FROM total_summaries
		WHERE student_id = $1
	`

	var summary TotalSummary
	err := t.tx.GetContext(ctx, &summary, query, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get total summary: %w", err)
	}
	return &summary, nil
}

func (t *TxStore) SaveTotalSummary(ctx context.Context, summary TotalSummary) error {
	query := `
		INSERT INTO total_summaries (student_id, attempted_points, earned_points, grade_point_avg, percentile_score)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (student_id) DO UPDATE SET
			attempted_points = EXCLUDED.attempted_points,
			earned_points = EXCLUDED.earned_points,
			grade_point_avg = EXCLUDED.grade_point_avg,
			percentile_score = EXCLUDED.percentile_score
	`

	_, err := t.tx.ExecContext(ctx, query,
		summary.StudentID, summary.AttemptedPoints, summary.EarnedPoints,
		summary.GradePointAvg, summary.PercentileScore)
	if err != nil {
		return fmt.Errorf("failed to save total summary: %w", err)
	}
	return nil
}
