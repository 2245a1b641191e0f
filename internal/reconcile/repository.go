package reconcile

import (
	"context"

	"github.com/campuslink/portal-sync/internal/records"
)

// Repository is the transaction-scoped persistence surface the engine
// writes through. records.TxStore is the Postgres implementation; the
// engine tests use an in-memory fake. Every lookup is by natural key
// so repeated runs against the same snapshot resolve to the same rows.
type Repository interface {
	GetOrCreateCourse(ctx context.Context, code, name string) (*records.Course, error)
	GetOrCreateProfessor(ctx context.Context, name string) (*records.Professor, error)
	GetOrCreateOffering(ctx context.Context, offering records.Offering) (*records.Offering, error)

	ListCourseRecords(ctx context.Context, studentID int64) ([]records.CourseRecord, error)
	InsertCourseRecord(ctx context.Context, rec records.CourseRecord) error
	UpdateCourseRecord(ctx context.Context, rec records.CourseRecord) error
	MarkSuperseded(ctx context.Context, recordID int64) error
	DeleteCourseRecord(ctx context.Context, recordID int64) error

	GetSemesterSummary(ctx context.Context, studentID int64, year, semester int) (*records.SemesterSummary, error)
	SaveSemesterSummary(ctx context.Context, summary records.SemesterSummary) error
	GetTotalSummary(ctx context.Context, studentID int64) (*records.TotalSummary, error)
	SaveTotalSummary(ctx context.Context, summary records.TotalSummary) error
}
