// Package reconcile merges freshly scraped curriculum and grade feeds
// into the stored enrollment history using upsert/diff/prune
// semantics. One run is scoped to one student and one transaction;
// applying the same snapshot twice leaves the store byte-for-byte
// unchanged.
package reconcile

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"

	"github.com/campuslink/portal-sync/internal/portal"
	"github.com/campuslink/portal-sync/internal/records"
)

// Engine applies a portal snapshot to a student's stored records.
type Engine struct {
	logger *slog.Logger
}

// NewEngine creates a new Engine instance
func NewEngine(logger *slog.Logger) *Engine {
	return &Engine{logger: logger}
}

// Run reconciles the snapshot into the store for one student. The
// caller supplies a transaction-scoped repository; nothing commits
// here.
func (e *Engine) Run(ctx context.Context, repo Repository, studentID int64, snap *portal.Snapshot) error {
	enrollments := mergeSnapshot(snap)

	resolved, err := e.resolve(ctx, repo, enrollments)
	if err != nil {
		return err
	}

	byCourse := make(map[int64][]resolvedRecord)
	for _, rec := range resolved {
		byCourse[rec.CourseID] = append(byCourse[rec.CourseID], rec)
	}

	winners := make(map[int64]resolvedRecord, len(byCourse))
	for courseID, group := range byCourse {
		winners[courseID] = collapseByCourse(group)
	}

	existing, err := repo.ListCourseRecords(ctx, studentID)
	if err != nil {
		return err
	}

	existingByOffering := make(map[int64]records.CourseRecord, len(existing))
	for _, rec := range existing {
		existingByOffering[rec.OfferingID] = rec
	}

	incomingOfferings := make(map[int64]struct{}, len(resolved))
	for _, rec := range resolved {
		incomingOfferings[rec.OfferingID] = struct{}{}
	}

	if err := e.applyDiff(ctx, repo, studentID, resolved, winners, existingByOffering); err != nil {
		return err
	}

	if err := e.supersedeExisting(ctx, repo, existing, winners); err != nil {
		return err
	}

	if err := e.prune(ctx, repo, existing, incomingOfferings); err != nil {
		return err
	}

	if err := e.upsertSummaries(ctx, repo, studentID, snap); err != nil {
		return err
	}

	e.logger.Info("Reconciliation completed",
		slog.Int64("student_id", studentID),
		slog.Int("incoming_records", len(resolved)),
		slog.Int("existing_records", len(existing)),
	)

	return nil
}

// resolve turns enrollment records into stored-row references via
// get-or-create lookups by natural key.
func (e *Engine) resolve(ctx context.Context, repo Repository, enrollments []EnrollmentRecord) ([]resolvedRecord, error) {
	resolved := make([]resolvedRecord, 0, len(enrollments))

	for _, enr := range enrollments {
		off := enr.Offering

		course, err := repo.GetOrCreateCourse(ctx, off.CourseCode, off.CourseName)
		if err != nil {
			return nil, err
		}

		var professorID sql.NullInt64
		if off.Professor != "" {
			prof, err := repo.GetOrCreateProfessor(ctx, off.Professor)
			if err != nil {
				return nil, err
			}
			professorID = sql.NullInt64{Int64: prof.ID, Valid: true}
		}

		saved, err := repo.GetOrCreateOffering(ctx, records.Offering{
			CourseID:       course.ID,
			Year:           off.Year,
			Semester:       off.Semester,
			Section:        off.Section,
			ProfessorID:    professorID,
			Division:       off.Division,
			HostDepartment: off.HostDepartment,
			Schedule:       off.Schedule,
			Points:         off.Points,
			EvaluationType: off.EvaluationType,
			AreaCode:       off.AreaCode,
		})
		if err != nil {
			return nil, err
		}

		resolved = append(resolved, resolvedRecord{
			OfferingID:    saved.ID,
			CourseID:      course.ID,
			Year:          off.Year,
			Semester:      off.Semester,
			Grade:         enr.Grade,
			Points:        off.Points,
			Retake:        enr.Retake,
			OriginalScore: enr.OriginalScore,
		})
	}

	return resolved, nil
}

// applyDiff inserts what is missing and updates what changed. The
// winning record per course is stored active; every other incoming
// record for a course with a retake winner is stored superseded, so
// history is retained rather than deleted.
func (e *Engine) applyDiff(
	ctx context.Context,
	repo Repository,
	studentID int64,
	resolved []resolvedRecord,
	winners map[int64]resolvedRecord,
	existingByOffering map[int64]records.CourseRecord,
) error {
	for _, rec := range resolved {
		winner := winners[rec.CourseID]
		isWinner := rec.OfferingID == winner.OfferingID

		var state records.RecordState
		switch {
		case isWinner:
			state = records.RecordStateActive
		case winner.Retake:
			state = records.RecordStateSuperseded
		default:
			// Non-winning record for a course without a retake winner:
			// not persisted.
			continue
		}

		incoming := records.CourseRecord{
			StudentID:     studentID,
			OfferingID:    rec.OfferingID,
			Grade:         rec.Grade,
			Points:        rec.Points,
			Retake:        rec.Retake,
			OriginalScore: rec.OriginalScore,
			State:         state,
		}

		current, exists := existingByOffering[rec.OfferingID]
		if !exists {
			if err := repo.InsertCourseRecord(ctx, incoming); err != nil {
				return err
			}
			continue
		}

		if isWinner && recordChanged(current, incoming) {
			incoming.ID = current.ID
			if err := repo.UpdateCourseRecord(ctx, incoming); err != nil {
				return err
			}
		}
	}

	return nil
}

// recordChanged compares the observable fields of a stored record
// against the incoming value.
func recordChanged(current, incoming records.CourseRecord) bool {
	return current.Grade != incoming.Grade ||
		current.Points != incoming.Points ||
		current.Retake != incoming.Retake ||
		current.OriginalScore != incoming.OriginalScore ||
		current.State != incoming.State
}

// supersedeExisting marks previously stored records for a
// retake-winner's course as superseded, matched by course identity
// rather than offering id.
func (e *Engine) supersedeExisting(
	ctx context.Context,
	repo Repository,
	existing []records.CourseRecord,
	winners map[int64]resolvedRecord,
) error {
	for _, rec := range existing {
		winner, ok := winners[rec.CourseID]
		if !ok || !winner.Retake {
			continue
		}
		if rec.OfferingID == winner.OfferingID || rec.State == records.RecordStateSuperseded {
			continue
		}

		if err := repo.MarkSuperseded(ctx, rec.ID); err != nil {
			return err
		}

		e.logger.Debug("Superseded stored record after retake",
			slog.Int64("record_id", rec.ID),
			slog.Int64("course_id", rec.CourseID),
		)
	}

	return nil
}

// prune hard-deletes stored records whose backing offering no longer
// appears anywhere in the incoming set.
func (e *Engine) prune(
	ctx context.Context,
	repo Repository,
	existing []records.CourseRecord,
	incomingOfferings map[int64]struct{},
) error {
	for _, rec := range existing {
		if _, ok := incomingOfferings[rec.OfferingID]; ok {
			continue
		}

		if err := repo.DeleteCourseRecord(ctx, rec.ID); err != nil {
			return err
		}

		e.logger.Info("Pruned record for vanished offering",
			slog.Int64("record_id", rec.ID),
			slog.Int64("offering_id", rec.OfferingID),
		)
	}

	return nil
}

// upsertSummaries rewrites a summary only when an observable field
// differs, keeping audit timestamps stable across no-op refreshes.
func (e *Engine) upsertSummaries(ctx context.Context, repo Repository, studentID int64, snap *portal.Snapshot) error {
	semesters := make([]portal.SemesterSummary, len(snap.SemesterSummaries))
	copy(semesters, snap.SemesterSummaries)
	sort.Slice(semesters, func(i, j int) bool {
		if semesters[i].Year != semesters[j].Year {
			return semesters[i].Year < semesters[j].Year
		}
		return semesters[i].Semester < semesters[j].Semester
	})

	for _, incoming := range semesters {
		summary := records.SemesterSummary{
			StudentID:       studentID,
			Year:            incoming.Year,
			Semester:        incoming.Semester,
			AttemptedPoints: incoming.AttemptedPoints,
			EarnedPoints:    incoming.EarnedPoints,
			GradePointAvg:   incoming.GradePointAvg,
			PercentileScore: incoming.PercentileScore,
		}

		current, err := repo.GetSemesterSummary(ctx, studentID, incoming.Year, incoming.Semester)
		if err != nil {
			return err
		}
		if current != nil && current.Equivalent(&summary) {
			continue
		}

		if err := repo.SaveSemesterSummary(ctx, summary); err != nil {
			return err
		}
	}

	total := records.TotalSummary{
		StudentID:       studentID,
		AttemptedPoints: snap.Cumulative.AttemptedPoints,
		EarnedPoints:    snap.Cumulative.EarnedPoints,
		GradePointAvg:   snap.Cumulative.GradePointAvg,
		PercentileScore: snap.Cumulative.PercentileScore,
	}

	current, err := repo.GetTotalSummary(ctx, studentID)
	if err != nil {
		return err
	}
	if current != nil && current.Equivalent(&total) {
		return nil
	}

	if err := repo.SaveTotalSummary(ctx, total); err != nil {
		return fmt.Errorf("failed to upsert total summary: %w", err)
	}

	return nil
}
