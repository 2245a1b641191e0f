package reconcile

import (
	"sort"

	"github.com/campuslink/portal-sync/internal/portal"
)

// GradeInProgress is the sentinel grade for an offering the student is
// enrolled in but which has no graded outcome yet.
const GradeInProgress = "IN_PROGRESS"

// EnrollmentRecord is the merged view of one offering plus its grade
// outcome. Intermediate only; never persisted as-is.
type EnrollmentRecord struct {
	Offering      portal.Offering
	Grade         string
	Retake        bool
	OriginalScore float64
}

type enrollmentKey struct {
	Year       int
	Semester   int
	CourseCode string
}

// mergeSnapshot joins the curriculum feed with the grade feed on
// (year, semester, course code). An offering without a grade entry
// stays in progress; a grade entry without an offering synthesizes a
// minimal inferred offering from the grade entry's own fields. Output
// order is deterministic.
func mergeSnapshot(snap *portal.Snapshot) []EnrollmentRecord {
	merged := make(map[enrollmentKey]EnrollmentRecord, len(snap.Offerings))

	for _, off := range snap.Offerings {
		key := enrollmentKey{Year: off.Year, Semester: off.Semester, CourseCode: off.CourseCode}
		merged[key] = EnrollmentRecord{
			Offering: off,
			Grade:    GradeInProgress,
		}
	}

	for _, graded := range snap.GradedCourses {
		key := enrollmentKey{Year: graded.Year, Semester: graded.Semester, CourseCode: graded.CourseCode}

		rec, ok := merged[key]
		if !ok {
			// The offering vanished from the curriculum feed but the
			// grade survives: infer an offering from the grade entry.
			rec = EnrollmentRecord{
				Offering: portal.Offering{
					Year:       graded.Year,
					Semester:   graded.Semester,
					CourseCode: graded.CourseCode,
					CourseName: graded.CourseName,
					Professor:  graded.Professor,
					Schedule:   graded.Schedule,
					Points:     graded.Points,
				},
			}
		}

		rec.Grade = graded.Grade
		rec.Retake = graded.Retake
		rec.OriginalScore = graded.OriginalScore
		if graded.Points > 0 {
			rec.Offering.Points = graded.Points
		}
		merged[key] = rec
	}

	out := make([]EnrollmentRecord, 0, len(merged))
	for _, rec := range merged {
		out = append(out, rec)
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Offering, out[j].Offering
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		if a.Semester != b.Semester {
			return a.Semester < b.Semester
		}
		return a.CourseCode < b.CourseCode
	})

	return out
}

// resolvedRecord is an enrollment record after its course, professor
// and offering have been resolved to stored rows.
type resolvedRecord struct {
	OfferingID    int64
	CourseID      int64
	Year          int
	Semester      int
	Grade         string
	Points        float64
	Retake        bool
	OriginalScore float64
}

// collapseByCourse reduces a course's records to the single
// authoritative one: if any record is flagged retake, non-retake
// records drop out; among the survivors the greatest (year, semester)
// wins, year dominating.
func collapseByCourse(group []resolvedRecord) resolvedRecord {
	candidates := group

	hasRetake := false
	for _, rec := range group {
		if rec.Retake {
			hasRetake = true
			break
		}
	}
	if hasRetake {
		candidates = candidates[:0:0]
		for _, rec := range group {
			if rec.Retake {
				candidates = append(candidates, rec)
			}
		}
	}

	winner := candidates[0]
	for _, rec := range candidates[1:] {
		if rec.Year > winner.Year ||
			(rec.Year == winner.Year && rec.Semester > winner.Semester) {
			winner = rec
		}
	}

	return winner
}
