package portal

// Snapshot is the structured payload scraped from the university
// portal in one fetch: who the student is, every curriculum offering
// they are or were enrolled in, the graded outcomes per semester, and
// the portal's own summary aggregates.
type Snapshot struct {
	Student           StudentInfo       `json:"student"`
	Offerings         []Offering        `json:"offerings"`
	GradedCourses     []GradedCourse    `json:"graded_courses"`
	SemesterSummaries []SemesterSummary `json:"semester_summaries"`
	Cumulative        CumulativeSummary `json:"cumulative"`
}

// StudentInfo identifies the student on the portal side.
type StudentInfo struct {
	StudentCode string `json:"student_code"`
	Name        string `json:"name"`
	Department  string `json:"department"`
	Major       string `json:"major"`
	GradeLevel  int    `json:"grade_level"`
	Status      string `json:"status"`
}

// Offering is one scheduled instance of a course on the curriculum
// feed (year/semester/section/professor).
type Offering struct {
	Year           int     `json:"year"`
	Semester       int     `json:"semester"`
	CourseCode     string  `json:"course_code"`
	CourseName     string  `json:"course_name"`
	Section        string  `json:"section"`
	Professor      string  `json:"professor"`
	Schedule       string  `json:"schedule"`
	Points         float64 `json:"points"`
	EvaluationType string  `json:"evaluation_type"`
	Division       string  `json:"division"`
	HostDepartment string  `json:"host_department"`
	AreaCode       string  `json:"area_code"`
}

// GradedCourse is one entry on the per-semester grade feed. The grade
// feed is keyed independently of the curriculum feed; reconciliation
// joins the two on (year, semester, course code).
type GradedCourse struct {
	Year          int     `json:"year"`
	Semester      int     `json:"semester"`
	CourseCode    string  `json:"course_code"`
	CourseName    string  `json:"course_name"`
	Professor     string  `json:"professor"`
	Schedule      string  `json:"schedule"`
	Points        float64 `json:"points"`
	Grade         string  `json:"grade"`
	Retake        bool    `json:"retake"`
	OriginalScore float64 `json:"original_score"`
}

// SemesterSummary is the portal's per-semester aggregate.
type SemesterSummary struct {
	Year            int     `json:"year"`
	Semester        int     `json:"semester"`
	AttemptedPoints float64 `json:"attempted_points"`
	EarnedPoints    float64 `json:"earned_points"`
	GradePointAvg   float64 `json:"grade_point_avg"`
	PercentileScore float64 `json:"percentile_score"`
}

// CumulativeSummary is the portal's whole-transcript aggregate.
type CumulativeSummary struct {
	AttemptedPoints float64 `json:"attempted_points"`
	EarnedPoints    float64 `json:"earned_points"`
	GradePointAvg   float64 `json:"grade_point_avg"`
	PercentileScore float64 `json:"percentile_score"`
}
