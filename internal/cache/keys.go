package cache

import "fmt"

// Key builders for the memoized read paths. Every read-side cache
// entry for a student must have its key listed in StudentKeys so
// InvalidateAll stays exhaustive.

func SummaryKey(studentID int64) string {
	return fmt.Sprintf("academic:summary:%d", studentID)
}

func RecordsKey(studentID int64) string {
	return fmt.Sprintf("academic:records:%d", studentID)
}

func GraduationProgressKey(studentID int64) string {
	return fmt.Sprintf("academic:graduation:%d", studentID)
}

// StudentKeys returns every read-cache key for one student.
func StudentKeys(studentID int64) []string {
	return []string{
		SummaryKey(studentID),
		RecordsKey(studentID),
		GraduationProgressKey(studentID),
	}
}
