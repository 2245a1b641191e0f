package dto

type CreateSyncRequest struct {
	UserID int64  `json:"user_id" binding:"required"`
	Kind   string `json:"kind" binding:"required"`
}

type SaveCredentialsRequest struct {
	UserID   int64  `json:"user_id" binding:"required"`
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type ListJobsRequest struct {
	UserID   int64  `form:"user_id"`
	Kind     string `form:"kind"`
	Status   string `form:"status"`
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

type ListJobsResponse struct {
	Jobs       []JobDTO `json:"jobs"`
	NextCursor string   `json:"next_cursor,omitempty"`
}

type JobDTO struct {
	JobID        int64  `json:"job_id"`
	UserID       int64  `json:"user_id"`
	Kind         string `json:"kind"`
	Status       string `json:"status"`
	Phase        string `json:"phase"`
	ErrorMessage string `json:"error_message,omitempty"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}
