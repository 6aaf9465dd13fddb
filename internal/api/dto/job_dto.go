package dto

// LearningPlanRequest is the body of POST /api/learning-plan/generate
type LearningPlanRequest struct {
	Title    string   `json:"title" binding:"required"`
	Abstract string   `json:"abstract" binding:"required"`
	FullText string   `json:"full_text"`
	Sections []string `json:"sections"`
}

// LearningPlanResponse acknowledges an enqueued learning-plan job
type LearningPlanResponse struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}
