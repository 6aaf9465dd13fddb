package dto

// ChatMessage is one prior turn supplied by the client
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Question          string        `json:"question" binding:"required"`
	Context           string        `json:"context" binding:"required"`
	Page              int           `json:"page"`
	FileSearchStoreID string        `json:"file_search_store_id"`
	History           []ChatMessage `json:"history"`
}

// FormulaQuery is bound from the query string of GET /api/chat/formula
type FormulaQuery struct {
	Formula string `form:"formula" binding:"required"`
	Context string `form:"context"`
	Page    int    `form:"page"`
}

type FigureRequest struct {
	ImageBase64 string `json:"image_base64" binding:"required"`
	Caption     string `json:"caption"`
	Context     string `json:"context"`
	Page        int    `json:"page"`
}

type EquationRequest struct {
	ImageBase64 string `json:"image_base64" binding:"required"`
	Label       string `json:"label"`
	Context     string `json:"context"`
	Page        int    `json:"page"`
}

// EquationAnnotationRequest carries the width/height ratio of the target image
type EquationAnnotationRequest struct {
	ImageBase64 string  `json:"image_base64" binding:"required"`
	Question    string  `json:"question" binding:"required"`
	AspectRatio float64 `json:"aspect_ratio" binding:"required,gt=0"`
}

type EquationAnnotationResponse struct {
	ImageBase64 string `json:"image_base64"`
}
