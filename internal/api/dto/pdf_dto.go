package dto

import "github.com/asaadkhaja99/rabbit-hole/internal/pdf"

// PDFListResponse lists uploaded PDFs, newest first
type PDFListResponse struct {
	PDFs  []pdf.Record `json:"pdfs"`
	Total int          `json:"total"`
}
