// Package provider defines the generation provider port used by the relay,
// the annotate operation, the learning-plan runner and the PDF service.
package provider

import (
	"context"
	"iter"
)

// Role tags a conversation turn
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Part is one piece of turn content: text, or bytes with a media type
type Part struct {
	Text     string
	Data     []byte
	MIMEType string
}

// TextPart builds a text part
func TextPart(text string) Part {
	return Part{Text: text}
}

// ImagePart builds an inline image part
func ImagePart(data []byte, mimeType string) Part {
	return Part{Data: data, MIMEType: mimeType}
}

// IsInline reports whether the part carries bytes rather than text
func (p Part) IsInline() bool {
	return len(p.Data) > 0
}

// Turn is one message of a conversation
type Turn struct {
	Role  Role
	Parts []Part
}

// Conversation is an ordered dialogue history
type Conversation []Turn

// UserTurn builds a user turn from parts
func UserTurn(parts ...Part) Turn {
	return Turn{Role: RoleUser, Parts: parts}
}

// ModelTurn builds a model turn from parts
func ModelTurn(parts ...Part) Turn {
	return Turn{Role: RoleModel, Parts: parts}
}

// ToolKind identifies a grounding tool
type ToolKind int

const (
	ToolFileSearch ToolKind = iota + 1
	ToolWebSearch
)

// Tool is a provider-side grounding capability
type Tool struct {
	Kind       ToolKind
	StoreNames []string
}

// FileSearchTool grounds generation on the given retrieval stores
func FileSearchTool(storeNames ...string) Tool {
	return Tool{Kind: ToolFileSearch, StoreNames: storeNames}
}

// WebSearchTool grounds generation on web search
func WebSearchTool() Tool {
	return Tool{Kind: ToolWebSearch}
}

// Modality is a response modality requested from the provider
type Modality string

const (
	ModalityText  Modality = "TEXT"
	ModalityImage Modality = "IMAGE"
)

// StreamRequest is the input of a streaming text call
type StreamRequest struct {
	Conversation      Conversation
	SystemInstruction string
	Temperature       float32
	Tools             []Tool
}

// Chunk is one increment of streamed text
type Chunk struct {
	Text string
}

// MultimodalRequest is the input of a synchronous text+image call
type MultimodalRequest struct {
	Parts              []Part
	SystemInstruction  string
	Temperature        float32
	ResponseModalities []Modality
	AspectRatio        string
}

// Blob is binary content returned by the provider
type Blob struct {
	Data     []byte
	MIMEType string
}

// ResponsePart is one part of a candidate. An image may arrive either as
// inline bytes or as an image object, depending on the provider. The Gemini
// adapter only fills InlineImage; Image serves providers that return a
// separate image object.
type ResponsePart struct {
	Text        string
	InlineImage *Blob
	Image       *Blob
}

// Candidate is one generated alternative
type Candidate struct {
	Parts []ResponsePart
}

// Response is the result of a synchronous multimodal call
type Response struct {
	Candidates []Candidate
}

// StructuredRequest is the input of a JSON generation call
type StructuredRequest struct {
	Prompt            string
	SystemInstruction string
	Temperature       float32
	Tools             []Tool
}

// StructuredResponse carries the raw JSON text returned by the provider
type StructuredResponse struct {
	Text string
}

// Generator is a remote LLM able to stream text and generate synchronously
type Generator interface {
	// StreamText returns a lazy, pull-based, non-restartable chunk sequence.
	// Stopping the iteration releases the upstream call.
	StreamText(ctx context.Context, req StreamRequest) iter.Seq2[Chunk, error]
	GenerateMultimodal(ctx context.Context, req MultimodalRequest) (*Response, error)
	GenerateStructured(ctx context.Context, req StructuredRequest) (*StructuredResponse, error)
}

// IndexOperation tracks an upload being indexed into a retrieval store
type IndexOperation struct {
	Name         string
	Done         bool
	DocumentName string
	Err          string

	// Handle is the provider-native operation, opaque to callers
	Handle any
}

// Indexer manages retrieval stores used as grounding for chat
type Indexer interface {
	CreateStore(ctx context.Context, displayName string) (string, error)
	Upload(ctx context.Context, storeName, path, displayName string) (*IndexOperation, error)
	Refresh(ctx context.Context, op *IndexOperation) (*IndexOperation, error)
}
