package prompt

import (
	"fmt"
	"strings"

	"github.com/asaadkhaja99/rabbit-hole/internal/provider"
)

const (
	contextPreamble = "I'll be asking questions about this context. Please help me understand it."
	contextAck      = "I'll help you understand this context. What would you like to know?"
	notProvided     = "Not provided"
)

// Message is one caller-supplied history entry
type Message struct {
	Role    string
	Content string
}

// pageRef returns the page annotation appended to context headers
func pageRef(page int) string {
	if page <= 0 {
		return ""
	}
	return fmt.Sprintf(" (from page %d)", page)
}

func contextBlock(context string, page int) string {
	if context == "" {
		return ""
	}
	return fmt.Sprintf("\n\nContext%s:\n%s", pageRef(page), context)
}

// ChatConversation frames the question with the highlighted context:
// context turn, model acknowledgement, history, then the question.
// Any history role other than "user" is sent as the model.
func ChatConversation(question, context string, page int, history []Message) provider.Conversation {
	conv := make(provider.Conversation, 0, len(history)+3)

	conv = append(conv,
		provider.UserTurn(provider.TextPart(
			fmt.Sprintf("Context%s:\n%s\n\n%s", pageRef(page), context, contextPreamble),
		)),
		provider.ModelTurn(provider.TextPart(contextAck)),
	)

	for _, msg := range history {
		part := provider.TextPart(msg.Content)
		if msg.Role == string(provider.RoleUser) {
			conv = append(conv, provider.UserTurn(part))
		} else {
			conv = append(conv, provider.ModelTurn(part))
		}
	}

	return append(conv, provider.UserTurn(provider.TextPart(question)))
}

// FormulaConversation is a single user turn with the formula and optional context
func FormulaConversation(formula, context string, page int) provider.Conversation {
	text := "Formula: " + formula + contextBlock(context, page)
	return provider.Conversation{provider.UserTurn(provider.TextPart(text))}
}

// FigureConversation pairs the figure image with its caption and context
func FigureConversation(image provider.Part, caption, context string, page int) provider.Conversation {
	var sb strings.Builder
	sb.WriteString("Analyze this figure.")
	if caption != "" {
		sb.WriteString("\n\nCaption: " + caption)
	}
	sb.WriteString(contextBlock(context, page))

	return provider.Conversation{provider.UserTurn(image, provider.TextPart(sb.String()))}
}

// EquationConversation pairs the equation image with its label and context
func EquationConversation(image provider.Part, label, context string, page int) provider.Conversation {
	var sb strings.Builder
	sb.WriteString("Analyze this equation image and provide a detailed explanation.")
	if label != "" {
		sb.WriteString("\n\nEquation label: " + label)
	}
	sb.WriteString(contextBlock(context, page))

	return provider.Conversation{provider.UserTurn(image, provider.TextPart(sb.String()))}
}

// AnnotationParts builds the request parts of the annotate operation
func AnnotationParts(image provider.Part, question string) []provider.Part {
	return []provider.Part{image, provider.TextPart("Question: " + question)}
}

// LearningPlanInput feeds the learning-plan template
type LearningPlanInput struct {
	Title    string
	Abstract string
	FullText string
	Sections []string
}

// RenderLearningPlan renders the learning-plan prompt
func (s *Set) RenderLearningPlan(in LearningPlanInput) (string, error) {
	sections := notProvided
	if len(in.Sections) > 0 {
		sections = strings.Join(in.Sections, ", ")
	}

	var sb strings.Builder
	err := s.learningPlan.Execute(&sb, struct {
		Title    string
		Abstract string
		Sections string
		FullText string
	}{
		Title:    in.Title,
		Abstract: in.Abstract,
		Sections: sections,
		FullText: in.FullText,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render learning plan prompt: %w", err)
	}
	return sb.String(), nil
}
