package gemini

import (
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/asaadkhaja99/rabbit-hole/internal/provider"
)

func buildConfig(systemInstruction string, temperature float32, tools []provider.Tool) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(temperature),
		Tools:       toTools(tools),
	}
	if systemInstruction != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: systemInstruction}},
		}
	}
	return config
}

func toContents(conv provider.Conversation) []*genai.Content {
	out := make([]*genai.Content, 0, len(conv))
	for _, turn := range conv {
		role := string(genai.RoleUser)
		if turn.Role == provider.RoleModel {
			role = string(genai.RoleModel)
		}
		out = append(out, &genai.Content{
			Role:  role,
			Parts: toParts(turn.Parts),
		})
	}
	return out
}

func toParts(parts []provider.Part) []*genai.Part {
	out := make([]*genai.Part, 0, len(parts))
	for _, p := range parts {
		if p.IsInline() {
			out = append(out, &genai.Part{
				InlineData: &genai.Blob{Data: p.Data, MIMEType: p.MIMEType},
			})
			continue
		}
		out = append(out, &genai.Part{Text: p.Text})
	}
	return out
}

func toTools(tools []provider.Tool) []*genai.Tool {
	if len(tools) == 0 {
		return nil
	}

	out := make([]*genai.Tool, 0, len(tools))
	for _, t := range tools {
		switch t.Kind {
		case provider.ToolFileSearch:
			out = append(out, &genai.Tool{
				FileSearch: &genai.FileSearch{FileSearchStoreNames: t.StoreNames},
			})
		case provider.ToolWebSearch:
			out = append(out, &genai.Tool{GoogleSearch: &genai.GoogleSearch{}})
		}
	}
	return out
}

func fromResponse(resp *genai.GenerateContentResponse) *provider.Response {
	out := &provider.Response{}
	if resp == nil {
		return out
	}

	for _, cand := range resp.Candidates {
		var c provider.Candidate
		if cand != nil && cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if part == nil {
					continue
				}
				// genai returns generated images inline only
				rp := provider.ResponsePart{Text: part.Text}
				if part.InlineData != nil && len(part.InlineData.Data) > 0 {
					rp.InlineImage = &provider.Blob{
						Data:     part.InlineData.Data,
						MIMEType: part.InlineData.MIMEType,
					}
				}
				c.Parts = append(c.Parts, rp)
			}
		}
		out.Candidates = append(out.Candidates, c)
	}
	return out
}

// chunkText returns the answer text of a streamed response, skipping thoughts
func chunkText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && !part.Thought {
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}

func getResponseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates returned")
	}
	return chunkText(resp), nil
}

func cleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimSuffix(text, "```")
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(text, "```")
	}
	return strings.TrimSpace(text)
}
