package gemini

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/asaadkhaja99/rabbit-hole/internal/provider"
)

func TestCleanJSONBlock(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain json", input: `{"a":1}`, want: `{"a":1}`},
		{name: "json fence", input: "```json\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "bare fence", input: "```\n[1,2]\n```", want: `[1,2]`},
		{name: "surrounding whitespace", input: "  \n{\"a\":1}\n ", want: `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanJSONBlock(tt.input))
		})
	}
}

func TestToContents(t *testing.T) {
	conv := provider.Conversation{
		provider.UserTurn(provider.TextPart("context")),
		provider.ModelTurn(provider.TextPart("ack")),
		provider.UserTurn(provider.ImagePart([]byte{0x89, 0x50}, "image/png"), provider.TextPart("question")),
	}

	contents := toContents(conv)
	require.Len(t, contents, 3)

	assert.Equal(t, "user", contents[0].Role)
	assert.Equal(t, "model", contents[1].Role)
	assert.Equal(t, "user", contents[2].Role)

	require.Len(t, contents[2].Parts, 2)
	require.NotNil(t, contents[2].Parts[0].InlineData)
	assert.Equal(t, "image/png", contents[2].Parts[0].InlineData.MIMEType)
	assert.Equal(t, "question", contents[2].Parts[1].Text)
}

func TestBuildConfig(t *testing.T) {
	config := buildConfig("explain", 0.5, []provider.Tool{
		provider.FileSearchTool("fileSearchStores/abc"),
		provider.WebSearchTool(),
	})

	require.NotNil(t, config.Temperature)
	assert.InDelta(t, 0.5, *config.Temperature, 0.0001)
	require.NotNil(t, config.SystemInstruction)
	assert.Equal(t, "explain", config.SystemInstruction.Parts[0].Text)

	require.Len(t, config.Tools, 2)
	require.NotNil(t, config.Tools[0].FileSearch)
	assert.Equal(t, []string{"fileSearchStores/abc"}, config.Tools[0].FileSearch.FileSearchStoreNames)
	assert.NotNil(t, config.Tools[1].GoogleSearch)

	bare := buildConfig("", 0.7, nil)
	assert.Nil(t, bare.SystemInstruction)
	assert.Nil(t, bare.Tools)
}

func TestFromResponse(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{
				{Text: "here is your image"},
				{InlineData: &genai.Blob{Data: []byte("png-bytes"), MIMEType: "image/png"}},
			}},
		}},
	}

	out := fromResponse(resp)
	require.Len(t, out.Candidates, 1)
	parts := out.Candidates[0].Parts
	require.Len(t, parts, 2)
	assert.Equal(t, "here is your image", parts[0].Text)
	assert.Nil(t, parts[0].InlineImage)
	require.NotNil(t, parts[1].InlineImage)
	assert.Equal(t, []byte("png-bytes"), parts[1].InlineImage.Data)

	assert.Empty(t, fromResponse(nil).Candidates)
}

func TestChunkText(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{
				{Text: "thinking...", Thought: true},
				{Text: "Hello "},
				{Text: "world"},
			}},
		}},
	}

	assert.Equal(t, "Hello world", chunkText(resp))
	assert.Equal(t, "", chunkText(&genai.GenerateContentResponse{}))

	_, err := getResponseText(&genai.GenerateContentResponse{})
	assert.Error(t, err)
}
