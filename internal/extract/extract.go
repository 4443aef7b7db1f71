// Package extract reads answer selections off scanned answer-sheet
// pages with a vision-capable OpenAI-compatible model.
package extract

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pavelanni/sheetgrader/internal/model"

	openai "github.com/sashabaranov/go-openai"
)

// Client wraps an OpenAI-compatible vision API client.
type Client struct {
	api   *openai.Client
	model string
}

// New creates a new extraction client.
func New(baseURL, apiKey, modelName string) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:   openai.NewClientWithConfig(config),
		model: modelName,
	}
}

// Ping verifies the API endpoint is reachable.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("vision API ping: %w", err)
	}
	return nil
}

// ExtractPage sends one scanned page to the vision model and returns
// the answers it read, plus the raw model output for auditing.
func (c *Client) ExtractPage(ctx context.Context, image []byte, mimeType string, format model.QuestionFormat) ([]model.ExtractedAnswer, string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: buildExtractSystemPrompt(format)},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: "Read every answer on this answer sheet page."},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    dataURL(image, mimeType),
							Detail: openai.ImageURLDetailHigh,
						},
					},
				},
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.0,
	})
	if err != nil {
		return nil, "", fmt.Errorf("vision API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, "", fmt.Errorf("vision model returned no choices")
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("vision model response", "raw", raw)

	answers, err := model.ParseExtractedAnswers([]byte(stripCodeFence(raw)))
	if err != nil {
		return nil, raw, fmt.Errorf("parse extraction response: %w (raw: %s)", err, raw)
	}
	return answers, raw, nil
}

func buildExtractSystemPrompt(format model.QuestionFormat) string {
	var sb strings.Builder
	sb.WriteString("You are an answer-sheet reader. You will receive a scanned page of a student's exam answer sheet.\n\n")

	switch format {
	case model.FormatFillBlanks:
		sb.WriteString("The page contains fill-in-the-blank questions. For each question, transcribe the handwritten text in every blank.\n")
		sb.WriteString("If a blank is unreadable, use the text \"illegible\" for it. If a blank is empty, use an empty string.\n\n")
		sb.WriteString("Respond ONLY with a JSON object:\n")
		sb.WriteString(`{"answers": [{"question_number": <int>, "confidence": "high|medium|low", "blank_answers": [{"position": <int>, "text": "<transcription>"}]}]}`)
	default:
		sb.WriteString("The page contains multiple-choice questions. For each question, report which option labels the student selected.\n")
		sb.WriteString("Report the option letters exactly as printed on the sheet. A question with no visible mark gets an empty list.\n")
		sb.WriteString("Note how the selection was marked (circled, ticked, shaded bubble, crossed out).\n\n")
		sb.WriteString("Respond ONLY with a JSON object:\n")
		sb.WriteString(`{"answers": [{"question_number": <int>, "selected_options": ["<label>", ...], "confidence": "high|medium|low", "mark_type": "<how it was marked>"}]}`)
	}
	sb.WriteString("\n")
	return sb.String()
}

func dataURL(image []byte, mimeType string) string {
	if mimeType == "" {
		mimeType = "image/png"
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(image)
}

// stripCodeFence removes a markdown code fence some models wrap JSON in.
func stripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
