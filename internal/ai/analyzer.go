package ai

import (
	"Go2FctSpectra/internal/config"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sashabaranov/go-openai"
)

const reportPrompt = "You are a senior network performance engineer. " +
	"Please analyze the following flow completion time report produced from ns-3 FlowMonitor simulation runs. " +
	"Point out which flow size classes suffer, whether packet loss explains it, and what to change in the next runs. " +
	"The output should be concise markdown.\n\n" +
	"--- Report Data ---\n%s\n--- End of Report Data ---"

// ReportAnalyzer asks an OpenAI compatible model to comment on a report.
type ReportAnalyzer struct {
	cfg    *config.AIConfig
	client *openai.Client
}

// NewReportAnalyzer creates a new instance of ReportAnalyzer.
func NewReportAnalyzer(cfg *config.AIConfig) (*ReportAnalyzer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("AI API key is not configured")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	client := openai.NewClientWithConfig(clientConfig)

	return &ReportAnalyzer{cfg: cfg, client: client}, nil
}

func (a *ReportAnalyzer) request(input string, stream bool) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model:     a.cfg.Model,
		MaxTokens: 2048,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: fmt.Sprintf(reportPrompt, input),
			},
		},
		Stream: stream,
	}
}

// AnalyzeReport returns the model's markdown commentary on input.
func (a *ReportAnalyzer) AnalyzeReport(ctx context.Context, input string) (string, error) {
	resp, err := a.client.CreateChatCompletion(ctx, a.request(input, false))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("AI request timeout: %w", err)
		}
		if errors.Is(err, context.Canceled) {
			return "", fmt.Errorf("AI request canceled by client: %w", err)
		}
		return "", fmt.Errorf("OpenAI API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("OpenAI API returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// AnalyzeStream is AnalyzeReport delivered chunk by chunk.
func (a *ReportAnalyzer) AnalyzeStream(ctx context.Context, input string, sendChunk func(string) error) error {
	stream, err := a.client.CreateChatCompletionStream(ctx, a.request(input, true))
	if err != nil {
		return fmt.Errorf("failed to create chat completion stream: %w", err)
	}
	defer stream.Close()

	for {
		response, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("stream error: %w", err)
		}
		if len(response.Choices) == 0 {
			continue
		}
		if err := sendChunk(response.Choices[0].Delta.Content); err != nil {
			return fmt.Errorf("failed to send chunk to client: %w", err)
		}
	}
}
