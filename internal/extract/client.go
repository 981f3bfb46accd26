// Package extract invokes the external document-understanding model and
// turns its free-form answer into structured extraction data.
package extract

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/docuflow/go-document-idp/internal/aws"
)

// ErrMalformedResponse marks a model answer that is not valid JSON after
// stripping code fences. It is a logic error: retrying the same bytes will
// not fix it, unlike a transport failure.
var ErrMalformedResponse = errors.New("extraction response is not valid JSON")

// Inference parameters mirror the deployed model configuration: images get a
// short token budget, PDFs a large one.
const (
	imageMaxTokens = 300
	pdfMaxTokens   = 5000
)

// Client calls the Bedrock model for extraction.
type Client struct {
	bedrock aws.BedrockAPI
	modelID string
	logger  *slog.Logger
}

// NewClient returns an extraction client for the given model id.
func NewClient(bedrock aws.BedrockAPI, modelID string, logger *slog.Logger) *Client {
	return &Client{
		bedrock: bedrock,
		modelID: modelID,
		logger:  logger,
	}
}

// ExtractImage sends image bytes with their format hint ("jpg", "png", ...)
// and parses the structured answer.
func (c *Client) ExtractImage(ctx context.Context, data []byte, format string) (map[string]any, error) {
	content := map[string]any{
		"image": map[string]any{
			"format": format,
			"source": map[string]any{"bytes": base64.StdEncoding.EncodeToString(data)},
		},
	}
	return c.invoke(ctx, content, "Provide a JSON definition of the image.", imageMaxTokens)
}

// ExtractPDF sends PDF bytes and parses the structured answer.
func (c *Client) ExtractPDF(ctx context.Context, data []byte) (map[string]any, error) {
	content := map[string]any{
		"document": map[string]any{
			"format": "pdf",
			"name":   "DocumentPDFmessages",
			"source": map[string]any{"bytes": base64.StdEncoding.EncodeToString(data)},
		},
	}
	return c.invoke(ctx, content, "Provide a JSON definition of the PDF.", pdfMaxTokens)
}

func (c *Client) invoke(ctx context.Context, contentBlock map[string]any, instruction string, maxTokens int) (map[string]any, error) {
	request := map[string]any{
		"schemaVersion": "messages-v1",
		"system":        []map[string]any{{"text": systemPrompt}},
		"messages": []map[string]any{
			{
				"role": "user",
				"content": []map[string]any{
					contentBlock,
					{"text": instruction},
				},
			},
		},
		"inferenceConfig": map[string]any{
			"maxTokens":   maxTokens,
			"topP":        0.1,
			"topK":        20,
			"temperature": 0.3,
		},
	}

	body, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("marshal model request: %w", err)
	}

	out, err := c.bedrock.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId: &c.modelID,
		Body:    body,
	})
	if err != nil {
		return nil, fmt.Errorf("invoke model: %w", err)
	}

	return c.parseResponse(out.Body)
}

// modelResponse is the envelope of a messages-v1 answer.
type modelResponse struct {
	Output struct {
		Message struct {
			Content []struct {
				Text string `json:"text"`
			} `json:"content"`
		} `json:"message"`
	} `json:"output"`
}

func (c *Client) parseResponse(body []byte) (map[string]any, error) {
	var resp modelResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(resp.Output.Message.Content) == 0 {
		return nil, fmt.Errorf("%w: empty content", ErrMalformedResponse)
	}

	text := StripFences(resp.Output.Message.Content[0].Text)
	c.logger.Debug("model response text", "text", text)

	var extracted map[string]any
	if err := json.Unmarshal([]byte(text), &extracted); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return extracted, nil
}

// StripFences removes markdown code-fence artifacts the model wraps its JSON in.
func StripFences(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	return strings.TrimSpace(text)
}
