// Package gemini implements the command interpreter and the receipt
// extractor on top of Google's Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/mmynk/splitchat/internal/models"
)

const (
	DefaultChatModel   = "gemini-2.5-flash"
	DefaultVisionModel = "gemini-2.5-flash"
)

var ErrMissingAPIKey = errors.New("gemini API key is required")

// generator is the subset of *genai.Models the client needs.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Config configures a Client.
type Config struct {
	APIKey      string
	ChatModel   string
	VisionModel string
}

// Client talks to Gemini. It satisfies both pipeline.Interpreter and
// pipeline.Extractor.
type Client struct {
	models      generator
	chatModel   string
	visionModel string
}

// NewClient creates a Gemini client.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return newClient(client.Models, cfg), nil
}

func newClient(g generator, cfg Config) *Client {
	c := &Client{
		models:      g,
		chatModel:   cfg.ChatModel,
		visionModel: cfg.VisionModel,
	}
	if c.chatModel == "" {
		c.chatModel = DefaultChatModel
	}
	if c.visionModel == "" {
		c.visionModel = DefaultVisionModel
	}
	return c
}

// Interpret sends one chat command plus the current bill to the chat model and
// returns the validated reply and delta.
func (c *Client) Interpret(ctx context.Context, message string, bill models.BillState) (*models.CommandResult, error) {
	prompt, err := commandPrompt(message, bill)
	if err != nil {
		return nil, err
	}

	resp, err := c.models.GenerateContent(ctx, c.chatModel, genai.Text(prompt), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    commandSchema,
	})
	if err != nil {
		return nil, fmt.Errorf("GenAI generate failed: %w", err)
	}
	if resp == nil {
		return nil, errEmptyResponse
	}

	return ParseCommandResult(resp.Text())
}

// Extract sends a receipt image to the vision model and returns the validated
// total and summary.
func (c *Client) Extract(ctx context.Context, image []byte, mimeType string) (*models.ReceiptExtraction, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(image, mimeType),
			genai.NewPartFromText(receiptInstruction),
		}, genai.RoleUser),
	}

	resp, err := c.models.GenerateContent(ctx, c.visionModel, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   receiptSchema,
	})
	if err != nil {
		return nil, fmt.Errorf("GenAI generate failed: %w", err)
	}
	if resp == nil {
		return nil, errEmptyResponse
	}

	return ParseReceiptExtraction(resp.Text())
}
