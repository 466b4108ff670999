package riskai

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	openai "github.com/sashabaranov/go-openai"
)

const riskPrompt = `You are a manufacturing change-control analyst. Given an
engineering change order, respond with JSON only:
{"risk_score": <0.0-1.0>, "predicted_delay_days": <int>, "key_risks": [<up to 5 short strings>]}
Score how likely the change is to cause production disruption, quality
escapes, or schedule slip.`

// OpenAIProvider scores changes through an OpenAI-compatible chat endpoint.
// A non-empty baseURL points it at self-hosted or proxy deployments.
type OpenAIProvider struct {
	name   string
	model  string
	client *openai.Client
}

func NewOpenAIProvider(name, apiKey, baseURL, model string) *OpenAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIProvider{name: name, model: model, client: openai.NewClientWithConfig(cfg)}
}

func (p *OpenAIProvider) Name() string { return p.name }

func (p *OpenAIProvider) Analyze(ctx context.Context, summary ChangeSummary) (RiskResult, error) {
	payload, err := json.Marshal(summary)
	if err != nil {
		return RiskResult{}, errors.Wrap(err, "failed to serialize change summary")
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: riskPrompt},
			{Role: openai.ChatMessageRoleUser, Content: string(payload)},
		},
	})
	if err != nil {
		return RiskResult{}, errors.Wrapf(ErrProviderUnavailable, "provider %s: %v", p.name, err)
	}
	if len(resp.Choices) == 0 {
		return RiskResult{}, errors.Wrapf(ErrProviderUnavailable, "provider %s returned no choices", p.name)
	}

	var result RiskResult
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &result); err != nil {
		return RiskResult{}, errors.Wrapf(err, "provider %s returned malformed assessment", p.name)
	}
	if result.RiskScore < 0 {
		result.RiskScore = 0
	}
	if result.RiskScore > 1 {
		result.RiskScore = 1
	}
	if result.PredictedDelay < 0 {
		result.PredictedDelay = 0
	}
	return result, nil
}
