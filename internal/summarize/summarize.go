package summarize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperifyio/trialharvest/internal/cache"
	"github.com/hyperifyio/trialharvest/internal/llm"
)

// ErrEmptyResponse indicates the model returned no usable text.
var ErrEmptyResponse = errors.New("empty summarization response")

const systemPrompt = "You are a careful assistant that extracts structured clinical trial data. Answer only with the requested labeled fields, one per line. Use NA when a field is not stated in the text. Do not invent information."

// Summarizer sends clinical trial text to the model and returns the raw
// labeled-field response. Responses are cached per model and prompt so a
// re-run does not repeat calls.
type Summarizer struct {
	Client llm.Client
	Model  string
	Cache  *cache.LLMCache
}

// Summarize requests a structured summary of trialText. Transient failures
// get a single retry; the caller decides what a failure means for the record.
func (s *Summarizer) Summarize(ctx context.Context, trialText string) (string, error) {
	if s.Client == nil || strings.TrimSpace(s.Model) == "" {
		return "", errors.New("summarizer not configured")
	}
	user := buildUserMessage(trialText)

	if s.Cache != nil {
		key := cache.KeyFrom(s.Model, systemPrompt+"\n\n"+user)
		if raw, ok, _ := s.Cache.Get(ctx, key); ok {
			var out struct {
				Response string `json:"response"`
			}
			if err := json.Unmarshal(raw, &out); err == nil && strings.TrimSpace(out.Response) != "" {
				return out.Response, nil
			}
		}
	}

	req := openai.ChatCompletionRequest{
		Model: s.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: 0.1,
		N:           1,
	}
	resp, err := s.Client.CreateChatCompletion(ctx, req)
	if err != nil {
		if !isTransient(err) {
			return "", fmt.Errorf("summarization call: %w", err)
		}
		sleep(100)
		resp, err = s.Client.CreateChatCompletion(ctx, req)
		if err != nil {
			return "", fmt.Errorf("summarization call (after retry): %w", err)
		}
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if out == "" {
		return "", ErrEmptyResponse
	}
	if s.Cache != nil {
		payload, _ := json.Marshal(map[string]string{"response": out})
		_ = s.Cache.Save(ctx, cache.KeyFrom(s.Model, systemPrompt+"\n\n"+user), payload)
	}
	return out, nil
}

func buildUserMessage(trialText string) string {
	var sb strings.Builder
	sb.WriteString("Analyze the following clinical trial text and answer in exactly this format:\n\n")
	sb.WriteString("Trial Information:\n")
	sb.WriteString("Title: [trial title]\n")
	sb.WriteString("Trial_ID: [NCT/ISRCTN/ACTRN number if available, otherwise NA]\n")
	sb.WriteString("Trial_Phase: [phase if available, otherwise NA]\n")
	sb.WriteString("Condition: [disease or condition studied]\n")
	sb.WriteString("Intervention: [drugs or treatments studied]\n")
	sb.WriteString("Sponsor: [trial sponsor, otherwise NA]\n")
	sb.WriteString("\nStudy Groups:\n")
	sb.WriteString("Group1: Description: [brief description], Group_Type: [Control/Intervention], Drugs_Studied: [drugs], ORR: [if available], PFS: [if available], OS: [if available]\n")
	sb.WriteString("[repeat a GroupN line for each study group]\n")
	sb.WriteString("\nTrial Results:\n")
	sb.WriteString("Novel_Findings: [key findings]\n")
	sb.WriteString("Conclusions: [main conclusions]\n")
	sb.WriteString("Summary: [one-sentence plain summary of the trial]\n")
	sb.WriteString("\nTrial text:\n\n")
	sb.WriteString(trialText)
	return sb.String()
}

// isTransient reports whether the call is worth one more attempt. Auth and
// request errors fail the same way twice, so only timeouts, rate limits and
// upstream 5xx qualify.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// sleepHook lets tests replace the retry backoff; milliseconds.
var sleepHook func(ms int)

func sleep(ms int) {
	if sleepHook != nil {
		sleepHook(ms)
		return
	}
	time.Sleep(time.Duration(ms) * time.Millisecond)
}
