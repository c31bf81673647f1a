package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
)

// EscalationReply is returned verbatim when the user should be handed to a person.
const EscalationReply = "AGENT_ESCALATION"

const (
	defaultChatModel = "gemini-2.5-flash"
	maxChatHistory   = 20
	maxChatMessage   = 2000
	geminiKeyHeader  = "x-goog-api-key"
)

const chatSystemPrompt = `You are a helpful cybersecurity assistant for the GUARDBULLDOG phishing reporting platform. ` +
	`Answer questions about phishing, suspicious e-mail, passwords and how to submit a report. Keep answers short and practical. ` +
	`If the user seems frustrated or asks to speak to a person, respond with the exact phrase: AGENT_ESCALATION`

type ChatService struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

type ChatMessage struct {
	Role    string `json:"role" binding:"required,oneof=user assistant"`
	Content string `json:"content" binding:"required"`
}

type ChatRequest struct {
	Message string        `json:"message" binding:"required"`
	History []ChatMessage `json:"history" binding:"omitempty,max=50,dive"`
}

type ChatReply struct {
	Reply  string `json:"reply"`
	Source string `json:"source"`
}

// Gemini API request/response structures
type GeminiRequest struct {
	SystemInstruction *GeminiContent  `json:"systemInstruction,omitempty"`
	Contents          []GeminiContent `json:"contents"`
	GenerationConfig  GeminiConfig    `json:"generationConfig"`
}

type GeminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []GeminiPart `json:"parts"`
}

type GeminiPart struct {
	Text string `json:"text"`
}

type GeminiConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type GeminiResponse struct {
	Candidates []GeminiCandidate `json:"candidates"`
}

type GeminiCandidate struct {
	Content GeminiContent `json:"content"`
}

func NewChatService(apiKey, model string, logger *zap.Logger) *ChatService {
	if model == "" {
		model = defaultChatModel
	}
	return &ChatService{
		apiKey:  apiKey,
		model:   model,
		baseURL: "https://generativelanguage.googleapis.com/v1beta/models/",
		client:  &http.Client{Timeout: 20 * time.Second},
		logger:  logger.With(zap.String("service", "chat")),
	}
}

// Reply answers one chat turn. Escalation requests short-circuit; otherwise
// Gemini is asked when configured and the keyword responder covers the rest.
func (s *ChatService) Reply(ctx context.Context, actor Actor, req ChatRequest) (*ChatReply, error) {
	if err := requireUser(actor); err != nil {
		return nil, err
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, invalid("message", "is required")
	}
	if len(message) > maxChatMessage {
		return nil, invalid("message", fmt.Sprintf("must be at most %d characters", maxChatMessage))
	}

	if wantsHuman(message) {
		return &ChatReply{Reply: EscalationReply, Source: "rules"}, nil
	}

	if s.apiKey != "" {
		reply, err := s.generate(ctx, message, req.History)
		if err == nil {
			return &ChatReply{Reply: reply, Source: "ai"}, nil
		}
		s.logger.Warn("AI chat failed, using fallback", zap.Error(err))
	}
	return &ChatReply{Reply: fallbackReply(message), Source: "rules"}, nil
}

func (s *ChatService) generate(ctx context.Context, message string, history []ChatMessage) (string, error) {
	if len(history) > maxChatHistory {
		history = history[len(history)-maxChatHistory:]
	}
	contents := make([]GeminiContent, 0, len(history)+1)
	for _, h := range history {
		role := "user"
		if h.Role == "assistant" {
			role = "model"
		}
		contents = append(contents, GeminiContent{Role: role, Parts: []GeminiPart{{Text: h.Content}}})
	}
	contents = append(contents, GeminiContent{Role: "user", Parts: []GeminiPart{{Text: message}}})

	reqBody := GeminiRequest{
		SystemInstruction: &GeminiContent{Parts: []GeminiPart{{Text: chatSystemPrompt}}},
		Contents:          contents,
		GenerationConfig:  GeminiConfig{Temperature: 0.3, MaxOutputTokens: 600},
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	// Keep the key out of the URL; transport errors quote it.
	url := s.baseURL + s.model + ":generateContent"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(geminiKeyHeader, s.apiKey)

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("AI request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API error: %d - %s", resp.StatusCode, string(body))
	}

	var geminiResp GeminiResponse
	if err := json.Unmarshal(body, &geminiResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(geminiResp.Candidates) == 0 || len(geminiResp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no response from AI")
	}

	reply := strings.TrimSpace(geminiResp.Candidates[0].Content.Parts[0].Text)
	if reply == "" {
		return "", fmt.Errorf("empty response from AI")
	}
	if strings.Contains(reply, EscalationReply) {
		return EscalationReply, nil
	}
	return reply, nil
}

var humanPhrases = []string{
	"speak to a person", "talk to a person", "speak to someone", "talk to someone",
	"real person", "human", "live agent", "talk to an agent", "speak to an agent",
}

// humanPattern matches the phrases as whole words, so "humanities" stays a normal question.
var humanPattern = func() *regexp.Regexp {
	quoted := make([]string, len(humanPhrases))
	for i, phrase := range humanPhrases {
		quoted[i] = regexp.QuoteMeta(phrase)
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
}()

func wantsHuman(message string) bool {
	return humanPattern.MatchString(message)
}

var fallbackAnswers = []struct {
	keywords []string
	answer   string
}{
	{
		keywords: []string{"report", "submit"},
		answer:   "To report a suspicious e-mail, open Report Phishing, paste the subject, sender and body, attach the original message if you can, and submit. Our security team reviews every report.",
	},
	{
		keywords: []string{"password", "credential", "login"},
		answer:   "Never share your password by e-mail. If you entered it on a suspicious page, change it right away from a device you trust and let the IT help desk know.",
	},
	{
		keywords: []string{"link", "url", "click"},
		answer:   "Hover over links before clicking to see the real destination. Shortened links and look-alike domains are common phishing tricks. If you already clicked, report the e-mail and change your password.",
	},
	{
		keywords: []string{"attachment", "download", "file"},
		answer:   "Do not open unexpected attachments, even from people you know. Report the e-mail and attach the original so the team can inspect it safely.",
	},
	{
		keywords: []string{"phish", "scam", "suspicious", "spam"},
		answer:   "Phishing e-mails often create urgency, ask you to verify an account, or come from free mail addresses pretending to be the university. When in doubt, do not reply and submit a report.",
	},
}

const defaultFallbackAnswer = "I can help with questions about phishing, suspicious e-mails, passwords and how to submit a report. What would you like to know?"

func fallbackReply(message string) string {
	lower := strings.ToLower(message)
	for _, entry := range fallbackAnswers {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				return entry.answer
			}
		}
	}
	return defaultFallbackAnswer
}
