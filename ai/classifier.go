package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://api.groq.com/openai/v1"

// Input longer than this is trimmed to its head and tail; the middle of a
// page rarely changes the verdict.
const (
	maxPromptChars  = 5000
	promptHeadChars = 3000
	promptTailChars = 2000
)

var (
	// ErrRateLimited: every configured key answered HTTP 429.
	ErrRateLimited = errors.New("classifier rate limited on all keys")
	// ErrMalformed: the model answered, but not with the JSON we asked for.
	ErrMalformed = errors.New("classifier returned malformed output")
)

// Classifier grades page content against fixed risk categories through an
// OpenAI-compatible chat completions API. Multiple API keys are rotated when
// the provider rate-limits.
type Classifier struct {
	Keys       []string
	HTTPClient *http.Client
	Model      string
	BaseURL    string

	limiter *rate.Limiter
	mu      sync.Mutex
	keyIdx  int
}

// Chat completions request/response structures (OpenAI wire shape).
type CompletionRequest struct {
	Model          string              `json:"model"`
	Messages       []CompletionMessage `json:"messages"`
	Temperature    float32             `json:"temperature"`
	MaxTokens      int                 `json:"max_tokens,omitempty"`
	ResponseFormat *ResponseFormat     `json:"response_format,omitempty"`
}

type CompletionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ResponseFormat struct {
	Type string `json:"type"`
}

type CompletionResponse struct {
	Choices []CompletionChoice `json:"choices"`
	Error   *CompletionError   `json:"error,omitempty"`
}

type CompletionChoice struct {
	Message CompletionMessage `json:"message"`
}

type CompletionError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// Verdict is the structured classification of one page.
type Verdict struct {
	Sexual            int      `json:"sexual"`
	Violence          int      `json:"violence"`
	Hate              int      `json:"hate"`
	SelfHarm          int      `json:"self_harm"`
	Summary           string   `json:"summary"`
	Keywords          []string `json:"keywords"`
	ImpersonatedBrand string   `json:"impersonated_brand"`
}

// Safety folds the four 0-4 risk ratings into one [0,1] score.
func (v Verdict) Safety() float64 {
	total := 0.0
	for _, r := range []int{v.Sexual, v.Violence, v.Hate, v.SelfHarm} {
		total += float64(4-clampRating(r)) / 4
	}
	return total / 4
}

// Impersonating reports whether the model named a brand the page imitates.
func (v Verdict) Impersonating() bool {
	b := strings.ToLower(strings.TrimSpace(v.ImpersonatedBrand))
	return b != "" && b != "none" && b != "n/a" && b != "no"
}

// Global client instance
var (
	classifier     *Classifier
	classifierOnce sync.Once
)

// GetClassifier returns the singleton classifier, or nil when no API keys
// are configured (the AI module then abstains).
func GetClassifier() *Classifier {
	classifierOnce.Do(func() {
		keysEnv := os.Getenv("GROQ_API_KEYS")
		if keysEnv == "" {
			keysEnv = os.Getenv("GROQ_API_KEY")
		}
		var keys []string
		for _, k := range strings.Split(keysEnv, ",") {
			if k = strings.TrimSpace(k); k != "" {
				keys = append(keys, k)
			}
		}
		if len(keys) == 0 {
			return
		}
		classifier = NewClassifier(keys, os.Getenv("GROQ_MODEL"))
	})
	return classifier
}

// NewClassifier builds a classifier over the given keys. An empty model
// picks the default.
func NewClassifier(keys []string, model string) *Classifier {
	if model == "" {
		model = "llama-3.3-70b-versatile"
	}
	return &Classifier{
		Keys:       keys,
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
		Model:      model,
		BaseURL:    defaultBaseURL,
		limiter:    rate.NewLimiter(rate.Every(3*time.Second), 2),
	}
}

// Classify grades the page text. Every configured key is tried once when the
// provider rate-limits; exhausting them returns ErrRateLimited so callers
// can treat the condition as "no data" rather than a failure.
func (c *Classifier) Classify(ctx context.Context, pageURL, text string) (Verdict, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return Verdict{}, fmt.Errorf("limiter: %w", err)
	}

	reqBody := CompletionRequest{
		Model: c.Model,
		Messages: []CompletionMessage{
			{Role: "system", Content: ClassifySystemPrompt},
			{Role: "user", Content: fmt.Sprintf(ClassifyUserPrompt, pageURL, TruncateForPrompt(text))},
		},
		Temperature:    0.1,
		MaxTokens:      1024,
		ResponseFormat: &ResponseFormat{Type: "json_object"},
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return Verdict{}, fmt.Errorf("marshal request: %w", err)
	}

	for tries := 0; tries < len(c.Keys); tries++ {
		content, status, err := c.complete(ctx, jsonData)
		if err != nil {
			return Verdict{}, err
		}
		if status == http.StatusTooManyRequests {
			c.rotateKey()
			continue
		}
		if status != http.StatusOK {
			return Verdict{}, fmt.Errorf("classifier API error (status %d)", status)
		}
		return parseVerdict(content)
	}
	return Verdict{}, ErrRateLimited
}

// complete performs one API call with the current key. The response body is
// returned for 200s; other statuses surface only the code.
func (c *Classifier) complete(ctx context.Context, body []byte) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.currentKey())

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return "", resp.StatusCode, nil
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, fmt.Errorf("read response: %w", err)
	}

	var response CompletionResponse
	if err := json.Unmarshal(raw, &response); err != nil {
		return "", 0, fmt.Errorf("unmarshal response: %w", err)
	}
	if response.Error != nil {
		return "", 0, fmt.Errorf("classifier API error: %s", response.Error.Message)
	}
	if len(response.Choices) == 0 {
		return "", 0, fmt.Errorf("empty response from classifier API")
	}
	return response.Choices[0].Message.Content, http.StatusOK, nil
}

func (c *Classifier) currentKey() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Keys[c.keyIdx%len(c.Keys)]
}

func (c *Classifier) rotateKey() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keyIdx = (c.keyIdx + 1) % len(c.Keys)
}

func parseVerdict(content string) (Verdict, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var v Verdict
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &v); err != nil {
		return Verdict{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	v.Sexual = clampRating(v.Sexual)
	v.Violence = clampRating(v.Violence)
	v.Hate = clampRating(v.Hate)
	v.SelfHarm = clampRating(v.SelfHarm)
	return v, nil
}

func clampRating(r int) int {
	if r < 0 {
		return 0
	}
	if r > 4 {
		return 4
	}
	return r
}

// TruncateForPrompt trims oversized page text to its head and tail.
func TruncateForPrompt(text string) string {
	if len(text) <= maxPromptChars {
		return text
	}
	return text[:promptHeadChars] + " ... " + text[len(text)-promptTailChars:]
}

// Block pages are short; long documents that merely mention a captcha
// vendor should not trip this.
const blockPageMaxChars = 2500

var blockSignatures = []string{
	"attention required! | cloudflare",
	"checking your browser before accessing",
	"enable javascript and cookies to continue",
	"verify you are human",
	"access denied",
	"bot protection",
	"complete the captcha",
	"recaptcha",
	"hcaptcha",
}

// LooksBlocked reports whether extracted page text is a bot-protection
// challenge rather than real content. Such pages carry no signal about the
// site itself, so the AI module abstains instead of scoring them.
func LooksBlocked(text string) bool {
	if len(text) > blockPageMaxChars {
		return false
	}
	lower := strings.ToLower(text)
	for _, sig := range blockSignatures {
		if strings.Contains(lower, sig) {
			return true
		}
	}
	return false
}
