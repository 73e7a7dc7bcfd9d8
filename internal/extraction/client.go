package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Request is the extraction job payload: a base64-encoded document plus
// the curriculum placement the extracted questions should carry.
type Request struct {
	Base64Data   string `json:"base64_data" binding:"required"`
	SourceType   string `json:"source_type" binding:"required,oneof=pdf image"`
	Chapter      string `json:"chapter,omitempty"`
	Unit         string `json:"unit,omitempty"`
	ChapterUnit  string `json:"chapter_unit,omitempty"`
	MaxQuestions int    `json:"max_questions,omitempty"`
}

// ExtractedQuestion is one question parsed out of the source document.
type ExtractedQuestion struct {
	QuestionText  string      `json:"question_text"`
	QuestionType  string      `json:"question_type"`
	Options       []string    `json:"options,omitempty"`
	CorrectAnswer interface{} `json:"correct_answer,omitempty"`
	Marks         float64     `json:"marks,omitempty"`
}

// Result is the extraction output returned to the requester.
type Result struct {
	Questions      []ExtractedQuestion `json:"questions"`
	SourceType     string              `json:"source_type"`
	ExtractedCount int                 `json:"extracted_count"`
}

// Client calls the external AI extraction service. The service is opaque:
// this client only handles transport, response parsing and the best-effort
// repair of truncated responses.
type Client struct {
	httpClient *http.Client
	url        string
	log        zerolog.Logger
}

// NewClient creates a Client for the given extraction endpoint.
func NewClient(url string, log zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		url:        url,
		log:        log.With().Str("component", "extraction_client").Logger(),
	}
}

// Extract sends one document to the extraction service and parses the
// returned question list. Each call is a pure function of its request:
// no shared state, safe to run from any number of workers.
func (c *Client) Extract(ctx context.Context, req Request) (*Result, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal extraction request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build extraction request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call extraction service: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read extraction response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("extraction service returned %d: %s", resp.StatusCode, truncateForError(raw))
	}

	questions, err := parseQuestions(raw)
	if err != nil {
		return nil, err
	}

	if req.MaxQuestions > 0 && len(questions) > req.MaxQuestions {
		questions = questions[:req.MaxQuestions]
	}

	c.log.Info().Str("source_type", req.SourceType).Int("extracted", len(questions)).Msg("Extraction complete")
	return &Result{
		Questions:      questions,
		SourceType:     req.SourceType,
		ExtractedCount: len(questions),
	}, nil
}

// parseQuestions accepts either a full Result object or a bare question
// array. Truncated JSON (the AI service cuts off mid-array from time to
// time) gets one repair pass; if that also fails the raw text is surfaced
// for diagnosis.
func parseQuestions(raw []byte) ([]ExtractedQuestion, error) {
	var result Result
	if err := json.Unmarshal(raw, &result); err == nil && result.Questions != nil {
		return result.Questions, nil
	}

	var questions []ExtractedQuestion
	if err := json.Unmarshal(raw, &questions); err == nil {
		return questions, nil
	}

	repaired, ok := RepairJSONArray(raw)
	if ok {
		if err := json.Unmarshal(repaired, &questions); err == nil {
			return questions, nil
		}
	}

	return nil, fmt.Errorf("extraction response is not valid JSON: %s", truncateForError(raw))
}

func truncateForError(raw []byte) string {
	const max = 512
	if len(raw) > max {
		return string(raw[:max]) + "..."
	}
	return string(raw)
}
