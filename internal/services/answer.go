package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"pinky-backend/internal/models"
)

var errNullAnswer = errors.New("answer service returned a null body")

// AnswerClient talks to the remote answer service: one JSON POST per question.
type AnswerClient struct {
	endpoint   string
	httpClient *http.Client
	legacy     bool
}

// NewAnswerClient builds a client for endpoint. A zero timeout means the
// request waits as long as the service takes. When legacy is set the
// Spanish wire keys of the deployed backend are used.
func NewAnswerClient(endpoint string, timeout time.Duration, legacy bool) *AnswerClient {
	return &AnswerClient{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
		legacy:     legacy,
	}
}

type answerRequest struct {
	Question string `json:"question"`
}

type answerResponse struct {
	Answer string `json:"answer"`
	Source string `json:"source"`
	Image  string `json:"image"`
}

type legacyAnswerRequest struct {
	Pregunta string `json:"pregunta"`
}

type legacyAnswerResponse struct {
	Respuesta string `json:"respuesta"`
	Fuente    string `json:"fuente"`
	Imagen    string `json:"imagen"`
}

// Ask sends question verbatim and decodes the reply.
func (c *AnswerClient) Ask(ctx context.Context, question string) (models.Answer, error) {
	var payload interface{} = answerRequest{Question: question}
	if c.legacy {
		payload = legacyAnswerRequest{Pregunta: question}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return models.Answer{}, fmt.Errorf("failed to encode question: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return models.Answer{}, fmt.Errorf("failed to build answer request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.Answer{}, fmt.Errorf("answer service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return models.Answer{}, fmt.Errorf("answer service returned status %d", resp.StatusCode)
	}

	if c.legacy {
		var out *legacyAnswerResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return models.Answer{}, fmt.Errorf("failed to decode answer: %w", err)
		}
		if out == nil {
			return models.Answer{}, errNullAnswer
		}
		return models.Answer{Text: out.Respuesta, Source: models.ParseSource(out.Fuente), Image: out.Imagen}, nil
	}

	var out *answerResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return models.Answer{}, fmt.Errorf("failed to decode answer: %w", err)
	}
	if out == nil {
		return models.Answer{}, errNullAnswer
	}
	return models.Answer{Text: out.Answer, Source: models.ParseSource(out.Source), Image: out.Image}, nil
}
