// Package coverletters is the client for the cover letter generation
// API. It follows the same two-endpoint contract as resume generation:
// submit content, poll the task until it settles.
package coverletters

import (
	"context"
	"net/http"
	"time"

	goerrors "github.com/goliatone/go-errors"

	auth "github.com/autoresum/autoresum-go"
)

const (
	routeGenerate        = "cover-letter/generate"
	routeGenerated       = "cover-letter/generated/"
	routeGenerateUpdate  = "cover-letter/generate/update/"
	routeGeneratedUpdate = "cover-letter/generated/update/"
	routeCoverLetter     = "cover-letter/"
	routeUpdate          = "cover-letter/update/"
)

const DefaultPollInterval = 3 * time.Second

// GeneratePayload describes the job the letter is written for.
type GeneratePayload struct {
	JobTitle       string   `json:"job_title"`
	CompanyName    string   `json:"company_name"`
	JobDescription string   `json:"job_description"`
	Tone           string   `json:"tone,omitempty"`
	Highlights     []string `json:"highlights,omitempty"`
	ResumeID       string   `json:"resume_id,omitempty"`
}

// CoverLetter mirrors the backend's cover letter document.
type CoverLetter struct {
	ID          auth.FlexID `json:"id,omitempty"`
	JobTitle    string      `json:"job_title,omitempty"`
	CompanyName string      `json:"company_name,omitempty"`
	Content     string      `json:"content,omitempty"`
	PDFURL      string      `json:"pdf_url,omitempty"`
	CreatedAt   *time.Time  `json:"created_at,omitempty"`
	ModifiedAt  *time.Time  `json:"modified_at,omitempty"`
}

// JobResult is one poll of a generation task.
type JobResult struct {
	Status      string       `json:"status"`
	Message     string       `json:"message,omitempty"`
	TaskID      string       `json:"task_id,omitempty"`
	CoverLetter *CoverLetter `json:"cover_letter,omitempty"`
}

// Done reports whether the task has settled.
func (r JobResult) Done() bool {
	return r.Status == "Success" || r.Status == "Failed"
}

// Client rides the session transport and gate, same as the resume
// client.
type Client struct {
	transport    *auth.Transport
	gate         *auth.Gate
	pollInterval time.Duration
}

func NewClient(manager *auth.SessionManager) *Client {
	return &Client{
		transport:    manager.Transport(),
		gate:         manager.Gate(),
		pollInterval: DefaultPollInterval,
	}
}

func (c *Client) WithPollInterval(interval time.Duration) *Client {
	if interval > 0 {
		c.pollInterval = interval
	}
	return c
}

// Generate submits the job description and returns the task ID.
func (c *Client) Generate(ctx context.Context, payload GeneratePayload) (string, error) {
	var out struct {
		TaskID string `json:"cover_letter_task_id"`
	}
	err := c.transport.JSON(ctx, auth.Request{
		Method: http.MethodPost,
		Path:   routeGenerate,
		Body:   payload,
	}, &out)
	if err != nil {
		return "", err
	}
	if out.TaskID == "" {
		return "", goerrors.New("generate response missing task id", goerrors.CategoryOperation)
	}
	return out.TaskID, nil
}

// Result fetches the current state of a generation task once.
func (c *Client) Result(ctx context.Context, taskID string) (*JobResult, error) {
	var out JobResult
	err := c.gate.Do(ctx, func() error {
		return c.transport.JSON(ctx, auth.Request{
			Method: http.MethodGet,
			Path:   routeGenerated + taskID,
		}, &out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Await polls the task until it settles or ctx is cancelled.
func (c *Client) Await(ctx context.Context, taskID string) (*CoverLetter, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		result, err := c.Result(ctx, taskID)
		if err != nil {
			return nil, err
		}
		if result.Done() {
			if result.Status == "Failed" {
				message := result.Message
				if message == "" {
					message = "cover letter generation failed"
				}
				return nil, goerrors.New(message, goerrors.CategoryOperation).
					WithMetadata(map[string]any{"task_id": taskID})
			}
			return result.CoverLetter, nil
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil, goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "generation wait cancelled")
		}
	}
}

// Get fetches a single cover letter.
func (c *Client) Get(ctx context.Context, coverLetterID string) (*CoverLetter, error) {
	var out struct {
		CoverLetter *CoverLetter `json:"cover_letter"`
	}
	err := c.transport.JSON(ctx, auth.Request{
		Method: http.MethodGet,
		Path:   routeCoverLetter + coverLetterID,
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.CoverLetter == nil {
		return nil, goerrors.New("cover letter response missing document", goerrors.CategoryOperation)
	}
	return out.CoverLetter, nil
}

// Update edits cover letter fields directly, without regeneration.
func (c *Client) Update(ctx context.Context, coverLetterID string, fields map[string]any) (*CoverLetter, error) {
	var out struct {
		CoverLetter *CoverLetter `json:"cover_letter"`
	}
	err := c.transport.JSON(ctx, auth.Request{
		Method: http.MethodPatch,
		Path:   routeUpdate + coverLetterID,
		Body:   fields,
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.CoverLetter == nil {
		return nil, goerrors.New("cover letter response missing document", goerrors.CategoryOperation)
	}
	return out.CoverLetter, nil
}
