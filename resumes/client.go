// Package resumes is the client for the resume generation API. Content
// generation is asynchronous on the backend: a generate call returns a
// task ID, and the generated endpoint is polled until the task settles.
package resumes

import (
	"context"
	"net/http"
	"time"

	goerrors "github.com/goliatone/go-errors"

	auth "github.com/autoresum/autoresum-go"
)

const (
	routeGenerate        = "resumes/generate"
	routeGenerated       = "resumes/generated/"
	routeGenerateUpdate  = "resumes/generate/update/"
	routeGeneratedUpdate = "resumes/generated/update/"
	routeList            = "resumes/list"
	routeResume          = "resumes/"
	routeUpdate          = "resumes/update/"
)

// DefaultPollInterval paces Await's polling loop.
const DefaultPollInterval = 3 * time.Second

// JobStatus is the generation task state reported by the backend.
type JobStatus string

const (
	JobPending JobStatus = "Pending"
	JobSuccess JobStatus = "Success"
	JobFailed  JobStatus = "Failed"
)

// GeneratePayload is the profile content the generator works from.
type GeneratePayload struct {
	FirstName      string           `json:"first_name"`
	LastName       string           `json:"last_name"`
	Email          string           `json:"email"`
	PhoneNumber    string           `json:"phone_number,omitempty"`
	WorkExperience []map[string]any `json:"work_experience"`
	Education      []map[string]any `json:"education,omitempty"`
	Languages      []map[string]any `json:"languages,omitempty"`
	Skills         []string         `json:"skills,omitempty"`
	Certifications []string         `json:"certifications,omitempty"`
}

// Resume mirrors the backend's resume document.
type Resume struct {
	ID             auth.FlexID      `json:"id,omitempty"`
	FirstName      string           `json:"first_name,omitempty"`
	LastName       string           `json:"last_name,omitempty"`
	Email          string           `json:"email,omitempty"`
	PhoneNumber    string           `json:"phone_number,omitempty"`
	WorkExperience []map[string]any `json:"work_experience,omitempty"`
	Education      []map[string]any `json:"education,omitempty"`
	Languages      []map[string]any `json:"languages,omitempty"`
	Skills         []string         `json:"skills,omitempty"`
	Certifications []string         `json:"certifications,omitempty"`
	Summary        string           `json:"resume_summary,omitempty"`
	Content        string           `json:"original_content,omitempty"`
	PDFURL         string           `json:"pdf_url,omitempty"`
	CreatedAt      *time.Time       `json:"created_at,omitempty"`
	ModifiedAt     *time.Time       `json:"modified_at,omitempty"`
}

// JobResult is one poll of a generation task.
type JobResult struct {
	Status  JobStatus `json:"status"`
	Message string    `json:"message,omitempty"`
	TaskID  string    `json:"task_id,omitempty"`
	Resume  *Resume   `json:"resume,omitempty"`
}

// Done reports whether the task has settled.
func (r JobResult) Done() bool {
	return r.Status == JobSuccess || r.Status == JobFailed
}

// Client calls the resume endpoints through the shared session
// transport and gate, so polling competes for the same concurrency
// budget as every other authenticated call.
type Client struct {
	transport    *auth.Transport
	gate         *auth.Gate
	pollInterval time.Duration
}

// NewClient builds a resume client from the session manager's shared
// transport and gate.
func NewClient(manager *auth.SessionManager) *Client {
	return &Client{
		transport:    manager.Transport(),
		gate:         manager.Gate(),
		pollInterval: DefaultPollInterval,
	}
}

// WithPollInterval overrides the Await polling cadence.
func (c *Client) WithPollInterval(interval time.Duration) *Client {
	if interval > 0 {
		c.pollInterval = interval
	}
	return c
}

// Generate submits profile content and returns the generation task ID.
func (c *Client) Generate(ctx context.Context, payload GeneratePayload) (string, error) {
	var out struct {
		TaskID string `json:"resume_content_id"`
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

// Await polls the task at the configured interval until it settles or
// ctx is cancelled. A failed task returns the backend's message as an
// error; the caller decides whether to resubmit.
func (c *Client) Await(ctx context.Context, taskID string) (*Resume, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		result, err := c.Result(ctx, taskID)
		if err != nil {
			return nil, err
		}
		if result.Done() {
			if result.Status == JobFailed {
				return nil, goerrors.New(jobFailureMessage(result), goerrors.CategoryOperation).
					WithMetadata(map[string]any{"task_id": taskID})
			}
			return result.Resume, nil
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil, goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "generation wait cancelled")
		}
	}
}

// GenerateUpdate submits new content for an existing resume and
// returns the update task ID.
func (c *Client) GenerateUpdate(ctx context.Context, resumeID string, payload GeneratePayload) (string, error) {
	var out struct {
		TaskID string `json:"resume_content_id"`
	}
	err := c.transport.JSON(ctx, auth.Request{
		Method: http.MethodPost,
		Path:   routeGenerateUpdate + resumeID,
		Body:   payload,
	}, &out)
	if err != nil {
		return "", err
	}
	if out.TaskID == "" {
		return "", goerrors.New("update response missing task id", goerrors.CategoryOperation)
	}
	return out.TaskID, nil
}

// UpdateResult fetches the state of an update task once.
func (c *Client) UpdateResult(ctx context.Context, taskID string) (*JobResult, error) {
	var out JobResult
	err := c.gate.Do(ctx, func() error {
		return c.transport.JSON(ctx, auth.Request{
			Method: http.MethodGet,
			Path:   routeGeneratedUpdate + taskID,
		}, &out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// List returns the caller's resumes.
func (c *Client) List(ctx context.Context) ([]Resume, error) {
	var out struct {
		Resumes []Resume `json:"resumes"`
	}
	err := c.transport.JSON(ctx, auth.Request{
		Method: http.MethodGet,
		Path:   routeList,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.Resumes, nil
}

// Get fetches a single resume.
func (c *Client) Get(ctx context.Context, resumeID string) (*Resume, error) {
	var out struct {
		Resume *Resume `json:"resume"`
	}
	err := c.transport.JSON(ctx, auth.Request{
		Method: http.MethodGet,
		Path:   routeResume + resumeID,
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.Resume == nil {
		return nil, goerrors.New("resume response missing document", goerrors.CategoryOperation)
	}
	return out.Resume, nil
}

// Update edits resume fields directly, without regeneration.
func (c *Client) Update(ctx context.Context, resumeID string, fields map[string]any) (*Resume, error) {
	var out struct {
		Resume *Resume `json:"resume"`
	}
	err := c.transport.JSON(ctx, auth.Request{
		Method: http.MethodPatch,
		Path:   routeUpdate + resumeID,
		Body:   fields,
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.Resume == nil {
		return nil, goerrors.New("resume response missing document", goerrors.CategoryOperation)
	}
	return out.Resume, nil
}

func jobFailureMessage(result *JobResult) string {
	if result.Message != "" {
		return result.Message
	}
	return "resume generation failed"
}
