package client

import (
	"brokerage/pkg/model"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	callerHeader      = "X-User-ID"
	idempotencyHeader = "Idempotency-Key"
)

// APIError is a non-2xx answer from the visits service.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("visits api: %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// VisitClient calls the visits HTTP API on behalf of one caller.
type VisitClient struct {
	http   *HttpClient
	caller int64
}

func NewVisitClient(baseURL string) *VisitClient {
	return &VisitClient{http: NewHttpClient(baseURL)}
}

// As returns a client that identifies itself as userID.
func (c *VisitClient) As(userID int64) *VisitClient {
	return &VisitClient{http: c.http, caller: userID}
}

func (c *VisitClient) headers(extra map[string]string) map[string]string {
	h := make(map[string]string, len(extra)+1)
	if c.caller > 0 {
		h[callerHeader] = strconv.FormatInt(c.caller, 10)
	}
	for k, v := range extra {
		h[k] = v
	}
	return h
}

func (c *VisitClient) Create(ctx context.Context, input model.CreateVisitInput) (*model.Visit, error) {
	resp, err := c.http.POST(ctx, "/api/v1/visits", input, c.headers(nil))
	return decodeVisit(resp, err, http.StatusCreated)
}

// Schedule books a visit for the client's caller. A non-empty
// idempotencyKey makes retries replay the first answer.
func (c *VisitClient) Schedule(ctx context.Context, propertyID int64, at time.Time, idempotencyKey string) (*model.Visit, error) {
	var extra map[string]string
	if idempotencyKey != "" {
		extra = map[string]string{idempotencyHeader: idempotencyKey}
	}
	body := model.ScheduleVisitInput{PropertyID: propertyID, VisitDateTime: at}
	resp, err := c.http.POST(ctx, "/api/v1/visits/schedule", body, c.headers(extra))
	return decodeVisit(resp, err, http.StatusCreated)
}

func (c *VisitClient) Reschedule(ctx context.Context, id string, at time.Time) (*model.Visit, error) {
	resp, err := c.http.PATCH(ctx, visitPath(id, "/schedule"), model.RescheduleInput{VisitDateTime: at}, c.headers(nil))
	return decodeVisit(resp, err, http.StatusOK)
}

func (c *VisitClient) Assume(ctx context.Context, id string) (*model.Visit, error) {
	resp, err := c.http.POST(ctx, visitPath(id, "/assume"), nil, c.headers(nil))
	return decodeVisit(resp, err, http.StatusOK)
}

func (c *VisitClient) Cancel(ctx context.Context, id string) (*model.Visit, error) {
	resp, err := c.http.POST(ctx, visitPath(id, "/cancel"), nil, c.headers(nil))
	return decodeVisit(resp, err, http.StatusOK)
}

func (c *VisitClient) SetStatus(ctx context.Context, id string, status model.VisitStatus) (*model.Visit, error) {
	resp, err := c.http.PATCH(ctx, visitPath(id, "/status"), model.StatusInput{Status: status}, c.headers(nil))
	return decodeVisit(resp, err, http.StatusOK)
}

func (c *VisitClient) Get(ctx context.Context, id string) (*model.Visit, error) {
	resp, err := c.http.GET(ctx, visitPath(id, ""), c.headers(nil))
	return decodeVisit(resp, err, http.StatusOK)
}

func (c *VisitClient) Remove(ctx context.Context, id string) error {
	resp, err := c.http.DELETE(ctx, visitPath(id, ""), c.headers(nil))
	if err != nil {
		return err
	}
	return expect(resp, http.StatusNoContent)
}

func (c *VisitClient) ByCustomer(ctx context.Context, customerID int64, status model.VisitStatus) ([]*model.Visit, error) {
	path := "/api/v1/visits/customer/" + strconv.FormatInt(customerID, 10)
	if status != "" {
		path += "?status=" + url.QueryEscape(status.String())
	}
	resp, err := c.http.GET(ctx, path, c.headers(nil))
	if err != nil {
		return nil, err
	}
	if err := expect(resp, http.StatusOK); err != nil {
		return nil, err
	}

	var body struct {
		Data []*model.Visit `json:"data"`
	}
	if err := resp.DecodeJSON(&body); err != nil {
		return nil, fmt.Errorf("failed to decode visits: %w", err)
	}
	return body.Data, nil
}

func visitPath(id, suffix string) string {
	return "/api/v1/visits/id/" + url.PathEscape(id) + suffix
}

func decodeVisit(resp *Response, err error, want int) (*model.Visit, error) {
	if err != nil {
		return nil, err
	}
	if err := expect(resp, want); err != nil {
		return nil, err
	}

	var body struct {
		Data *model.Visit `json:"data"`
	}
	if err := resp.DecodeJSON(&body); err != nil {
		return nil, fmt.Errorf("failed to decode visit: %w", err)
	}
	return body.Data, nil
}

func expect(resp *Response, want int) error {
	if resp.StatusCode == want {
		return nil
	}
	apiErr := &APIError{StatusCode: resp.StatusCode, Message: GetErrorMessage(resp)}
	var errResp struct {
		Code string `json:"code"`
	}
	if resp.DecodeJSON(&errResp) == nil {
		apiErr.Code = errResp.Code
	}
	return apiErr
}
