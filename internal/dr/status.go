package dr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/sethvargo/go-retry"
)

const (
	statusCompleted = "COMPLETED"
	statusError     = "ERROR"
	statusAborted   = "ABORTED"
)

// StatusError is returned when an async job ends in ERROR or ABORTED.
type StatusError struct {
	StatusID string
	Status   string
	Message  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("async job %s ended with status %s: %s", e.StatusID, e.Status, e.Message)
}

type statusResponse struct {
	StatusID string `json:"statusId"`
	Status   string `json:"status"`
	Message  string `json:"message"`
}

func statusPath(id string) string {
	return "status/" + url.PathEscape(id) + "/"
}

// WaitForStatus polls an async status URL until the job completes. DataRobot answers
// 303 See Other once the job's resource exists.
func (c *Client) WaitForStatus(ctx context.Context, statusURL string) error {
	backoff := retry.WithMaxDuration(c.statusTimeout, retry.NewConstant(c.statusPollInterval))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		resp, reqURL, err := c.doRaw(ctx, http.MethodGet, statusURL, nil, nil)
		if err != nil {
			return retry.RetryableError(err)
		}
		if resp.StatusCode == http.StatusSeeOther {
			return nil
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			apiErr := &APIError{Method: http.MethodGet, URL: reqURL, StatusCode: resp.StatusCode, Body: string(resp.Body)}
			if resp.StatusCode >= 500 {
				return retry.RetryableError(apiErr)
			}
			return apiErr
		}

		var st statusResponse
		if err := json.Unmarshal(resp.Body, &st); err != nil {
			return fmt.Errorf("failed to unmarshal status from %s: %w", reqURL, err)
		}
		switch strings.ToUpper(st.Status) {
		case statusCompleted:
			return nil
		case statusError, statusAborted:
			return &StatusError{StatusID: st.StatusID, Status: st.Status, Message: st.Message}
		default:
			c.logger.Debug("waiting for async job", "status_url", reqURL, "status", st.Status)
			return retry.RetryableError(fmt.Errorf("job still %s", st.Status))
		}
	})
	if err != nil {
		return fmt.Errorf("waiting for %s: %w", statusURL, err)
	}
	return nil
}

// ProcessingError is returned when a dataset's ingest ended in ERROR.
type ProcessingError struct {
	DatasetID string
	State     string
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("dataset %s ended processing with state %s", e.DatasetID, e.State)
}

// WaitForDataset polls a dataset until it is no longer ingesting and returns it. It is
// used for datasets whose creation job is no longer known, e.g. one left behind by an
// earlier run that stopped waiting.
func (c *Client) WaitForDataset(ctx context.Context, id string) (*Dataset, error) {
	backoff := retry.WithMaxDuration(c.statusTimeout, retry.NewConstant(c.statusPollInterval))

	var ds *Dataset
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		got, err := c.GetDataset(ctx, id)
		if err != nil {
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.StatusCode < 500 {
				return err
			}
			return retry.RetryableError(err)
		}
		switch {
		case got.Ingesting():
			c.logger.Debug("waiting for dataset ingest", "dataset_id", id, "state", got.ProcessingState)
			return retry.RetryableError(fmt.Errorf("dataset still %s", got.ProcessingState))
		case strings.EqualFold(got.ProcessingState, ProcessingFailed):
			return &ProcessingError{DatasetID: id, State: got.ProcessingState}
		}
		ds = got
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("waiting for dataset %s: %w", id, err)
	}
	return ds, nil
}
