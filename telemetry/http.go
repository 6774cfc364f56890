package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/go-querystring/query"
	logger "github.com/sirupsen/logrus"
)

// FormSubmitter sends each record as a GET with the fields in the query
// string.
type FormSubmitter[T any] struct {
	base   string
	client *http.Client
}

func NewFormSubmitter[T any](base string, timeout time.Duration) *FormSubmitter[T] {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &FormSubmitter[T]{base: base, client: &http.Client{Timeout: timeout}}
}

func (f *FormSubmitter[T]) encode(category string, rec T) (string, error) {
	vals, err := query.Values(rec)
	if err != nil {
		return "", err
	}
	vals.Set("category", category)
	u, err := url.Parse(f.base)
	if err != nil {
		return "", err
	}
	u.RawQuery = vals.Encode()
	return u.String(), nil
}

func (f *FormSubmitter[T]) Submit(ctx context.Context, category string, batch []T) error {
	for _, rec := range batch {
		u, err := f.encode(category, rec)
		if err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		resp, err := f.client.Do(req)
		if err != nil {
			return fmt.Errorf("submit %v: %w", category, err)
		}
		resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			logger.Errorf("Failed to submit data HTTP [%v]", resp.Status)
			return fmt.Errorf("submit %v: HTTP %v", category, resp.Status)
		}
	}
	return nil
}
