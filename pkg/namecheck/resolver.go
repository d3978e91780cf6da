package namecheck

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gamerneson12-art/learnhub-portal/pkg/domain"
)

// Client calls the catalog's username check endpoint over HTTP. Its Check
// method satisfies Resolver, so wiring a live checker is one line:
//
//	c := namecheck.NewClient(baseURL, token)
//	checker := namecheck.New(c.Check)
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient constructs a username check client. token is the caller's
// bearer token; the endpoint rejects unauthenticated requests.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

// Check asks the catalog whether username is available.
func (c *Client) Check(ctx context.Context, username string) (domain.UsernameCheck, error) {
	endpoint := c.baseURL + "/username/check?name=" + url.QueryEscape(username)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.UsernameCheck{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.UsernameCheck{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode, Message: resp.Status}
		var body struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		if json.NewDecoder(resp.Body).Decode(&body) == nil && body.Error != "" {
			apiErr.Message = body.Error
			apiErr.Code = body.Code
		}
		return domain.UsernameCheck{}, apiErr
	}
	var result domain.UsernameCheck
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return domain.UsernameCheck{}, err
	}
	return result, nil
}

// APIError represents a check endpoint error response.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}
