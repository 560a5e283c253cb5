package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	sdkHttp "github.com/hashicorp/calview/sdk/http"
	"github.com/hashicorp/calview/sdk/id"
	"github.com/hashicorp/go-hclog"
)

const (
	// AnchorMailboxHeader routes a request to the backend serving the mailbox.
	AnchorMailboxHeader = "X-AnchorMailbox"

	// PreferHeader carries API preferences, one key="value" pair per line.
	PreferHeader = "Prefer"

	// CalendarViewSelect is the set of event fields CalendarView asks for.
	CalendarViewSelect = "Subject,Organizer,Start,End,Location,WebLink,OnlineMeetingUrl"

	// TimeFormat is the layout of the calendar view window bounds.
	TimeFormat = "2006-01-02T15:04:05.000Z"
)

// Client calls the calendar API on a user's behalf. A Client holds no user
// state and is safe for concurrent use.
type Client struct {
	endpoint  string
	client    *http.Client
	userAgent string
	logger    hclog.Logger
	maxPages  int
	pageSize  int
}

// NewClient creates a Client.
// Supported options:
//	WithEndpoint
//	WithHTTPClient
//	WithCACert
//	WithUserAgent
//	WithLogger
//	WithMaxPages
//	WithPageSize
func NewClient(opt ...Option) (*Client, error) {
	const op = "calendar.NewClient"
	opts := getOpts(opt...)

	u, err := url.Parse(opts.withEndpoint)
	switch {
	case err != nil:
		return nil, fmt.Errorf("%s: endpoint %q: %v: %w", op, opts.withEndpoint, err, ErrInvalidParameter)
	case u.Scheme != "https" && u.Scheme != "http", u.Host == "":
		return nil, fmt.Errorf("%s: endpoint %q is not an http(s) URL: %w", op, opts.withEndpoint, ErrInvalidParameter)
	}
	if opts.withMaxPages <= 0 {
		return nil, fmt.Errorf("%s: max pages must be greater than zero: %w", op, ErrInvalidParameter)
	}
	if opts.withPageSize < 0 {
		return nil, fmt.Errorf("%s: page size cannot be negative: %w", op, ErrInvalidParameter)
	}

	client := opts.withHTTPClient
	if client == nil {
		// headers are set per call, so the transport doesn't add any
		client, err = sdkHttp.NewClient(opts.withCACert, "")
		if err != nil {
			return nil, fmt.Errorf("%s: unable to create http client: %v: %w", op, err, ErrInvalidParameter)
		}
	}
	return &Client{
		endpoint:  strings.TrimSuffix(opts.withEndpoint, "/"),
		client:    client,
		userAgent: opts.withUserAgent,
		logger:    opts.withLogger,
		maxPages:  opts.withMaxPages,
		pageSize:  opts.withPageSize,
	}, nil
}

// Endpoint returns the API base URL the client calls.
func (c *Client) Endpoint() string { return c.endpoint }

// Call issues one authenticated request to the API and returns the raw
// response; the caller must close its body and is responsible for inspecting
// its status. Every request carries the bearer token, the client's
// User-Agent, a fresh client-request-id and the anchorMailbox. prefer pairs
// are sent as one Prefer: key="value" line each, sorted by key. body is sent
// as JSON for POST and PATCH when not empty, and ignored otherwise.
//
// Call does not retry. An error is returned only when no response was
// received.
func (c *Client) Call(ctx context.Context, method, accessToken, apiURL, anchorMailbox string, body []byte, prefer map[string]string) (*http.Response, error) {
	const op = "calendar.(Client).Call"
	switch {
	case method == "":
		return nil, fmt.Errorf("%s: method is empty: %w", op, ErrInvalidParameter)
	case accessToken == "":
		return nil, fmt.Errorf("%s: access token is empty: %w", op, ErrInvalidParameter)
	case apiURL == "":
		return nil, fmt.Errorf("%s: url is empty: %w", op, ErrInvalidParameter)
	}
	method = strings.ToUpper(method)

	var reqBody io.Reader
	sendBody := (method == http.MethodPost || method == http.MethodPatch) && len(body) > 0
	if sendBody {
		reqBody = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, apiURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to create request: %v: %w", op, err, ErrInvalidParameter)
	}

	correlationId, err := id.NewCorrelationId()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set(sdkHttp.ClientRequestIdHeader, correlationId)
	req.Header.Set(sdkHttp.ReturnClientRequestIdHeader, "true")
	if anchorMailbox != "" {
		req.Header.Set(AnchorMailboxHeader, anchorMailbox)
	}
	for _, p := range preferLines(prefer) {
		req.Header.Add(PreferHeader, p)
	}
	if sendBody {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("calling calendar api", "method", method, "url", apiURL, "client_request_id", correlationId)
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("calendar api unreachable", "method", method, "url", apiURL, "client_request_id", correlationId, "error", err)
		return nil, fmt.Errorf("%s: %w", op, &ApiRequestError{Wrapped: err})
	}
	c.logger.Debug("calendar api responded", "status", resp.StatusCode, "client_request_id", correlationId, "request_id", resp.Header.Get("request-id"))
	return resp, nil
}

// CalendarView returns the first page of the user's events that overlap the
// [start, end) window, ordered by start time. Use CalendarViewAll to follow
// every page.
func (c *Client) CalendarView(ctx context.Context, accessToken, anchorMailbox string, start, end time.Time) ([]Event, error) {
	const op = "calendar.(Client).CalendarView"
	if end.Before(start) {
		return nil, fmt.Errorf("%s: window ends before it starts: %w", op, ErrInvalidParameter)
	}
	events, _, err := c.page(ctx, accessToken, anchorMailbox, c.CalendarViewURL(start, end))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return events, nil
}

// CalendarViewAll is CalendarView following @odata.nextLink until the last
// page, or until the client's max pages have been read. In the latter case
// the events read so far are returned. A next link to another scheme or host
// than the client's endpoint is an *ApiRequestError and is not followed.
func (c *Client) CalendarViewAll(ctx context.Context, accessToken, anchorMailbox string, start, end time.Time) ([]Event, error) {
	const op = "calendar.(Client).CalendarViewAll"
	if end.Before(start) {
		return nil, fmt.Errorf("%s: window ends before it starts: %w", op, ErrInvalidParameter)
	}
	var all []Event
	next := c.CalendarViewURL(start, end)
	for n := 0; next != ""; n++ {
		if n == c.maxPages {
			c.logger.Warn("calendar view page limit reached", "pages", n, "events", len(all))
			break
		}
		events, nextLink, err := c.page(ctx, accessToken, anchorMailbox, next)
		if err != nil {
			return nil, fmt.Errorf("%s: page %d: %w", op, n+1, err)
		}
		all = append(all, events...)
		if nextLink != "" {
			if err := c.sameOrigin(nextLink); err != nil {
				return nil, fmt.Errorf("%s: page %d: %w", op, n+1, err)
			}
		}
		next = nextLink
	}
	return all, nil
}

// sameOrigin checks that link is served by the client's endpoint, so the
// access token is never sent anywhere else.
func (c *Client) sameOrigin(link string) error {
	ep, err := url.Parse(c.endpoint)
	if err != nil {
		return &ApiRequestError{Wrapped: fmt.Errorf("unable to parse endpoint: %w", err)}
	}
	u, err := url.Parse(link)
	if err != nil {
		return &ApiRequestError{Message: "invalid @odata.nextLink", Wrapped: err}
	}
	if !strings.EqualFold(u.Scheme, ep.Scheme) || !strings.EqualFold(u.Host, ep.Host) {
		return &ApiRequestError{Message: fmt.Sprintf("@odata.nextLink %s://%s is not the endpoint's origin", u.Scheme, u.Host)}
	}
	return nil
}

// CalendarViewURL returns the calendar view request URL for the window. The
// bounds are sent in UTC.
func (c *Client) CalendarViewURL(start, end time.Time) string {
	return c.endpoint + "/Me/CalendarView" +
		"?startdatetime=" + start.UTC().Format(TimeFormat) +
		"&enddatetime=" + end.UTC().Format(TimeFormat) +
		"&$orderby=Start/DateTime" +
		"&$select=" + CalendarViewSelect
}

// calendarViewPage is one page of a calendar view response.
type calendarViewPage struct {
	NextLink string      `json:"@odata.nextLink"`
	Value    *[]apiEvent `json:"value"`
}

func (c *Client) page(ctx context.Context, accessToken, anchorMailbox, pageURL string) ([]Event, string, error) {
	prefer := map[string]string{"exchange.behavior": "onlinemeeting"}
	if c.pageSize > 0 {
		prefer["odata.maxpagesize"] = strconv.Itoa(c.pageSize)
	}
	resp, err := c.Call(ctx, http.MethodGet, accessToken, pageURL, anchorMailbox, nil, prefer)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", &ApiRequestError{StatusCode: resp.StatusCode, Wrapped: fmt.Errorf("unable to read response body: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", newStatusError(resp.StatusCode, body)
	}

	var p calendarViewPage
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, "", &ApiRequestError{StatusCode: resp.StatusCode, Body: body, Wrapped: fmt.Errorf("unable to decode response: %w", err)}
	}
	if p.Value == nil {
		return nil, "", &ApiRequestError{StatusCode: resp.StatusCode, Body: body, Message: "response has no value array"}
	}
	events := make([]Event, 0, len(*p.Value))
	for i, e := range *p.Value {
		ev, err := e.event()
		if err != nil {
			return nil, "", &ApiRequestError{StatusCode: resp.StatusCode, Body: body, Wrapped: fmt.Errorf("event %d: %w", i, err)}
		}
		events = append(events, ev)
	}
	return events, p.NextLink, nil
}

// preferLines formats prefer pairs as key="value", sorted by key.
func preferLines(prefer map[string]string) []string {
	if len(prefer) == 0 {
		return nil
	}
	keys := make([]string, 0, len(prefer))
	for k := range prefer {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf(`%s="%s"`, k, prefer[k]))
	}
	return lines
}
