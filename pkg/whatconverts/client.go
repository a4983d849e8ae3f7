// Package whatconverts provides a client for the WhatConverts leads API.
package whatconverts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadbridge/internal/phone"
)

// leads are looked up within a rolling window of this many days.
const lookbackDays = 399

// ErrNotFound is returned when no lead matches a lookup.
var ErrNotFound = errors.New("whatconverts: lead not found")

// ValueField names a monetary field that may be written back to a lead.
type ValueField string

const (
	SalesValue ValueField = "sales_value"
	QuoteValue ValueField = "quote_value"
)

// Lead is a captured inquiry record as returned by the leads API.
// All fields are read-only from this system's perspective except the
// two monetary value fields.
type Lead struct {
	LeadID           string            `json:"lead_id"`
	LeadType         string            `json:"lead_type"`
	LeadStatus       string            `json:"lead_status,omitempty"`
	LeadSource       string            `json:"lead_source,omitempty"`
	LeadMedium       string            `json:"lead_medium,omitempty"`
	Campaign         string            `json:"campaign,omitempty"`
	LandingPage      string            `json:"landing_page,omitempty"`
	ReferringURL     string            `json:"referring_url,omitempty"`
	ContactName      string            `json:"contact_name,omitempty"`
	FirstName        string            `json:"first_name,omitempty"`
	LastName         string            `json:"last_name,omitempty"`
	EmailAddress     string            `json:"email_address,omitempty"`
	Email            string            `json:"email,omitempty"`
	PhoneNumber      string            `json:"phone_number,omitempty"`
	CallerID         string            `json:"caller_id,omitempty"`
	Phone            string            `json:"phone,omitempty"`
	CompanyName      string            `json:"company_name,omitempty"`
	Address          string            `json:"address,omitempty"`
	Street           string            `json:"street,omitempty"`
	Address2         string            `json:"address_2,omitempty"`
	City             string            `json:"city,omitempty"`
	State            string            `json:"state,omitempty"`
	Zip              string            `json:"zip,omitempty"`
	PostalCode       string            `json:"postal_code,omitempty"`
	Country          string            `json:"country,omitempty"`
	QuotedService    string            `json:"quoted_service,omitempty"`
	ServiceType      string            `json:"service_type,omitempty"`
	AdditionalFields map[string]string `json:"additional_fields,omitempty"`
	FormData         map[string]string `json:"form_data,omitempty"`
	Transcript       string            `json:"transcript,omitempty"`
	Keywords         string            `json:"keywords,omitempty"`
	LeadValue        *float64          `json:"lead_value,omitempty"`
	QuoteValue       *float64          `json:"quote_value,omitempty"`
	SalesValue       *float64          `json:"sales_value,omitempty"`
}

// leadsResponse is the envelope the API wraps every read in.
type leadsResponse struct {
	Leads []Lead `json:"leads"`
}

// ContactQuery identifies a lead by contact info within a profile.
type ContactQuery struct {
	ProfileID int64
	Phone     string
	Email     string
}

// Client defines the WhatConverts leads API operations.
type Client interface {
	// FindLeadByContact looks up a unique-status lead created within
	// the lookback window, trying phone first and falling back to
	// email. Returns ErrNotFound when no strategy matches.
	FindLeadByContact(ctx context.Context, q ContactQuery) (*Lead, error)
	// ReadLead fetches exactly one lead by identifier.
	ReadLead(ctx context.Context, id string) (*Lead, error)
	// UpdateLeadValue writes the given total to a monetary field on
	// the lead via a form-encoded POST.
	UpdateLeadValue(ctx context.Context, id string, field ValueField, total float64) error
	// IncrementValue adds delta to the lead's current value for the
	// field (absent counts as zero) and persists the new total.
	IncrementValue(ctx context.Context, lead *Lead, field ValueField, delta float64) (float64, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the leads endpoint base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithNow overrides the clock used for the lookback window (testing).
func WithNow(now func() time.Time) Option {
	return func(c *httpClient) {
		c.now = now
	}
}

type httpClient struct {
	token   string
	secret  string
	baseURL string
	http    *http.Client
	now     func() time.Time
}

// NewClient creates a WhatConverts client authenticating with the
// given API token and secret (Basic auth).
func NewClient(token, secret, baseURL string, opts ...Option) Client {
	c := &httpClient{
		token:   token,
		secret:  secret,
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// startDate returns the window start in ISO-8601 UTC without
// fractional seconds, as the leads API requires.
func (c *httpClient) startDate() string {
	return c.now().UTC().AddDate(0, 0, -lookbackDays).Format("2006-01-02T15:04:05Z")
}

func (c *httpClient) FindLeadByContact(ctx context.Context, q ContactQuery) (*Lead, error) {
	// Ordered lookup strategies: phone first (only when it parses as
	// a valid US number), then email. First non-empty result wins.
	var lookups []url.Values

	if q.Phone != "" {
		if num, err := phone.Normalize(q.Phone); err == nil {
			lookups = append(lookups, url.Values{"phone_number": {num.E164}})
		} else {
			zap.L().Debug("skipping phone lookup, number invalid",
				zap.String("phone", q.Phone))
		}
	}
	if q.Email != "" {
		lookups = append(lookups, url.Values{"email_address": {q.Email}})
	}

	for _, params := range lookups {
		params.Set("lead_status", "unique")
		params.Set("profile_id", fmt.Sprintf("%d", q.ProfileID))
		params.Set("start_date", c.startDate())

		var resp leadsResponse
		if err := c.get(ctx, "?"+params.Encode(), &resp); err != nil {
			return nil, eris.Wrap(err, "whatconverts: lead lookup")
		}
		if len(resp.Leads) > 0 {
			return &resp.Leads[0], nil
		}
	}

	return nil, ErrNotFound
}

func (c *httpClient) ReadLead(ctx context.Context, id string) (*Lead, error) {
	var resp leadsResponse
	if err := c.get(ctx, "/"+url.PathEscape(id), &resp); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("whatconverts: read lead %s", id))
	}
	if len(resp.Leads) == 0 {
		return nil, eris.Wrap(ErrNotFound, fmt.Sprintf("whatconverts: lead %s", id))
	}
	return &resp.Leads[0], nil
}

func (c *httpClient) UpdateLeadValue(ctx context.Context, id string, field ValueField, total float64) error {
	form := url.Values{}
	form.Set(string(field), fmt.Sprintf("%g", total))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/"+url.PathEscape(id), strings.NewReader(form.Encode()))
	if err != nil {
		return eris.Wrap(err, "whatconverts: create update request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.token, c.secret)

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, fmt.Sprintf("whatconverts: update lead %s", id))
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return eris.Errorf("whatconverts: update lead %s: status %d: %s",
			id, resp.StatusCode, string(body))
	}
	return nil
}

func (c *httpClient) IncrementValue(ctx context.Context, lead *Lead, field ValueField, delta float64) (float64, error) {
	var current float64
	switch field {
	case QuoteValue:
		if lead.QuoteValue != nil {
			current = *lead.QuoteValue
		}
	default:
		if lead.SalesValue != nil {
			current = *lead.SalesValue
		}
	}

	total := current + delta
	if err := c.UpdateLeadValue(ctx, lead.LeadID, field, total); err != nil {
		return 0, err
	}
	return total, nil
}

func (c *httpClient) get(ctx context.Context, pathAndQuery string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+pathAndQuery, nil)
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(c.token, c.secret)

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "execute request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "read response body")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return eris.Errorf("status %d: %s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrap(err, "unmarshal response")
	}
	return nil
}
