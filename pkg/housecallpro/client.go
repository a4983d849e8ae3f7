// Package housecallpro provides a client for the HouseCall Pro API.
package housecallpro

import (
	"bytes"
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
	"golang.org/x/time/rate"
)

// Default base URL for the HouseCall Pro API.
const defaultBaseURL = "https://api.housecallpro.com"

// ErrNotFound is returned when a customer search yields no match.
var ErrNotFound = errors.New("housecallpro: customer not found")

// APIError is returned when HouseCall Pro responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("housecallpro: HTTP %d: %s", e.StatusCode, e.Body)
}

// Address is a customer service address.
type Address struct {
	Street      string `json:"street,omitempty"`
	StreetLine2 string `json:"street_line_2,omitempty"`
	City        string `json:"city,omitempty"`
	State       string `json:"state,omitempty"`
	Zip         string `json:"zip,omitempty"`
	Country     string `json:"country,omitempty"`
	Type        string `json:"type,omitempty"`
}

// Customer is an HCP contact record.
type Customer struct {
	ID                   string    `json:"id"`
	FirstName            string    `json:"first_name,omitempty"`
	LastName             string    `json:"last_name,omitempty"`
	Email                string    `json:"email,omitempty"`
	MobileNumber         string    `json:"mobile_number,omitempty"`
	Company              string    `json:"company,omitempty"`
	NotificationsEnabled bool      `json:"notifications_enabled"`
	Addresses            []Address `json:"addresses,omitempty"`
}

// CustomerInput carries the fields used to create or update a customer.
// Name is a combined fallback split on the first space when explicit
// first/last names are absent.
type CustomerInput struct {
	FirstName            string
	LastName             string
	Name                 string
	Email                string
	MobileNumber         string
	Company              string
	NotificationsEnabled *bool
	Address              *Address
}

// Schedule is an optional job schedule window.
type Schedule struct {
	ArrivalWindow  string `json:"arrival_window,omitempty"`
	ScheduledStart string `json:"scheduled_start,omitempty"`
	ScheduledEnd   string `json:"scheduled_end,omitempty"`
}

// Job is an HCP job record.
type Job struct {
	ID          string   `json:"id"`
	CustomerID  string   `json:"customer_id"`
	Description string   `json:"description,omitempty"`
	LeadSource  string   `json:"lead_source,omitempty"`
	WorkStatus  string   `json:"work_status,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// JobInput carries the fields used to create a job.
type JobInput struct {
	Description string
	LeadSource  string
	WorkStatus  string
	Tags        []string
	Schedule    *Schedule
}

// LineItem is an estimate line item, passed through verbatim.
type LineItem struct {
	Name      string  `json:"name,omitempty"`
	Kind      string  `json:"kind,omitempty"`
	Quantity  float64 `json:"quantity,omitempty"`
	UnitPrice float64 `json:"unit_price,omitempty"`
}

// Estimate is an HCP estimate record.
type Estimate struct {
	ID          string `json:"id"`
	CustomerID  string `json:"customer_id"`
	Description string `json:"description,omitempty"`
	LeadSource  string `json:"lead_source,omitempty"`
}

// EstimateInput carries the fields used to create an estimate.
type EstimateInput struct {
	Description string
	LeadSource  string
	LineItems   []LineItem
}

// Note is a customer note.
type Note struct {
	ID         string `json:"id"`
	CustomerID string `json:"customer_id"`
	Note       string `json:"note"`
}

// Client defines the HouseCall Pro operations.
type Client interface {
	// FindCustomer searches by email first, then phone, returning the
	// first non-empty match. ErrNotFound when neither matches.
	FindCustomer(ctx context.Context, email, phoneNum string) (*Customer, error)
	CreateCustomer(ctx context.Context, in CustomerInput) (*Customer, error)
	// UpdateCustomer sends a partial update; only fields present in
	// the input appear in the payload, so nothing is ever cleared by
	// omission.
	UpdateCustomer(ctx context.Context, id string, in CustomerInput) (*Customer, error)
	// UpsertCustomer updates the first customer matching the input's
	// email/phone, or creates a new one. The search-then-branch is the
	// only identity guard: concurrent upserts for the same contact may
	// race and create duplicates.
	UpsertCustomer(ctx context.Context, in CustomerInput) (*Customer, error)
	CreateJob(ctx context.Context, customerID string, in JobInput) (*Job, error)
	CreateEstimate(ctx context.Context, customerID string, in EstimateInput) (*Estimate, error)
	AddCustomerNote(ctx context.Context, customerID, note string) (*Note, error)
}

// Option configures the httpClient.
type Option func(*httpClient)

// WithBaseURL overrides the default base URL.
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

// WithRateLimit caps outbound requests per second.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// httpClient implements Client using net/http.
type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a new HouseCall Pro client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Inf, 0),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// customerEnvelope wraps customer write responses.
type customerEnvelope struct {
	Customer Customer `json:"customer"`
}

// customersResponse is the customer search response.
type customersResponse struct {
	Customers []Customer `json:"customers"`
}

func (c *httpClient) FindCustomer(ctx context.Context, email, phoneNum string) (*Customer, error) {
	for _, term := range []string{email, phoneNum} {
		if term == "" {
			continue
		}
		var resp customersResponse
		if err := c.get(ctx, "/customers?q="+url.QueryEscape(term), &resp); err != nil {
			return nil, eris.Wrap(err, "housecallpro: search customers")
		}
		if len(resp.Customers) > 0 {
			return &resp.Customers[0], nil
		}
	}
	return nil, ErrNotFound
}

// splitName splits a combined name on the first space: first token is
// the first name, the remainder the last name.
func splitName(name string) (first, last string) {
	parts := strings.SplitN(strings.TrimSpace(name), " ", 2)
	first = parts[0]
	if len(parts) > 1 {
		last = parts[1]
	}
	return first, last
}

func (c *httpClient) CreateCustomer(ctx context.Context, in CustomerInput) (*Customer, error) {
	first, last := in.FirstName, in.LastName
	if first == "" || last == "" {
		nameFirst, nameLast := splitName(in.Name)
		if first == "" {
			first = nameFirst
		}
		if last == "" {
			last = nameLast
		}
	}
	if first == "" {
		first = "Unknown"
	}
	if last == "" {
		last = "Lead"
	}

	notify := true
	if in.NotificationsEnabled != nil {
		notify = *in.NotificationsEnabled
	}

	payload := map[string]any{
		"first_name":            first,
		"last_name":             last,
		"email":                 in.Email,
		"mobile_number":         in.MobileNumber,
		"company":               in.Company,
		"notifications_enabled": notify,
	}

	if in.Address != nil {
		addr := *in.Address
		if addr.Country == "" {
			addr.Country = "US"
		}
		addr.Type = "service"
		payload["addresses"] = []Address{addr}
	}

	var resp customerEnvelope
	if err := c.post(ctx, "/customers", payload, &resp); err != nil {
		return nil, eris.Wrap(err, "housecallpro: create customer")
	}
	return &resp.Customer, nil
}

func (c *httpClient) UpdateCustomer(ctx context.Context, id string, in CustomerInput) (*Customer, error) {
	payload := map[string]any{}
	if in.FirstName != "" {
		payload["first_name"] = in.FirstName
	}
	if in.LastName != "" {
		payload["last_name"] = in.LastName
	}
	if in.Email != "" {
		payload["email"] = in.Email
	}
	if in.MobileNumber != "" {
		payload["mobile_number"] = in.MobileNumber
	}
	if in.Company != "" {
		payload["company"] = in.Company
	}

	var resp customerEnvelope
	if err := c.put(ctx, "/customers/"+url.PathEscape(id), payload, &resp); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("housecallpro: update customer %s", id))
	}
	return &resp.Customer, nil
}

func (c *httpClient) UpsertCustomer(ctx context.Context, in CustomerInput) (*Customer, error) {
	existing, err := c.FindCustomer(ctx, in.Email, in.MobileNumber)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return c.CreateCustomer(ctx, in)
		}
		return nil, err
	}
	return c.UpdateCustomer(ctx, existing.ID, in)
}

func (c *httpClient) CreateJob(ctx context.Context, customerID string, in JobInput) (*Job, error) {
	workStatus := in.WorkStatus
	if workStatus == "" {
		workStatus = "needs_scheduling"
	}
	description := in.Description
	if description == "" {
		description = "Lead from WhatConverts"
	}
	leadSource := in.LeadSource
	if leadSource == "" {
		leadSource = "WhatConverts"
	}
	tags := in.Tags
	if tags == nil {
		tags = []string{}
	}

	payload := map[string]any{
		"customer_id": customerID,
		"work_status": workStatus,
		"description": description,
		"lead_source": leadSource,
		"tags":        tags,
	}
	if in.Schedule != nil {
		payload["schedule"] = in.Schedule
	}

	var resp struct {
		Job Job `json:"job"`
	}
	if err := c.post(ctx, "/jobs", payload, &resp); err != nil {
		return nil, eris.Wrap(err, "housecallpro: create job")
	}
	return &resp.Job, nil
}

func (c *httpClient) CreateEstimate(ctx context.Context, customerID string, in EstimateInput) (*Estimate, error) {
	description := in.Description
	if description == "" {
		description = "Estimate from WhatConverts"
	}
	leadSource := in.LeadSource
	if leadSource == "" {
		leadSource = "WhatConverts"
	}

	payload := map[string]any{
		"customer_id": customerID,
		"description": description,
		"lead_source": leadSource,
	}
	if len(in.LineItems) > 0 {
		payload["line_items"] = in.LineItems
	}

	var resp struct {
		Estimate Estimate `json:"estimate"`
	}
	if err := c.post(ctx, "/estimates", payload, &resp); err != nil {
		return nil, eris.Wrap(err, "housecallpro: create estimate")
	}
	return &resp.Estimate, nil
}

func (c *httpClient) AddCustomerNote(ctx context.Context, customerID, note string) (*Note, error) {
	payload := map[string]any{
		"customer_id": customerID,
		"note":        note,
	}

	var resp Note
	if err := c.post(ctx, "/notes", payload, &resp); err != nil {
		return nil, eris.Wrap(err, "housecallpro: add customer note")
	}
	return &resp, nil
}

func (c *httpClient) post(ctx context.Context, path string, body any, out any) error {
	return c.write(ctx, http.MethodPost, path, body, out)
}

func (c *httpClient) put(ctx context.Context, path string, body any, out any) error {
	return c.write(ctx, http.MethodPut, path, body, out)
}

func (c *httpClient) write(ctx context.Context, method, path string, body any, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return eris.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

func (c *httpClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return eris.Wrap(err, "create request")
	}

	return c.do(req, out)
}

func (c *httpClient) do(req *http.Request, out any) error {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return eris.Wrap(err, "rate limit wait")
	}

	req.Header.Set("Authorization", "Token "+c.apiKey)
	req.Header.Set("Accept", "application/json")

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
		return &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return eris.Wrap(err, "unmarshal response")
		}
	}
	return nil
}
