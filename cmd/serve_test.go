package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadbridge/internal/bridge"
	"github.com/sells-group/leadbridge/pkg/housecallpro"
	"github.com/sells-group/leadbridge/pkg/whatconverts"
)

// fakeBackends spins up stub WhatConverts and HouseCall Pro servers
// and returns a processor wired to them.
func fakeBackends(t *testing.T) *bridge.Processor {
	leadSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.Write([]byte(`{}`))
			return
		}
		json.NewEncoder(w).Encode(map[string][]whatconverts.Lead{"leads": {{
			LeadID:       "L1",
			ContactName:  "Jane Doe",
			EmailAddress: "jane@x.com",
		}}})
	}))
	t.Cleanup(leadSrv.Close)

	crmSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/customers":
			json.NewEncoder(w).Encode(map[string][]housecallpro.Customer{"customers": {}})
		case r.Method == http.MethodPost && r.URL.Path == "/customers":
			json.NewEncoder(w).Encode(map[string]housecallpro.Customer{"customer": {ID: "cus_1"}})
		case r.Method == http.MethodPost && r.URL.Path == "/jobs":
			json.NewEncoder(w).Encode(map[string]housecallpro.Job{"job": {ID: "job_1"}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(crmSrv.Close)

	leads := whatconverts.NewClient("tok", "sec", leadSrv.URL)
	crm := housecallpro.NewClient("key", housecallpro.WithBaseURL(crmSrv.URL))
	return bridge.New(leads, crm, []int64{129575})
}

func postJSON(t *testing.T, handler http.Handler, path string, payload any) *httptest.ResponseRecorder {
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestHealthEndpoint(t *testing.T) {
	router := newRouter(fakeBackends(t))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestWebhookLead_Success(t *testing.T) {
	router := newRouter(fakeBackends(t))

	rr := postJSON(t, router, "/webhook/lead", map[string]any{
		"lead_id":    "L1",
		"profile_id": 129575,
		"lead_type":  "Web Form",
	})

	assert.Equal(t, http.StatusOK, rr.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "Lead processed successfully", body["message"])
	assert.Equal(t, "cus_1", body["customerId"])
	assert.Equal(t, "job_1", body["leadId"])
}

func TestWebhookLead_ProfileNotAllowed(t *testing.T) {
	router := newRouter(fakeBackends(t))

	rr := postJSON(t, router, "/webhook/lead", map[string]any{
		"lead_id":    "L1",
		"profile_id": 1,
		"lead_type":  "Web Form",
	})

	assert.Equal(t, http.StatusBadRequest, rr.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "profile 1 is not allowed", body["error"])
}

func TestWebhookLead_WrongLeadType(t *testing.T) {
	router := newRouter(fakeBackends(t))

	rr := postJSON(t, router, "/webhook/lead", map[string]any{
		"lead_id":    "L1",
		"profile_id": 129575,
		"lead_type":  "Phone Call",
	})

	assert.Equal(t, http.StatusBadRequest, rr.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "only Web Form leads are accepted", body["error"])
}

func TestWebhookLead_InvalidBody(t *testing.T) {
	router := newRouter(fakeBackends(t))

	req := httptest.NewRequest(http.MethodPost, "/webhook/lead", bytes.NewReader([]byte(`{not json`)))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestWebhookSale_Updated(t *testing.T) {
	router := newRouter(fakeBackends(t))

	rr := postJSON(t, router, "/webhook/sale", map[string]any{
		"profileId": 129575,
		"value":     50,
		"email":     "jane@x.com",
	})

	assert.Equal(t, http.StatusOK, rr.Code)

	var body map[string]bool
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.True(t, body["updated"])
}

func TestWebhookQuote_Route(t *testing.T) {
	router := newRouter(fakeBackends(t))

	rr := postJSON(t, router, "/webhook/quote", map[string]any{
		"profileId": 129575,
		"value":     75,
		"email":     "jane@x.com",
	})

	assert.Equal(t, http.StatusOK, rr.Code)
}
