// Package bridge orchestrates inbound webhook events: WhatConverts
// lead reads, field mapping, and HouseCall Pro writes.
package bridge

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadbridge/internal/mapper"
	"github.com/sells-group/leadbridge/internal/phone"
	"github.com/sells-group/leadbridge/pkg/housecallpro"
	"github.com/sells-group/leadbridge/pkg/whatconverts"
)

// Only form-fill leads are bridged; phone and chat leads are handled
// by other integrations.
const acceptedLeadType = "Web Form"

// WebhookEvent is the inbound WhatConverts lead notification.
type WebhookEvent struct {
	LeadID    string `json:"lead_id"`
	ProfileID int64  `json:"profile_id"`
	LeadType  string `json:"lead_type"`
}

// LeadResult identifies the records written for a processed lead.
type LeadResult struct {
	CustomerID string `json:"customerId"`
	JobID      string `json:"leadId"`
}

// ValidationError marks an event rejected before any downstream call;
// handlers map it to a 400 response.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// Processor drives the lead-to-customer flow for one event at a time.
// It holds no state across invocations.
type Processor struct {
	leads           whatconverts.Client
	crm             housecallpro.Client
	allowedProfiles []int64
}

// New creates a Processor. allowedProfiles lists the WhatConverts
// profile IDs whose events are accepted.
func New(leads whatconverts.Client, crm housecallpro.Client, allowedProfiles []int64) *Processor {
	return &Processor{
		leads:           leads,
		crm:             crm,
		allowedProfiles: allowedProfiles,
	}
}

func (p *Processor) profileAllowed(id int64) bool {
	for _, allowed := range p.allowedProfiles {
		if id == allowed {
			return true
		}
	}
	return false
}

// ProcessLead handles one inbound lead webhook end to end: validate,
// fetch the full lead, map it, upsert the customer and create a job.
// A customer created here is not rolled back if the job write fails.
func (p *Processor) ProcessLead(ctx context.Context, event WebhookEvent) (*LeadResult, error) {
	log := zap.L().With(
		zap.String("event_id", uuid.NewString()),
		zap.String("lead_id", event.LeadID),
		zap.Int64("profile_id", event.ProfileID),
	)

	if event.ProfileID == 0 {
		return nil, &ValidationError{Msg: "profile_id is required"}
	}
	if !p.profileAllowed(event.ProfileID) {
		return nil, &ValidationError{Msg: fmt.Sprintf("profile %d is not allowed", event.ProfileID)}
	}
	if event.LeadType != acceptedLeadType {
		return nil, &ValidationError{Msg: fmt.Sprintf("only %s leads are accepted", acceptedLeadType)}
	}

	lead, err := p.leads.ReadLead(ctx, event.LeadID)
	if err != nil {
		return nil, eris.Wrap(err, "bridge: fetch lead")
	}

	customer := mapper.CustomerFromLead(lead)
	if customer.Email == "" && customer.MobileNumber == "" {
		return nil, &ValidationError{Msg: "lead must have either email or phone number"}
	}

	// Normalize the phone when it parses; an invalid number is kept
	// verbatim rather than dropped.
	if customer.MobileNumber != "" {
		if num, err := phone.Normalize(customer.MobileNumber); err == nil {
			customer.MobileNumber = num.E164
		} else {
			log.Debug("keeping unnormalized phone", zap.String("phone", customer.MobileNumber))
		}
	}

	upserted, err := p.crm.UpsertCustomer(ctx, customer)
	if err != nil {
		return nil, eris.Wrap(err, "bridge: upsert customer")
	}
	log.Info("customer upserted", zap.String("customer_id", upserted.ID))

	leadSource := lead.LeadSource
	if leadSource == "" {
		leadSource = "WhatConverts"
	}
	job, err := p.crm.CreateJob(ctx, upserted.ID, housecallpro.JobInput{
		Description: mapper.JobDescription(lead),
		LeadSource:  leadSource,
		Tags:        mapper.JobTags(lead),
	})
	if err != nil {
		return nil, eris.Wrap(err, "bridge: create job")
	}
	log.Info("job created", zap.String("job_id", job.ID))

	// Transcript, form data and keywords land as a customer note.
	// A note failure does not fail the event; the records above exist.
	if note := mapper.CustomerNote(lead); note != "" {
		if _, err := p.crm.AddCustomerNote(ctx, upserted.ID, note); err != nil {
			log.Warn("customer note failed", zap.Error(err))
		}
	}

	return &LeadResult{CustomerID: upserted.ID, JobID: job.ID}, nil
}
