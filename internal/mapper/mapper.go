// Package mapper transforms WhatConverts leads into HouseCall Pro
// customer and job fields.
package mapper

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sells-group/leadbridge/pkg/housecallpro"
	"github.com/sells-group/leadbridge/pkg/whatconverts"
)

// CustomerFromLead extracts HCP customer fields from a lead. Name
// resolution: contact_name split on the first space, falling back to
// explicit first/last names, then to "Unknown"/"Lead" placeholders.
// The phone is carried raw; formatting is deferred to the caller.
func CustomerFromLead(lead *whatconverts.Lead) housecallpro.CustomerInput {
	first, last := splitContactName(lead.ContactName)
	if first == "" {
		first = lead.FirstName
	}
	if last == "" {
		last = lead.LastName
	}
	if first == "" {
		first = "Unknown"
	}
	if last == "" {
		last = "Lead"
	}

	in := housecallpro.CustomerInput{
		FirstName:    first,
		LastName:     last,
		Email:        firstNonEmpty(lead.EmailAddress, lead.Email),
		MobileNumber: firstNonEmpty(lead.PhoneNumber, lead.CallerID, lead.Phone),
		Company:      lead.CompanyName,
	}

	street := firstNonEmpty(lead.Address, lead.Street)
	zip := firstNonEmpty(lead.Zip, lead.PostalCode)
	if street != "" || lead.City != "" || lead.State != "" || zip != "" {
		in.Address = &housecallpro.Address{
			Street:      street,
			StreetLine2: lead.Address2,
			City:        lead.City,
			State:       NormalizeState(lead.State),
			Zip:         zip,
			Country:     firstNonEmpty(lead.Country, "US"),
		}
	}

	return in
}

// JobDescription builds the free-text job description from lead
// fields; each line appears only when the source field is present.
func JobDescription(lead *whatconverts.Lead) string {
	var b strings.Builder
	b.WriteString("New lead from WhatConverts\n\n")

	if lead.LeadType != "" {
		fmt.Fprintf(&b, "Lead Type: %s\n", lead.LeadType)
	}
	if lead.LeadSource != "" {
		fmt.Fprintf(&b, "Source: %s\n", lead.LeadSource)
	}
	if lead.LeadMedium != "" {
		fmt.Fprintf(&b, "Medium: %s\n", lead.LeadMedium)
	}
	if lead.LandingPage != "" {
		fmt.Fprintf(&b, "Landing Page: %s\n", lead.LandingPage)
	}
	if lead.ReferringURL != "" {
		fmt.Fprintf(&b, "Referrer: %s\n", lead.ReferringURL)
	}
	if svc := firstNonEmpty(lead.QuotedService, lead.ServiceType); svc != "" {
		fmt.Fprintf(&b, "Service: %s\n", svc)
	}
	if len(lead.AdditionalFields) > 0 {
		b.WriteString("\nAdditional Information:\n")
		for _, k := range sortedKeys(lead.AdditionalFields) {
			fmt.Fprintf(&b, "%s: %s\n", k, lead.AdditionalFields[k])
		}
	}
	if lead.LeadValue != nil {
		fmt.Fprintf(&b, "\nLead Value: $%g\n", *lead.LeadValue)
	}
	if lead.QuoteValue != nil {
		fmt.Fprintf(&b, "Quote Value: $%g\n", *lead.QuoteValue)
	}

	return strings.TrimSpace(b.String())
}

// JobTags builds the tag list for a job. Duplicates are not removed.
func JobTags(lead *whatconverts.Lead) []string {
	tags := []string{"WhatConverts"}
	if lead.LeadType != "" {
		tags = append(tags, lead.LeadType)
	}
	if lead.LeadSource != "" {
		tags = append(tags, lead.LeadSource)
	}
	if lead.Campaign != "" {
		tags = append(tags, lead.Campaign)
	}
	return tags
}

// CustomerNote builds the note text attached to the customer from the
// call transcript, form submission and keywords. Returns "" when the
// lead carries none of them.
func CustomerNote(lead *whatconverts.Lead) string {
	var b strings.Builder

	if lead.Transcript != "" {
		fmt.Fprintf(&b, "Call Transcript:\n%s\n\n", lead.Transcript)
	}
	if len(lead.FormData) > 0 {
		b.WriteString("Form Data:\n")
		for _, k := range sortedKeys(lead.FormData) {
			fmt.Fprintf(&b, "%s: %s\n", k, lead.FormData[k])
		}
		b.WriteString("\n")
	}
	if lead.Keywords != "" {
		fmt.Fprintf(&b, "Keywords: %s\n", lead.Keywords)
	}

	return strings.TrimSpace(b.String())
}

func splitContactName(name string) (first, last string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ""
	}
	parts := strings.SplitN(name, " ", 2)
	first = parts[0]
	if len(parts) > 1 {
		last = parts[1]
	}
	return first, last
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// Map iteration order is random; descriptions and notes need stable
// output for idempotent downstream records.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
