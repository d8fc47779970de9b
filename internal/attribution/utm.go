// Package attribution captures campaign tags (UTM parameters) from navigated
// addresses and keeps first-touch and last-touch attribution.
package attribution

import (
	"net/url"
	"strings"
)

// Recognized query parameter names.
const (
	ParamSource   = "utm_source"
	ParamMedium   = "utm_medium"
	ParamCampaign = "utm_campaign"
	ParamContent  = "utm_content"
	ParamTerm     = "utm_term"
)

// Params holds the campaign tags of one navigation. A field is set only if its
// query parameter was non-empty; a navigation without any tag has no Params at all.
type Params struct {
	Source   string `json:"utm_source,omitempty"`
	Medium   string `json:"utm_medium,omitempty"`
	Campaign string `json:"utm_campaign,omitempty"`
	Content  string `json:"utm_content,omitempty"`
	Term     string `json:"utm_term,omitempty"`
}

// Empty reports whether no tag is set.
func (p *Params) Empty() bool {
	return p == nil || *p == Params{}
}

// Map returns the present tags keyed by parameter name, for attaching to events.
func (p *Params) Map() map[string]string {
	out := make(map[string]string, 5)
	if p == nil {
		return out
	}
	for _, f := range p.fields() {
		if *f.value != "" {
			out[f.name] = *f.value
		}
	}
	return out
}

type field struct {
	name  string
	value *string
}

func (p *Params) fields() []field {
	return []field{
		{ParamSource, &p.Source},
		{ParamMedium, &p.Medium},
		{ParamCampaign, &p.Campaign},
		{ParamContent, &p.Content},
		{ParamTerm, &p.Term},
	}
}

// Extract reads the five campaign tags from u's query string. It returns nil
// when none is present with a non-empty value.
func Extract(u *url.URL) *Params {
	if u == nil {
		return nil
	}
	return fromQuery(u.Query())
}

// ExtractString extracts the campaign tags of address (absolute URL or path
// with query). Only the query string is parsed, so a path a browser would
// send unescaped does not cost the visit its attribution.
func ExtractString(address string) *Params {
	if i := strings.IndexByte(address, '#'); i >= 0 {
		address = address[:i]
	}
	i := strings.IndexByte(address, '?')
	if i < 0 {
		return nil
	}
	// malformed pairs are skipped, the rest still count
	q, _ := url.ParseQuery(address[i+1:])
	return fromQuery(q)
}

func fromQuery(q url.Values) *Params {
	var p Params
	for _, f := range p.fields() {
		*f.value = q.Get(f.name)
	}

	if p.Empty() {
		return nil
	}
	return &p
}
