package handler

import (
	"iplist/internal/ingest/journal"
	"iplist/internal/ingest/service"
	"iplist/pkg/platform/httputil"
)

// IngestResponse is the body of a successful POST /v1/ingest.
type IngestResponse struct {
	Status    string   `json:"status"`
	Category  string   `json:"category"`
	Domain    string   `json:"domain"`
	Aliases   []string `json:"aliases"`
	IP4       []string `json:"ip4"`
	IP6       []string `json:"ip6"`
	Resolver  string   `json:"resolver,omitempty"`
	Degraded  bool     `json:"degraded"`
	Issue     string   `json:"issue,omitempty"`
	Guessed   bool     `json:"guessed"`
	Commit    string   `json:"commit,omitempty"`
	URL       string   `json:"url,omitempty"`
	RequestID string   `json:"request_id,omitempty"`
}

func FromResult(res service.Result) IngestResponse {
	return IngestResponse{
		Status:    string(res.Status),
		Category:  res.Category,
		Domain:    res.Domain,
		Aliases:   nonNil(res.Aliases),
		IP4:       nonNil(res.IP4),
		IP6:       nonNil(res.IP6),
		Resolver:  res.Resolver,
		Degraded:  res.Degraded,
		Issue:     string(res.Issue),
		Guessed:   res.Guessed,
		Commit:    res.Commit,
		URL:       res.URL,
		RequestID: res.RequestID,
	}
}

// ClassificationErrorResponse lists the allowed categories so the front-end
// can ask the operator to pick one.
type ClassificationErrorResponse struct {
	httputil.ErrorResponse
	Categories []string `json:"categories"`
}

type CategoriesResponse struct {
	Categories []string       `json:"categories"`
	Totals     map[string]int `json:"totals"`
}

type IngestionsResponse struct {
	Ingestions []journal.Entry `json:"ingestions"`
}

func nonNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}
