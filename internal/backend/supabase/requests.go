package supabase

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"reqdash/internal/service"
)

// requestRow is the JSON shape of a row in the requests table.
type requestRow struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	Status      string    `json:"status"`
	Priority    int       `json:"priority"`
	CreatedAt   time.Time `json:"created_at"`
}

func (r requestRow) toRequest() service.Request {
	return service.Request{
		ID:          r.ID,
		Owner:       r.UserID,
		Title:       r.Title,
		Description: r.Description,
		Status:      service.Status(r.Status),
		Priority:    r.Priority,
		CreatedAt:   r.CreatedAt,
	}
}

// insertRow is the body of an insert. id and created_at are assigned by
// the database.
type insertRow struct {
	UserID      string  `json:"user_id"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
	Priority    int     `json:"priority"`
	Status      string  `json:"status"`
}

const tablePath = "/rest/v1/" + RequestsTable

func byID(id string) url.Values {
	return url.Values{"id": {"eq." + id}}
}

var returnMinimal = http.Header{"Prefer": {"return=minimal"}}

// List implements service.Repository.
func (c *Client) List(ctx context.Context) ([]service.Request, error) {
	var rows []requestRow
	q := url.Values{
		"select": {"*"},
		"order":  {"created_at.desc"},
	}
	if err := c.call(ctx, c.authorized(), http.MethodGet, tablePath, q, nil, &rows, nil, service.KindData); err != nil {
		return nil, err
	}
	out := make([]service.Request, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toRequest())
	}
	return out, nil
}

// Create implements service.Repository.
func (c *Client) Create(ctx context.Context, owner string, d service.Draft) error {
	row := insertRow{
		UserID:      owner,
		Title:       d.Title,
		Description: d.DescriptionValue(),
		Priority:    d.Priority,
		Status:      string(service.StatusNew),
	}
	return c.call(ctx, c.authorized(), http.MethodPost, tablePath, nil, row, nil, returnMinimal, service.KindData)
}

// UpdateStatus implements service.Repository.
func (c *Client) UpdateStatus(ctx context.Context, id string, s service.Status) error {
	body := map[string]string{"status": string(s)}
	return c.call(ctx, c.authorized(), http.MethodPatch, tablePath, byID(id), body, nil, returnMinimal, service.KindData)
}

// Delete implements service.Repository.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.call(ctx, c.authorized(), http.MethodDelete, tablePath, byID(id), nil, nil, returnMinimal, service.KindData)
}
