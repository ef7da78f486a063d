package supabase

import (
	"context"
	"net/http"
	"net/url"
)

// Query is a PostgREST request against one table. Build it with From, chain
// filters, then finish with Select, Insert, Update or Delete.
type Query struct {
	client  *Client
	table   string
	token   string
	filters url.Values
	order   string
}

// From starts a query on table, authorized as the anonymous role.
func (c *Client) From(table string) *Query {
	return &Query{client: c, table: table, filters: url.Values{}}
}

// As authorizes the query with a user's access token so row-level policies
// apply to that user.
func (q *Query) As(accessToken string) *Query {
	q.token = accessToken
	return q
}

// Eq adds an equality filter (column=eq.value).
func (q *Query) Eq(column, value string) *Query {
	q.filters.Add(column, "eq."+value)
	return q
}

// Order sorts the result by column.
func (q *Query) Order(column string, ascending bool) *Query {
	dir := "desc"
	if ascending {
		dir = "asc"
	}
	q.order = column + "." + dir
	return q
}

func (q *Query) values(extra url.Values) url.Values {
	v := url.Values{}
	for k, vals := range q.filters {
		v[k] = append([]string(nil), vals...)
	}
	if q.order != "" {
		v.Set("order", q.order)
	}
	for k, vals := range extra {
		v[k] = vals
	}
	return v
}

func (q *Query) path() string {
	return "/rest/v1/" + url.PathEscape(q.table)
}

// Select reads matching rows into dst, which should be a pointer to a slice.
func (q *Query) Select(ctx context.Context, columns string, dst any) error {
	if columns == "" {
		columns = "*"
	}
	return q.client.do(ctx, request{
		method: http.MethodGet,
		path:   q.path(),
		query:  q.values(url.Values{"select": {columns}}),
		token:  q.token,
	}, dst)
}

// Insert writes rows and decodes the stored representation into dst.
func (q *Query) Insert(ctx context.Context, rows any, dst any) error {
	return q.client.do(ctx, request{
		method: http.MethodPost,
		path:   q.path(),
		query:  url.Values{"select": {"*"}},
		token:  q.token,
		body:   rows,
		prefer: "return=representation",
	}, dst)
}

// Update patches every row matching the filters. Matching zero rows is not
// an error.
func (q *Query) Update(ctx context.Context, patch any) error {
	return q.client.do(ctx, request{
		method: http.MethodPatch,
		path:   q.path(),
		query:  q.values(nil),
		token:  q.token,
		body:   patch,
		prefer: "return=minimal",
	}, nil)
}

// Delete removes every row matching the filters.
func (q *Query) Delete(ctx context.Context) error {
	return q.client.do(ctx, request{
		method: http.MethodDelete,
		path:   q.path(),
		query:  q.values(nil),
		token:  q.token,
		prefer: "return=minimal",
	}, nil)
}
