package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"runtime"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// Heartbeat triggers.
const (
	HeartbeatHourly      = "HOURLY"
	HeartbeatInstalled   = "INSTALLED"
	HeartbeatInitialized = "INITIALIZED"
)

// Ping probes reachability. Any failure, including a non-2xx response,
// is reported as ErrUnreachable.
func (c *Client) Ping(ctx context.Context) error {
	err := c.do(ctx, "ping", http.MethodGet, "/ping", nil, nil, nil)
	if err != nil && !errors.Is(err, ErrUnreachable) {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	return err
}

// AnonymousUser is the request body of the onboarding call.
type AnonymousUser struct {
	Timezone           string `json:"timezone"`
	Hostname           string `json:"hostname"`
	CreationAnnotation string `json:"creation_annotation"`
	AuthID             string `json:"auth_id"`
}

// CreateAnonymousUser registers a credential-less user and returns the
// issued jwt.
func (c *Client) CreateAnonymousUser(ctx context.Context, timezone string) (string, error) {
	body := AnonymousUser{
		Timezone:           timezone,
		Hostname:           c.hostname,
		CreationAnnotation: "NO_SESSION_FILE",
		AuthID:             uuid.NewString(),
	}
	var resp struct {
		JWT string `json:"jwt"`
	}
	if err := c.do(ctx, "create anonymous user", http.MethodPost, "/data/onboard", nil, body, &resp); err != nil {
		return "", err
	}
	if resp.JWT == "" {
		return "", &TransportError{Op: "create anonymous user", Status: http.StatusOK, Err: errors.New("response has no jwt")}
	}
	return resp.JWT, nil
}

// User is the account behind the current credential.
type User struct {
	Name       string
	Registered bool
}

// UserStatus fetches the account behind the stored jwt.
func (c *Client) UserStatus(ctx context.Context) (User, error) {
	var raw json.RawMessage
	if err := c.do(ctx, "user status", http.MethodGet, "/users/me", nil, nil, &raw); err != nil {
		return User{}, err
	}
	doc := gjson.ParseBytes(raw)
	data := doc.Get("data")
	if !data.Exists() {
		data = doc
	}
	name := data.Get("name").String()
	if name == "" {
		name = data.Get("email").String()
	}
	return User{
		Name:       name,
		Registered: data.Get("registered").Bool(),
	}, nil
}

type heartbeat struct {
	PluginID          int    `json:"pluginId"`
	OS                string `json:"os"`
	Start             int64  `json:"start"`
	Version           string `json:"version"`
	Hostname          string `json:"hostname"`
	TriggerAnnotation string `json:"trigger_annotation"`
}

// SendHeartbeat reports that the agent is alive. reason is one of the
// Heartbeat* triggers.
func (c *Client) SendHeartbeat(ctx context.Context, reason string) error {
	body := heartbeat{
		PluginID:          c.pluginID,
		OS:                runtime.GOOS,
		Start:             c.clock.Now().Unix(),
		Version:           c.version,
		Hostname:          c.hostname,
		TriggerAnnotation: reason,
	}
	return c.do(ctx, "send heartbeat", http.MethodPost, "/data/heartbeat", nil, body, nil)
}

// SendBatch uploads buffered payloads as one JSON array.
func (c *Client) SendBatch(ctx context.Context, payloads []json.RawMessage) error {
	if len(payloads) == 0 {
		return nil
	}
	return c.do(ctx, "send batch", http.MethodPost, "/data/batch", nil, payloads, nil)
}

// TimeSummary is the backend view of today's activity.
type TimeSummary struct {
	ActiveCodeTimeMinutes float64
	AverageDailyMinutes   float64
}

// Summary fetches today's session summary from the backend.
func (c *Client) Summary(ctx context.Context) (TimeSummary, error) {
	var raw json.RawMessage
	if err := c.do(ctx, "session summary", http.MethodGet, "/sessions/summary", nil, nil, &raw); err != nil {
		return TimeSummary{}, err
	}
	doc := gjson.ParseBytes(raw)
	return TimeSummary{
		ActiveCodeTimeMinutes: doc.Get("activeCodeTimeMinutes").Float(),
		AverageDailyMinutes:   doc.Get("averageDailyMinutes").Float(),
	}, nil
}

// ProjectQuery bounds a project listing. TimeRange wins over Start/End when
// both are set; an empty query lists everything.
type ProjectQuery struct {
	TimeRange string
	Start     int64
	End       int64
}

func (q ProjectQuery) values() url.Values {
	v := url.Values{}
	switch {
	case q.TimeRange != "":
		v.Set("timeRange", q.TimeRange)
	case q.Start != 0 || q.End != 0:
		v.Set("start", strconv.FormatInt(q.Start, 10))
		v.Set("end", strconv.FormatInt(q.End, 10))
	}
	return v
}

// ProjectRecord is one entry of the project listing.
type ProjectRecord struct {
	Name          string
	IDs           []string
	CodingRecords float64
}

// Selectable reports whether the record has both a name and ids.
func (p ProjectRecord) Selectable() bool {
	return p.Name != "" && len(p.IDs) > 0
}

// ListProjects returns the projects with recorded activity in q.
func (c *Client) ListProjects(ctx context.Context, q ProjectQuery) ([]ProjectRecord, error) {
	var raw json.RawMessage
	if err := c.do(ctx, "list projects", http.MethodGet, "/projects", q.values(), nil, &raw); err != nil {
		return nil, err
	}
	return DecodeProjects(raw), nil
}

// DecodeProjects normalizes a project listing. The name comes from
// project_name or name, ids from projectIds or id. A missing or zero
// coding_records counts as 1. Entries without a name or ids are kept with
// empty fields: they still count toward the listing total.
func DecodeProjects(data []byte) []ProjectRecord {
	doc := gjson.ParseBytes(data)
	if !doc.IsArray() {
		doc = doc.Get("data")
	}

	records := []ProjectRecord{}
	doc.ForEach(func(_, p gjson.Result) bool {
		name := p.Get("project_name").String()
		if name == "" {
			name = p.Get("name").String()
		}

		var ids []string
		if arr := p.Get("projectIds"); arr.IsArray() {
			for _, id := range arr.Array() {
				if s := id.String(); s != "" {
					ids = append(ids, s)
				}
			}
		} else if id := p.Get("id"); id.Exists() && id.String() != "" {
			ids = []string{id.String()}
		}

		count := 1.0
		if cr := p.Get("coding_records"); cr.Type == gjson.Number && cr.Float() != 0 {
			count = cr.Float()
		}
		records = append(records, ProjectRecord{Name: name, IDs: ids, CodingRecords: count})
		return true
	})
	return records
}

// CommitQuery selects the commit summary for a report.
type CommitQuery struct {
	ProjectQuery
	ProjectIDs []string
}

// ProjectCommits fetches the commit summary for the given projects and
// range. The raw JSON is returned for the report consumer.
func (c *Client) ProjectCommits(ctx context.Context, q CommitQuery) (json.RawMessage, error) {
	v := q.values()
	if len(q.ProjectIDs) > 0 {
		v.Set("projectIds", strings.Join(q.ProjectIDs, ","))
	}
	var raw json.RawMessage
	if err := c.do(ctx, "project commits", http.MethodGet, "/projects/commits", v, nil, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// LiveshareEvent reports a collaborative session to the backend.
type LiveshareEvent struct {
	SessionID string `json:"sessionId"`
	Start     int64  `json:"start"`
	End       int64  `json:"end,omitempty"`
}

// Liveshare posts a collaborative session start or end.
func (c *Client) Liveshare(ctx context.Context, ev LiveshareEvent) error {
	return c.do(ctx, "liveshare", http.MethodPost, "/data/liveshare", nil, ev, nil)
}
