package resp

import v1 "condoadmin/pkg/api/v1"

// SessionResp is the console's view of the authentication signal.
type SessionResp struct {
	Seq           int64           `json:"seq"`
	Authenticated bool            `json:"authenticated"`
	Loading       bool            `json:"loading"`
	DisplayName   string          `json:"display_name,omitempty"`
	User          *v1.UserProfile `json:"user,omitempty"`
	Redirect      string          `json:"redirect,omitempty"`
}

// ResourceResp wraps a proxied collection.
type ResourceResp struct {
	Resource string `json:"resource"`
	Count    int    `json:"count"`
	Data     any    `json:"data"`
}

// DashboardResp is what the landing page shows after sign-in.
type DashboardResp struct {
	Welcome string          `json:"welcome"`
	User    *v1.UserProfile `json:"user"`
	Counts  map[string]int  `json:"counts"`
}

type ErrorResp struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}
