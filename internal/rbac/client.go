package rbac

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/audionoise/jam/internal/domain"
)

// Client queries the main application's membership endpoint over HTTP.
type Client struct {
	base string
	http *http.Client
}

func NewClient(base string) *Client {
	return &Client{
		base: base,
		http: &http.Client{Timeout: 5 * time.Second},
	}
}

type roleResponse struct {
	Role  string `json:"role"`
	Owner bool   `json:"owner"`
}

// RoleOf asks the membership service for the user's role. A missing
// membership (404) resolves to RoleNone rather than an error;
// workspace owners resolve to RoleAdmin.
func (c *Client) RoleOf(ctx context.Context, ws domain.WorkspaceID, user domain.UserID) (domain.Role, error) {
	endpoint := fmt.Sprintf("%s/internal/workspaces/%s/members/%s/role",
		c.base, url.PathEscape(string(ws)), url.PathEscape(string(user)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.RoleNone, fmt.Errorf("rbac: build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return domain.RoleNone, fmt.Errorf("rbac: role query: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return domain.RoleNone, nil
	default:
		return domain.RoleNone, fmt.Errorf("rbac: unexpected status %d", resp.StatusCode)
	}

	var body roleResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return domain.RoleNone, fmt.Errorf("rbac: decode role: %w", err)
	}
	if body.Owner {
		return domain.RoleAdmin, nil
	}
	switch domain.Role(body.Role) {
	case domain.RoleAdmin, domain.RoleEditor, domain.RoleViewer:
		return domain.Role(body.Role), nil
	default:
		return domain.RoleNone, nil
	}
}
