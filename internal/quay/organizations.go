package quay

import "context"

// Organization is a registry namespace owned by a team of users
type Organization struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// ListOrganizations returns every organization. It needs a superuser token.
func (c *Client) ListOrganizations(ctx context.Context) ([]Organization, error) {
	var out struct {
		Organizations []Organization `json:"organizations"`
	}
	if err := c.do(ctx, "GET", "/superuser/organizations/", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Organizations, nil
}

// GetOrganization returns the named organization. A missing organization
// is an APIError for which IsNotFound is true.
func (c *Client) GetOrganization(ctx context.Context, name string) (*Organization, error) {
	var org Organization
	if err := c.do(ctx, "GET", "/organization/"+name, nil, nil, &org); err != nil {
		return nil, err
	}
	return &org, nil
}

// CreateOrganization creates an organization owned by the token's user
func (c *Client) CreateOrganization(ctx context.Context, name string) error {
	return c.do(ctx, "POST", "/organization/", nil, map[string]string{"name": name}, nil)
}

// DeleteOrganization deletes an organization with all its repositories
func (c *Client) DeleteOrganization(ctx context.Context, name string) error {
	return c.do(ctx, "DELETE", "/organization/"+name, nil, nil, nil)
}
