package quay

import "context"

// Application is an OAuth application. Tokens are issued against its
// client id.
type Application struct {
	Name        string `json:"name"`
	ClientID    string `json:"client_id"`
	Description string `json:"description,omitempty"`
}

func applicationsPath(org string) string {
	return "/organization/" + org + "/applications"
}

// ListApplications returns the OAuth applications of an organization
func (c *Client) ListApplications(ctx context.Context, org string) ([]Application, error) {
	var out struct {
		Applications []Application `json:"applications"`
	}
	if err := c.do(ctx, "GET", applicationsPath(org), nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Applications, nil
}

// CreateApplication creates an OAuth application
func (c *Client) CreateApplication(ctx context.Context, org, name, description string) (*Application, error) {
	var app Application
	in := map[string]string{"name": name, "description": description}
	if err := c.do(ctx, "POST", applicationsPath(org), nil, in, &app); err != nil {
		return nil, err
	}
	return &app, nil
}
