package quay

import "context"

// Robot is a robot account. Name is the composite "owner+name" identity.
type Robot struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Token       string `json:"token,omitempty"`
}

// robotsPath addresses the robots of org, or the personal robots of the
// token's user when org is empty
func robotsPath(org string) string {
	if org == "" {
		return "/user/robots"
	}
	return "/organization/" + org + "/robots"
}

// ListRobots returns the robot accounts of org, or the personal ones when
// org is empty
func (c *Client) ListRobots(ctx context.Context, org string) ([]Robot, error) {
	var out struct {
		Robots []Robot `json:"robots"`
	}
	if err := c.do(ctx, "GET", robotsPath(org), nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Robots, nil
}

// GetRobot returns the robot with the short name, without owner prefix
func (c *Client) GetRobot(ctx context.Context, org, name string) (*Robot, error) {
	var robot Robot
	if err := c.do(ctx, "GET", robotsPath(org)+"/"+name, nil, nil, &robot); err != nil {
		return nil, err
	}
	return &robot, nil
}

// CreateRobot creates a robot account and returns it with its token
func (c *Client) CreateRobot(ctx context.Context, org, name, description string) (*Robot, error) {
	var in interface{}
	if description != "" {
		in = map[string]string{"description": description}
	}
	var robot Robot
	if err := c.do(ctx, "PUT", robotsPath(org)+"/"+name, nil, in, &robot); err != nil {
		return nil, err
	}
	return &robot, nil
}

// DeleteRobot deletes a robot account
func (c *Client) DeleteRobot(ctx context.Context, org, name string) error {
	return c.do(ctx, "DELETE", robotsPath(org)+"/"+name, nil, nil, nil)
}
