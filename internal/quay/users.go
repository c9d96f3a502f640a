package quay

import "context"

// User is a registry user as listed by the superuser API
type User struct {
	Username  string `json:"username"`
	Email     string `json:"email,omitempty"`
	SuperUser bool   `json:"super_user"`
}

// Member is a member of a team
type Member struct {
	Name string `json:"name"`
	Kind string `json:"kind,omitempty"`
}

// InitialUser is the first user of a fresh registry
type InitialUser struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	Email       string `json:"email"`
	AccessToken bool   `json:"access_token"`
}

// InitializedUser is the answer to InitializeUser
type InitializedUser struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	AccessToken string `json:"access_token"`
}

// InitializeUser creates the first user of a registry and returns an
// access token for it. The call is unauthenticated and succeeds only once
// per registry.
func (c *Client) InitializeUser(ctx context.Context, user InitialUser) (*InitializedUser, error) {
	var out InitializedUser
	if err := c.send(ctx, "POST", "/user/initialize", nil, user, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListSuperUsers returns the users holding superuser rights
func (c *Client) ListSuperUsers(ctx context.Context) ([]User, error) {
	var out struct {
		Users []User `json:"users"`
	}
	if err := c.do(ctx, "GET", "/superuser/users/", nil, nil, &out); err != nil {
		return nil, err
	}
	var supers []User
	for _, u := range out.Users {
		if u.SuperUser {
			supers = append(supers, u)
		}
	}
	return supers, nil
}

func teamMembersPath(org, team string) string {
	return "/organization/" + org + "/team/" + team + "/members"
}

// ListTeamMembers returns the members of a team
func (c *Client) ListTeamMembers(ctx context.Context, org, team string) ([]Member, error) {
	var out struct {
		Members []Member `json:"members"`
	}
	if err := c.do(ctx, "GET", teamMembersPath(org, team), nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Members, nil
}

// AddTeamMember adds a user to a team. Adding a member twice is harmless.
func (c *Client) AddTeamMember(ctx context.Context, org, team, username string) error {
	return c.do(ctx, "PUT", teamMembersPath(org, team)+"/"+username, nil, nil, nil)
}
