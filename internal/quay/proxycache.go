package quay

import "context"

// ProxyCache is the pull-through cache configuration of an organization
type ProxyCache struct {
	OrgName                  string `json:"org_name,omitempty"`
	UpstreamRegistry         string `json:"upstream_registry"`
	UpstreamRegistryUsername string `json:"upstream_registry_username,omitempty"`
	UpstreamRegistryPassword string `json:"upstream_registry_password,omitempty"`
	Insecure                 bool   `json:"insecure"`
	ExpirationSeconds        int    `json:"expiration_s,omitempty"`
}

func proxyCachePath(org string) string {
	return "/organization/" + org + "/proxycache"
}

// GetProxyCache returns the organization's proxy cache, or nil when none is
// configured
func (c *Client) GetProxyCache(ctx context.Context, org string) (*ProxyCache, error) {
	var pc ProxyCache
	if err := c.do(ctx, "GET", proxyCachePath(org), nil, nil, &pc); err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if pc.UpstreamRegistry == "" {
		return nil, nil
	}
	return &pc, nil
}

// CreateProxyCache configures a proxy cache. The API allows one per
// organization.
func (c *Client) CreateProxyCache(ctx context.Context, org string, pc ProxyCache) error {
	pc.OrgName = org
	return c.do(ctx, "POST", proxyCachePath(org), nil, pc, nil)
}

// DeleteProxyCache removes the organization's proxy cache
func (c *Client) DeleteProxyCache(ctx context.Context, org string) error {
	return c.do(ctx, "DELETE", proxyCachePath(org), nil, nil, nil)
}
