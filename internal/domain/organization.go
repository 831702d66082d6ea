package domain

// Organization is a catalog entry offered during registration. Entries
// flagged RequiresOffice make the office-number step mandatory.
type Organization struct {
	Name           string
	RequiresOffice bool
}

// OrgCatalog is an immutable lookup of known organizations, built once at
// startup from configuration. Free-text organizations not in the catalog
// are accepted and never require an office number.
type OrgCatalog struct {
	byName map[string]Organization
	names  []string
}

// NewOrgCatalog builds the catalog preserving the configured order.
func NewOrgCatalog(orgs []Organization) *OrgCatalog {
	catalog := &OrgCatalog{byName: make(map[string]Organization, len(orgs))}
	for _, org := range orgs {
		if _, dup := catalog.byName[org.Name]; dup {
			continue
		}
		catalog.byName[org.Name] = org
		catalog.names = append(catalog.names, org.Name)
	}
	return catalog
}

// Names lists catalog entries in configured order.
func (c *OrgCatalog) Names() []string {
	return c.names
}

// RequiresOffice reports whether the named organization needs an office
// number during registration.
func (c *OrgCatalog) RequiresOffice(name string) bool {
	org, ok := c.byName[name]
	return ok && org.RequiresOffice
}
