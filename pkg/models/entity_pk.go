package models

import "strings"

// EntityPk identifies an entity inside an organization.
type EntityPk struct {
	OrgID      string `json:"org_id"`
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
}

// OrgOrSystem returns the org id, or SystemOrg for unowned entities.
func (p EntityPk) OrgOrSystem() string {
	if p.OrgID == "" {
		return SystemOrg
	}
	return p.OrgID
}

// Identity is the stable string form used in table keys.
func (p EntityPk) Identity() string {
	return strings.Join([]string{p.OrgOrSystem(), p.EntityType, p.EntityID}, "|")
}

// RefIdentity is org and id without the type. A reference target's type can change
// once it resolves, so the target side of edge keys uses this form.
func (p EntityPk) RefIdentity() string {
	return p.OrgOrSystem() + "|" + p.EntityID
}
