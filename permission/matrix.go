package permission

import (
	"fmt"
	"sort"
	"sync"
)

// Role is a closed set of account roles.
type Role string

const (
	RoleAdmin           Role = "admin"
	RolePropertyManager Role = "property_manager"
	RoleStaff           Role = "staff"
	RoleAccountant      Role = "accountant"
	RoleSILProvider     Role = "sil_provider"
)

// Roles lists every known role.
var Roles = []Role{RoleAdmin, RolePropertyManager, RoleStaff, RoleAccountant, RoleSILProvider}

// Valid reports whether r is one of [Roles].
func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// Resource names a protected business entity family.
type Resource string

const (
	ResourceProperties           Resource = "properties"
	ResourceDwellings            Resource = "dwellings"
	ResourceParticipants         Resource = "participants"
	ResourceParticipantPlans     Resource = "participant_plans"
	ResourcePayments             Resource = "payments"
	ResourceClaims               Resource = "claims"
	ResourceMaintenance          Resource = "maintenance"
	ResourceInspections          Resource = "inspections"
	ResourceDocuments            Resource = "documents"
	ResourceIncidents            Resource = "incidents"
	ResourceComplaints           Resource = "complaints"
	ResourceContractors          Resource = "contractors"
	ResourceOwners               Resource = "owners"
	ResourceCalendar             Resource = "calendar"
	ResourceCommunications       Resource = "communications"
	ResourceAlerts               Resource = "alerts"
	ResourceReports              Resource = "reports"
	ResourceUsers                Resource = "users"
	ResourceAuditLogs            Resource = "audit_logs"
	ResourceOrganizationSettings Resource = "organization_settings"
	ResourceSILProviders         Resource = "sil_providers"
)

// Action is an operation on a resource.
type Action string

const (
	ActionView   Action = "view"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionExport Action = "export"
)

var crud = []Action{ActionView, ActionCreate, ActionUpdate, ActionDelete}

// ResourceActions declares the actions each resource supports. Grants outside
// this table are rejected by [NewMatrix].
var ResourceActions = map[Resource][]Action{
	ResourceProperties:           crud,
	ResourceDwellings:            crud,
	ResourceParticipants:         crud,
	ResourceParticipantPlans:     crud,
	ResourcePayments:             crud,
	ResourceClaims:               crud,
	ResourceMaintenance:          crud,
	ResourceInspections:          crud,
	ResourceDocuments:            crud,
	ResourceIncidents:            crud,
	ResourceComplaints:           crud,
	ResourceContractors:          crud,
	ResourceOwners:               crud,
	ResourceCalendar:             crud,
	ResourceCommunications:       crud,
	ResourceAlerts:               crud,
	ResourceReports:              {ActionView, ActionExport},
	ResourceUsers:                crud,
	ResourceAuditLogs:            {ActionView},
	ResourceOrganizationSettings: {ActionView, ActionUpdate},
	ResourceSILProviders:         crud,
}

// Grants is the declarative form of a matrix: role → resource → allowed actions.
type Grants map[Role]map[Resource][]Action

// Matrix is an immutable role × resource × action lookup table.
type Matrix struct {
	registry *Registry
	masks    map[Role]Mask
}

// NewMatrix validates grants against [ResourceActions] and freezes them.
func NewMatrix(grants Grants) (*Matrix, error) {
	registry := NewRegistry()

	resources := make([]Resource, 0, len(ResourceActions))
	for res := range ResourceActions {
		resources = append(resources, res)
	}
	sort.Slice(resources, func(i, j int) bool { return resources[i] < resources[j] })
	for _, res := range resources {
		for _, act := range ResourceActions[res] {
			if _, err := registry.Register(res, act); err != nil {
				return nil, err
			}
		}
	}
	registry.Freeze()

	masks := make(map[Role]Mask, len(grants))
	for role, byResource := range grants {
		if !role.Valid() {
			return nil, fmt.Errorf("permission: unknown role %q", role)
		}
		var mask Mask
		for res, actions := range byResource {
			for _, act := range actions {
				bit, ok := registry.Bit(res, act)
				if !ok {
					return nil, fmt.Errorf("permission: %s cannot be granted on %s", act, res)
				}
				mask.set(bit)
			}
		}
		masks[role] = mask
	}

	return &Matrix{registry: registry, masks: masks}, nil
}

// MustNewMatrix is like [NewMatrix] but panics on invalid grants.
func MustNewMatrix(grants Grants) *Matrix {
	m, err := NewMatrix(grants)
	if err != nil {
		panic(err)
	}
	return m
}

// Allowed reports whether role may perform action on resource.
func (m *Matrix) Allowed(role Role, resource Resource, action Action) bool {
	if m == nil {
		return false
	}
	mask, ok := m.masks[role]
	if !ok {
		return false
	}
	bit, ok := m.registry.Bit(resource, action)
	if !ok {
		return false
	}
	return mask.Has(bit)
}

// Granted lists the "resource:action" pairs held by role, sorted.
func (m *Matrix) Granted(role Role) []string {
	if m == nil {
		return nil
	}
	mask, ok := m.masks[role]
	if !ok || mask.Empty() {
		return nil
	}
	out := make([]string, 0, m.registry.Count())
	for bit := 0; bit < m.registry.Count(); bit++ {
		if !mask.Has(bit) {
			continue
		}
		res, act, _ := m.registry.Pair(bit)
		out = append(out, string(res)+":"+string(act))
	}
	sort.Strings(out)
	return out
}

var (
	defaultOnce   sync.Once
	defaultMatrix *Matrix
)

// Default returns the process-wide matrix built from [DefaultGrants].
func Default() *Matrix {
	defaultOnce.Do(func() {
		defaultMatrix = MustNewMatrix(DefaultGrants())
	})
	return defaultMatrix
}
