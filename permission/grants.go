package permission

var (
	viewOnly   = []Action{ActionView}
	viewCreate = []Action{ActionView, ActionCreate}
	noDelete   = []Action{ActionView, ActionCreate, ActionUpdate}
	viewExport = []Action{ActionView, ActionExport}
)

// DefaultGrants returns the grant table of the application roles. Admins hold
// every action each resource supports; sil_provider holds none.
func DefaultGrants() Grants {
	admin := make(map[Resource][]Action, len(ResourceActions))
	for res, actions := range ResourceActions {
		admin[res] = append([]Action(nil), actions...)
	}

	return Grants{
		RoleAdmin: admin,
		RolePropertyManager: {
			ResourceProperties:       noDelete,
			ResourceDwellings:        noDelete,
			ResourceParticipants:     noDelete,
			ResourceParticipantPlans: noDelete,
			ResourcePayments:         noDelete,
			ResourceClaims:           noDelete,
			ResourceMaintenance:      crud,
			ResourceInspections:      crud,
			ResourceDocuments:        crud,
			ResourceIncidents:        noDelete,
			ResourceComplaints:       noDelete,
			ResourceContractors:      noDelete,
			ResourceOwners:           noDelete,
			ResourceCalendar:         crud,
			ResourceCommunications:   noDelete,
			ResourceAlerts:           {ActionView, ActionUpdate},
			ResourceReports:          viewExport,
			ResourceSILProviders:     noDelete,
		},
		RoleStaff: {
			ResourceProperties:       viewOnly,
			ResourceDwellings:        viewOnly,
			ResourceParticipants:     viewOnly,
			ResourceParticipantPlans: viewOnly,
			ResourceMaintenance:      noDelete,
			ResourceInspections:      noDelete,
			ResourceDocuments:        viewCreate,
			ResourceIncidents:        noDelete,
			ResourceComplaints:       viewCreate,
			ResourceContractors:      viewOnly,
			ResourceCalendar:         noDelete,
			ResourceCommunications:   viewCreate,
			ResourceAlerts:           viewOnly,
		},
		RoleAccountant: {
			ResourceProperties:       viewOnly,
			ResourceDwellings:        viewOnly,
			ResourceParticipants:     viewOnly,
			ResourceParticipantPlans: viewOnly,
			ResourcePayments:         noDelete,
			ResourceClaims:           noDelete,
			ResourceMaintenance:      viewOnly,
			ResourceInspections:      viewOnly,
			ResourceDocuments:        viewCreate,
			ResourceIncidents:        viewOnly,
			ResourceContractors:      viewOnly,
			ResourceOwners:           {ActionView, ActionUpdate},
			ResourceCalendar:         viewOnly,
			ResourceCommunications:   viewOnly,
			ResourceAlerts:           viewOnly,
			ResourceReports:          viewExport,
		},
		// SIL providers hold an account but no grants until their portal scope is defined.
		RoleSILProvider: {},
	}
}
