package rbac

// Capability identifies a gated feature or action. Keys are grouped by the
// dashboard surface they belong to.
type Capability string

const (
	CapUsersList            Capability = "users.list"
	CapUsersInvite          Capability = "users.invite"
	CapUsersEdit            Capability = "users.edit"
	CapHierarchyView        Capability = "hierarchy.view"
	CapHierarchyReassign    Capability = "hierarchy.reassign"
	CapDealersList          Capability = "dealers.list"
	CapDealersAssign        Capability = "dealers.assign"
	CapDealersEditLocation  Capability = "dealers.editLocation"
	CapSalesmanRatings      Capability = "scoresAndRatings.salesmanRatings"
	CapTechnicalSitesList   Capability = "technicalSites.listSites"
	CapCompanyProfileView   Capability = "company.view"
	CapCompanyProfileUpdate Capability = "company.update"
)

type capabilitySet map[Capability]struct{}

func caps(list ...Capability) capabilitySet {
	set := make(capabilitySet, len(list))
	for _, c := range list {
		set[c] = struct{}{}
	}
	return set
}

var executiveCaps = caps(
	CapDealersList,
	CapTechnicalSitesList,
	CapCompanyProfileView,
)

// capabilities is the static role -> capability table. Entries are additive
// over executiveCaps; every known role sees at least the executive surface.
var capabilities = map[Role]capabilitySet{
	RoleSeniorExecutive:  executiveCaps,
	RoleAssistantManager: merge(executiveCaps, caps(CapUsersList, CapHierarchyView)),
	RoleManager: merge(executiveCaps, caps(
		CapUsersList,
		CapHierarchyView,
		CapDealersAssign,
		CapDealersEditLocation,
		CapSalesmanRatings,
	)),
	RoleSeniorManager: merge(executiveCaps, caps(
		CapUsersList,
		CapUsersInvite,
		CapUsersEdit,
		CapHierarchyView,
		CapHierarchyReassign,
		CapDealersAssign,
		CapDealersEditLocation,
		CapSalesmanRatings,
	)),
	RoleGeneralManager: merge(executiveCaps, caps(
		CapUsersList,
		CapUsersInvite,
		CapUsersEdit,
		CapHierarchyView,
		CapHierarchyReassign,
		CapDealersAssign,
		CapDealersEditLocation,
		CapSalesmanRatings,
	)),
	RoleSeniorGeneralManager: merge(executiveCaps, caps(
		CapUsersList,
		CapUsersInvite,
		CapUsersEdit,
		CapHierarchyView,
		CapHierarchyReassign,
		CapDealersAssign,
		CapDealersEditLocation,
		CapSalesmanRatings,
	)),
	RolePresident: merge(executiveCaps, caps(
		CapUsersList,
		CapUsersInvite,
		CapUsersEdit,
		CapHierarchyView,
		CapHierarchyReassign,
		CapDealersAssign,
		CapDealersEditLocation,
		CapSalesmanRatings,
		CapCompanyProfileUpdate,
	)),
}

func merge(sets ...capabilitySet) capabilitySet {
	out := capabilitySet{}
	for _, set := range sets {
		for c := range set {
			out[c] = struct{}{}
		}
	}
	return out
}

// HasPermission reports whether the role is granted the capability. Unknown
// roles resolve to the lowest-privilege capability set.
func HasPermission(role Role, capability Capability) bool {
	set, ok := capabilities[role]
	if !ok {
		set = capabilities[RoleSeniorExecutive]
	}
	_, granted := set[capability]
	return granted
}
