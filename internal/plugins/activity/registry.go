package activity

// kindSpec groups everything the engine knows about one tracked table.
type kindSpec struct {
	equal   equalFunc
	noise   noiseFunc
	resolve resolverFunc
}

// registry is the dispatch table from table name to its rules and resolver.
// Every entry of AllKinds must be present; see TestRegistry_CoversAllKinds.
var registry = map[Kind]kindSpec{
	KindTasks:       {equal: imagesEqual, resolve: resolveTask},
	KindProjects:    {equal: projectsEqual, resolve: resolveProject},
	KindUsers:       {equal: imagesEqual, noise: userUpdateNoise, resolve: resolveUser},
	KindMilestones:  {equal: imagesEqual, resolve: resolveMilestone},
	KindComments:    {equal: imagesEqual, resolve: resolveComment},
	KindFiles:       {equal: imagesEqual, resolve: resolveFile},
	KindMembers:     {equal: imagesEqual, noise: selfInviteNoise, resolve: resolveMember},
	KindAssignments: {equal: imagesEqual, resolve: resolveAssignment},
	KindInvitations: {equal: imagesEqual, noise: invitationAcceptedNoise, resolve: resolveInvitation},
	KindTaskLabels:  {equal: imagesEqual, resolve: resolveTaskLabel},
	KindSubtasks:    {equal: imagesEqual, resolve: resolveSubtask},
}
