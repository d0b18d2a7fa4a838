package rbac

// RolePermissions is the default policy. Anonymous callers carry no role
// and may only launch, fetch and submit tests as guests.
var RolePermissions = map[string][]string{
	"student": {
		"blueprint:list",
		"attempt:view-own",
	},
	"author": {
		"blueprint:list",
		"question:ingest",
		"question:vet",
		"review:list",
	},
	"reviewer": {
		"blueprint:list",
		"question:vet",
		"review:*",
	},
	"admin": {
		"*", // everything
	},
}
