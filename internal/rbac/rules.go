package rbac

// RolePermissions is the default policy. A trailing "*" matches a prefix.
var RolePermissions = map[string][]string{
	"student": {
		"course:view",
		"quiz:view",
		"attempt:start",
		"attempt:submit",
		"result:view-own",
		"user:change_password",
	},
	"teacher": {
		"course:create",
		"course:view",
		"course:enroll",
		"content:*",
		"quiz:*",
		"result:view-all",
		"user:change_password",
	},
	"admin": {
		"*", // everything
	},
}
