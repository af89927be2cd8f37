package cmd

const (
	defaultDescription = "no description"
	noTimeLimit        = -1
)

// Options describes how a command is presented and who may run it. Zero
// values are replaced with defaults at registration time.
type Options struct {
	Description string
	// RequiredPermissions left nil falls back to the registry default.
	// A non-nil empty slice opens the command to everyone.
	RequiredPermissions []Permission
	// ApprovedUsers, NotifyDenial and TimeLimit are carried on the command
	// but not enforced by the dispatcher.
	ApprovedUsers []string
	NotifyDenial  bool
	Usage         string
	// TimeLimit in seconds; -1 means no limit.
	TimeLimit int
}

func (o Options) withDefaults(defaultPerms []Permission) Options {
	if o.Description == "" {
		o.Description = defaultDescription
	}
	if o.RequiredPermissions == nil {
		o.RequiredPermissions = append([]Permission{}, defaultPerms...)
	} else {
		o.RequiredPermissions = append([]Permission{}, o.RequiredPermissions...)
	}
	if o.ApprovedUsers == nil {
		o.ApprovedUsers = []string{}
	} else {
		o.ApprovedUsers = append([]string{}, o.ApprovedUsers...)
	}
	if o.TimeLimit == 0 {
		o.TimeLimit = noTimeLimit
	}
	return o
}

// Command is a registry entry.
type Command struct {
	Name    string
	Handler HandlerFunc
	Options Options
}

// Info is the read-only view of a command used by help and listing surfaces.
type Info struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Usage       string       `json:"usage"`
	Permissions []Permission `json:"permissions"`
}
