package version

const (
	// Version of RPS
	Version = "v0.0.0"
	// Name of the project
	Name = "TchapRoomPolicyService"
)

var (
	// UserAgent of RPS
	UserAgent = Name + "/" + Version
	// Server header returned by RPS
	Server = Name + "/" + Version
)
