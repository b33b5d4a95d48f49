package domain

// UnknownUserName is recorded for purchasers missing from the directory.
const UnknownUserName = "unknown"

type User struct {
	Identity    string
	DisplayName string
	StudentID   string
	Grade       string
}
