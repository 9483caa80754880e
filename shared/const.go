package shared

const (
	UserID = "user_id"

	RoleUser  = "user"
	RoleAdmin = "admin"

	// The upstream fixtures endpoint accepts at most 20 ids per call.
	MaxFixtureIDsPerRequest = 20
)
