package google

// DriveScope grants full access to the user's Drive files. Listing files the
// app did not create needs it.
const DriveScope = "https://www.googleapis.com/auth/drive"

// DefaultOAuthScopes are requested when no scopes are configured.
var DefaultOAuthScopes = []string{
	DriveScope,
}
