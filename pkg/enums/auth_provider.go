package enums

// AuthProviderID names a sign-in method linked to a profile. The values
// match the provider ids the web client already stores.
type AuthProviderID string

const (
	AuthProviderPassword AuthProviderID = "password"
	AuthProviderGoogle   AuthProviderID = "google.com"
	AuthProviderFacebook AuthProviderID = "facebook.com"
)

var authProviders = set[AuthProviderID]{AuthProviderPassword, AuthProviderGoogle, AuthProviderFacebook}

func (p AuthProviderID) String() string { return string(p) }

func (p AuthProviderID) IsValid() bool { return authProviders.has(p) }

// IsSocial reports whether the provider is an external identity provider.
func (p AuthProviderID) IsSocial() bool {
	return p == AuthProviderGoogle || p == AuthProviderFacebook
}

func ParseAuthProviderID(value string) (AuthProviderID, error) {
	return authProviders.parse("auth provider", value)
}

// Persistence selects how long a sign-in survives.
type Persistence string

const (
	// PersistenceLocal survives client restarts ("remember me").
	PersistenceLocal Persistence = "local"
	// PersistenceSession is dropped when the client process ends.
	PersistenceSession Persistence = "session"
)

func PersistenceFromRememberMe(remember bool) Persistence {
	if remember {
		return PersistenceLocal
	}
	return PersistenceSession
}

func (p Persistence) IsValid() bool {
	return p == PersistenceLocal || p == PersistenceSession
}

func (p Persistence) String() string { return string(p) }
