package model

// CPSClaims is carried by a client provided session token.
type CPSClaims struct {
	Correlator string
	Idk        string
}

// TokenManager issues and validates the short-lived tokens that complete a login.
type TokenManager interface {
	GenerateCPSToken(correlator, idk string) (string, error)
	ParseCPSToken(token string) (CPSClaims, error)
	GenerateLoginToken(idk string) (string, error)
	ParseLoginToken(token string) (string, error)
}
