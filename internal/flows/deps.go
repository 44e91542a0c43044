package flows

// Deps groups flow dependency sets. Root engine builds this once and delegates
// request methods to the matching flow implementation.
//
// Refresh.Validate, Logout.ValidateAccess and Logout.ValidateRefresh may be
// left nil; New wires them to RunValidate with the Validate deps.
type Deps struct {
	Login    LoginDeps
	Register RegisterDeps
	Validate ValidateDeps
	Refresh  RefreshDeps
	Logout   LogoutDeps
}
