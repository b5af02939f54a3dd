// Package wizard implements the three step portrait flow: redeem an access
// code, choose a photo and styling options, then show the generated result.
// The Controller owns the session and talks to a Backend (normally
// *api.Client). Rendering is delegated to a Surface so the same controller
// drives the terminal UI and tests alike. Step changes go through Next, which
// rejects transitions the flow does not allow. Local checks (code length,
// image type and size, option values) never reach the network and surface as
// *api.Error values of kind api.KindValidation wrapping a *ValidationError.
// At most one generation is outstanding: a second Generate returns ErrInFlight
// without sending anything, and the busy state is cleared on every exit path.
package wizard
