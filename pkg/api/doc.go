// Package api is the HTTP client for the portrait service. Every failure is
// returned as an *Error carrying a Kind, assigned where the failure happens.
package api
