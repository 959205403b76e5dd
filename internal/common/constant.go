// Package common contains shared constants and sentinel errors used across
// dumpvault components.
package common

// SessionCookieName is the cookie that carries the signed session token
// between the browser and the HTTP front door.
const SessionCookieName = "auth-token"
