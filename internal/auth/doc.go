// Package auth provides token authentication and authorisation for the
// catalogue service.
//
// Callers present HS256 JWTs carrying a role (viewer → operator → admin).
// Permissions are a static role mapping with no database lookup: viewers
// read and export, operators also reload the catalogue, admins also change
// search fields and read load history. Tokens are issued out of band, for
// example with compatctl token.
package auth
