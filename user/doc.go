// Package user holds the backend record of an authenticated principal, the
// load-or-create helper run after every sign-in, and the store publishing
// the current user.
package user
