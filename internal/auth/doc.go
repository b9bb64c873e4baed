// Package auth contains the credential primitives used by the auth service:
// bcrypt password hashing, signed bearer tokens, password-reset secrets and
// the login lockout policy. Nothing in this package touches storage.
package auth
