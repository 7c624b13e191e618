// Package auth implements credential sign-in and cookie sessions.
//
// Passwords are bcrypt hashes stored on the user row. A successful sign-in
// issues an HS256 JWT carried in an HttpOnly cookie; the middleware in this
// package resolves that cookie into a Session on the request context and
// gates pages and APIs by role.
package auth
