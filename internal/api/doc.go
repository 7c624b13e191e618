// Package api holds the JSON conventions shared by the HTTP handlers:
// {"error": "..."} bodies, typed API errors and bounded request decoding.
package api
