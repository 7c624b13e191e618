// Package calendar connects the dashboard to a single shared Google Calendar.
//
// An admin connects the calendar once through Google's OAuth consent flow;
// the resulting tokens are persisted in the store. TokenManager hands out a
// valid access token, refreshing it through Google's token endpoint when the
// stored one has expired. Functions exposes the four event operations
// (search_events, create_event, update_event, delete_event) used by the HTTP
// API, the AI agent and the MCP endpoint.
//
// All event operations act on the primary calendar of the connected account.
package calendar
