package instrumentation

import "strings"

// Cardinality management helpers for metrics.
// These functions reduce high-cardinality label values to prevent metrics explosion.
// Always use them when recording metrics with user identifiers or request paths.

// ExtractUserDomain extracts the domain part from an email address.
//
// Example:
//
//	ExtractUserDomain("jane@example.com")  // "example.com"
//	ExtractUserDomain("invalid")           // "unknown"
//	ExtractUserDomain("")                  // "unknown"
func ExtractUserDomain(email string) string {
	if email == "" {
		return "unknown"
	}

	parts := strings.Split(email, "@")
	if len(parts) == 2 && parts[1] != "" {
		return strings.ToLower(parts[1])
	}

	return "unknown"
}

// RouteLabel returns the label used for the HTTP path attribute.
// Requests that matched no route are collapsed into a single value so that
// scanners cannot grow the label set.
func RouteLabel(pattern string) string {
	if pattern == "" {
		return "unmatched"
	}
	return pattern
}

// Common operation types for Google and OpenAI API metrics.
// Status, OAuth, and Service constants are defined in config.go.
const (
	OperationSearch   = "search"
	OperationCreate   = "create"
	OperationUpdate   = "update"
	OperationDelete   = "delete"
	OperationExchange = "exchange"
	OperationRefresh  = "refresh"

	OperationUploadFile        = "files.upload"
	OperationGetFile           = "files.get"
	OperationCreateVectorStore = "vector_stores.create"
	OperationAddFile           = "vector_stores.files.create"
	OperationListFiles         = "vector_stores.files.list"
	OperationRemoveFile        = "vector_stores.files.delete"
	OperationChatKitSession    = "chatkit.sessions.create"
	OperationChatKitMessage    = "chatkit.threads.create"
	OperationResponse          = "responses.create"
	OperationChatCompletion    = "chat.completions.stream"
	OperationListModels        = "models.list"
)
