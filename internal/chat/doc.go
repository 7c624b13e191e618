// Package chat carries chat messages between the dashboard and the hosted
// agent services.
//
// A message posted by the browser takes one of three paths:
//
//   - relay: forwarded to an external ChatKit server and its event stream
//     piped back unchanged;
//   - direct: sent to the OpenAI ChatKit threads API for the caller's
//     workflow, with the upstream events re-emitted in the dashboard's
//     event format;
//   - local: answered by the in-process ChatKit endpoint, which keeps a
//     per-thread history and streams a chat completion.
//
// The package also runs the document agent behind /api/agent-chat.
package chat
