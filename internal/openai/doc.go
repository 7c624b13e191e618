// Package openai talks to the OpenAI platform on behalf of the dashboard.
//
// File uploads, vector store management, chat completion streaming and the
// models listing go through github.com/sashabaranov/go-openai. ChatKit
// sessions and threads, the Responses API and the vector store calls that
// need parameters the SDK does not model (file attributes, chunking strategy,
// status filters) use a small JSON client over the same HTTP transport.
package openai
