package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/teemow/recircuit/internal/calendar"
	"github.com/teemow/recircuit/internal/instrumentation"
	"github.com/teemow/recircuit/internal/logging"
	"github.com/teemow/recircuit/internal/openai"
)

const (
	// DefaultAgentModel is the model of the agent workflow.
	DefaultAgentModel = "gpt-4.1"

	// MaxAgentRounds bounds the function calling rounds of one run.
	MaxAgentRounds = 8

	// AgentInstructions are the base instructions of the agent workflow.
	AgentInstructions = "You are expected to answer the users questions from the document uploaded as your source."

	adminInstructions = " You can also search, create, update and delete events on the connected Google Calendar " +
		"using the calendar functions."
)

var (
	// ErrEmptyOutput is returned when the agent finishes without text.
	ErrEmptyOutput = errors.New("agent result is undefined")

	// ErrTooManyRounds is returned when the model keeps calling functions.
	ErrTooManyRounds = fmt.Errorf("agent exceeded %d function calling rounds", MaxAgentRounds)
)

// Responder runs Responses API turns.
type Responder interface {
	CreateResponse(ctx context.Context, req openai.ResponseRequest) (*openai.Response, error)
}

// FunctionCaller runs calendar functions.
type FunctionCaller interface {
	Call(ctx context.Context, name string, args json.RawMessage, caller calendar.Caller) (any, error)
}

// AgentConfig configures an Agent.
type AgentConfig struct {
	Responses Responder
	// Functions is optional. Without it admins get no calendar tools.
	Functions     FunctionCaller
	Model         string
	VectorStoreID string
	Logger        *slog.Logger
}

// Agent answers questions from the uploaded documents and, for admins,
// manages the connected calendar.
type Agent struct {
	responses     Responder
	functions     FunctionCaller
	model         string
	vectorStoreID string
	logger        *slog.Logger
}

// NewAgent creates an Agent.
func NewAgent(cfg AgentConfig) *Agent {
	if cfg.Model == "" {
		cfg.Model = DefaultAgentModel
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Agent{
		responses:     cfg.Responses,
		functions:     cfg.Functions,
		model:         cfg.Model,
		vectorStoreID: cfg.VectorStoreID,
		logger:        cfg.Logger,
	}
}

// AgentRequest is one agent run.
type AgentRequest struct {
	Message string
	UserID  string
	Email   string
	Admin   bool
}

// Run executes the workflow and returns the final output text.
func (a *Agent) Run(ctx context.Context, req AgentRequest) (string, error) {
	ctx, span := instrumentation.StartSpan(ctx, "agent.run")
	defer span.End()

	calendarEnabled := req.Admin && a.functions != nil
	instructions := AgentInstructions
	if calendarEnabled {
		instructions += adminInstructions
	}

	store := true
	turn := openai.ResponseRequest{
		Model:        a.model,
		Instructions: instructions,
		Input:        []any{openai.InputMessage{Role: openai.RoleUser, Content: req.Message}},
		Tools:        a.tools(calendarEnabled),
		Store:        &store,
		User:         req.UserID,
	}

	for round := 0; round < MaxAgentRounds; round++ {
		resp, err := a.responses.CreateResponse(ctx, turn)
		if err != nil {
			instrumentation.SetSpanError(span, err)
			return "", err
		}

		calls := resp.FunctionCalls()
		if len(calls) == 0 {
			text := resp.OutputText()
			if text == "" {
				instrumentation.SetSpanError(span, ErrEmptyOutput)
				return "", ErrEmptyOutput
			}
			instrumentation.SetSpanSuccess(span)
			return text, nil
		}

		outputs := make([]any, 0, len(calls))
		for _, call := range calls {
			outputs = append(outputs, a.callFunction(ctx, call, req.Email, calendarEnabled))
		}

		turn.PreviousResponseID = resp.ID
		turn.Input = outputs
	}

	instrumentation.SetSpanError(span, ErrTooManyRounds)
	return "", ErrTooManyRounds
}

func (a *Agent) tools(calendarEnabled bool) []any {
	var tools []any
	if a.vectorStoreID != "" {
		tools = append(tools, openai.NewFileSearchTool(a.vectorStoreID))
	}
	if calendarEnabled {
		for _, def := range calendar.FunctionDefinitions() {
			tools = append(tools, def)
		}
	}
	return tools
}

// callFunction runs one function call. Failures are reported to the model as
// {"error": message}.
func (a *Agent) callFunction(ctx context.Context, call openai.OutputItem, email string, calendarEnabled bool) openai.FunctionCallOutput {
	var (
		result any
		err    error
	)
	if !calendarEnabled {
		err = fmt.Errorf("%w: %s", calendar.ErrUnknownFunction, call.Name)
	} else {
		args := json.RawMessage(call.Arguments)
		if len(args) == 0 {
			args = json.RawMessage("{}")
		}
		result, err = a.functions.Call(ctx, call.Name, args, calendar.Caller{
			Source: instrumentation.SourceAgent,
			Email:  email,
		})
	}

	if err != nil {
		a.logger.WarnContext(ctx, "agent function call failed",
			logging.Function(call.Name),
			logging.Err(err))
		result = map[string]string{"error": err.Error()}
	}

	data, err := json.Marshal(result)
	if err != nil {
		data, _ = json.Marshal(map[string]string{"error": err.Error()})
	}
	return openai.NewFunctionCallOutput(call.CallID, string(data))
}
