// Package assistants provides the tool-calling loop of the agent: it asks the
// model for the next action, dispatches the requested calls to a tool host,
// folds the results into the conversation and decides when to stop.
// Repeated calls with the same tool name and arguments are executed at most
// once per query.
package assistants
