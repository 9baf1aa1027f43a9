// Package prompt holds the system prompt templates for every orchestration
// role and renders them with the shared template helper. Templates receive
// CURRENT_TIME and CURRENT_TIMESTAMP plus any caller supplied variables.
package prompt
