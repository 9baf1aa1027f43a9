// Package config provides file and environment based configuration for
// planmesh runs.
//
// Configuration is resolved in three layers. DefaultConfig supplies the
// built-in defaults, a YAML file overrides them, and a small set of
// environment variables (LLM_BASE_URL, LLM_API_KEY, LOG_LEVEL) fills in
// whatever the file left unset. Model entries map provider endpoints to
// per-role model names so a single run can route planner, worker and
// reporter calls to different models.
package config
