// Package security summarizes an engine's hardening posture for startup logs and health
// tooling.
package security
