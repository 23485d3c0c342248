// Package httpapi exposes the engine over HTTP: the /user account and session routes, a
// health probe and the Prometheus scrape endpoint. Responses use the envelope
// {"success": bool, "error": string, "result": any}.
package httpapi
