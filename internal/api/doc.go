// Package api contains the HTTP handlers of the service: the job trigger
// endpoints called by the platform scheduler and the per-user notification
// endpoints. Handlers translate HTTP requests into service calls and map
// service errors to status codes; authentication lives in the middleware
// package.
package api
