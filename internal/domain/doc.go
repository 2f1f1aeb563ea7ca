// Package domain contains the core business entities of the application:
// tasks (templates and their generated instances) and notifications. It is
// independent of any storage or delivery mechanism.
package domain
