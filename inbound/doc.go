// Package inbound exposes the HTTP trigger surface for provider sync.
//
// A single bearer shared secret gates the routes. Per-tenant sync outcomes
// always travel in the 200 response body; non-2xx statuses are reserved for
// request-level failures such as an unknown source or bad input.
package inbound
