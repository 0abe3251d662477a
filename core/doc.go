// Package core implements the subscription lifecycle manager for
// webhook-style change subscriptions against a remote resource-graph API.
//
// The Service orchestrates three flows: Create (concurrent profile fetch +
// remote subscription create, persisted only after both succeed), Renew
// (driven by out-of-band lifecycle notifications, re-acquiring the owner's
// delegated credentials), and Delete (remote delete first, local delete
// second). The remote API client, credential lookup, and subscription store
// are injected contracts; see contracts.go.
package core
