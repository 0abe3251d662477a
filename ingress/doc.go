// Package ingress receives lifecycle event envelopes from the remote API,
// decodes them into notifications, and hands them to the lifecycle manager.
// The dispatcher always acknowledges: delivery retries are driven by the
// remote side, and a failed renewal surfaces again as a future notification.
package ingress
