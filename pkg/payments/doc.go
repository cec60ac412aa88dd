// Package payments holds the payment collaborator used by PAYMENT nodes: a
// demo initiator that issues YooKassa-style confirmation links, and the
// webhook payload the billing side posts back when a payment settles.
package payments
