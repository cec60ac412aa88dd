/*
Package observability provides tools for monitoring the funnel engine.

It turns lifecycle hooks into Prometheus metrics and structured log lines,
and combines several hook sets into one so embedders can keep their own
observers next to the built-in ones.
*/
package observability
