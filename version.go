package funnel

// Version is the release of the funnel engine.
var Version = "0.4.0"
