// Package server hosts the Fiber HTTP surface in front of the disk cache:
// GET/PUT/DELETE on /cache/<key>, plus /-/reset, /-/sweep and /-/stats
// diagnostics. It also owns the shared upstream http.Client and the loader that
// fetches missing keys from an origin. Keep exports narrow and accept explicit
// dependencies so tests can run the app via app.Test without a listener.
package server
