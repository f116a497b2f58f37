// Package metrics registers the Prometheus metrics exported by isoserved.
package metrics

import (
	"net/http"

	gometrics "github.com/docker/go-metrics"
)

var (
	// RequestDuration is the time taken to serve a request, by status code.
	RequestDuration gometrics.LabeledTimer
	// Requests counts served requests, by status code.
	Requests gometrics.LabeledCounter
	// ResponseBytes counts the response body bytes written by handlers.
	ResponseBytes gometrics.Counter
)

func init() {
	ns := gometrics.NewNamespace("isoserve", "http", nil)
	RequestDuration = ns.NewLabeledTimer("request_duration", "The number of seconds it takes to serve a request", "code")
	Requests = ns.NewLabeledCounter("requests", "The number of requests served", "code")
	ResponseBytes = ns.NewCounter("response_bytes", "The number of response body bytes written")
	gometrics.Register(ns)
}

// Handler returns the http handler exposing the registered metrics in the
// Prometheus text format.
func Handler() http.Handler {
	return gometrics.Handler()
}
