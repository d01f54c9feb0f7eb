package service

import (
	"strings"

	"github.com/AnTengye/topicdetect/model"
)

// NormalizeServiceString undoes JSON-style slash escaping that some job
// service responses leave in identifiers and URIs.
func NormalizeServiceString(s string) string {
	return strings.ReplaceAll(s, `\/`, "/")
}

// Resolve reduces a terminal job result to what the caller sees. A completed
// job reporting no output location falls back to the prefix it was submitted
// with. A failed job never carries a location.
func Resolve(job *model.AnalysisJob, result *model.JobResult) model.Resolution {
	switch result.Status {
	case model.JobCompleted:
		out := NormalizeServiceString(result.OutputLocation)
		if out == "" {
			out = job.OutputURI
		}
		return model.Resolution{Status: model.JobCompleted, OutputURI: out}
	default:
		return model.Resolution{Status: model.JobFailed}
	}
}
