package pattern

// defaultPatterns is the generic failure vocabulary every monitor starts
// from. Order is match order.
var defaultPatterns = []string{
	"error",
	"exception",
	"failed",
	"timeout",
	"connection refused",
	"out of memory",
	"disk full",
	"service unavailable",
	"crash",
	"segmentation fault",
	"oom",
	"panic",
	"fatal",
}

// scenarioPatterns holds domain vocabulary layered on top of the defaults
// for the named monitoring scenarios.
var scenarioPatterns = map[string][]string{
	"deployment": {
		"deployment failed",
		"rollback",
		"health check failed",
		"service unavailable",
		"connection refused",
		"timeout",
	},
	"production": {
		"out of memory",
		"disk full",
		"database connection failed",
		"authentication failed",
		"rate limit exceeded",
		"service down",
	},
	"pipeline": {
		"build failed",
		"test failed",
		"deployment failed",
		"lint error",
		"security scan failed",
		"dependency conflict",
	},
}
