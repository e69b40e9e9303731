package download

import (
	"fmt"
	"strings"
	"time"
)

const sampleLines = 120

// nginxSample renders a deterministic synthetic access log. It mixes
// success, client error, and server error responses so the loader,
// statistics, and pattern matching all have something to chew on.
func nginxSample() []byte {
	ips := []string{
		"203.0.113.10",
		"203.0.113.24",
		"198.51.100.7",
		"198.51.100.44",
		"192.0.2.91",
	}
	methods := []string{"GET", "GET", "GET", "POST", "GET", "PUT"}
	paths := []string{
		"/",
		"/api/users",
		"/api/orders",
		"/login",
		"/static/app.js",
		"/health",
		"/api/search",
	}
	agents := []string{
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36",
		"curl/8.5.0",
		"Go-http-client/2.0",
		"python-requests/2.31.0",
	}
	statuses := []int{200, 200, 200, 201, 200, 301, 404, 200, 500, 200, 403, 502}

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	var b strings.Builder
	for i := 0; i < sampleLines; i++ {
		ts := base.Add(time.Duration(i) * 7 * time.Second)
		fmt.Fprintf(&b, "%s - - [%s] %q %d %d %q %q\n",
			ips[i%len(ips)],
			ts.Format("02/Jan/2006:15:04:05 -0700"),
			fmt.Sprintf("%s %s HTTP/1.1", methods[i%len(methods)], paths[i%len(paths)]),
			statuses[i%len(statuses)],
			180+(i*37)%4200,
			"-",
			agents[i%len(agents)],
		)
	}
	return []byte(b.String())
}
