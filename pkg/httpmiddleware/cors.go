package httpmiddleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig configures cross-origin resource sharing.
type CORSConfig struct {
	// AllowOrigins lists origins permitted to make cross-origin requests.
	// Empty, or a single "*", allows any origin.
	AllowOrigins []string

	// AllowMethods lists methods advertised on preflight responses. Defaults
	// to the methods the API actually serves.
	AllowMethods []string

	// AllowHeaders lists request headers advertised on preflight responses.
	// When empty the preflight's Access-Control-Request-Headers is echoed.
	AllowHeaders []string

	// ExposeHeaders lists response headers scripts may read.
	ExposeHeaders []string

	// AllowCredentials permits cookies and Authorization headers. Incompatible
	// with the wildcard origin; the specific origin is echoed instead.
	AllowCredentials bool

	// MaxAge is the preflight cache lifetime in seconds. Zero omits the
	// header, negative sends "0".
	MaxAge int
}

// corsPolicy is CORSConfig resolved into request-time form.
type corsPolicy struct {
	wildcard      bool
	origins       map[string]string // lowercased origin -> configured spelling
	methods       string
	headers       string
	exposeHeaders string
	credentials   bool
	maxAge        string
}

func newCORSPolicy(cfg CORSConfig) *corsPolicy {
	p := &corsPolicy{
		wildcard:      len(cfg.AllowOrigins) == 0,
		origins:       make(map[string]string, len(cfg.AllowOrigins)),
		methods:       strings.Join(cfg.AllowMethods, ", "),
		headers:       strings.Join(cfg.AllowHeaders, ", "),
		exposeHeaders: strings.Join(cfg.ExposeHeaders, ", "),
		credentials:   cfg.AllowCredentials,
	}
	for _, o := range cfg.AllowOrigins {
		if o == "*" {
			p.wildcard = true
			continue
		}
		p.origins[strings.ToLower(o)] = o
	}
	// The fetch spec forbids wildcard + credentials; echo the origin instead.
	if p.credentials {
		p.wildcard = false
	}
	if p.methods == "" {
		p.methods = "GET, POST, OPTIONS"
	}
	switch {
	case cfg.MaxAge > 0:
		p.maxAge = strconv.Itoa(cfg.MaxAge)
	case cfg.MaxAge < 0:
		p.maxAge = "0"
	}
	return p
}

// allowOrigin resolves the Access-Control-Allow-Origin value for a request
// origin, or "" when the origin is not allowed.
func (p *corsPolicy) allowOrigin(origin string) string {
	if p.wildcard {
		return "*"
	}
	if p.credentials && len(p.origins) == 0 {
		return origin
	}
	return p.origins[strings.ToLower(origin)]
}

// CORS returns a middleware implementing cross-origin resource sharing.
// Preflight OPTIONS requests are answered with 204 and never reach the next
// handler; Vary headers are set so shared caches key on the origin.
func CORS(cfg CORSConfig) Middleware {
	p := newCORSPolicy(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				// Same-origin request; still vary for caches when responses
				// depend on the origin.
				if !p.wildcard {
					w.Header().Add("Vary", "Origin")
				}
				next.ServeHTTP(w, r)
				return
			}

			allowed := p.allowOrigin(origin)

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.Header().Add("Vary", "Origin")
				w.Header().Add("Vary", "Access-Control-Request-Method")
				w.Header().Add("Vary", "Access-Control-Request-Headers")

				if allowed != "" {
					w.Header().Set("Access-Control-Allow-Origin", allowed)
					w.Header().Set("Access-Control-Allow-Methods", p.methods)
					if p.headers != "" {
						w.Header().Set("Access-Control-Allow-Headers", p.headers)
					} else if rh := r.Header.Get("Access-Control-Request-Headers"); rh != "" {
						w.Header().Set("Access-Control-Allow-Headers", rh)
					}
					if p.credentials {
						w.Header().Set("Access-Control-Allow-Credentials", "true")
					}
					if p.maxAge != "" {
						w.Header().Set("Access-Control-Max-Age", p.maxAge)
					}
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			if !p.wildcard {
				w.Header().Add("Vary", "Origin")
			}
			if allowed != "" {
				w.Header().Set("Access-Control-Allow-Origin", allowed)
				if p.credentials {
					w.Header().Set("Access-Control-Allow-Credentials", "true")
				}
				if p.exposeHeaders != "" {
					w.Header().Set("Access-Control-Expose-Headers", p.exposeHeaders)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
