package middleware

import (
	"net/http"
	"net/url"
	"strings"
)

// originPolicy decide quais Origins podem fazer requisições com credenciais.
type originPolicy struct {
	exact    map[string]struct{}
	suffixes []string
}

func newOriginPolicy(entries []string) *originPolicy {
	p := &originPolicy{exact: make(map[string]struct{}, len(entries))}
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		switch {
		case entry == "":
		case strings.HasPrefix(entry, "*."):
			// "*.gestaozabele.com.br" casa qualquer subdomínio, nunca a raiz.
			p.suffixes = append(p.suffixes, strings.ToLower(strings.TrimPrefix(entry, "*")))
		default:
			p.exact[entry] = struct{}{}
		}
	}
	return p
}

func (p *originPolicy) allows(origin string) bool {
	if origin == "" {
		return false
	}
	if _, ok := p.exact[origin]; ok {
		return true
	}

	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := strings.ToLower(parsed.Hostname())
	for _, suffix := range p.suffixes {
		if host != strings.TrimPrefix(suffix, ".") && strings.HasSuffix(host, suffix) {
			return true
		}
	}
	return false
}

// CORS aplica a allow-list de origens configurada em ALLOW_ORIGINS.
// Aceita entradas exatas (https://registro.gestaozabele.com.br) e wildcard de
// subdomínio (*.gestaozabele.com.br).
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	policy := newOriginPolicy(allowedOrigins)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origin := r.Header.Get("Origin"); policy.allows(origin) {
				header := w.Header()
				header.Set("Access-Control-Allow-Origin", origin)
				header.Set("Access-Control-Allow-Credentials", "true")
				header.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Requested-With")
				header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
				header.Set("Vary", "Origin")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
