package gateway

import (
	"net/http"
	"net/http/httputil"
	"net/url"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"Storefront/pkg/kit"
)

// NewReverseProxy forwards to target, propagating the request id and
// answering 502 in the shared error shape when the upstream is down.
func NewReverseProxy(target string, log *zap.Logger) (http.Handler, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, err
	}
	log = kit.OrNop(log)

	p := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(u)
			pr.SetXForwarded()
			if id := chimw.GetReqID(pr.In.Context()); id != "" {
				pr.Out.Header.Set(chimw.RequestIDHeader, id)
			}
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			log.Warn("upstream error", zap.String("upstream", u.Host), zap.String("path", r.URL.Path), zap.Error(err))
			kit.WriteError(w, r, http.StatusBadGateway, "upstream unavailable", nil)
		},
	}
	return p, nil
}
