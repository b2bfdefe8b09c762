// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package gateway

import (
	"net/http"
	"strconv"

	"github.com/relabs-tech/tablegate/core/logger"
)

// handleCORS sets the configured CORS headers on every response and answers preflight requests
func (g *Gateway) handleCORS(h http.Handler) http.Handler {
	cors := g.config.CORS
	maxAge := strconv.Itoa(cors.MaxAge)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", cors.AllowOrigin)
		w.Header().Set("Access-Control-Allow-Methods", cors.AllowMethods)
		w.Header().Set("Access-Control-Allow-Headers", cors.AllowHeaders)
		w.Header().Set("Access-Control-Expose-Headers", cors.ExposeHeaders)
		w.Header().Set("Access-Control-Max-Age", maxAge)

		// Handle preflight OPTIONS request
		if r.Method == http.MethodOptions {
			logger.FromContext(r.Context()).Debugln("called route for", r.URL, r.Method, "(handled by CORS middleware)")
			w.WriteHeader(http.StatusNoContent)
			return
		}

		h.ServeHTTP(w, r)
	})
}
