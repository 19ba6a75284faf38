/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Seednode/concentration/games/cards"
	"github.com/julienschmidt/httprouter"
)

func getFavicon(cfg *Config) string {
	return `<link rel="icon" type="image/png" href="` + cfg.prefix + `/favicon.png">
	<meta name="theme-color" content="#f5f5f5">`
}

// serveFavicon uses the face-down card tile as the site icon.
func serveFavicon(cfg *Config, renderer *cards.Renderer, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		data, err := renderer.PNG(cards.Hidden)
		if err != nil {
			errs <- err

			http.Error(w, "favicon unavailable", http.StatusInternalServerError)

			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "public, max-age=86400")
		w.Header().Set("Expires", time.Now().Add(24*time.Hour).UTC().Format(http.TimeFormat))
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		securityHeaders(cfg, w)

		_, err = w.Write(data)
		if err != nil {
			errs <- err

			return
		}
	}
}
