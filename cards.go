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

func newRenderer(cfg *Config) *cards.Renderer {
	renderer := cards.NewRenderer(cards.Options{FontPath: cfg.font})

	if err := renderer.FontErr(); err != nil {
		logf(cfg, "CARDS: Using fallback font: %v", err)
	}

	return renderer
}

// serveCard handles /cards/:face, where face is "hidden.png" or "1.png" through "8.png".
func serveCard(cfg *Config, renderer *cards.Renderer, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		face, err := cards.ParseFace(p.ByName("face"))
		if err != nil {
			http.NotFound(w, r)

			return
		}

		data, err := renderer.PNG(face)
		if err != nil {
			errs <- err

			http.Error(w, "card unavailable", http.StatusInternalServerError)

			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "public, max-age=86400, immutable")
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
