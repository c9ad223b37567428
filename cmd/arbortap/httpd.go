/* Copyright 2019 Comcast Cable Communications Management, LLC
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/Comcast/arbor/sio"
	"github.com/Comcast/arbor/tools"

	"github.com/golang/glog"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler serves
//
//	GET  /data        the serialized data
//	POST /data        a JSON command, as for stdin
//	GET  /monkeys     an HTML page describing the monkeys
//	GET  /monkeys.dot the monkey graph for Graphviz
//	GET  /metrics     Prometheus metrics
//	     /ws          the WebSocket hub, if any
func (s *Service) Handler(hub *sio.WebSocketHub) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/data", func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		switch r.Method {
		case "GET":
			x, err := s.Snapshot(ctx)
			if err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(x)

		case "POST":
			bs, err := io.ReadAll(r.Body)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			c, err := sio.ParseCommand(bs)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			var failed error
			if err := s.Loop.Do(ctx, func() {
				failed = c.Exec(s.Tree)
			}); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
			if failed != nil {
				http.Error(w, failed.Error(), http.StatusUnprocessableEntity)
				return
			}
			w.WriteHeader(http.StatusAccepted)

		default:
			http.Error(w, "GET or POST", http.StatusMethodNotAllowed)
		}
	})

	graph := func(ctx context.Context) (*tools.Graph, error) {
		var g *tools.Graph
		err := s.Loop.Do(ctx, func() {
			g = tools.MonkeyGraph(s.Tree)
		})
		return g, err
	}

	mux.HandleFunc("/monkeys", func(w http.ResponseWriter, r *http.Request) {
		g, err := graph(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := tools.RenderMonkeyPage(g, w, s.Name, nil); err != nil {
			glog.Warningf("rendering monkeys: %v", err)
		}
	})

	mux.HandleFunc("/monkeys.dot", func(w http.ResponseWriter, r *http.Request) {
		g, err := graph(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/vnd.graphviz")
		if err := tools.Dot(g, w, &tools.DotOpts{
			Highlight:  r.URL.Query().Get("highlight"),
			ShowSource: r.URL.Query().Get("source") != "",
		}); err != nil {
			glog.Warningf("rendering dot: %v", err)
		}
	})

	mux.Handle("/metrics", promhttp.HandlerFor(s.Registry, promhttp.HandlerOpts{}))

	if hub != nil {
		hub.Snapshot = func() interface{} {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			x, err := s.Snapshot(ctx)
			if err != nil {
				glog.Warningf("websocket snapshot: %v", err)
			}
			return x
		}
		mux.Handle("/ws", hub)
	}

	return mux
}

// Serve runs the HTTP server until the context is done.
func Serve(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdown)
	}()
	glog.Infof("listening on %s", addr)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
