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
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WebSocketHandler serves the request/reply protocol over
// websockets.  Each text message is a request; each reply goes back
// on the same connection.
func (s *Service) WebSocketHandler(ctx context.Context) http.Handler {
	var upgrader = websocket.Upgrader{} // use default options

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.Logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}
		defer c.Close()

		remote := c.RemoteAddr().String()
		s.Logger.Debug("websocket connection", zap.String("remote", remote))

		if err = s.converse(ctx, c); err != nil {
			s.Logger.Debug("websocket done",
				zap.String("remote", remote),
				zap.Error(err))
		}
	})
}

// converse reads requests from the connection and writes replies
// until the connection fails.
func (s *Service) converse(ctx context.Context, c *websocket.Conn) error {
	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			return err
		}

		reply := &Reply{
			Kind: "input",
		}
		req, err := ParseRequest(string(message))
		switch {
		case err != nil:
			reply.Error = err.Error()
		case req == nil:
			continue
		default:
			if reply, err = s.Do(ctx, req); err != nil {
				return err
			}
		}

		if err = c.WriteJSON(reply); err != nil {
			return err
		}
	}
}

// WebSocketService listens on the address and serves the websocket
// API at /ws/api.
func (s *Service) WebSocketService(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/ws/api", s.WebSocketHandler(ctx))

	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		server.Close()
	}()

	s.Logger.Info("websocket service", zap.String("addr", addr))
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
