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
	"net/http/cookiejar"
	"net/url"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"
)

// WebSocketClient dials a websocket service that sends us requests.
// Replies go back on the same connection.
func (s *Service) WebSocketClient(ctx context.Context, urls string) error {
	u, err := url.Parse(urls)
	if err != nil {
		return err
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return err
	}

	dialer := *websocket.DefaultDialer
	dialer.Jar = jar

	c, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return err
	}
	defer c.Close()

	go func() {
		<-ctx.Done()
		c.Close()
	}()

	s.Logger.Info("websocket client starting", zap.String("url", urls))

	err = s.converse(ctx, c)
	if ctx.Err() != nil {
		return nil
	}
	return err
}
