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
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Comcast/fibers/core"
	"github.com/Comcast/fibers/journal/bolt"
	. "github.com/Comcast/fibers/util/testutil"

	"github.com/gorilla/websocket"
)

const testDriver = `
local fiber = require("fiber")
fiber.serve(function(action, params)
  return coroutine.create(function()
    if action == "get" then
      return 42
    elseif action == "double" then
      return params.n * 2
    end
    return nil, "unknown action " .. action
  end)
end)
`

func testService(ctx context.Context, t *testing.T, cfg *Config) *Service {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Script == "" {
		cfg.Script = WriteFile(t, t.TempDir(), "driver.lua", testDriver)
	}
	s, err := NewService(ctx, cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	go s.Run(ctx)
	return s
}

func TestParseRequest(t *testing.T) {
	tests := []struct {
		line    string
		action  string
		payload string
		err     bool
	}{
		{line: "get", action: "get", payload: "null"},
		{line: "  get  ", action: "get", payload: "null"},
		{line: `double {"n":3}`, action: "double", payload: `{"n":3}`},
		{line: `{"id":"a","action":"get"}`, action: "get", payload: "null"},
		{line: `double {"n":`, err: true},
		{line: `{"id":"a"}`, err: true},
		{line: `{`, err: true},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			r, err := ParseRequest(tt.line)
			if tt.err {
				if err == nil {
					t.Fatal("should have complained")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if r.Action != tt.action {
				t.Fatal(r.Action)
			}
			if got := JS(r.Payload); got != tt.payload {
				t.Fatal(got)
			}
		})
	}

	if r, err := ParseRequest("   "); r != nil || err != nil {
		t.Fatal(r, err)
	}
}

func TestServiceStdio(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := DefaultConfig()
	cfg.Journal = filepath.Join(t.TempDir(), "journal.db")
	s := testService(ctx, t, cfg)

	in := strings.NewReader(strings.Join([]string{
		"get",
		"",
		`{"id":"1","action":"double","payload":{"n":21}}`,
		"tacos",
		"double {",
	}, "\n"))
	var out bytes.Buffer

	if err := s.Stdio(ctx, in, &out); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("%d lines: %s", len(lines), out.String())
	}

	var rs []*Reply
	for _, line := range lines {
		var r Reply
		if err := json.Unmarshal([]byte(line), &r); err != nil {
			t.Fatal(err)
		}
		rs = append(rs, &r)
	}

	if rs[0].Result != float64(42) || rs[0].Kind != core.KindOK {
		t.Fatalf("%#v", rs[0])
	}
	if rs[1].Id != "1" || rs[1].Result != float64(42) {
		t.Fatalf("%#v", rs[1])
	}
	if rs[2].Kind != core.KindApp || !strings.Contains(rs[2].Error, "unknown action tacos") {
		t.Fatalf("%#v", rs[2])
	}
	if rs[3].Kind != "input" {
		t.Fatalf("%#v", rs[3])
	}

	host := s.Host()
	if err := s.Stop(); err != nil {
		t.Fatal(err)
	}

	// The journal is closed now, so reopen it.
	j, err := bolt.NewJournal(cfg.Journal)
	if err != nil {
		t.Fatal(err)
	}
	if err = j.Open(ctx); err != nil {
		t.Fatal(err)
	}
	defer j.Close(ctx)

	var kinds []string
	if err = j.Scan(ctx, host, func(r *core.Record) bool {
		kinds = append(kinds, r.Kind)
		return true
	}); err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(kinds, ","); got != "ok,ok,app" {
		t.Fatal(got)
	}
}

func TestServiceWebSocket(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := testService(ctx, t, nil)
	defer s.Stop()

	server := httptest.NewServer(s.WebSocketHandler(ctx))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if err = c.WriteMessage(websocket.TextMessage, []byte(`{"id":"x","action":"get"}`)); err != nil {
		t.Fatal(err)
	}
	var r Reply
	if err = c.ReadJSON(&r); err != nil {
		t.Fatal(err)
	}
	if r.Id != "x" || r.Result != float64(42) {
		t.Fatalf("%#v", r)
	}

	if err = c.WriteMessage(websocket.TextMessage, []byte(`{"action":`)); err != nil {
		t.Fatal(err)
	}
	r = Reply{}
	if err = c.ReadJSON(&r); err != nil {
		t.Fatal(err)
	}
	if r.Kind != "input" || r.Error == "" {
		t.Fatalf("%#v", r)
	}
}

func TestServiceStopped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := testService(ctx, t, nil)
	if err := s.Stop(); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Do(ctx, &Request{Action: "get"}); err != ErrStopped {
		t.Fatalf("expected ErrStopped, not %v", err)
	}
}

func TestReadConfig(t *testing.T) {
	filename := WriteFile(t, t.TempDir(), "fiberd.yaml", `
engine: ecmascript
journal: fibers.db
mqtt:
  broker: tcp://localhost:1883
  sub: fibers/in:1
  pub: fibers/out
`)
	cfg, err := ReadConfig(filename)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Engine != "ecmascript" || cfg.Journal != "fibers.db" {
		t.Fatalf("%#v", cfg)
	}
	if cfg.MQTT == nil || cfg.MQTT.Sub != "fibers/in:1" {
		t.Fatalf("%#v", cfg.MQTT)
	}

	topic, qos := parseTopic(cfg.MQTT.Sub)
	if topic != "fibers/in" || qos != 1 {
		t.Fatal(topic, qos)
	}
	if topic, qos = parseTopic("a/b"); topic != "a/b" || qos != 0 {
		t.Fatal(topic, qos)
	}
}

func TestBadEngine(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Engine = "cobol"
	if _, err := NewService(context.Background(), cfg, nil); err == nil {
		t.Fatal("should have complained")
	}
}
