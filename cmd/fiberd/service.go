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
	"errors"
	"fmt"
	"strings"

	"github.com/Comcast/fibers/capabilities"
	"github.com/Comcast/fibers/core"
	"github.com/Comcast/fibers/engines"
	"github.com/Comcast/fibers/journal"
	"github.com/Comcast/fibers/journal/bolt"

	"go.uber.org/zap"
)

// Request asks the service to dispatch an action.
type Request struct {
	Id      string      `json:"id,omitempty"`
	Action  string      `json:"action"`
	Payload interface{} `json:"payload,omitempty"`
}

// Reply reports the result of a Request.
type Reply struct {
	Id     string      `json:"id,omitempty"`
	Action string      `json:"action"`
	Result interface{} `json:"result,omitempty"`
	Error  string      `json:"error,omitempty"`
	Kind   string      `json:"kind"`
}

// ErrStopped is returned for requests that arrive after Stop.
var ErrStopped = errors.New("service stopped")

// ParseRequest reads a Request from a line of input.
//
// A line is either a JSON Request or an action name optionally
// followed by a JSON payload ("count {\"n\":3}").
func ParseRequest(line string) (*Request, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, nil
	}
	if strings.HasPrefix(line, "{") {
		var r Request
		if err := json.Unmarshal([]byte(line), &r); err != nil {
			return nil, err
		}
		if r.Action == "" {
			return nil, errors.New("request has no action")
		}
		return &r, nil
	}
	r := &Request{
		Action: line,
	}
	if i := strings.IndexAny(line, " \t"); 0 < i {
		r.Action = line[:i]
		rest := strings.TrimSpace(line[i:])
		if err := json.Unmarshal([]byte(rest), &r.Payload); err != nil {
			return nil, fmt.Errorf("bad payload for %s: %s", r.Action, err)
		}
	}
	return r, nil
}

type op struct {
	req   *Request
	reply chan *Reply
}

// Service owns a Host and serializes every Request from every front
// end.
type Service struct {
	Logger *zap.Logger

	host    *core.Host
	journal journal.Journal
	ops     chan *op
	stop    chan bool
	done    chan error
}

// NewService initializes a Host according to the Config.  Call Run to
// process requests.
func NewService(ctx context.Context, cfg *Config, logger *zap.Logger) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		Logger:  logger,
		journal: &journal.Noop{},
		ops:     make(chan *op),
		stop:    make(chan bool),
		done:    make(chan error, 1),
	}

	if cfg.Journal != "" {
		j, err := bolt.NewJournal(cfg.Journal)
		if err != nil {
			return nil, err
		}
		j.Logger = logger
		s.journal = j
	}
	if err := s.journal.Open(ctx); err != nil {
		return nil, err
	}

	e, err := engines.Standard().Make(cfg.Engine, &engines.Config{
		ModuleDir: cfg.ModuleDir,
		Logger:    logger,
	})
	if err != nil {
		s.journal.Close(ctx)
		return nil, err
	}

	var src *core.Source
	if cfg.Script != "" {
		src = &core.Source{
			Path: cfg.Script,
		}
	}

	s.host, err = core.Initialize(ctx, &core.Options{
		Engine:        e,
		Source:        src,
		Capabilities:  capabilities.Standard(logger),
		Logger:        logger,
		MaxDiagnostic: cfg.MaxDiagnostic,
		Listener: func(r *core.Record) {
			if err := s.journal.Append(ctx, r); err != nil {
				logger.Error("journal append failed",
					zap.String("id", r.Id),
					zap.Error(err))
			}
		},
	})
	if err != nil {
		s.journal.Close(ctx)
		return nil, err
	}

	return s, nil
}

// Run processes requests until Stop or ctx is done.  Then Run shuts
// down the Host.
func (s *Service) Run(ctx context.Context) error {
	s.Logger.Info("service running", zap.String("host", s.host.Id()))

LOOP:
	for {
		select {
		case <-ctx.Done():
			break LOOP
		case <-s.stop:
			break LOOP
		case o := <-s.ops:
			o.reply <- s.dispatch(ctx, o.req)
		}
	}

	err := s.host.Shutdown(context.Background())
	if err != nil {
		s.Logger.Error("shutdown failed", zap.Error(err))
	}
	if jerr := s.journal.Close(context.Background()); jerr != nil && err == nil {
		err = jerr
	}
	s.Logger.Info("service stopped", zap.String("host", s.host.Id()))
	s.done <- err
	close(s.done)
	return err
}

func (s *Service) dispatch(ctx context.Context, req *Request) *Reply {
	x, err := s.host.Dispatch(ctx, req.Action, req.Payload)
	r := &Reply{
		Id:     req.Id,
		Action: req.Action,
		Kind:   core.Kind(err),
	}
	if err != nil {
		r.Error = err.Error()
	} else {
		r.Result = x
	}
	return r
}

// Do submits a Request and waits for its Reply.
func (s *Service) Do(ctx context.Context, req *Request) (*Reply, error) {
	o := &op{
		req:   req,
		reply: make(chan *Reply, 1),
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.stop:
		return nil, ErrStopped
	case s.ops <- o:
	}
	return <-o.reply, nil
}

// Stop asks Run to shut down and waits for it.  Call Stop at most
// once, and only after starting Run.
func (s *Service) Stop() error {
	close(s.stop)
	return <-s.done
}

// Journal returns the service's Journal.
func (s *Service) Journal() journal.Journal {
	return s.journal
}

// Host returns the host's id.
func (s *Service) Host() string {
	return s.host.Id()
}
