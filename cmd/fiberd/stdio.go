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
	"bufio"
	"context"
	"encoding/json"
	"io"

	"go.uber.org/zap"
)

// Stdio reads requests, one per line, from in and writes each reply
// as a line of JSON to out.  Returns at EOF.
func (s *Service) Stdio(ctx context.Context, in io.Reader, out io.Writer) error {
	var (
		scanner = bufio.NewScanner(in)
		enc     = json.NewEncoder(out)
	)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		req, err := ParseRequest(scanner.Text())
		if err != nil {
			s.Logger.Warn("bad input", zap.Error(err))
			if err = enc.Encode(&Reply{Error: err.Error(), Kind: "input"}); err != nil {
				return err
			}
			continue
		}
		if req == nil {
			continue
		}
		r, err := s.Do(ctx, req)
		if err != nil {
			return err
		}
		if err = enc.Encode(r); err != nil {
			return err
		}
	}

	return scanner.Err()
}
