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

// Package capabilities provides the standard native functions that
// every engine installs in its "fiber" module.
package capabilities

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/Comcast/fibers/core"

	"github.com/google/uuid"
	"github.com/gorhill/cronexpr"
	"go.uber.org/zap"
)

// Log levels that scripts see as fiber.DEBUG, fiber.INFO, etc.
const (
	LevelDebug  = 9000
	LevelInfo   = 6000
	LevelWarn   = 4000
	LevelError  = 2000
	LevelFatal  = 1000
	LevelSystem = 0
)

// Levels maps level names to their values.
var Levels = map[string]int{
	"DEBUG":  LevelDebug,
	"INFO":   LevelInfo,
	"WARN":   LevelWarn,
	"ERROR":  LevelError,
	"FATAL":  LevelFatal,
	"SYSTEM": LevelSystem,
}

// Now is used by "now" and "cronNext".  Tests can replace it.
var Now = time.Now

// Standard returns a registry with the standard capabilities.  The
// "log" capability writes to the given logger, which can be nil.
func Standard(logger *zap.Logger) *core.Capabilities {
	if logger == nil {
		logger = zap.NewNop()
	}
	cs := core.NewCapabilities()
	err := cs.Add(
		Log(logger),
		Gensym(),
		CronNext(),
		Esc(),
		TimeNow(),
	)
	if err != nil {
		// Only happens if the names above collide.
		panic(err)
	}
	return cs
}

func argString(args []interface{}, i int, name string) (string, error) {
	if len(args) <= i {
		return "", fmt.Errorf("%s: missing argument %d", name, i+1)
	}
	s, is := args[i].(string)
	if !is {
		return "", fmt.Errorf("%s: argument %d is a %T, not a string", name, i+1, args[i])
	}
	return s, nil
}

func argLevel(x interface{}) (int, error) {
	switch vv := x.(type) {
	case int:
		return vv, nil
	case int64:
		return int(vv), nil
	case float64:
		return int(vv), nil
	case string:
		if n, have := Levels[vv]; have {
			return n, nil
		}
		return 0, fmt.Errorf(`log: unknown level "%s"`, vv)
	default:
		return 0, fmt.Errorf("log: level is a %T", x)
	}
}

// Log makes the "log" capability.
func Log(logger *zap.Logger) *core.Capability {
	return &core.Capability{
		Name: "log",
		Doc: "`log(level, message)` writes `message` to the host's log.\n\n" +
			"`level` is one of `fiber.DEBUG`, `fiber.INFO`, `fiber.WARN`, " +
			"`fiber.ERROR`, `fiber.FATAL`, or `fiber.SYSTEM`.  " +
			"Lower numbers are more severe.  " +
			"`FATAL` doesn't terminate anything.",
		Fn: func(ctx context.Context, args []interface{}) (interface{}, error) {
			if len(args) == 0 {
				return nil, errors.New("log: need a level")
			}
			level, err := argLevel(args[0])
			if err != nil {
				return nil, err
			}
			var msg string
			if 1 < len(args) {
				msg = fmt.Sprintf("%v", args[1])
			}
			f := zap.Int("level", level)
			switch {
			case LevelDebug <= level:
				logger.Debug(msg, f)
			case LevelInfo <= level:
				logger.Info(msg, f)
			case LevelWarn <= level:
				logger.Warn(msg, f)
			default:
				logger.Error(msg, f)
			}
			return nil, nil
		},
	}
}

// Gensym makes the "gensym" capability.
func Gensym() *core.Capability {
	return &core.Capability{
		Name: "gensym",
		Doc:  "`gensym()` returns a new random UUID string.",
		Fn: func(ctx context.Context, args []interface{}) (interface{}, error) {
			return uuid.NewString(), nil
		},
	}
}

// CronNext makes the "cronNext" capability.
func CronNext() *core.Capability {
	return &core.Capability{
		Name: "cronNext",
		Doc: "`cronNext(expr)` returns the next time (RFC3339Nano, UTC) " +
			"that matches the given cron expression.\n\n" +
			"See [cronexpr](https://github.com/gorhill/cronexpr) for the syntax.",
		Fn: func(ctx context.Context, args []interface{}) (interface{}, error) {
			s, err := argString(args, 0, "cronNext")
			if err != nil {
				return nil, err
			}
			c, err := cronexpr.Parse(s)
			if err != nil {
				return nil, err
			}
			next := c.Next(Now())
			if next.IsZero() {
				return nil, fmt.Errorf(`cronNext: "%s" never matches`, s)
			}
			return next.UTC().Format(time.RFC3339Nano), nil
		},
	}
}

// Esc makes the "esc" capability.
func Esc() *core.Capability {
	return &core.Capability{
		Name: "esc",
		Doc:  "`esc(s)` URL query-escapes the string `s`.",
		Fn: func(ctx context.Context, args []interface{}) (interface{}, error) {
			s, err := argString(args, 0, "esc")
			if err != nil {
				return nil, err
			}
			return url.QueryEscape(s), nil
		},
	}
}

// TimeNow makes the "now" capability.
func TimeNow() *core.Capability {
	return &core.Capability{
		Name: "now",
		Doc:  "`now()` returns the current time (RFC3339Nano, UTC).",
		Fn: func(ctx context.Context, args []interface{}) (interface{}, error) {
			return Now().UTC().Format(time.RFC3339Nano), nil
		},
	}
}
