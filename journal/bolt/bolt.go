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

// Package bolt is a Journal backed by a bbolt file.
//
// Each host gets a bucket.  Keys are the bucket's big-endian sequence
// numbers, so a cursor walks Records in append order.
package bolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"time"

	"github.com/Comcast/fibers/core"

	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"
)

// ErrNotOpen occurs when the Journal is used before Open.
var ErrNotOpen = errors.New("journal not open")

type Journal struct {
	Logger *zap.Logger

	filename string
	db       *bolt.DB
}

func NewJournal(filename string) (*Journal, error) {
	if filename == "" {
		return nil, errors.New("no journal filename")
	}
	return &Journal{
		Logger:   zap.NewNop(),
		filename: filename,
	}, nil
}

func (j *Journal) Open(ctx context.Context) error {
	opts := &bolt.Options{
		Timeout: time.Second,
	}

	db, err := bolt.Open(j.filename, 0644, opts)
	if err != nil {
		return err
	}
	j.db = db
	j.Logger.Debug("journal opened", zap.String("filename", j.filename))
	return nil
}

func (j *Journal) Close(ctx context.Context) error {
	if j.db == nil {
		return nil
	}
	err := j.db.Close()
	j.db = nil
	return err
}

func (j *Journal) Append(ctx context.Context, r *core.Record) error {
	if j.db == nil {
		return ErrNotOpen
	}
	js, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return j.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(r.Host))
		if err != nil {
			return err
		}
		n, err := b.NextSequence()
		if err != nil {
			return err
		}
		j.Logger.Debug("journal append",
			zap.String("host", r.Host),
			zap.Uint64("seq", n),
			zap.String("action", r.Action))
		return b.Put(key(n), js)
	})
}

func (j *Journal) Scan(ctx context.Context, host string, f func(*core.Record) bool) error {
	if j.db == nil {
		return ErrNotOpen
	}
	return j.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(host))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, bs := c.First(); k != nil; k, bs = c.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var r core.Record
			if err := json.Unmarshal(bs, &r); err != nil {
				return err
			}
			if !f(&r) {
				break
			}
		}
		return nil
	})
}

// Hosts returns the names of the hosts that have Records.
func (j *Journal) Hosts(ctx context.Context) ([]string, error) {
	if j.db == nil {
		return nil, ErrNotOpen
	}
	var acc []string
	err := j.db.View(func(tx *bolt.Tx) error {
		return tx.ForEach(func(name []byte, _ *bolt.Bucket) error {
			acc = append(acc, string(name))
			return nil
		})
	})
	return acc, err
}

func key(n uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, n)
	return k
}
