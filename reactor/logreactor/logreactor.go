// Package logreactor implements pion's log output reactor: a
// terminal reactor.Reactor that serializes Events through a
// configured codec and writes them to a rotated file (spec §6
// "Persisted state"). Grounded on the same rotate-by-timestamp-suffix
// convention the specification names directly; no example repo
// rotates files this way, so the split/rename logic is original to
// this package rather than copied from a teacher file.
package logreactor

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/avgx/pion/pionerr"
	"github.com/avgx/pion/reactor"
	"github.com/avgx/pion/vocabulary"
)

// Codec serializes one Event to bytes for on-disk storage.
type Codec interface {
	Encode(ev *reactor.Event) ([]byte, error)
}

// JSONCodec encodes an Event's fields as a flat JSON object keyed by
// decimal term id, one line per Event.
type JSONCodec struct{}

func (JSONCodec) Encode(ev *reactor.Event) ([]byte, error) {
	fields := ev.Fields()
	obj := make(map[string]interface{}, len(fields))
	for _, id := range fields {
		v, _ := ev.Get(id)
		obj[itoa(id)] = v
	}
	line, err := json.Marshal(obj)
	if err != nil {
		return nil, pionerr.StorageError("encode failed", err)
	}
	return append(line, '\n'), nil
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// Reactor is pion's LogOutputReactor.
type Reactor struct {
	codec Codec
	log   *zap.SugaredLogger

	mu       sync.Mutex
	basePath string
	file     *os.File
	written  int64
}

// New constructs a Reactor writing through codec to a file named
// from basePath, rotated on demand via Rotate.
func New(basePath string, codec Codec, log *zap.SugaredLogger) (*Reactor, error) {
	r := &Reactor{basePath: basePath, codec: codec, log: log}
	if err := r.openCurrent(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Reactor) openCurrent() error {
	f, err := os.OpenFile(r.basePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return pionerr.StorageError("open log file", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return pionerr.StorageError("stat log file", err)
	}
	r.file = f
	r.written = info.Size()
	return nil
}

// UpdateVocabulary is a no-op: the log reactor persists raw term ids,
// it doesn't resolve names through the Vocabulary.
func (r *Reactor) UpdateVocabulary(v vocabulary.Vocabulary) {}

// Process encodes ev and appends it to the current file.
func (r *Reactor) Process(ev *reactor.Event) {
	line, err := r.codec.Encode(ev)
	if err != nil {
		if r.log != nil {
			r.log.Errorw("log reactor encode failed", "err", err)
		}
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	n, err := r.file.Write(line)
	if err != nil && r.log != nil {
		r.log.Errorw("log reactor write failed", "err", err)
		return
	}
	r.written += int64(n)
}

// rotatedName inserts "-YYYYMMDD-HHMMSS" before basePath's extension
// (spec §6: "rotation appends -YYYYMMDD-HHMMSS before the extension").
func rotatedName(basePath string, at time.Time) string {
	ext := filepath.Ext(basePath)
	stem := strings.TrimSuffix(basePath, ext)
	return stem + "-" + at.Format("20060102-150405") + ext
}

// Rotate closes the current file, renames it with a timestamp suffix
// (or removes it if it was left empty), and opens a fresh file at
// basePath (spec §6: "The file is removed if empty at rotation time").
func (r *Reactor) Rotate() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return r.openCurrent()
	}
	wasEmpty := r.written == 0
	_ = r.file.Close()

	if wasEmpty {
		_ = os.Remove(r.basePath)
	} else {
		target := rotatedName(r.basePath, time.Now())
		if err := os.Rename(r.basePath, target); err != nil {
			return pionerr.StorageError("rotate log file", err)
		}
	}

	f, err := os.OpenFile(r.basePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return pionerr.StorageError("open rotated log file", err)
	}
	r.file = f
	r.written = 0
	return nil
}

// Close closes the current file, removing it first if it is still empty.
func (r *Reactor) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	wasEmpty := r.written == 0
	err := r.file.Close()
	r.file = nil
	if wasEmpty {
		_ = os.Remove(r.basePath)
	}
	return err
}
