package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"github.com/google/uuid"
)

// Command is one line of the log.
type Command struct {
	Name      string         `json:"name"`
	Uuid      string         `json:"uuid"`
	Timestamp int64          `json:"timestamp"`
	Payload   jsontext.Value `json:"payload"`
}

const commandCommit = "commit"

type commitRecord struct {
	Key   Key            `json:"key"`
	Value jsontext.Value `json:"value"`
}

type commitChanges struct {
	Puts    []commitRecord `json:"puts,omitempty"`
	Deletes []Key          `json:"deletes,omitempty"`
}

var bufferPool = sync.Pool{
	New: func() interface{} {
		return new(bytes.Buffer)
	},
}

// JSONL persists batches as an append-only JSON lines file and serves reads from an
// in-memory image rebuilt on open. Every Write is synced before it returns.
type JSONL struct {
	Filename string

	mutex  *sync.Mutex
	file   *os.File
	size   int64
	image  *Memory
	logger *log.Logger
	closed bool
}

// OpenJSONL replays filename, creating it when missing. A torn last line is dropped.
func OpenJSONL(filename string, logger *log.Logger) (*JSONL, error) {
	if logger == nil {
		logger = log.Default()
	}

	s := &JSONL{
		Filename: filename,
		mutex:    &sync.Mutex{},
		image:    NewMemory(),
		logger:   logger,
	}

	if err := s.replay(); err != nil {
		return nil, err
	}

	var err error
	s.file, err = os.OpenFile(filename, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0666)
	if err != nil {
		return nil, fmt.Errorf("open file for write: %w", err)
	}
	info, err := s.file.Stat()
	if err != nil {
		s.file.Close()
		return nil, fmt.Errorf("stat file: %w", err)
	}
	s.size = info.Size()

	return s, nil
}

func (s *JSONL) replay() error {
	f, err := os.Open(s.Filename)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open file for read: %w", err)
	}
	defer f.Close()

	t0 := time.Now()
	commands := 0

	cmds, errs, torn := loadCommands(f, runtime.NumCPU())
	var applyErr error
	for cmd := range cmds {
		if applyErr != nil {
			continue
		}
		batch, err := decodeCommit(cmd)
		if err != nil {
			applyErr = err
			continue
		}
		s.image.apply(batch)
		commands++
	}
	if applyErr != nil {
		return applyErr
	}
	if err := <-errs; err != nil {
		return fmt.Errorf("decode %s: %w", s.Filename, err)
	}
	if err := <-torn; err != nil {
		s.logger.Printf("WARNING: %s: dropping torn last line: %s", s.Filename, err)
		if err := truncateLastLine(s.Filename); err != nil {
			return err
		}
	}

	s.logger.Printf("Replayed %s: %d commits in %s", s.Filename, commands, time.Since(t0))
	return nil
}

// truncateLastLine cuts the file right after its second to last newline.
func truncateLastLine(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}
	data = bytes.TrimRight(data, "\n")
	cut := bytes.LastIndexByte(data, '\n') + 1
	if err := os.Truncate(filename, int64(cut)); err != nil {
		return fmt.Errorf("truncate torn line: %w", err)
	}
	return nil
}

func decodeCommit(cmd *Command) (Batch, error) {
	if cmd.Name != commandCommit {
		return nil, fmt.Errorf("unexpected command %q (uuid %s)", cmd.Name, cmd.Uuid)
	}
	payload := map[string]*commitChanges{}
	if err := json.Unmarshal(cmd.Payload, &payload); err != nil {
		return nil, fmt.Errorf("decode commit %s: %w", cmd.Uuid, err)
	}
	batch := Batch{}
	for collection, changes := range payload {
		if changes == nil {
			continue
		}
		c := &Changes{Deletes: changes.Deletes}
		for _, put := range changes.Puts {
			c.Puts = append(c.Puts, Record{Key: put.Key, Payload: []byte(put.Value)})
		}
		batch[collection] = c
	}
	return batch, nil
}

func encodeCommit(w io.Writer, batch Batch) error {
	payload := map[string]*commitChanges{}
	for collection, changes := range batch {
		if changes.Empty() {
			continue
		}
		c := &commitChanges{Deletes: changes.Deletes}
		for _, put := range changes.Puts {
			c.Puts = append(c.Puts, commitRecord{Key: put.Key, Value: jsontext.Value(put.Payload)})
		}
		payload[collection] = c
	}

	data, err := json.Marshal(payload, json.Deterministic(true))
	if err != nil {
		return err
	}

	command := &Command{
		Name:      commandCommit,
		Uuid:      uuid.New().String(),
		Timestamp: time.Now().UnixNano(),
		Payload:   data,
	}
	return json.MarshalWrite(w, command)
}

func (s *JSONL) Get(ctx context.Context, collection string, key Key) ([]byte, bool, error) {
	return s.image.Get(ctx, collection, key)
}

func (s *JSONL) Scan(ctx context.Context, collection string, f func(key Key, payload []byte) error) error {
	return s.image.Scan(ctx, collection, f)
}

func (s *JSONL) MaxKey(ctx context.Context, collection string) (int64, bool, error) {
	return s.image.MaxKey(ctx, collection)
}

// Write appends batch as a single line. The image only changes once the line is synced.
func (s *JSONL) Write(ctx context.Context, batch Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if batch.Empty() {
		return nil
	}

	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufferPool.Put(buf)

	if err := encodeCommit(buf, batch); err != nil {
		return fmt.Errorf("encode commit: %w", err)
	}
	buf.WriteByte('\n')

	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.closed {
		return ErrClosed
	}

	n, err := s.file.Write(buf.Bytes())
	if err == nil {
		err = s.file.Sync()
	}
	if err != nil {
		if n > 0 {
			// Leave no partial line behind.
			if terr := s.file.Truncate(s.size); terr != nil {
				err = errors.Join(err, terr)
			}
		}
		return fmt.Errorf("append commit: %w", err)
	}
	s.size += int64(n)

	return s.image.Write(ctx, batch)
}

// Compact rewrites the log as a single commit holding the current image.
func (s *JSONL) Compact(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.closed {
		return ErrClosed
	}

	batch := Batch{}
	s.image.mutex.RLock()
	for collection, tree := range s.image.collections {
		changes := &Changes{}
		tree.Ascend(func(item *memoryRecord) bool {
			changes.Puts = append(changes.Puts, Record{Key: item.key, Payload: item.payload})
			return true
		})
		batch[collection] = changes
	}
	s.image.mutex.RUnlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tmp := s.Filename + ".compact"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}
	if !batch.Empty() {
		err = encodeCommit(f, batch)
		if err == nil {
			_, err = f.Write([]byte{'\n'})
		}
	}
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write %s: %w", tmp, err)
	}

	if err := os.Rename(tmp, s.Filename); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", s.Filename, err)
	}

	s.file.Close()
	s.file, err = os.OpenFile(s.Filename, os.O_APPEND|os.O_WRONLY, 0666)
	if err != nil {
		s.closed = true
		return fmt.Errorf("reopen file for write: %w", err)
	}
	info, err := s.file.Stat()
	if err != nil {
		return fmt.Errorf("stat file: %w", err)
	}
	s.size = info.Size()
	return nil
}

func (s *JSONL) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.image.Close()
	return s.file.Close()
}
