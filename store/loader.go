package store

import (
	"bufio"
	"io"
	"sync"

	"github.com/go-json-experiment/json"
)

type loadedCommand struct {
	seq int
	cmd *Command
	err error
}

// loadCommands decodes newline separated commands with a pool of workers and emits them
// in file order. A decode failure on the very last line is reported through torn instead
// of errs: it is what an interrupted append leaves behind.
func loadCommands(r io.Reader, concurrency int) (cmds <-chan *Command, errs <-chan error, torn <-chan error) {
	out := make(chan *Command, 100)
	errChan := make(chan error, 1)
	tornChan := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errChan)
		defer close(tornChan)

		scanner := bufio.NewScanner(r)
		const maxCapacity = 16 * 1024 * 1024
		buf := make([]byte, 64*1024)
		scanner.Buffer(buf, maxCapacity)

		lines := make(chan struct {
			seq  int
			data []byte
		}, 100)

		results := make(chan loadedCommand, 100)

		var wg sync.WaitGroup
		for i := 0; i < concurrency; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for item := range lines {
					cmd := &Command{}
					err := json.Unmarshal(item.data, cmd)
					results <- loadedCommand{
						seq: item.seq,
						cmd: cmd,
						err: err,
					}
				}
			}()
		}

		total := 0
		go func() {
			seq := 0
			for scanner.Scan() {
				if len(scanner.Bytes()) == 0 {
					continue
				}
				// Copy data because scanner reuses buffer
				data := make([]byte, len(scanner.Bytes()))
				copy(data, scanner.Bytes())
				lines <- struct {
					seq  int
					data []byte
				}{seq, data}
				seq++
			}
			close(lines)
			if err := scanner.Err(); err != nil {
				results <- loadedCommand{seq: -1, err: err}
			}
			wg.Wait()
			total = seq
			close(results)
		}()

		buffer := map[int]*Command{}
		nextSeq := 0
		var failed *loadedCommand

		for res := range results {
			if res.err != nil {
				if failed == nil || res.seq == -1 || (failed.seq != -1 && res.seq < failed.seq) {
					res := res
					failed = &res
				}
				continue
			}

			// A failed line is never buffered, so draining stops right before it.
			buffer[res.seq] = res.cmd
			for {
				cmd, ok := buffer[nextSeq]
				if !ok {
					break
				}
				delete(buffer, nextSeq)
				out <- cmd
				nextSeq++
			}
		}

		if failed == nil {
			return
		}

		if failed.seq >= 0 && failed.seq == total-1 && nextSeq == failed.seq {
			tornChan <- failed.err
			return
		}
		errChan <- failed.err
	}()

	return out, errChan, tornChan
}
