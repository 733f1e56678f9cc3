package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fulldump/box"

	"github.com/zengm-games/zengm-sub016/api"
	"github.com/zengm-games/zengm-sub016/configuration"
	"github.com/zengm-games/zengm-sub016/database"
	"github.com/zengm-games/zengm-sub016/service"
)

var VERSION = "dev"

func Bootstrap(c *configuration.Configuration) (start, stop func()) {

	logger := log.New(os.Stdout, "", log.LstdFlags)

	db := database.NewDatabase(&database.Config{
		Dir:     c.Dir,
		Backend: c.Backend,
	}, logger)

	s, err := service.NewService(db, logger)
	if err != nil {
		log.Println("ERROR:", err.Error())
		os.Exit(-1)
	}

	b := api.Build(s, VERSION, c.ApiKey, c.ApiSecret)
	if c.EnableCompression {
		b.WithInterceptors(api.Compression)
	}
	b.WithInterceptors(
		api.AccessLog(log.New(os.Stdout, "ACCESS: ", log.Lshortfile)),
		api.PrettyErrorInterceptor,
		api.RecoverFromPanic,
	)

	server := &http.Server{
		Addr:    c.HttpAddr,
		Handler: box.Box2Http(b),
	}

	ln, err := net.Listen("tcp", c.HttpAddr)
	if err != nil {
		log.Println("ERROR:", err.Error())
		os.Exit(-1)
	}
	log.Println("listening on", c.HttpAddr)

	ctx, cancel := context.WithCancel(context.Background())

	once := &sync.Once{}
	stop = func() {
		once.Do(func() {
			cancel()
			server.Shutdown(context.Background())
			if err := s.Shutdown(context.Background()); err != nil {
				log.Println("ERROR: close league:", err.Error())
			}
		})
	}

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		for {
			sig := <-signalChan
			fmt.Println("Signal received", sig.String())
			stop()
		}
	}()

	start = func() {

		if c.League != "" {
			if _, err := s.OpenLeague(ctx, c.League); err != nil {
				log.Printf("ERROR: open league '%s': %s", c.League, err.Error())
			}
		}

		wg := &sync.WaitGroup{}

		wg.Add(1)
		go func() {
			defer wg.Done()
			Checkpoints(ctx, s, time.Duration(c.FlushEvery)*time.Second, logger)
		}()

		wg.Add(1)
		go func() {
			defer wg.Done()
			err := server.Serve(ln)
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				fmt.Println(err.Error())
			}
		}()

		wg.Wait()
	}

	return
}

type checkpointer interface {
	Checkpoint(ctx context.Context) error
}

// Checkpoints flushes the open league every period until ctx is done.
func Checkpoints(ctx context.Context, s checkpointer, every time.Duration, logger *log.Logger) {
	if every <= 0 {
		return
	}

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := s.Checkpoint(ctx)
			if err != nil && !errors.Is(err, service.ErrNoLeague) && !errors.Is(err, context.Canceled) {
				logger.Println("ERROR: checkpoint:", err.Error())
			}
		}
	}
}
