package api

import (
	"io"
	"log"
	"testing"

	"github.com/fulldump/apitest"
	"github.com/fulldump/biff"

	"github.com/zengm-games/zengm-sub016/database"
	"github.com/zengm-games/zengm-sub016/service"
)

func newTestService(t *testing.T) *service.Service {
	logger := log.New(io.Discard, "", 0)
	db := database.NewDatabase(&database.Config{
		Dir:     t.TempDir(),
		Backend: database.BackendJSONL,
	}, logger)

	s, err := service.NewService(db, logger)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestAcceptance(t *testing.T) {

	biff.Alternative("Setup", func(a *biff.A) {

		s := newTestService(t)

		b := Build(s, "test", "", "")
		b.WithInterceptors(
			PrettyErrorInterceptor,
			RecoverFromPanic,
		)

		api := apitest.NewWithHandler(b)

		service.Acceptance(a, func(method, path string) *apitest.Request {
			return api.Request(method, "/v1"+path)
		})

	})
}
