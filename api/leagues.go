package api

import (
	"context"
	"net/http"

	"github.com/fulldump/box"

	"github.com/zengm-games/zengm-sub016/service"
)

func getStatus(ctx context.Context) *service.Status {
	return GetServicer(ctx).Status()
}

func listLeagues(ctx context.Context) ([]string, error) {
	return GetServicer(ctx).ListLeagues()
}

type createLeagueRequest struct {
	Name   string `json:"name"`
	Season int    `json:"season"`
}

func createLeague(ctx context.Context, w http.ResponseWriter, input *createLeagueRequest) (*service.LeagueInfo, error) {
	info, err := GetServicer(ctx).CreateLeague(ctx, input.Name, input.Season)
	if err != nil {
		return nil, err
	}
	w.WriteHeader(http.StatusCreated)
	return info, nil
}

func openLeague(ctx context.Context) (*service.Status, error) {
	return GetServicer(ctx).OpenLeague(ctx, box.GetUrlParameter(ctx, "leagueName"))
}

func dropLeague(ctx context.Context) error {
	return GetServicer(ctx).DropLeague(box.GetUrlParameter(ctx, "leagueName"))
}

// flush, compact and closeLeague answer the session status once done.
func flush(ctx context.Context) (*service.Status, error) {
	s := GetServicer(ctx)
	if err := s.Checkpoint(ctx); err != nil {
		return nil, err
	}
	return s.Status(), nil
}

func compact(ctx context.Context) (*service.Status, error) {
	s := GetServicer(ctx)
	if err := s.Compact(ctx); err != nil {
		return nil, err
	}
	return s.Status(), nil
}

func closeLeague(ctx context.Context) (*service.Status, error) {
	s := GetServicer(ctx)
	if err := s.CloseLeague(ctx); err != nil {
		return nil, err
	}
	return s.Status(), nil
}
