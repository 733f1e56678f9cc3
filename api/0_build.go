// Package api serves a league session over HTTP.
package api

import (
	"context"
	"net/http"

	"github.com/fulldump/box"
	"github.com/fulldump/box/boxopenapi"

	"github.com/zengm-games/zengm-sub016/service"
)

func Build(s service.Servicer, version, apiKey, apiSecret string) *box.B {

	b := box.NewBox()

	v1 := b.Resource("/v1").
		WithInterceptors(
			box.SetResponseHeader("Content-Type", "application/json"),
			Authenticate(apiKey, apiSecret),
			injectServicer(s),
		)

	v1.Resource("/status").
		WithActions(
			box.Get(getStatus),
		)

	v1.Resource("/leagues").
		WithActions(
			box.Get(listLeagues),
			box.Post(createLeague),
		)

	v1.Resource("/leagues/{leagueName}").
		WithActions(
			box.ActionPost(openLeague).WithName("open"),
			box.ActionPost(dropLeague).WithName("drop"),
		)

	v1.Resource("/cache").
		WithInterceptors(
			InterceptorUnavailable(s),
		).
		WithActions(
			box.ActionPost(flush).WithName("flush"),
			box.ActionPost(compact).WithName("compact"),
			box.ActionPost(closeLeague).WithName("close"),
		)

	collections := v1.Resource("/collections").
		WithInterceptors(
			InterceptorUnavailable(s),
		).
		WithActions(
			box.Get(listCollections),
		)

	collections.Resource("/{collectionName}").
		WithActions(
			box.Get(getCollection),
			box.ActionPost(find).WithName("find"),
			box.ActionPost(indexFind).WithName("indexFind"),
			box.ActionPost(insert).WithName("insert"),
			box.ActionPost(put).WithName("put"),
			box.ActionPost(remove).WithName("remove"),
			box.ActionPost(patch).WithName("patch"),
			box.ActionPost(clearCollection).WithName("clear"),
		)

	collections.Resource("/{collectionName}/rows/{rowKey}").
		WithActions(
			box.Get(getRow),
		)

	b.Resource("/v1/*").
		WithActions(box.AnyMethod(func(w http.ResponseWriter) interface{} {
			w.WriteHeader(http.StatusNotImplemented)
			return PrettyError{
				Message:     "not implemented",
				Description: "this endpoint does not exist, please check the documentation",
			}
		}))

	b.Resource("/release").
		WithActions(box.Get(func() string {
			return version
		}))

	spec := boxopenapi.Spec(b)
	spec.Info.Title = "League cache"
	spec.Info.Description = "In-memory write-back cache of a basketball league."
	b.Handle("GET", "/openapi.json", func(r *http.Request) any {
		served := spec
		served.Servers = []boxopenapi.Server{
			{
				Url: "http://" + r.Host,
			},
		}
		return served
	})

	return b
}

type servicerKey struct{}

func injectServicer(s service.Servicer) box.I {
	return func(next box.H) box.H {
		return func(ctx context.Context) {
			next(context.WithValue(ctx, servicerKey{}, s))
		}
	}
}

func GetServicer(ctx context.Context) service.Servicer {
	return ctx.Value(servicerKey{}).(service.Servicer)
}
