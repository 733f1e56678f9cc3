package service

import (
	"net/http"
	"strings"

	"github.com/fulldump/apitest"
	"github.com/fulldump/biff"
)

type JSON = map[string]interface{}

// Acceptance drives a whole session through the HTTP API. apiRequest builds a request
// below /v1.
func Acceptance(a *biff.A, apiRequest func(method, path string) *apitest.Request) {

	a.Alternative("Nothing open", func(a *biff.A) {
		resp := apiRequest("GET", "/status").Do()
		Save(resp, "Status - nothing open", ``)

		biff.AssertEqual(resp.StatusCode, http.StatusOK)
		biff.AssertEqualJson(resp.BodyJson(), JSON{
			"league": "",
			"status": "empty",
		})

		resp = apiRequest("GET", "/collections").Do()
		biff.AssertEqual(resp.StatusCode, http.StatusServiceUnavailable)
	})

	a.Alternative("Create league", func(a *biff.A) {
		resp := apiRequest("POST", "/leagues").
			WithBodyJson(JSON{
				"name":   "my-league",
				"season": 2025,
			}).Do()
		Save(resp, "Create league", `
			Creates and seeds a league. It is not opened.
		`)

		biff.AssertEqual(resp.StatusCode, http.StatusCreated)
		biff.AssertEqualJson(resp.BodyJson(), JSON{
			"name":   "my-league",
			"season": 2025,
		})

		a.Alternative("Create twice", func(a *biff.A) {
			resp := apiRequest("POST", "/leagues").
				WithBodyJson(JSON{
					"name":   "my-league",
					"season": 2025,
				}).Do()
			biff.AssertEqual(resp.StatusCode, http.StatusConflict)
		})

		a.Alternative("Invalid name", func(a *biff.A) {
			resp := apiRequest("POST", "/leagues").
				WithBodyJson(JSON{
					"name":   "../escape",
					"season": 2025,
				}).Do()
			biff.AssertEqual(resp.StatusCode, http.StatusBadRequest)
		})

		a.Alternative("List leagues", func(a *biff.A) {
			resp := apiRequest("GET", "/leagues").Do()
			Save(resp, "List leagues", ``)

			biff.AssertEqual(resp.StatusCode, http.StatusOK)
			biff.AssertEqualJson(resp.BodyJson(), []interface{}{"my-league"})
		})

		a.Alternative("Open missing league", func(a *biff.A) {
			resp := apiRequest("POST", "/leagues/nope:open").Do()
			biff.AssertEqual(resp.StatusCode, http.StatusNotFound)
		})

		a.Alternative("Open league", func(a *biff.A) {
			resp := apiRequest("POST", "/leagues/my-league:open").Do()
			Save(resp, "Open league", `
				Flushes the league open before, then fills the cache from this one.
			`)

			biff.AssertEqual(resp.StatusCode, http.StatusOK)
			biff.AssertEqualJson(resp.BodyJson(), JSON{
				"league": "my-league",
				"status": "ready",
				"season": 2025,
			})

			a.Alternative("Retrieve collection", func(a *biff.A) {
				resp := apiRequest("GET", "/collections/teams").Do()
				Save(resp, "Retrieve collection", ``)

				biff.AssertEqual(resp.StatusCode, http.StatusOK)
				biff.AssertEqualJson(resp.BodyJson(), JSON{
					"name":           "teams",
					"rows":           6,
					"dirty":          0,
					"deleted":        0,
					"auto_increment": false,
					"deletable":      false,
					"clearable":      false,
					"loaded":         true,
					"indexes":        []interface{}{"teamsByAbbrev"},
				})
			})

			a.Alternative("Unknown collection", func(a *biff.A) {
				resp := apiRequest("GET", "/collections/nope").Do()
				biff.AssertEqual(resp.StatusCode, http.StatusNotFound)
			})

			a.Alternative("List collections", func(a *biff.A) {
				resp := apiRequest("GET", "/collections").Do()
				biff.AssertEqual(resp.StatusCode, http.StatusOK)
				biff.AssertEqual(len(resp.BodyJson().([]interface{})), 13)
			})

			a.Alternative("Get row", func(a *biff.A) {
				resp := apiRequest("GET", "/collections/teams/rows/1").Do()
				Save(resp, "Get row", ``)

				biff.AssertEqual(resp.StatusCode, http.StatusOK)
				biff.AssertEqual(resp.BodyJsonMap()["abbrev"], "BOS")

				resp = apiRequest("GET", "/collections/teams/rows/99").Do()
				biff.AssertEqual(resp.StatusCode, http.StatusNotFound)
			})

			a.Alternative("Find with fullscan", func(a *biff.A) {
				resp := apiRequest("POST", "/collections/teams:find").
					WithBodyJson(JSON{
						"skip":  0,
						"limit": 1,
						"filter": JSON{
							"abbrev": "CHI",
						},
					}).Do()
				Save(resp, "Find - fullscan", ``)

				biff.AssertEqual(resp.StatusCode, http.StatusOK)
				biff.AssertEqual(resp.BodyJsonMap()["region"], "Chicago")

				resp = apiRequest("POST", "/collections/teams:find").
					WithBodyJson(JSON{
						"skip":  1,
						"limit": 2,
					}).Do()
				biff.AssertEqual(strings.Count(resp.BodyString(), "\n"), 2)
			})

			a.Alternative("Find with projection", func(a *biff.A) {
				resp := apiRequest("POST", "/collections/teams:find").
					WithBodyJson(JSON{
						"limit":  1,
						"fields": []string{"abbrev", "region"},
					}).Do()
				Save(resp, "Find - projection", ``)

				biff.AssertEqual(resp.StatusCode, http.StatusOK)
				biff.AssertEqualJson(resp.BodyJson(), JSON{
					"abbrev": "ATL",
					"region": "Atlanta",
				})
			})

			a.Alternative("Patch", func(a *biff.A) {
				resp := apiRequest("POST", "/collections/teams:patch").
					WithBodyJson(JSON{
						"key": 2,
						"set": JSON{"name": "Wind", "disabled": true},
					}).Do()
				Save(resp, "Patch", `
					Sets fields of one row. The primary key cannot change.
				`)

				biff.AssertEqual(resp.StatusCode, http.StatusOK)
				biff.AssertEqual(resp.BodyJsonMap()["name"], "Wind")

				resp = apiRequest("POST", "/collections/teams:indexFind").
					WithBodyJson(JSON{
						"index": "teamsByAbbrev",
						"value": "CHI",
					}).Do()
				biff.AssertEqual(resp.BodyString(), "")

				resp = apiRequest("POST", "/collections/teams:patch").
					WithBodyJson(JSON{
						"key": 2,
						"set": JSON{"tid": 4},
					}).Do()
				biff.AssertEqual(resp.StatusCode, http.StatusBadRequest)
			})

			a.Alternative("Find by index with an invalid key", func(a *biff.A) {
				resp := apiRequest("POST", "/collections/teams:indexFind").
					WithBodyJson(JSON{
						"index": "teamsByAbbrev",
						"value": nil,
					}).Do()
				biff.AssertEqual(resp.StatusCode, http.StatusBadRequest)
			})

			a.Alternative("Find by index", func(a *biff.A) {
				resp := apiRequest("POST", "/collections/teams:indexFind").
					WithBodyJson(JSON{
						"index": "teamsByAbbrev",
						"value": "DEN",
					}).Do()
				Save(resp, "Find - index", ``)

				biff.AssertEqual(resp.StatusCode, http.StatusOK)
				biff.AssertEqualJson(resp.BodyJsonMap()["tid"], 3)

				resp = apiRequest("POST", "/collections/teams:indexFind").
					WithBodyJson(JSON{
						"index": "nope",
						"value": "DEN",
					}).Do()
				biff.AssertEqual(resp.StatusCode, http.StatusNotFound)
			})

			a.Alternative("Insert with auto increment", func(a *biff.A) {
				resp := apiRequest("POST", "/collections/players:insert").
					WithBodyString(`{"tid":0,"firstName":"Ann"}` + "\n" + `{"tid":1,"firstName":"Bob"}`).
					Do()
				Save(resp, "Insert many", `
					Every line is a row. The answer holds the rows as stored, with their keys.
				`)

				biff.AssertEqual(resp.StatusCode, http.StatusCreated)
				lines := strings.Split(strings.TrimSpace(resp.BodyString()), "\n")
				biff.AssertEqual(len(lines), 2)
				biff.AssertTrue(strings.Contains(lines[0], `"pid":1`))
				biff.AssertTrue(strings.Contains(lines[1], `"pid":2`))

				a.Alternative("Null row", func(a *biff.A) {
					resp := apiRequest("POST", "/collections/players:insert").
						WithBodyString("null").Do()
					biff.AssertEqual(resp.StatusCode, http.StatusBadRequest)

					resp = apiRequest("POST", "/collections/players:put").
						WithBodyString("null").Do()
					biff.AssertEqual(resp.StatusCode, http.StatusBadRequest)
				})

				a.Alternative("Duplicate key", func(a *biff.A) {
					resp := apiRequest("POST", "/collections/players:insert").
						WithBodyJson(JSON{"pid": 1, "tid": 0}).Do()
					biff.AssertEqual(resp.StatusCode, http.StatusConflict)
				})

				a.Alternative("Remove", func(a *biff.A) {
					resp := apiRequest("POST", "/collections/players:remove").
						WithBodyJson(JSON{"key": 2}).Do()
					Save(resp, "Remove", ``)

					biff.AssertEqual(resp.StatusCode, http.StatusOK)
					biff.AssertEqual(resp.BodyJsonMap()["firstName"], "Bob")

					resp = apiRequest("GET", "/collections/players/rows/2").Do()
					biff.AssertEqual(resp.StatusCode, http.StatusNotFound)
				})

				a.Alternative("Flush, close and reopen", func(a *biff.A) {
					resp := apiRequest("POST", "/cache:flush").Do()
					Save(resp, "Flush", ``)
					biff.AssertEqual(resp.StatusCode, http.StatusOK)
					biff.AssertEqual(resp.BodyJsonMap()["status"], "ready")

					resp = apiRequest("GET", "/collections/players").Do()
					biff.AssertEqualJson(resp.BodyJsonMap()["dirty"], 0)

					resp = apiRequest("POST", "/cache:close").Do()
					biff.AssertEqual(resp.StatusCode, http.StatusOK)
					biff.AssertEqual(resp.BodyJsonMap()["status"], "empty")

					resp = apiRequest("GET", "/collections/players").Do()
					biff.AssertEqual(resp.StatusCode, http.StatusServiceUnavailable)

					resp = apiRequest("POST", "/leagues/my-league:open").Do()
					biff.AssertEqual(resp.StatusCode, http.StatusOK)

					resp = apiRequest("GET", "/collections/players/rows/2").Do()
					biff.AssertEqual(resp.StatusCode, http.StatusOK)
					biff.AssertEqual(resp.BodyJsonMap()["firstName"], "Bob")
				})
			})

			a.Alternative("Put", func(a *biff.A) {
				resp := apiRequest("POST", "/collections/teams:put").
					WithBodyJson(JSON{"tid": 1, "region": "Boston", "name": "Beans", "abbrev": "BOS"}).
					Do()
				biff.AssertEqual(resp.StatusCode, http.StatusOK)

				resp = apiRequest("GET", "/collections/teams/rows/1").Do()
				biff.AssertEqual(resp.BodyJsonMap()["name"], "Beans")
			})

			a.Alternative("Remove from an append only collection", func(a *biff.A) {
				resp := apiRequest("POST", "/collections/teams:remove").
					WithBodyJson(JSON{"key": 1}).Do()
				biff.AssertEqual(resp.StatusCode, http.StatusBadRequest)
			})

			a.Alternative("Clear", func(a *biff.A) {
				resp := apiRequest("POST", "/collections/negotiations:insert").
					WithBodyJson(JSON{"pid": 7, "tid": 1}).Do()
				biff.AssertEqual(resp.StatusCode, http.StatusCreated)

				resp = apiRequest("POST", "/collections/negotiations:clear").Do()
				Save(resp, "Clear", ``)
				biff.AssertEqual(resp.StatusCode, http.StatusOK)
				biff.AssertEqualJson(resp.BodyJsonMap()["rows"], 0)

				resp = apiRequest("GET", "/collections/negotiations").Do()
				biff.AssertEqualJson(resp.BodyJsonMap()["rows"], 0)
				biff.AssertEqualJson(resp.BodyJsonMap()["deleted"], 1)
			})

			a.Alternative("Drop open league", func(a *biff.A) {
				resp := apiRequest("POST", "/leagues/my-league:drop").Do()
				biff.AssertEqual(resp.StatusCode, http.StatusConflict)
			})

			a.Alternative("Compact", func(a *biff.A) {
				resp := apiRequest("POST", "/cache:compact").Do()
				biff.AssertEqual(resp.StatusCode, http.StatusOK)
				biff.AssertEqual(resp.BodyJsonMap()["league"], "my-league")
			})
		})
	})
}
