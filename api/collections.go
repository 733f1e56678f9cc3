package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/SierraSoftworks/connor"
	"github.com/fulldump/box"
	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/zengm-games/zengm-sub016/cache"
	"github.com/zengm-games/zengm-sub016/index"
	"github.com/zengm-games/zengm-sub016/utils"
)

func getCollection(ctx context.Context) (*cache.CollectionInfo, error) {
	col, err := GetServicer(ctx).Collection(box.GetUrlParameter(ctx, "collectionName"))
	if err != nil {
		return nil, err
	}
	info, err := col.Info(ctx)
	if err != nil {
		return nil, err
	}
	return &info, nil
}

func listCollections(ctx context.Context) ([]cache.CollectionInfo, error) {
	return GetServicer(ctx).Collections(ctx)
}

func requestCollection(ctx context.Context) (cache.Dynamic, error) {
	return GetServicer(ctx).Collection(box.GetUrlParameter(ctx, "collectionName"))
}

func getRow(ctx context.Context, w http.ResponseWriter) error {
	col, err := requestCollection(ctx)
	if err != nil {
		return err
	}

	key := box.GetUrlParameter(ctx, "rowKey")
	row, found, err := col.Get(ctx, key)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("row '%s' of '%s': %w", key, col.Name(), cache.ErrNotFound)
	}
	writeRow(w, row)
	return nil
}

type findRequest struct {
	Filter map[string]any `json:"filter"`
	Fields []string       `json:"fields"`
	Skip   int            `json:"skip"`
	Limit  int            `json:"limit"`
}

// project keeps only the given paths of row. Missing paths are left out.
func project(row jsontext.Value, fields []string) (jsontext.Value, error) {
	out := []byte(`{}`)
	for _, field := range fields {
		value := gjson.GetBytes(row, field)
		if !value.Exists() {
			continue
		}
		var err error
		out, err = sjson.SetRawBytes(out, field, []byte(value.Raw))
		if err != nil {
			return nil, badRequest(err)
		}
	}
	return out, nil
}

// find walks the collection in primary key order. A negative limit returns every match.
func find(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	input := &findRequest{
		Limit: 1,
	}
	if err := decodeBody(r, input); err != nil {
		return err
	}

	col, err := requestCollection(ctx)
	if err != nil {
		return err
	}
	rows, err := col.All(ctx)
	if err != nil {
		return err
	}

	skip := input.Skip
	limit := input.Limit
	for _, row := range rows {

		if limit == 0 {
			break
		}

		if len(input.Filter) > 0 {
			rowData := map[string]any{}
			if err := json.Unmarshal(row, &rowData); err != nil {
				return err
			}

			match, err := connor.Match(input.Filter, rowData)
			if err != nil {
				return badRequest(fmt.Errorf("match: %w", err))
			}
			if !match {
				continue
			}
		}

		if skip > 0 {
			skip--
			continue
		}

		limit--
		if len(input.Fields) > 0 {
			row, err = project(row, input.Fields)
			if err != nil {
				return err
			}
		}
		writeRow(w, row)
	}

	return nil
}

type indexFindRequest struct {
	Index string         `json:"index"`
	Value jsontext.Value `json:"value"`
	From  jsontext.Value `json:"from"`
	To    jsontext.Value `json:"to"`
}

func indexKey(value jsontext.Value, otherwise any) (index.Key, error) {
	if len(value) == 0 {
		return index.K(otherwise), nil
	}
	key, err := cache.DecodeKey(value)
	if err != nil {
		return nil, badRequest(err)
	}
	return key, nil
}

// indexFind selects rows by index key: one key with value, or the closed range from..to.
func indexFind(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	input := &indexFindRequest{}
	if err := decodeBody(r, input); err != nil {
		return err
	}
	if input.Index == "" {
		return badRequest(errors.New("index is required"))
	}

	var q cache.Query
	if len(input.Value) > 0 {
		key, err := indexKey(input.Value, nil)
		if err != nil {
			return err
		}
		q = cache.Only(key)
	} else {
		from, err := indexKey(input.From, index.Low)
		if err != nil {
			return err
		}
		to, err := indexKey(input.To, index.High)
		if err != nil {
			return err
		}
		q = cache.Between(from, to)
	}

	col, err := requestCollection(ctx)
	if err != nil {
		return err
	}
	rows, err := col.IndexFind(ctx, input.Index, q)
	if err != nil {
		return err
	}
	for _, row := range rows {
		writeRow(w, row)
	}
	return nil
}

func insert(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return writeEach(ctx, w, r, http.StatusCreated, cache.Dynamic.Insert)
}

func put(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return writeEach(ctx, w, r, http.StatusOK, cache.Dynamic.Put)
}

// writeEach applies write to every JSON value of the body and answers the stored rows.
func writeEach(ctx context.Context, w http.ResponseWriter, r *http.Request, status int,
	write func(d cache.Dynamic, ctx context.Context, payload []byte) (string, error)) error {

	col, err := requestCollection(ctx)
	if err != nil {
		return err
	}

	decoder := jsontext.NewDecoder(r.Body)
	for i := 0; ; i++ {
		value, err := decoder.ReadValue()
		if err == io.EOF {
			if i == 0 {
				w.WriteHeader(http.StatusNoContent)
			}
			return nil
		}
		if err != nil {
			return badRequest(err)
		}

		key, err := write(col, ctx, bytes.Clone(value))
		if err != nil {
			return err
		}
		row, _, err := col.Get(ctx, key)
		if err != nil {
			return err
		}

		if i == 0 {
			w.WriteHeader(status)
		}
		writeRow(w, row)
	}
}

func rowKey(v any) (string, error) {
	switch k := v.(type) {
	case string:
		return k, nil
	case float64:
		return strconv.FormatFloat(k, 'f', -1, 64), nil
	}
	return "", badRequest(errors.New("key must be a string or a number"))
}

func existingRow(ctx context.Context, col cache.Dynamic, key string) (jsontext.Value, error) {
	row, found, err := col.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("row '%s' of '%s': %w", key, col.Name(), cache.ErrNotFound)
	}
	return row, nil
}

type removeRequest struct {
	Key any `json:"key"`
}

func remove(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	input := &removeRequest{}
	if err := decodeBody(r, input); err != nil {
		return err
	}
	key, err := rowKey(input.Key)
	if err != nil {
		return err
	}

	col, err := requestCollection(ctx)
	if err != nil {
		return err
	}
	row, err := existingRow(ctx, col, key)
	if err != nil {
		return err
	}
	if err := col.Remove(ctx, key); err != nil {
		return err
	}
	writeRow(w, row)
	return nil
}

type patchRequest struct {
	Key any                       `json:"key"`
	Set map[string]jsontext.Value `json:"set"`
}

// patch sets fields of one row. Paths use the dotted gjson syntax, e.g. "contract.amount".
func patch(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	input := &patchRequest{}
	if err := decodeBody(r, input); err != nil {
		return err
	}
	key, err := rowKey(input.Key)
	if err != nil {
		return err
	}
	if len(input.Set) == 0 {
		return badRequest(errors.New("set is required"))
	}

	col, err := requestCollection(ctx)
	if err != nil {
		return err
	}
	row, err := existingRow(ctx, col, key)
	if err != nil {
		return err
	}

	payload := []byte(row)
	for _, path := range utils.GetKeys(input.Set) {
		payload, err = sjson.SetRawBytes(payload, path, input.Set[path])
		if err != nil {
			return badRequest(fmt.Errorf("set %s: %w", path, err))
		}
	}

	patchedKey, err := col.Key(payload)
	if err != nil {
		return badRequest(err)
	}
	if patchedKey != key {
		return badRequest(fmt.Errorf("patch changes the key from '%s' to '%s'", key, patchedKey))
	}
	if _, err := col.Put(ctx, payload); err != nil {
		return err
	}

	row, err = existingRow(ctx, col, key)
	if err != nil {
		return err
	}
	writeRow(w, row)
	return nil
}

func clearCollection(ctx context.Context) (*cache.CollectionInfo, error) {
	col, err := requestCollection(ctx)
	if err != nil {
		return nil, err
	}
	if err := col.Clear(ctx); err != nil {
		return nil, err
	}
	info, err := col.Info(ctx)
	if err != nil {
		return nil, err
	}
	return &info, nil
}
