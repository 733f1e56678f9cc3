package cache

import (
	"context"
	"fmt"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"

	"github.com/zengm-games/zengm-sub016/index"
)

// Dynamic reaches a collection without knowing its row type. Rows travel as JSON and keys
// as strings.
type Dynamic interface {
	Name() string
	Info(ctx context.Context) (CollectionInfo, error)
	Get(ctx context.Context, key string) (jsontext.Value, bool, error)
	All(ctx context.Context) ([]jsontext.Value, error)
	IndexFind(ctx context.Context, name string, q Query) ([]jsontext.Value, error)
	Insert(ctx context.Context, payload []byte) (string, error)
	Put(ctx context.Context, payload []byte) (string, error)
	Remove(ctx context.Context, key string) error
	Clear(ctx context.Context) error

	// Key returns the primary key a payload would be stored under.
	Key(payload []byte) (string, error)
}

type dynamicCollection[K Key, R any] struct {
	c *Collection[K, R]
}

func (c *Collection[K, R]) dynamic() Dynamic {
	return &dynamicCollection[K, R]{c: c}
}

func (d *dynamicCollection[K, R]) Name() string {
	return d.c.Name()
}

func (d *dynamicCollection[K, R]) Info(ctx context.Context) (CollectionInfo, error) {
	return d.c.Info(ctx)
}

func (d *dynamicCollection[K, R]) Get(ctx context.Context, key string) (jsontext.Value, bool, error) {
	k, err := parseKey[K](key)
	if err != nil {
		return nil, false, d.c.fail("get", key, err)
	}
	row, found, err := d.c.Get(ctx, k)
	if err != nil || !found {
		return nil, found, err
	}
	payload, err := encodeRow(row)
	if err != nil {
		return nil, false, d.c.fail("get", key, err)
	}
	return payload, true, nil
}

func (d *dynamicCollection[K, R]) encodeAll(op string, rows []R) ([]jsontext.Value, error) {
	result := make([]jsontext.Value, len(rows))
	for i, row := range rows {
		payload, err := encodeRow(row)
		if err != nil {
			return nil, d.c.fail(op, "", err)
		}
		result[i] = payload
	}
	return result, nil
}

func (d *dynamicCollection[K, R]) All(ctx context.Context) ([]jsontext.Value, error) {
	rows, err := d.c.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	return d.encodeAll("getAll", rows)
}

func (d *dynamicCollection[K, R]) IndexFind(ctx context.Context, name string, q Query) ([]jsontext.Value, error) {
	rows, err := d.c.IndexGetAll(ctx, name, q)
	if err != nil {
		return nil, err
	}
	return d.encodeAll("indexGetAll", rows)
}

func (d *dynamicCollection[K, R]) decode(op string, payload []byte) (R, error) {
	var row R
	if err := json.Unmarshal(payload, &row); err != nil {
		return row, d.c.fail(op, "", err)
	}
	if nilRow(row) {
		return row, d.c.fail(op, "", fmt.Errorf("%w: row is null", ErrMissingKey))
	}
	return row, nil
}

func (d *dynamicCollection[K, R]) Insert(ctx context.Context, payload []byte) (string, error) {
	row, err := d.decode("add", payload)
	if err != nil {
		return "", err
	}
	key, err := d.c.Add(ctx, row)
	if err != nil {
		return "", err
	}
	return formatKey(key), nil
}

func (d *dynamicCollection[K, R]) Put(ctx context.Context, payload []byte) (string, error) {
	row, err := d.decode("put", payload)
	if err != nil {
		return "", err
	}
	key, err := d.c.Put(ctx, row)
	if err != nil {
		return "", err
	}
	return formatKey(key), nil
}

func (d *dynamicCollection[K, R]) Key(payload []byte) (string, error) {
	row, err := d.decode("key", payload)
	if err != nil {
		return "", err
	}
	key, ok := d.c.schema.PrimaryKey(row)
	if !ok {
		return "", d.c.fail("key", "", ErrMissingKey)
	}
	return formatKey(key), nil
}

func (d *dynamicCollection[K, R]) Remove(ctx context.Context, key string) error {
	k, err := parseKey[K](key)
	if err != nil {
		return d.c.fail("delete", key, err)
	}
	return d.c.Delete(ctx, k)
}

func (d *dynamicCollection[K, R]) Clear(ctx context.Context) error {
	return d.c.Clear(ctx)
}

// DecodeKey turns a JSON array, or a single JSON value, into an index key.
func DecodeKey(data []byte) (index.Key, error) {
	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, err
	}
	values, ok := value.([]any)
	if !ok {
		values = []any{value}
	}
	for _, v := range values {
		switch v.(type) {
		case string, float64, bool:
		default:
			return nil, fmt.Errorf("unsupported index key element %v", v)
		}
	}
	return index.K(values...), nil
}
