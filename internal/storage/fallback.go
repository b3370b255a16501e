package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// Fallback writes to both backends and succeeds when at least one write
// lands. Reads prefer Primary. Secondary may be nil.
type Fallback struct {
	Primary   Store
	Secondary Store
	// OnError is called for each backend failure that did not fail the call.
	OnError func(backend string, op string, key string, err error)
}

func (f *Fallback) Name() string {
	if f.Secondary == nil {
		return f.Primary.Name()
	}
	return f.Primary.Name() + "+" + f.Secondary.Name()
}

func (f *Fallback) URI(key string) string { return f.Primary.URI(key) }

func (f *Fallback) report(backend, op, key string, err error) {
	if f.OnError != nil && err != nil {
		f.OnError(backend, op, key, err)
	}
}

func (f *Fallback) Put(ctx context.Context, key string, content []byte, contentType string) error {
	perr := f.Primary.Put(ctx, key, content, contentType)
	if f.Secondary == nil {
		return perr
	}
	serr := f.Secondary.Put(ctx, key, content, contentType)
	switch {
	case perr == nil && serr == nil:
		return nil
	case perr != nil && serr != nil:
		return fmt.Errorf("put %s: %w", key, errors.Join(perr, serr))
	case perr != nil:
		f.report(f.Primary.Name(), "put", key, perr)
	default:
		f.report(f.Secondary.Name(), "put", key, serr)
	}
	return nil
}

func (f *Fallback) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := f.Primary.Get(ctx, key)
	if err == nil || f.Secondary == nil {
		return data, err
	}
	if !errors.Is(err, ErrNotFound) {
		f.report(f.Primary.Name(), "get", key, err)
	}
	data, serr := f.Secondary.Get(ctx, key)
	if serr == nil {
		return data, nil
	}
	if errors.Is(err, ErrNotFound) && errors.Is(serr, ErrNotFound) {
		return nil, ErrNotFound
	}
	return nil, errors.Join(err, serr)
}

// List returns the union of both backends. On duplicate keys the newer
// modification time wins.
func (f *Fallback) List(ctx context.Context, prefix string) ([]Object, error) {
	pobjs, perr := f.Primary.List(ctx, prefix)
	if f.Secondary == nil {
		return pobjs, perr
	}
	sobjs, serr := f.Secondary.List(ctx, prefix)
	if perr != nil && serr != nil {
		return nil, errors.Join(perr, serr)
	}
	f.report(f.Primary.Name(), "list", prefix, perr)
	f.report(f.Secondary.Name(), "list", prefix, serr)

	merged := make(map[string]Object, len(pobjs)+len(sobjs))
	for _, list := range [][]Object{pobjs, sobjs} {
		for _, o := range list {
			if cur, ok := merged[o.Key]; ok && !o.Modified.After(cur.Modified) {
				continue
			}
			merged[o.Key] = o
		}
	}
	out := make([]Object, 0, len(merged))
	for _, o := range merged {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Delete removes key from every backend. It reports ErrNotFound only when no
// backend held the key.
func (f *Fallback) Delete(ctx context.Context, key string) error {
	perr := f.Primary.Delete(ctx, key)
	if f.Secondary == nil {
		return perr
	}
	serr := f.Secondary.Delete(ctx, key)
	if perr == nil || serr == nil {
		if perr != nil && !errors.Is(perr, ErrNotFound) {
			f.report(f.Primary.Name(), "delete", key, perr)
		}
		if serr != nil && !errors.Is(serr, ErrNotFound) {
			f.report(f.Secondary.Name(), "delete", key, serr)
		}
		return nil
	}
	if errors.Is(perr, ErrNotFound) && errors.Is(serr, ErrNotFound) {
		return ErrNotFound
	}
	return errors.Join(perr, serr)
}
