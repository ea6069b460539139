package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"trackhistory/internal/app/ports"
	"trackhistory/internal/domain/history"

	"github.com/apex/log"
	"github.com/cloudwego/hertz/pkg/app/client"
	"github.com/cloudwego/hertz/pkg/protocol"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// Doer is the part of the hertz client the source needs.
type Doer interface {
	Do(ctx context.Context, req *protocol.Request, resp *protocol.Response) error
}

// Source reads history windows from the upstream history API:
//
//	GET {base}/history/[1,2]/{start}/{end}      -> {"result": payload}
//	GET {base}/history/size/[1,2]/{start}/{end} -> {"result": count}
type Source struct {
	BaseURL string
	Client  Doer
	Logger  log.Interface
}

func NewSource(baseURL string, timeout time.Duration) (Source, error) {
	c, err := client.NewClient(
		client.WithDialTimeout(timeout),
		client.WithClientReadTimeout(timeout),
	)
	if err != nil {
		return Source{}, fmt.Errorf("new history client: %w", err)
	}
	return Source{BaseURL: strings.TrimRight(baseURL, "/"), Client: c}, nil
}

type envelope[T any] struct {
	Result T `json:"result"`
}

func (s Source) FetchHistory(ctx context.Context, q history.Query) (history.Payload, error) {
	var out envelope[history.Payload]
	if err := s.get(ctx, s.url("", q), &out); err != nil {
		return nil, err
	}
	if out.Result == nil {
		return history.Payload{}, nil
	}
	return out.Result, nil
}

func (s Source) CountHistory(ctx context.Context, q history.Query) (int64, error) {
	var out envelope[json.Number]
	if err := s.get(ctx, s.url("/size", q), &out); err != nil {
		return 0, err
	}
	n, err := out.Result.Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: size result %q: %v", ports.ErrUpstream, out.Result, err)
	}
	return n, nil
}

func (s Source) url(prefix string, q history.Query) string {
	ids := make([]string, 0, len(q.Devices))
	for _, id := range q.Devices {
		ids = append(ids, strconv.FormatInt(id, 10))
	}
	return fmt.Sprintf("%s/history%s/[%s]/%d/%d", s.BaseURL, prefix, strings.Join(ids, ","), q.Start, q.End)
}

func (s Source) get(ctx context.Context, url string, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	req := protocol.AcquireRequest()
	resp := protocol.AcquireResponse()
	defer protocol.ReleaseRequest(req)
	defer protocol.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.SetMethod(consts.MethodGet)
	req.Header.Set("Accept", "application/json")

	started := time.Now()
	if err := s.Client.Do(ctx, req, resp); err != nil {
		return fmt.Errorf("%w: %v", ports.ErrUpstream, err)
	}
	s.logger().WithFields(log.Fields{
		"url":      url,
		"status":   resp.StatusCode(),
		"duration": time.Since(started).String(),
	}).Debug("history upstream call")

	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return fmt.Errorf("%w: status %d", ports.ErrUpstream, resp.StatusCode())
	}
	dec := json.NewDecoder(bytes.NewReader(resp.Body()))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ports.ErrUpstream, err)
	}
	return nil
}

func (s Source) logger() log.Interface {
	if s.Logger == nil {
		return log.Log
	}
	return s.Logger
}
