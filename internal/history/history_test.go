package history

import (
	"context"
	"errors"
	"testing"

	"lobby-scout/internal/pagecache"

	"github.com/rs/zerolog"
)

type fakeClient struct {
	calls   int
	payload []byte
	err     error
}

func (f *fakeClient) FetchMatchPage(ctx context.Context, opaqueID string, pageStart, pageSize int, filter string) ([]byte, error) {
	f.calls++
	return f.payload, f.err
}

const pageJSON = `[{"matchId":"m1","win":true,"kills":10,"deaths":2,"assists":5,"championId":64},
                   {"matchId":"m2","win":false,"kills":3,"deaths":7,"assists":1,"championId":64}]`

func TestSecondRequestServedFromCache(t *testing.T) {
	client := &fakeClient{payload: []byte(pageJSON)}
	svc := NewService(client, pagecache.New(5), zerolog.Nop())

	first, err := svc.MatchPage(context.Background(), "p1", 0, 20, "all", false)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	second, err := svc.MatchPage(context.Background(), "p1", 0, 20, "all", false)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	if client.calls != 1 {
		t.Fatalf("client calls: got %d, want 1", client.calls)
	}
	if len(first) != 2 || len(second) != 2 {
		t.Fatalf("page lengths: got %d and %d, want 2", len(first), len(second))
	}
	if first[0].MatchID != "m1" || !first[0].Win || first[0].Kills != 10 {
		t.Fatalf("unexpected first outcome: %+v", first[0])
	}
}

func TestForceRefreshBypassesCache(t *testing.T) {
	client := &fakeClient{payload: []byte(pageJSON)}
	svc := NewService(client, pagecache.New(5), zerolog.Nop())

	if _, err := svc.MatchPage(context.Background(), "p1", 0, 20, "all", false); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if _, err := svc.MatchPage(context.Background(), "p1", 0, 20, "all", true); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	if client.calls != 2 {
		t.Fatalf("client calls: got %d, want 2", client.calls)
	}
}

func TestUpstreamFailureNotCached(t *testing.T) {
	client := &fakeClient{err: errors.New("boom")}
	svc := NewService(client, pagecache.New(5), zerolog.Nop())

	if _, err := svc.MatchPage(context.Background(), "p1", 0, 20, "all", false); err == nil {
		t.Fatalf("expected error")
	}

	client.err = nil
	client.payload = []byte(pageJSON)
	if _, err := svc.MatchPage(context.Background(), "p1", 0, 20, "all", false); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if client.calls != 2 {
		t.Fatalf("client calls: got %d, want 2", client.calls)
	}
}

func TestMalformedPayloadIsError(t *testing.T) {
	client := &fakeClient{payload: []byte(`{"not":"a list"}`)}
	svc := NewService(client, pagecache.New(5), zerolog.Nop())

	if _, err := svc.MatchPage(context.Background(), "p1", 0, 20, "all", false); err == nil {
		t.Fatalf("expected decode error")
	}
}
