package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/rueidis"
	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"

	"github.com/kailas-cloud/refine/internal/db"
)

// --- client.go tests ---

func TestPing_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.Result(mock.RedisString("PONG")))

	s := NewStoreForTest(c)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPing_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	s := NewStoreForTest(c)
	err := s.Ping(context.Background())
	var dbErr *db.Error
	if !errors.As(err, &dbErr) || dbErr.Op != db.OpPing {
		t.Fatalf("expected db.Error with op PING, got %v", err)
	}
}

func TestNewStore_NoAddrs(t *testing.T) {
	if _, err := NewStore(Config{}); err == nil {
		t.Fatal("expected error for empty addrs")
	}
}

// --- hash.go tests ---

func TestHGetAll_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("HGETALL", "refine:session:a")).
		Return(mock.Result(mock.RedisMap(map[string]rueidis.RedisMessage{
			"rev":   mock.RedisString("3"),
			"state": mock.RedisString(`{"query":""}`),
		})))

	s := NewStoreForTest(c)
	m, err := s.HGetAll(context.Background(), "refine:session:a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m["rev"] != "3" || m["state"] != `{"query":""}` {
		t.Errorf("unexpected map: %v", m)
	}
}

func TestHGetAll_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("HGETALL", "k")).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	s := NewStoreForTest(c)
	if _, err := s.HGetAll(context.Background(), "k"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected wrapped DeadlineExceeded, got %v", err)
	}
}

func TestExists(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("EXISTS", "k")).
		Return(mock.Result(mock.RedisInt64(1)))

	s := NewStoreForTest(c)
	ok, err := s.Exists(context.Background(), "k")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("expected key to exist")
	}
}

func TestDel_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("DEL", "k")).
		Return(mock.ErrorResult(errors.New("boom")))

	s := NewStoreForTest(c)
	err := s.Del(context.Background(), "k")
	var dbErr *db.Error
	if !errors.As(err, &dbErr) || dbErr.Op != db.OpDel {
		t.Fatalf("expected db.Error with op DEL, got %v", err)
	}
}

func TestCompareAndSetHash_Swapped(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			// EVALSHA <sha> 1 <key> <guard> <expected> <ttl> <field> <value>...
			want := []string{"1", "refine:session:a", "rev", "2", "60000", "rev", "3", "state", "{}"}
			if len(cmd) != 2+len(want) || cmd[0] != "EVALSHA" {
				return false
			}
			for i, w := range want {
				if cmd[2+i] != w {
					return false
				}
			}
			return true
		})).
		Return(mock.Result(mock.RedisArray(mock.RedisInt64(1), mock.RedisString("2"))))

	s := NewStoreForTest(c)
	res, err := s.CompareAndSetHash(context.Background(), db.CASRequest{
		Key:        "refine:session:a",
		GuardField: "rev",
		Expected:   "2",
		Fields:     map[string]string{"state": "{}", "rev": "3"},
		TTL:        time.Minute,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Swapped || res.Current != "2" {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestCompareAndSetHash_Mismatch(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool { return cmd[0] == "EVALSHA" })).
		Return(mock.Result(mock.RedisArray(mock.RedisInt64(0), mock.RedisString("5"))))

	s := NewStoreForTest(c)
	res, err := s.CompareAndSetHash(context.Background(), db.CASRequest{
		Key: "k", GuardField: "rev", Expected: "4", Fields: map[string]string{"rev": "5"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Swapped || res.Current != "5" {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestCompareAndSetHash_BadReply(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool { return cmd[0] == "EVALSHA" })).
		Return(mock.Result(mock.RedisArray(mock.RedisInt64(1))))

	s := NewStoreForTest(c)
	_, err := s.CompareAndSetHash(context.Background(), db.CASRequest{
		Key: "k", GuardField: "rev", Expected: "0", Fields: map[string]string{"rev": "1"},
	})
	if !errors.Is(err, db.ErrBadReply) {
		t.Fatalf("expected ErrBadReply, got %v", err)
	}
}

func TestCompareAndSetHash_RequiresFields(t *testing.T) {
	s := NewStoreForTest(nil)
	if _, err := s.CompareAndSetHash(context.Background(), db.CASRequest{Key: "k", GuardField: "rev"}); err == nil {
		t.Fatal("expected error for empty fields")
	}
	if _, err := s.CompareAndSetHash(context.Background(), db.CASRequest{
		Key: "k", Fields: map[string]string{"a": "b"},
	}); err == nil {
		t.Fatal("expected error for empty guard field")
	}
}

func TestLoadScripts(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("SCRIPT", "LOAD", casSource)).
		Return(mock.Result(mock.RedisString("sha")))

	if err := NewStoreForTest(c).LoadScripts(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadScripts_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("SCRIPT", "LOAD", casSource)).
		Return(mock.ErrorResult(errors.New("NOSCRIPT disabled")))

	err := NewStoreForTest(c).LoadScripts(context.Background())
	var dbErr *db.Error
	if !errors.As(err, &dbErr) || dbErr.Op != db.OpScriptLoad {
		t.Fatalf("expected db.Error with op SCRIPT LOAD, got %v", err)
	}
}

func TestWaitForReady_LoadsScripts(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	gomock.InOrder(
		c.EXPECT().Do(gomock.Any(), mock.Match("PING")).Return(mock.ErrorResult(errors.New("LOADING"))),
		c.EXPECT().Do(gomock.Any(), mock.Match("PING")).Return(mock.Result(mock.RedisString("PONG"))),
		c.EXPECT().Do(gomock.Any(), mock.Match("SCRIPT", "LOAD", casSource)).Return(mock.Result(mock.RedisString("sha"))),
	)

	if err := NewStoreForTest(c).WaitForReady(context.Background(), time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestWaitForReady_Timeout(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().Do(gomock.Any(), mock.Match("PING")).Return(mock.ErrorResult(errors.New("down"))).AnyTimes()

	err := NewStoreForTest(c).WaitForReady(context.Background(), 120*time.Millisecond)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
