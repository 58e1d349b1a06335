package redis

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	redisRepo "github.com/iho/verifikat/internal/adapter/repository/redis"
)

func TestNewClientFingerprintKeyspace(t *testing.T) {
	s := miniredis.RunT(t)

	ctx := context.Background()
	client, err := NewClient(ctx, fmt.Sprintf("redis://%s/2", s.Addr()))
	if err != nil {
		t.Fatalf("expected client, got error: %v", err)
	}
	defer client.Close()

	cache := redisRepo.NewFingerprintCache(client)
	if err := cache.Set(ctx, "5f1c", "01HV7Q0ENTRY", 30*time.Second); err != nil {
		t.Fatalf("set fingerprint: %v", err)
	}

	db := s.DB(2)
	got, err := db.Get("verifikat:fingerprint:5f1c")
	if err != nil {
		t.Fatalf("expected fingerprint in the database selected by the URL: %v", err)
	}
	if got != "01HV7Q0ENTRY" {
		t.Fatalf("expected entry id, got %q", got)
	}
	if ttl := db.TTL("verifikat:fingerprint:5f1c"); ttl != 30*time.Second {
		t.Fatalf("expected key to expire with the duplicate window, got %v", ttl)
	}
	if keys := s.DB(0).Keys(); len(keys) != 0 {
		t.Fatalf("expected default database untouched, got %v", keys)
	}

	s.FastForward(31 * time.Second)
	id, err := cache.Get(ctx, "5f1c")
	if err != nil || id != "" {
		t.Fatalf("expected expired fingerprint to miss, got %q, %v", id, err)
	}
}

func TestNewClientTimeouts(t *testing.T) {
	s := miniredis.RunT(t)

	testCases := []struct {
		name  string
		query string
		read  time.Duration
		write time.Duration
	}{
		{name: "defaults to the cache budget", read: cacheTimeout, write: cacheTimeout},
		{name: "url overrides", query: "?read_timeout=2s&write_timeout=1s", read: 2 * time.Second, write: time.Second},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			client, err := NewClient(context.Background(), fmt.Sprintf("redis://%s/0%s", s.Addr(), tc.query))
			if err != nil {
				t.Fatalf("expected client, got error: %v", err)
			}
			defer client.Close()

			opts := client.Options()
			if opts.ReadTimeout != tc.read || opts.WriteTimeout != tc.write {
				t.Fatalf("expected read %v write %v, got read %v write %v", tc.read, tc.write, opts.ReadTimeout, opts.WriteTimeout)
			}
		})
	}
}

func TestNewClientErrors(t *testing.T) {
	s := miniredis.RunT(t)
	addr := s.Addr()
	s.Close()

	testCases := []struct {
		name string
		url  string
		want string
	}{
		{name: "invalid url", url: "://bad-url", want: "failed to parse redis URL"},
		{name: "wrong scheme", url: "http://localhost:6379", want: "failed to parse redis URL"},
		{name: "server down", url: "redis://" + addr, want: "failed to ping redis at " + addr},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewClient(context.Background(), tc.url)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q in %v", tc.want, err)
			}
		})
	}
}
