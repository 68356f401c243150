// Tenantcore - Multi-tenant Realtime Notification and Response Cache Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantcore

package store_test

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/tomtom215/tenantcore/internal/store"
	"github.com/tomtom215/tenantcore/internal/store/storetest"
)

func TestRedisGetSet(t *testing.T) {
	s, mr := storetest.New(t)
	ctx := context.Background()

	if _, ok, err := s.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("Get(missing) = ok %v, err %v; want miss without error", ok, err)
	}

	if err := s.SetWithTTL(ctx, "k", `{"a":1}`, time.Minute); err != nil {
		t.Fatalf("SetWithTTL() error = %v", err)
	}
	val, ok, err := s.Get(ctx, "k")
	if err != nil || !ok || val != `{"a":1}` {
		t.Errorf("Get(k) = %q, %v, %v", val, ok, err)
	}
	if ttl := mr.TTL("k"); ttl != time.Minute {
		t.Errorf("TTL(k) = %v, want 1m", ttl)
	}

	mr.FastForward(2 * time.Minute)
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Error("Expected key to expire")
	}
}

func TestRedisDeleteAndExists(t *testing.T) {
	s, _ := storetest.New(t)
	ctx := context.Background()

	_ = s.SetWithTTL(ctx, "a", "1", 0)
	_ = s.SetWithTTL(ctx, "b", "2", 0)

	if ok, _ := s.Exists(ctx, "a"); !ok {
		t.Error("Expected a to exist")
	}
	n, err := s.Delete(ctx, "a", "b", "c")
	if err != nil || n != 2 {
		t.Errorf("Delete() = %d, %v; want 2, nil", n, err)
	}
	if n, err := s.Delete(ctx); err != nil || n != 0 {
		t.Errorf("Delete() with no keys = %d, %v", n, err)
	}
	if ok, _ := s.Exists(ctx, "a"); ok {
		t.Error("Expected a to be deleted")
	}
}

func TestRedisKeysUsesGlob(t *testing.T) {
	s, _ := storetest.New(t)
	ctx := context.Background()

	for _, k := range []string{"api_cache:u1:GET:/a:1", "api_cache:u1:GET:/b:2", "api_cache:u2:GET:/a:3", "element:posts:1"} {
		_ = s.SetWithTTL(ctx, k, "x", 0)
	}

	keys, err := s.Keys(ctx, "api_cache:u1:*")
	if err != nil {
		t.Fatalf("Keys() error = %v", err)
	}
	sort.Strings(keys)
	if len(keys) != 2 || keys[0] != "api_cache:u1:GET:/a:1" || keys[1] != "api_cache:u1:GET:/b:2" {
		t.Errorf("Keys() = %v", keys)
	}

	none, err := s.Keys(ctx, "nothing:*")
	if err != nil || len(none) != 0 {
		t.Errorf("Keys(nothing) = %v, %v", none, err)
	}
}

func TestRedisSetsAndHashes(t *testing.T) {
	s, _ := storetest.New(t)
	ctx := context.Background()

	if err := s.SetAdd(ctx, "set", "a", "b", "a"); err != nil {
		t.Fatalf("SetAdd() error = %v", err)
	}
	_ = s.SetRemove(ctx, "set", "b")
	members, _ := s.SetMembers(ctx, "set")
	if len(members) != 1 || members[0] != "a" {
		t.Errorf("SetMembers() = %v, want [a]", members)
	}

	if err := s.HashSet(ctx, "h", map[string]string{"userId": "u1", "companyId": "c1"}); err != nil {
		t.Fatalf("HashSet() error = %v", err)
	}
	h, err := s.HashGetAll(ctx, "h")
	if err != nil || h["userId"] != "u1" || h["companyId"] != "c1" {
		t.Errorf("HashGetAll() = %v, %v", h, err)
	}
	empty, err := s.HashGetAll(ctx, "nope")
	if err != nil || len(empty) != 0 {
		t.Errorf("HashGetAll(nope) = %v, %v; want empty", empty, err)
	}
}

func TestRedisPipelineIsAppliedInOrder(t *testing.T) {
	s, mr := storetest.New(t)
	ctx := context.Background()

	p := s.Pipeline()
	p.SetAdd("element:posts:1", "key1", "key2")
	p.Expire("element:posts:1", time.Minute)
	p.HashSet("h", map[string]string{"f": "v"})
	p.SetWithTTL("s", "v", time.Minute)
	p.SetAdd("ignored") // no members, not queued
	p.Delete("s")

	if p.Len() != 5 {
		t.Errorf("Len() = %d, want 5", p.Len())
	}
	if err := p.Exec(ctx); err != nil {
		t.Fatalf("Exec() error = %v", err)
	}

	if ok, _ := mr.SIsMember("element:posts:1", "key2"); !ok {
		t.Error("Expected key2 in element set")
	}
	if ttl := mr.TTL("element:posts:1"); ttl != time.Minute {
		t.Errorf("TTL(element) = %v, want 1m", ttl)
	}
	if mr.Exists("s") {
		t.Error("Expected s to be deleted by the later command")
	}
	if mr.HGet("h", "f") != "v" {
		t.Error("Expected hash field to be set")
	}
}

func TestRedisEmptyPipeline(t *testing.T) {
	s, _ := storetest.New(t)
	if err := s.Pipeline().Exec(context.Background()); err != nil {
		t.Errorf("Exec() on empty pipeline error = %v", err)
	}
}

func TestRedisPublishSubscribe(t *testing.T) {
	s, _ := storetest.New(t)
	ctx := context.Background()

	sub, err := s.Subscribe(ctx, "test:websocket_notifications")
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	defer sub.Close()

	if err := s.Publish(ctx, "test:websocket_notifications", `{"type":"broadcast"}`); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case msg := <-sub.Messages():
		if msg.Channel != "test:websocket_notifications" || msg.Payload != `{"type":"broadcast"}` {
			t.Errorf("received %+v", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}

	if err := sub.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	select {
	case _, open := <-sub.Messages():
		if open {
			t.Error("Expected messages channel to be closed after Close")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("messages channel not closed")
	}
}

func TestRedisConnectedAndClose(t *testing.T) {
	s, _ := storetest.New(t)
	if !s.Connected() {
		t.Error("Expected Connected() after successful ping")
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if s.Connected() {
		t.Error("Expected Connected() to be false after Close")
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestNilRedisIsNotConfigured(t *testing.T) {
	var s *store.Redis
	if _, _, err := s.Get(context.Background(), "k"); !errors.Is(err, store.ErrNotConfigured) {
		t.Errorf("Get() on nil store error = %v, want ErrNotConfigured", err)
	}
	if s.Connected() {
		t.Error("Expected nil store to be disconnected")
	}
	if err := s.Pipeline().Exec(context.Background()); !errors.Is(err, store.ErrNotConfigured) {
		t.Errorf("Exec() on nil store error = %v, want ErrNotConfigured", err)
	}
}
