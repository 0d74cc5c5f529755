// ABOUTME: Synthetic traffic agent for exercising a running glidescope server
// ABOUTME: Posts captured console output and record operations as page messages

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/glidescope/glidescope/internal/capture"
	"github.com/glidescope/glidescope/internal/model"
	"github.com/glidescope/glidescope/internal/relay"
)

var tables = []string{"incident", "change_request", "problem", "sys_user", "cmdb_ci"}

var messages = []string{
	"Business rule executed",
	"Client script validation passed",
	"ACL evaluation took longer than expected",
	"Workflow transition fired",
	"Reference qualifier resolved",
}

func main() {
	addr := flag.String("addr", "127.0.0.1:7486", "glidescope server address")
	origin := flag.String("origin", "https://dev12345.service-now.com", "origin header for page messages")
	interval := flag.Duration("interval", 2*time.Second, "delay between synthetic operations")
	count := flag.Int("count", 0, "number of operations to post (0 = run until interrupted)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	poster := &pagePoster{
		endpoint: fmt.Sprintf("http://%s/api/page-message", *addr),
		origin:   *origin,
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   logger,
	}

	hooks := capture.NewHooks(poster, nil, fakeBackend())
	hooks.Console.SetPageContext(*origin+"/now/nav/ui/classic/params/target/incident_list.do", "synthetic.agent")

	// Collector-side enable/disable lands here over the status feed
	go followControl(ctx, fmt.Sprintf("ws://%s/ws?topics=status", *addr), hooks, logger)

	logger.Info("agent started", "server", *addr, "origin", *origin, "interval", *interval)

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	sent := 0
	for {
		select {
		case <-ctx.Done():
			logger.Info("agent stopped", "operations", sent)
			return
		case <-ticker.C:
			runOperation(ctx, hooks.Console, hooks.Records)
			sent++
			if *count > 0 && sent >= *count {
				logger.Info("agent finished", "operations", sent)
				return
			}
		}
	}
}

// followControl keeps a subscription to the collector's status feed alive,
// reconnecting after drops, so enable/disable reaches the local hooks.
func followControl(ctx context.Context, wsURL string, hooks *capture.Hooks, logger *slog.Logger) {
	for {
		err := relay.FollowStatus(ctx, wsURL, hooks, logger)
		if ctx.Err() != nil {
			return
		}
		logger.Warn("control feed lost, reconnecting", "error", err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(5 * time.Second):
		}
	}
}

// runOperation performs one randomly chosen synthetic activity through the
// capture hooks, which post the resulting events to the server.
func runOperation(ctx context.Context, console *capture.Console, records *capture.RecordRecorder) {
	table := tables[rand.Intn(len(tables))]

	switch rand.Intn(5) {
	case 0:
		console.Log(messages[rand.Intn(len(messages))])
	case 1:
		console.Warn(messages[rand.Intn(len(messages))], map[string]any{"table": table})
	case 2:
		_, _ = records.Query(ctx, table, "active=true^ORDERBYDESCsys_updated_on")
	case 3:
		_, _ = records.Insert(ctx, table, map[string]any{"short_description": "synthetic record"})
	case 4:
		_ = records.Delete(ctx, table, uuid.NewString())
	}
}

// fakeBackend simulates table CRUD with jittered latency so measurements
// carry realistic durations.
func fakeBackend() *capture.RecordClient {
	return &capture.RecordClient{
		QueryFn: func(ctx context.Context, table, encodedQuery string) ([]map[string]any, error) {
			jitter(ctx)
			n := rand.Intn(20)
			rows := make([]map[string]any, n)
			for i := range rows {
				rows[i] = map[string]any{"sys_id": uuid.NewString()}
			}
			return rows, nil
		},
		InsertFn: func(ctx context.Context, table string, fields map[string]any) (string, error) {
			jitter(ctx)
			return uuid.NewString(), nil
		},
		UpdateFn: func(ctx context.Context, table, recordID string, fields map[string]any) error {
			jitter(ctx)
			return nil
		},
		DeleteFn: func(ctx context.Context, table, recordID string) error {
			jitter(ctx)
			return nil
		},
	}
}

func jitter(ctx context.Context) {
	d := time.Duration(rand.Intn(80)+5) * time.Millisecond
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// pagePoster implements capture.Emitter by posting page messages to the
// server, the same shape the in-page hooks produce.
type pagePoster struct {
	endpoint string
	origin   string
	client   *http.Client
	logger   *slog.Logger
}

func (p *pagePoster) EmitLog(entry *model.LogEntry) {
	p.post(relay.MessageConsole, entry)
}

func (p *pagePoster) EmitMeasurement(m *model.Measurement) {
	p.post(relay.MessagePerformance, m)
}

func (p *pagePoster) post(msgType string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		p.logger.Warn("encoding page message failed", "error", err)
		return
	}
	body, err := json.Marshal(relay.PageMessage{Type: msgType, Data: raw})
	if err != nil {
		p.logger.Warn("encoding page message failed", "error", err)
		return
	}

	req, err := http.NewRequest(http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		p.logger.Warn("building request failed", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", p.origin)

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Warn("posting page message failed", "error", err)
		return
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		p.logger.Warn("server rejected page message", "status", resp.StatusCode, "type", msgType)
	}
}
