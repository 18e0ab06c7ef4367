package adapters_test

import (
	"context"
	"testing"

	"github.com/goliatone/go-command"
	job "github.com/goliatone/go-job"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/ohjayaxel/syncengine/adapters/gocommand"
	"github.com/ohjayaxel/syncengine/adapters/gojob"
	"github.com/ohjayaxel/syncengine/adapters/gologger"
	enginecommand "github.com/ohjayaxel/syncengine/command"
	"github.com/ohjayaxel/syncengine/core"
	syncengine "github.com/ohjayaxel/syncengine/sync"
)

func TestRuntimeCompatibility_GoJobGoCommandGoLogger(t *testing.T) {
	ctx := context.Background()

	logger := &compatLogger{}
	provider := &compatProvider{logger: logger}

	_, _, jobProvider, jobLogger := gologger.ResolveForJob("syncengine", provider, nil)
	if jobProvider == nil || jobLogger == nil {
		t.Fatalf("expected go-job logger bridges")
	}

	enqueueProbe := &compatEnqueuer{}
	enqueueAdapter := gojob.NewEnqueuerAdapter(enqueueProbe)
	msg, err := gojob.SyncJobMessage("shopify", syncengine.Request{TenantID: "t1", Mode: "incremental"})
	if err != nil {
		t.Fatalf("build sync job message: %v", err)
	}
	if err := enqueueAdapter.Enqueue(ctx, msg); err != nil {
		t.Fatalf("enqueue via gojob adapter: %v", err)
	}
	if enqueueProbe.last == nil || enqueueProbe.last.JobID != gojob.JobIDSyncShopify {
		t.Fatalf("expected go-job message mapping through enqueuer adapter")
	}

	queueRegistry := jobqueuecommand.NewRegistry()
	commandAdapter := gocommand.NewRegistryAdapter(command.NewRegistry())
	if err := commandAdapter.AddQueueResolver("queue", queueRegistry); err != nil {
		t.Fatalf("add queue resolver: %v", err)
	}
	if err := commandAdapter.RegisterCommand(command.CommandFunc[compatMessage](func(context.Context, compatMessage) error {
		return nil
	})); err != nil {
		t.Fatalf("register command: %v", err)
	}
	if err := commandAdapter.Initialize(); err != nil {
		t.Fatalf("initialize command registry: %v", err)
	}
	if _, ok := queueRegistry.Get("syncengine.compat.command"); !ok {
		t.Fatalf("expected command resolver hook to mirror command into go-job queue registry")
	}
}

func TestRuntimeCompatibility_SyncCommandDispatchThroughWrappers(t *testing.T) {
	svc := &compatSyncService{}
	adapter := gocommand.NewRegistryAdapter(command.NewRegistry())

	shopifySub, err := gocommand.RegisterAndSubscribe(adapter, enginecommand.NewSyncShopifyCommand(svc))
	if err != nil {
		t.Fatalf("register shopify wrapper: %v", err)
	}
	defer shopifySub.Unsubscribe()

	googleSub, err := gocommand.RegisterAndSubscribe(adapter, enginecommand.NewSyncGoogleAdsCommand(svc))
	if err != nil {
		t.Fatalf("register googleads wrapper: %v", err)
	}
	defer googleSub.Unsubscribe()

	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize adapter: %v", err)
	}

	if err := gocommand.Dispatch(context.Background(), enginecommand.SyncShopifyMessage{
		TenantID: "t1",
		Mode:     "incremental",
	}); err != nil {
		t.Fatalf("dispatch shopify sync: %v", err)
	}
	if svc.calls != 1 || svc.lastSource != "shopify" || svc.lastReq.TenantID != "t1" {
		t.Fatalf("expected shopify dispatch through wrapper, got %d %q %#v", svc.calls, svc.lastSource, svc.lastReq)
	}

	if err := gocommand.Dispatch(context.Background(), enginecommand.SyncGoogleAdsMessage{
		Mode:     "explicit",
		DateFrom: "2024-04-01",
		DateTo:   "2024-04-07",
	}); err != nil {
		t.Fatalf("dispatch googleads sync: %v", err)
	}
	if svc.calls != 2 || svc.lastSource != "googleads" || svc.lastReq.DateFrom != "2024-04-01" {
		t.Fatalf("expected googleads dispatch through wrapper, got %d %q %#v", svc.calls, svc.lastSource, svc.lastReq)
	}
}

type compatMessage struct{}

func (compatMessage) Type() string { return "syncengine.compat.command" }

type compatEnqueuer struct {
	last *job.ExecutionMessage
}

func (e *compatEnqueuer) Enqueue(_ context.Context, msg *job.ExecutionMessage) error {
	e.last = msg
	return nil
}

type compatProvider struct {
	logger glog.Logger
}

func (p *compatProvider) GetLogger(string) glog.Logger {
	if p == nil || p.logger == nil {
		return glog.Nop()
	}
	return p.logger
}

type compatLogger struct{}

func (compatLogger) Trace(string, ...any)                    {}
func (compatLogger) Debug(string, ...any)                    {}
func (compatLogger) Info(string, ...any)                     {}
func (compatLogger) Warn(string, ...any)                     {}
func (compatLogger) Error(string, ...any)                    {}
func (compatLogger) Fatal(string, ...any)                    {}
func (compatLogger) WithContext(context.Context) glog.Logger { return compatLogger{} }

type compatSyncService struct {
	calls      int
	lastSource string
	lastReq    syncengine.Request
}

func (s *compatSyncService) SyncProvider(_ context.Context, source string, req syncengine.Request) (syncengine.Response, error) {
	s.calls++
	s.lastSource = source
	s.lastReq = req
	return syncengine.Response{
		Source: source,
		Results: []syncengine.TenantResult{
			{TenantID: req.TenantID, Status: syncengine.ResultStatusSucceeded},
		},
	}, nil
}

var _ core.CommandMessage = compatMessage{}
